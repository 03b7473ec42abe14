// Package azopenai wraps go-openai configured for Azure OpenAI deployments:
// one deployment for embeddings and one for chat completions.
package azopenai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultAPIVersion is the Azure OpenAI REST API version used when none is
// configured.
const DefaultAPIVersion = "2024-02-01"

// Config describes an Azure OpenAI resource.
type Config struct {
	Endpoint            string
	APIKey              string
	APIVersion          string
	EmbeddingDeployment string
	ChatDeployment      string
	HTTPClient          *http.Client
}

// Client issues embedding and chat-completion calls.
type Client struct {
	api       *openai.Client
	embedding string
	chat      string
}

// New builds a Client. Deployment names are sent as-is.
func New(cfg Config) *Client {
	oc := openai.DefaultAzureConfig(cfg.APIKey, strings.TrimRight(cfg.Endpoint, "/"))
	if cfg.APIVersion != "" {
		oc.APIVersion = cfg.APIVersion
	} else {
		oc.APIVersion = DefaultAPIVersion
	}
	oc.AzureModelMapperFunc = func(model string) string { return model }
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &Client{
		api:       openai.NewClientWithConfig(oc),
		embedding: cfg.EmbeddingDeployment,
		chat:      cfg.ChatDeployment,
	}
}

// Error carries the HTTP status of a failed call, 0 when none was received.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return "azure openai: " + e.Message
	}
	return fmt.Sprintf("azure openai: status %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode exposes the HTTP status for retry classification.
func (e *Error) StatusCode() int { return e.Status }

func wrap(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Status: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.Error()
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &Error{Status: reqErr.HTTPStatusCode, Message: msg, Err: err}
	}
	return &Error{Message: err.Error(), Err: err}
}

// Name identifies the embedding backend in logs and metrics.
func (c *Client) Name() string { return "azure-openai" }

// Embed returns the embedding of text from the embedding deployment.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embedding),
	})
	if err != nil {
		return nil, wrap(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &Error{Status: http.StatusOK, Message: "no embedding in response"}
	}
	return resp.Data[0].Embedding, nil
}

// Complete sends a system and user message to the chat deployment and
// returns the first choice. A temperature of 0 is sent as the smallest
// positive float so the field is not dropped from the request.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	if temperature <= 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chat,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", wrap(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Status: http.StatusOK, Message: "no choices in response"}
	}
	return resp.Choices[0].Message.Content, nil
}
