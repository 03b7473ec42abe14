// Package docintel calls the Azure AI Document Intelligence layout model
// over its REST API: submit a document, then poll the operation until it
// finishes.
package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultModel is the prebuilt layout model.
	DefaultModel = "prebuilt-layout"
	// DefaultAPIVersion is the GA REST API version.
	DefaultAPIVersion = "2024-11-30"
)

// Options configures the client.
type Options struct {
	Model        string
	APIVersion   string
	PollInterval time.Duration
	HTTPClient   *http.Client
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		Model:        DefaultModel,
		APIVersion:   DefaultAPIVersion,
		PollInterval: 2 * time.Second,
	}
}

// Client submits documents for analysis.
type Client struct {
	endpoint string
	key      string
	opts     Options
	http     *http.Client
}

// New creates a Document Intelligence client.
func New(endpoint, key string, opts Options) *Client {
	d := DefaultOptions()
	if opts.Model == "" {
		opts.Model = d.Model
	}
	if opts.APIVersion == "" {
		opts.APIVersion = d.APIVersion
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = d.PollInterval
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{endpoint: strings.TrimRight(endpoint, "/"), key: key, opts: opts, http: hc}
}

// Line is a single text line on a page.
type Line struct {
	Content string `json:"content"`
}

// Page is one analyzed page.
type Page struct {
	PageNumber int    `json:"pageNumber"`
	Lines      []Line `json:"lines"`
}

// AnalyzeResult holds the fields of the analysis the pipeline consumes.
type AnalyzeResult struct {
	ModelID string `json:"modelId"`
	Content string `json:"content"`
	Pages   []Page `json:"pages"`
}

type operation struct {
	Status        string         `json:"status"`
	AnalyzeResult *AnalyzeResult `json:"analyzeResult"`
	Error         *serviceError  `json:"error"`
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error reports a failed analysis.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("docintel: status %d: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("docintel: status %d: %s", e.Status, e.Message)
}

// Analyze submits content to the layout model and waits for the result.
func (c *Client) Analyze(ctx context.Context, content []byte) (*AnalyzeResult, error) {
	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s",
		c.endpoint, c.opts.Model, c.opts.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("docintel: analyze: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docintel: analyze: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return nil, readError(resp)
	}
	location := resp.Header.Get("Operation-Location")
	if location == "" {
		return nil, &Error{Status: resp.StatusCode, Message: "missing Operation-Location header"}
	}
	return c.poll(ctx, location)
}

func (c *Client) poll(ctx context.Context, location string) (*AnalyzeResult, error) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		op, err := c.getOperation(ctx, location)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(op.Status) {
		case "succeeded":
			if op.AnalyzeResult == nil {
				return nil, &Error{Status: http.StatusOK, Message: "operation succeeded without a result"}
			}
			return op.AnalyzeResult, nil
		case "failed", "canceled":
			e := &Error{Status: http.StatusOK, Message: "analysis " + op.Status}
			if op.Error != nil {
				e.Code, e.Message = op.Error.Code, op.Error.Message
			}
			return nil, e
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("docintel: poll: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) getOperation(ctx context.Context, location string) (*operation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("docintel: poll: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docintel: poll: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}
	var op operation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, fmt.Errorf("docintel: decode operation: %w", err)
	}
	return &op, nil
}

func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var env struct {
		Error serviceError `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		return &Error{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
	return &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
