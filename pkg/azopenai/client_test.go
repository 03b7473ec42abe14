package azopenai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		Endpoint:            srv.URL,
		APIKey:              "secret",
		EmbeddingDeployment: "text-embedding-ada-002",
		ChatDeployment:      "gpt-35-turbo",
	})
}

func TestEmbed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/openai/deployments/text-embedding-ada-002/embeddings") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != DefaultAPIVersion {
			t.Errorf("unexpected api-version %q", r.URL.Query().Get("api-version"))
		}
		if r.Header.Get("api-key") != "secret" {
			t.Errorf("missing api-key header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],"model":"ada"}`))
	})

	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestEmbedAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":"429","message":"Rate limit exceeded"}}`))
	})

	_, err := c.Embed(context.Background(), "hello")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T %v", err, err)
	}
	if e.StatusCode() != http.StatusTooManyRequests {
		t.Fatalf("status = %d", e.StatusCode())
	}
}

func TestEmbedEmptyData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	})
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestComplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/openai/deployments/gpt-35-turbo/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Temperature *float64 `json:"temperature"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Content != "count trees" {
			t.Errorf("unexpected messages %+v", body.Messages)
		}
		if body.Temperature == nil || *body.Temperature > 1e-6 {
			t.Errorf("temperature should be sent as near zero, got %v", body.Temperature)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"SELECT COUNT(*) FROM ttvTrees;"},"finish_reason":"stop"}]}`))
	})

	out, err := c.Complete(context.Background(), "schema", "count trees", 0)
	if err != nil {
		t.Fatal(err)
	}
	if out != "SELECT COUNT(*) FROM ttvTrees;" {
		t.Fatalf("got %q", out)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	if _, err := c.Complete(context.Background(), "s", "u", 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestWrapTransportError(t *testing.T) {
	err := wrap(errors.New("dial tcp: refused"))
	var e *Error
	if !errors.As(err, &e) || e.StatusCode() != 0 {
		t.Fatalf("unexpected %v", err)
	}
}
