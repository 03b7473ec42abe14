package config

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/WessleyAI/docsearch/engine/embed"
	"github.com/WessleyAI/docsearch/engine/semantic"
	"github.com/WessleyAI/docsearch/pkg/azopenai"
	"github.com/WessleyAI/docsearch/pkg/ollama"
)

// HTTPClient is the traced client shared by the REST backends.
func HTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// OpenAI builds the Azure OpenAI client; chatDeployment may be empty for
// embedding-only use.
func (e Embedding) OpenAI(chatDeployment string, hc *http.Client) *azopenai.Client {
	return azopenai.New(azopenai.Config{
		Endpoint:            e.AzureEndpoint,
		APIKey:              e.AzureAPIKey,
		APIVersion:          e.AzureAPIVersion,
		EmbeddingDeployment: e.AzureDeployment,
		ChatDeployment:      chatDeployment,
		HTTPClient:          hc,
	})
}

// Backend builds the configured embedding client.
func (e Embedding) Backend(hc *http.Client) embed.Backend {
	if e.Provider == ProviderOllama {
		return ollama.NewEmbedClient(e.OllamaURL, e.OllamaModel, hc)
	}
	return e.OpenAI("", hc)
}

// AdapterOptions maps the settings onto the embedding adapter policy.
func (e Embedding) AdapterOptions() embed.Options {
	o := embed.DefaultOptions()
	o.Dimensions = e.Dimensions
	o.Workers = e.Workers
	o.Timeout = e.Timeout
	o.Retry.MaxAttempts = e.MaxAttempts
	o.Rate = e.Rate
	if e.Workers > o.Burst {
		o.Burst = e.Workers
	}
	return o
}

// Open dials the vector index.
func (q Qdrant) Open() (*semantic.VectorStore, error) {
	return semantic.New(q.Addr, q.Index, semantic.Options{APIKey: q.APIKey, TLS: q.TLS})
}
