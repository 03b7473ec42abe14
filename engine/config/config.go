// Package config builds the per-command configuration from environment
// variables. Every loader reports all missing and malformed settings at once
// as a *domain.ConfigurationError, before any component is constructed.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/WessleyAI/docsearch/engine/domain"
)

// Lookup reads one variable. os.LookupEnv satisfies it.
type Lookup func(key string) (string, bool)

// Embedding provider names.
const (
	ProviderAzure  = "azure"
	ProviderOllama = "ollama"
)

// Log configures the process logger.
type Log struct {
	Level  string
	Format string
}

// Embedding selects and configures the embedding backend.
type Embedding struct {
	Provider        string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureAPIVersion string
	AzureDeployment string
	OllamaURL       string
	OllamaModel     string
	Dimensions      int
	Timeout         time.Duration
	Workers         int
	MaxAttempts     int
	Rate            float64
}

// Qdrant locates the vector index.
type Qdrant struct {
	Addr   string
	Index  string
	APIKey string
	TLS    bool
}

// Extract configures cmd/extract.
type Extract struct {
	Log          Log
	DIEndpoint   string
	DIKey        string
	StorageConn  string
	Container    string
	Prefix       string
	ProcessedDir string
	Timeout      time.Duration
	Workers      int
	MetricsPort  int
}

// Index configures cmd/index.
type Index struct {
	Log           Log
	Embedding     Embedding
	Qdrant        Qdrant
	ProcessedDir  string
	ChunkSize     int
	ChunkOverlap  int
	UploadTimeout time.Duration
	NATSURL       string
	MetricsPort   int
}

// Redis locates the optional history store.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Chat configures cmd/chat.
type Chat struct {
	Log               Log
	Embedding         Embedding
	Qdrant            Qdrant
	ChatDeployment    string
	TopK              int
	SearchTimeout     time.Duration
	CompletionTimeout time.Duration
	Redis             Redis
	HistoryTTL        time.Duration
	Port              int
	NATSURL           string
	MetricsPort       int
}

// LoadExtract reads the extraction stage settings.
func LoadExtract(lookup Lookup) (*Extract, error) {
	r := &reader{lookup: lookup}
	c := &Extract{
		Log:          r.log(),
		DIEndpoint:   r.required("AZURE_DI_ENDPOINT"),
		DIKey:        r.required("AZURE_DI_KEY"),
		StorageConn:  r.required("AZ_STORAGE_STRING"),
		Container:    r.required("AZ_STORAGE_CONTAINER"),
		Prefix:       r.str("AZ_STORAGE_PREFIX", ""),
		ProcessedDir: r.str("PROCESSED_DIR", "processed_data"),
		Timeout:      r.duration("EXTRACT_TIMEOUT", 5*time.Minute),
		Workers:      r.positive("EXTRACT_WORKERS", 1),
		MetricsPort:  r.integer("METRICS_PORT", 0),
	}
	return c, r.err()
}

// LoadIndex reads the indexing stage settings.
func LoadIndex(lookup Lookup) (*Index, error) {
	r := &reader{lookup: lookup}
	c := &Index{
		Log:           r.log(),
		Embedding:     r.embedding(),
		Qdrant:        r.qdrant(),
		ProcessedDir:  r.str("PROCESSED_DIR", "processed_data"),
		ChunkSize:     r.positive("CHUNK_SIZE", 1000),
		ChunkOverlap:  r.integer("CHUNK_OVERLAP", 200),
		UploadTimeout: r.duration("UPLOAD_TIMEOUT", 60*time.Second),
		NATSURL:       r.str("NATS_URL", ""),
		MetricsPort:   r.integer("METRICS_PORT", 0),
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		r.problem("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	return c, r.err()
}

// LoadChat reads the chat surface settings. Chat completions always go to
// Azure OpenAI, so its endpoint and key are required whatever the embedding
// provider.
func LoadChat(lookup Lookup) (*Chat, error) {
	r := &reader{lookup: lookup}
	c := &Chat{
		Log:               r.log(),
		Embedding:         r.embedding(),
		Qdrant:            r.qdrant(),
		ChatDeployment:    r.str("AZURE_OPENAI_CHAT_DEPLOYMENT", "gpt-35-turbo"),
		TopK:              r.positive("SEARCH_TOP_K", 3),
		SearchTimeout:     r.duration("SEARCH_TIMEOUT", 10*time.Second),
		CompletionTimeout: r.duration("COMPLETION_TIMEOUT", 60*time.Second),
		Redis: Redis{
			Addr:     r.str("REDIS_ADDR", ""),
			Password: r.str("REDIS_PASSWORD", ""),
			DB:       r.integer("REDIS_DB", 0),
		},
		HistoryTTL:  r.duration("HISTORY_TTL", 24*time.Hour),
		Port:        r.positive("PORT", 8090),
		NATSURL:     r.str("NATS_URL", ""),
		MetricsPort: r.integer("METRICS_PORT", 0),
	}
	if c.Embedding.Provider != ProviderAzure {
		c.Embedding.AzureEndpoint = r.required("AZURE_OPENAI_ENDPOINT")
		c.Embedding.AzureAPIKey = r.required("AZURE_OPENAI_API_KEY")
	}
	return c, r.err()
}

// --- reader ---

type reader struct {
	lookup   Lookup
	problems []string
}

func (r *reader) problem(format string, args ...any) {
	r.problems = append(r.problems, domain.NewConfigurationError(format, args...).Problems...)
}

func (r *reader) err() error {
	if len(r.problems) == 0 {
		return nil
	}
	return &domain.ConfigurationError{Problems: r.problems}
}

func (r *reader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) str(key, def string) string {
	if v, ok := r.get(key); ok {
		return v
	}
	return def
}

func (r *reader) required(key string) string {
	v, ok := r.get(key)
	if !ok {
		r.problem("%s is required", key)
	}
	return v
}

func (r *reader) integer(key string, def int) int {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.problem("%s: %q is not an integer", key, v)
		return def
	}
	return n
}

func (r *reader) positive(key string, def int) int {
	n := r.integer(key, def)
	if n <= 0 {
		r.problem("%s must be positive, got %d", key, n)
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		r.problem("%s: %q is not a non-negative number", key, v)
		return def
	}
	return f
}

func (r *reader) boolean(key string, def bool) bool {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.problem("%s: %q is not a boolean", key, v)
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		r.problem("%s: %q is not a duration", key, v)
		return def
	}
	return d
}

func (r *reader) log() Log {
	l := Log{
		Level:  strings.ToLower(r.str("LOG_LEVEL", "info")),
		Format: strings.ToLower(r.str("LOG_FORMAT", "text")),
	}
	if _, err := parseLevel(l.Level); err != nil {
		r.problem("LOG_LEVEL: %q is not one of debug, info, warn, error", l.Level)
	}
	if l.Format != "text" && l.Format != "json" {
		r.problem("LOG_FORMAT: %q is not one of text, json", l.Format)
	}
	return l
}

func (r *reader) embedding() Embedding {
	e := Embedding{
		Provider:        strings.ToLower(r.str("EMBEDDING_PROVIDER", ProviderAzure)),
		AzureAPIVersion: r.str("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		Dimensions:      r.positive("EMBEDDING_DIMENSIONS", 1536),
		Timeout:         r.duration("EMBED_TIMEOUT", 30*time.Second),
		Workers:         r.positive("EMBED_WORKERS", 1),
		MaxAttempts:     r.positive("EMBED_MAX_ATTEMPTS", 1),
		Rate:            r.float("EMBED_RATE", 0),
	}
	switch e.Provider {
	case ProviderAzure:
		e.AzureEndpoint = r.required("AZURE_OPENAI_ENDPOINT")
		e.AzureAPIKey = r.required("AZURE_OPENAI_API_KEY")
		e.AzureDeployment = r.required("AZURE_OPENAI_EMBEDDING_DEPLOYMENT")
	case ProviderOllama:
		e.OllamaURL = r.str("OLLAMA_URL", "http://localhost:11434")
		e.OllamaModel = r.str("OLLAMA_EMBED_MODEL", "nomic-embed-text")
	default:
		r.problem("EMBEDDING_PROVIDER: %q is not one of azure, ollama", e.Provider)
	}
	return e
}

func (r *reader) qdrant() Qdrant {
	return Qdrant{
		Addr:   r.required("QDRANT_ADDR"),
		Index:  r.required("INDEX_NAME"),
		APIKey: r.str("QDRANT_API_KEY", ""),
		TLS:    r.boolean("QDRANT_TLS", false),
	}
}
