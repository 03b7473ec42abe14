// Package rag answers free-text queries against the document index: it
// embeds the query once, runs a pure vector k-NN search and maps the hits to
// ranked, previewed results with their provenance.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/WessleyAI/docsearch/engine/domain"
	"github.com/WessleyAI/docsearch/engine/semantic"
	"github.com/WessleyAI/docsearch/pkg/metrics"
)

// DefaultTopK is the number of results returned when the caller has no
// preference.
const DefaultTopK = 3

// QueryEmbedder turns query text into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher abstracts the k-NN search of the vector index.
type VectorSearcher interface {
	Name() string
	Search(ctx context.Context, vector []float32, k int, fields []string) ([]semantic.Hit, error)
}

// Options configures the query engine.
type Options struct {
	TopK          int
	SearchTimeout time.Duration
	PreviewLength int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          DefaultTopK,
		SearchTimeout: 10 * time.Second,
		PreviewLength: 200,
	}
}

// Service is the query engine.
type Service struct {
	embed   QueryEmbedder
	search  VectorSearcher
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a new query Service.
func New(embedder QueryEmbedder, search VectorSearcher, opts Options, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = DefaultOptions().PreviewLength
	}
	return &Service{
		embed:   embedder,
		search:  search,
		opts:    opts,
		logger:  logger,
		metrics: m,
	}
}

// TopK is the configured default result count.
func (s *Service) TopK() int {
	if s.opts.TopK <= 0 {
		return DefaultTopK
	}
	return s.opts.TopK
}

var selectFields = []string{domain.FieldID, domain.FieldContent, domain.FieldSourceFile}

// Search returns at most k results for query, best first. k <= 0 returns an
// empty list without contacting any service. An embedding failure is
// returned as *domain.EmbeddingFailure and a search failure as
// *domain.QueryServiceError.
func (s *Service) Search(ctx context.Context, query string, k int) (results []domain.SearchResult, err error) {
	if k <= 0 {
		return []domain.SearchResult{}, nil
	}
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { s.observe(start, err) }()
	s.logger.Info("search start", "query_len", len(query), "k", k)

	vector, err := s.embed.Embed(ctx, query)
	if err != nil {
		s.logger.Error("query embedding failed", "error", err)
		return nil, &domain.EmbeddingFailure{Index: -1, Err: err}
	}

	searchCtx := ctx
	if s.opts.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.opts.SearchTimeout)
		defer cancel()
	}
	hits, err := s.search.Search(searchCtx, vector, k, selectFields)
	if err != nil {
		s.logger.Error("vector search failed", "index", s.search.Name(), "error", err)
		return nil, &domain.QueryServiceError{Index: s.search.Name(), Err: err}
	}

	results = make([]domain.SearchResult, 0, min(len(hits), k))
	for _, h := range hits {
		results = append(results, domain.SearchResult{
			ID:         h.Fields[domain.FieldID],
			Score:      h.Score,
			Content:    Preview(h.Fields[domain.FieldContent], s.opts.PreviewLength),
			SourceFile: h.Fields[domain.FieldSourceFile],
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	s.logger.Info("search done", "results", len(results), "duration", time.Since(start))
	return results, nil
}

func (s *Service) observe(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeFailed
	}
	s.metrics.Searches.WithLabelValues(outcome).Inc()
	metrics.ObserveSince(s.metrics.SearchLatency, start)
}

// Preview truncates content to n characters and flattens line breaks.
func Preview(content string, n int) string {
	if r := []rune(content); len(r) > n {
		content = string(r[:n])
	}
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(content)
}

// FormatResults renders results as a numbered plain-text listing.
func FormatResults(results []domain.SearchResult) string {
	if len(results) == 0 {
		return "No results found.\n"
	}
	var b strings.Builder
	for i, r := range results {
		source := r.SourceFile
		if source == "" {
			source = "Unknown File"
		}
		fmt.Fprintf(&b, "[Result %d | Score: %.4f] File: %s\n", i+1, r.Score, source)
		fmt.Fprintf(&b, "Preview: %s...\n\n", r.Content)
	}
	return b.String()
}
