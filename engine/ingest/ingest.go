// Package ingest turns extracted documents into indexed chunks: it splits
// text into overlapping chunks, derives stable ids, embeds every chunk and
// upserts one batch per document into a freshly rebuilt vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/docsearch/engine/domain"
	"github.com/WessleyAI/docsearch/engine/embed"
	"github.com/WessleyAI/docsearch/engine/semantic"
	"github.com/WessleyAI/docsearch/pkg/fn"
	"github.com/WessleyAI/docsearch/pkg/metrics"
)

// ErrNoChunksEmbedded marks a document whose every chunk failed to embed.
var ErrNoChunksEmbedded = errors.New("no chunks embedded")

// VectorIndex is the part of the vector store the indexer writes to.
type VectorIndex interface {
	Name() string
	DeleteCollection(ctx context.Context) error
	CreateCollection(ctx context.Context, schema semantic.Schema) error
	Upsert(ctx context.Context, docs []domain.IndexedDocument) error
}

// Embedder embeds a batch of texts with per-text outcomes.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) []embed.Outcome
}

// Options configures an indexing run.
type Options struct {
	ChunkSize     int
	Overlap       int
	Schema        semantic.Schema
	UploadTimeout time.Duration
}

// DefaultOptions returns the standard chunking policy for dims-sized vectors.
func DefaultOptions(dims int) Options {
	return Options{
		ChunkSize:     DefaultChunkSize,
		Overlap:       DefaultOverlap,
		Schema:        semantic.DefaultSchema(dims),
		UploadTimeout: 60 * time.Second,
	}
}

// Deps holds the external dependencies of the indexer.
type Deps struct {
	Embedder Embedder
	Index    VectorIndex
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Indexer rebuilds a vector index from documents. Runs against the same
// index must be serialized by the caller.
type Indexer struct {
	deps     Deps
	opts     Options
	log      *slog.Logger
	pipeline fn.Stage[*docState, *docState]
}

// docState accumulates one document's progress through the pipeline so
// per-chunk failures survive a later stage failing.
type docState struct {
	doc      domain.Document
	chunks   []domain.Chunk
	batch    []domain.IndexedDocument
	failures []*domain.EmbeddingFailure
}

// New validates opts and builds an Indexer.
func New(deps Deps, opts Options) (*Indexer, error) {
	if _, err := Chunk("", opts.ChunkSize, opts.Overlap); err != nil {
		return nil, err
	}
	if opts.Schema.Dimensions <= 0 {
		return nil, domain.NewConfigurationError("embedding dimensions must be positive, got %d", opts.Schema.Dimensions)
	}
	if deps.Embedder == nil || deps.Index == nil {
		return nil, domain.NewConfigurationError("indexer requires an embedder and a vector index")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	ix := &Indexer{deps: deps, opts: opts, log: log.With("component", "indexer", "index", deps.Index.Name())}
	ix.pipeline = fn.Then(
		fn.TracedStage("ingest.chunk", fn.Stage[*docState, *docState](ix.chunkStage)),
		fn.Then(
			fn.TracedStage("ingest.embed", fn.Stage[*docState, *docState](ix.embedStage)),
			fn.TracedStage("ingest.upload", fn.Stage[*docState, *docState](ix.uploadStage)),
		),
	)
	return ix, nil
}

// --- Pipeline Stages ---

func (ix *Indexer) chunkStage(_ context.Context, s *docState) fn.Result[*docState] {
	texts, err := Chunk(s.doc.RawText, ix.opts.ChunkSize, ix.opts.Overlap)
	if err != nil {
		return fn.Err[*docState](err)
	}
	s.chunks = make([]domain.Chunk, len(texts))
	for i, t := range texts {
		s.chunks[i] = domain.Chunk{
			ID:         DeriveID(s.doc.Name, i),
			SourceName: s.doc.Name,
			Index:      i,
			Text:       t,
		}
	}
	return fn.Ok(s)
}

func (ix *Indexer) embedStage(ctx context.Context, s *docState) fn.Result[*docState] {
	texts := make([]string, len(s.chunks))
	for i, c := range s.chunks {
		texts[i] = c.Text
	}
	for _, o := range ix.deps.Embedder.EmbedMany(ctx, texts) {
		c := s.chunks[o.Index]
		if o.Err != nil {
			f := &domain.EmbeddingFailure{Index: c.Index, SourceName: c.SourceName, Err: o.Err}
			s.failures = append(s.failures, f)
			ix.log.Error("chunk embedding failed", "doc", c.SourceName, "chunk", c.Index, "error", o.Err)
			continue
		}
		s.batch = append(s.batch, domain.IndexedDocument{
			ID:         c.ID,
			Content:    c.Text,
			SourceFile: c.SourceName,
			Embedding:  o.Vector,
		})
	}
	if len(s.batch) == 0 {
		return fn.Err[*docState](fmt.Errorf("%w: %d of %d failed", ErrNoChunksEmbedded, len(s.failures), len(s.chunks)))
	}
	return fn.Ok(s)
}

func (ix *Indexer) uploadStage(ctx context.Context, s *docState) fn.Result[*docState] {
	if ix.opts.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ix.opts.UploadTimeout)
		defer cancel()
	}
	if err := ix.deps.Index.Upsert(ctx, s.batch); err != nil {
		return fn.Err[*docState](&domain.UploadFailure{SourceName: s.doc.Name, Count: len(s.batch), Err: err})
	}
	return fn.Ok(s)
}

// --- Run ---

// IndexDocuments deletes and recreates the index, then indexes docs in
// order. Only a schema failure aborts the run; every per-document and
// per-chunk failure is recorded in the report. When ctx is cancelled the
// document in flight is finished and the rest are counted as abandoned.
func (ix *Indexer) IndexDocuments(ctx context.Context, docs []domain.Document) (*Report, error) {
	rep := newReport(ix.deps.Index.Name())
	defer func() {
		rep.Duration = time.Since(rep.StartedAt)
		if ix.deps.Metrics != nil {
			ix.deps.Metrics.RunDuration.WithLabelValues("index").Observe(rep.Duration.Seconds())
		}
	}()

	if err := ix.resetSchema(ctx); err != nil {
		return rep, err
	}

	for i, doc := range docs {
		if ctx.Err() != nil {
			rep.Cancelled = true
			rep.DocumentsAbandoned = len(docs) - i
			ix.count(ix.docCounter(metrics.OutcomeAbandoned), rep.DocumentsAbandoned)
			ix.log.Warn("indexing cancelled", "remaining", rep.DocumentsAbandoned, "next", doc.Name)
			break
		}
		ix.indexOne(context.WithoutCancel(ctx), doc, rep)
	}

	ix.log.Info("indexing finished",
		"processed", rep.DocumentsProcessed,
		"indexed", rep.DocumentsIndexed,
		"skipped", rep.DocumentsSkipped,
		"failed", rep.DocumentsFailed,
		"abandoned", rep.DocumentsAbandoned,
		"chunks_embedded", rep.ChunksEmbedded,
		"chunks_failed", rep.ChunksFailed,
		"upload_batches_failed", rep.UploadBatchesFailed,
	)
	return rep, nil
}

func (ix *Indexer) resetSchema(ctx context.Context) error {
	name := ix.deps.Index.Name()
	ix.log.Warn("rebuilding index: all existing content will be discarded")
	if err := ix.deps.Index.DeleteCollection(ctx); err != nil {
		return &domain.IndexSchemaError{Index: name, Op: "delete", Err: err}
	}
	if err := ix.deps.Index.CreateCollection(ctx, ix.opts.Schema); err != nil {
		return &domain.IndexSchemaError{Index: name, Op: "create", Err: err}
	}
	ix.log.Info("index created",
		"dimensions", ix.opts.Schema.Dimensions,
		"profile", ix.opts.Schema.Profile.Name,
		"algorithm", ix.opts.Schema.Profile.Algorithm,
	)
	return nil
}

func (ix *Indexer) indexOne(ctx context.Context, doc domain.Document, rep *Report) {
	if !domain.ValidateDocument(doc) {
		rep.DocumentsSkipped++
		ix.count(ix.docCounter(metrics.OutcomeSkipped), 1)
		ix.log.Info("skipping document with no text", "doc", doc.Name)
		return
	}

	rep.DocumentsProcessed++
	state := &docState{doc: doc}
	_, err := ix.pipeline(ctx, state).Unwrap()

	rep.ChunksEmbedded += len(state.batch)
	rep.ChunksFailed += len(state.failures)
	ix.count(ix.chunkCounter(metrics.OutcomeOK), len(state.batch))
	ix.count(ix.chunkCounter(metrics.OutcomeFailed), len(state.failures))
	for _, f := range state.failures {
		rep.addFailure(f.SourceName, f.Index, StageEmbed, f.Err)
	}

	var upErr *domain.UploadFailure
	switch {
	case err == nil:
		rep.DocumentsIndexed++
		ix.count(ix.docCounter(metrics.OutcomeOK), 1)
		ix.count(ix.batchCounter(metrics.OutcomeOK), 1)
		ix.log.Info("document indexed", "doc", doc.Name, "chunks", len(state.batch), "failed_chunks", len(state.failures))
		return
	case errors.As(err, &upErr):
		rep.UploadBatchesFailed++
		ix.count(ix.batchCounter(metrics.OutcomeFailed), 1)
		rep.addFailure(doc.Name, -1, StageUpload, err)
	case errors.Is(err, ErrNoChunksEmbedded):
		rep.addFailure(doc.Name, -1, StageEmbed, err)
	default:
		rep.addFailure(doc.Name, -1, StageChunk, err)
	}
	rep.DocumentsFailed++
	ix.count(ix.docCounter(metrics.OutcomeFailed), 1)
	ix.log.Error("document not indexed", "doc", doc.Name, "error", err)
}
