// Command index rebuilds the document index from the extraction output:
// every run deletes and recreates the index, then chunks, embeds and uploads
// each document. The run report is logged and, when NATS_URL is set,
// announced on docsearch.index.completed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/WessleyAI/docsearch/engine/config"
	"github.com/WessleyAI/docsearch/engine/embed"
	"github.com/WessleyAI/docsearch/engine/ingest"
	"github.com/WessleyAI/docsearch/pkg/metrics"
	"github.com/WessleyAI/docsearch/pkg/natsutil"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadIndex(os.LookupEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("indexing aborted", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Index, log *slog.Logger) error {
	m := metrics.New()
	m.ServeAsync(ctx, cfg.MetricsPort, log)

	docs, loadFailures, err := ingest.LoadDir(cfg.ProcessedDir)
	if err != nil {
		return err
	}
	for _, f := range loadFailures {
		log.Error("unreadable source file", "doc", f.SourceName, "error", f.Err)
	}
	log.Info("loaded documents", "dir", cfg.ProcessedDir, "documents", len(docs), "unreadable", len(loadFailures))

	store, err := cfg.Qdrant.Open()
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	embedder := embed.New(cfg.Embedding.Backend(config.HTTPClient()), cfg.Embedding.AdapterOptions(), log, m)

	opts := ingest.DefaultOptions(cfg.Embedding.Dimensions)
	opts.ChunkSize = cfg.ChunkSize
	opts.Overlap = cfg.ChunkOverlap
	opts.UploadTimeout = cfg.UploadTimeout
	ix, err := ingest.New(ingest.Deps{Embedder: embedder, Index: store, Logger: log, Metrics: m}, opts)
	if err != nil {
		return err
	}

	rep, err := ix.IndexDocuments(ctx, docs)
	if err != nil {
		return err
	}
	rep.AddLoadFailures(loadFailures)

	outcome := metrics.OutcomeOK
	if !rep.Healthy() {
		outcome = metrics.OutcomeFailed
	}
	m.IndexRuns.WithLabelValues(outcome).Inc()
	for _, f := range rep.Failures {
		log.Warn("item not indexed", "doc", f.Document, "chunk", f.Chunk, "stage", f.Stage, "reason", f.Reason)
	}

	announce(cfg.NATSURL, rep, log)
	return nil
}

// announce publishes rep; a messaging failure never fails the run.
func announce(url string, rep *ingest.Report, log *slog.Logger) {
	if url == "" {
		return
	}
	nc, err := natsutil.Connect(url, "docsearch-index", log)
	if err != nil {
		log.Warn("nats unavailable, report not announced", "error", err)
		return
	}
	defer nc.Close()
	if err := ingest.PublishReport(context.Background(), nc, rep); err != nil {
		log.Warn("publish index report failed", "error", err)
		return
	}
	if err := nc.Flush(); err != nil {
		log.Warn("flush index report failed", "error", err)
	}
}
