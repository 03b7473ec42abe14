// Command extract runs layout analysis over every blob under the configured
// container prefix and writes one JSON file per document to PROCESSED_DIR.
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
	"github.com/WessleyAI/docsearch/engine/extract"
	"github.com/WessleyAI/docsearch/pkg/blobstore"
	"github.com/WessleyAI/docsearch/pkg/docintel"
	"github.com/WessleyAI/docsearch/pkg/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadExtract(os.LookupEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("extraction aborted", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Extract, log *slog.Logger) error {
	m := metrics.New()
	m.ServeAsync(ctx, cfg.MetricsPort, log)

	store, err := blobstore.New(cfg.StorageConn, cfg.Container)
	if err != nil {
		return fmt.Errorf("blob storage: %w", err)
	}
	diOpts := docintel.DefaultOptions()
	diOpts.HTTPClient = config.HTTPClient()
	analyzer := docintel.New(cfg.DIEndpoint, cfg.DIKey, diOpts)

	opts := extract.DefaultOptions()
	opts.Prefix = cfg.Prefix
	opts.OutDir = cfg.ProcessedDir
	opts.Timeout = cfg.Timeout
	opts.Workers = cfg.Workers

	log.Info("connected to container", "container", cfg.Container, "prefix", cfg.Prefix)
	rep, err := extract.New(store, analyzer, opts, log, m).Run(ctx)
	if err != nil {
		return err
	}
	for _, f := range rep.Failures {
		log.Warn("blob not extracted", "blob", f.Blob, "reason", f.Reason)
	}
	return nil
}
