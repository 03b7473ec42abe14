// Command chat serves the two-mode chat API: knowledge-base search over the
// document index and SQL drafting against the commissions schema.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/WessleyAI/docsearch/engine/chat"
	"github.com/WessleyAI/docsearch/engine/config"
	"github.com/WessleyAI/docsearch/engine/embed"
	"github.com/WessleyAI/docsearch/engine/ingest"
	"github.com/WessleyAI/docsearch/engine/rag"
	"github.com/WessleyAI/docsearch/engine/sqlgen"
	"github.com/WessleyAI/docsearch/pkg/metrics"
	"github.com/WessleyAI/docsearch/pkg/mid"
	"github.com/WessleyAI/docsearch/pkg/natsutil"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadChat(os.LookupEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Chat, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	m.ServeAsync(ctx, cfg.MetricsPort, logger)

	// --- Connect to Qdrant ---
	store, err := cfg.Qdrant.Open()
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	// --- Build services ---
	hc := config.HTTPClient()
	embedder := embed.New(cfg.Embedding.Backend(hc), cfg.Embedding.AdapterOptions(), logger, m)
	ragOpts := rag.DefaultOptions()
	ragOpts.TopK = cfg.TopK
	ragOpts.SearchTimeout = cfg.SearchTimeout
	search := rag.New(embedder, store, ragOpts, logger, m)
	sql := sqlgen.New(cfg.Embedding.OpenAI(cfg.ChatDeployment, hc), cfg.CompletionTimeout, logger, m)

	history, closeHistory, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeHistory()

	svc := chat.NewService(search, sql, history, logger)

	// --- Index run announcements ---
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "docsearch-chat", logger)
		if err != nil {
			logger.Warn("nats unavailable, index announcements disabled", "error", err)
		} else {
			defer nc.Close()
			if _, err := ingest.SubscribeReports(nc, logger, onIndexReport(logger, m)); err != nil {
				logger.Warn("subscribe index reports failed", "error", err)
			}
		}
	}

	// --- Build HTTP server ---
	mux := newMux(svc, logger)
	if cfg.MetricsPort <= 0 {
		mux.Handle("GET /metrics", m.Handler())
	}
	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS("*"),
		mid.MaxBody(1<<20),
		mid.OTel("docsearch-chat"),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.CompletionTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("chat server starting", "port", cfg.Port, "index", cfg.Qdrant.Index)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func openHistory(ctx context.Context, cfg *config.Chat) (chat.History, func(), error) {
	if cfg.Redis.Addr == "" {
		return chat.NewMemoryHistory(0), func() {}, nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := chat.DialRedis(dialCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return chat.NewRedisHistory(client, cfg.HistoryTTL, 0), func() { _ = client.Close() }, nil
}

func onIndexReport(logger *slog.Logger, m *metrics.Metrics) func(context.Context, ingest.Report) {
	return func(_ context.Context, r ingest.Report) {
		outcome := metrics.OutcomeOK
		if !r.Healthy() {
			outcome = metrics.OutcomeFailed
		}
		m.IndexRuns.WithLabelValues(outcome).Inc()
		logger.Info("index rebuilt",
			"index", r.Index,
			"documents", r.DocumentsIndexed,
			"failed", r.DocumentsFailed,
			"chunks", r.ChunksEmbedded,
			"healthy", r.Healthy(),
		)
	}
}
