package ingest

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/docsearch/pkg/natsutil"
)

// ReportSubject is the NATS subject a finished indexing run is announced on.
const ReportSubject = "docsearch.index.completed"

// PublishReport announces rep on ReportSubject.
func PublishReport(ctx context.Context, nc *nats.Conn, rep *Report) error {
	return natsutil.Publish(ctx, nc, ReportSubject, rep)
}

// SubscribeReports calls handler for every announced indexing run.
func SubscribeReports(nc *nats.Conn, logger *slog.Logger, handler func(context.Context, Report)) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, ReportSubject, logger, handler)
}
