// Package sqlgen drafts T-SQL for natural-language questions about the
// commissions database. Generated SQL is returned for display only; nothing
// here executes it.
package sqlgen

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/docsearch/engine/domain"
	"github.com/WessleyAI/docsearch/pkg/metrics"
)

//go:embed schema.sql
var Schema string

const promptHeader = `You are a SQL expert.
Given the following database schema, generate a valid SQL query to answer the user's question.
Do NOT output any markdown, backticks, or explanations. Just the raw SQL query.

Schema:
`

// Completer runs a single chat completion.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float32) (string, error)
}

type statusCoder interface {
	StatusCode() int
}

// Generator turns questions into SQL with one deterministic completion call.
type Generator struct {
	llm     Completer
	system  string
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Generator. timeout bounds each completion call; zero means
// no bound beyond ctx.
func New(llm Completer, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		llm:     llm,
		system:  SystemPrompt(),
		timeout: timeout,
		logger:  logger.With("component", "sqlgen"),
		metrics: m,
	}
}

// SystemPrompt is the instruction sent with every question.
func SystemPrompt() string {
	return promptHeader + Schema
}

// Generate returns the SQL text for question, trimmed of surrounding
// whitespace. Service failures are returned as *domain.CompletionServiceError.
func (g *Generator) Generate(ctx context.Context, question string) (string, error) {
	if err := domain.ValidateQuery(question); err != nil {
		return "", err
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	out, err := g.llm.Complete(ctx, g.system, question, 0)
	if err != nil {
		g.count(metrics.OutcomeFailed)
		g.logger.Error("sql generation failed", "error", err)
		return "", completionError(err)
	}
	g.count(metrics.OutcomeOK)
	return strings.TrimSpace(out), nil
}

func (g *Generator) count(outcome string) {
	if g.metrics != nil {
		g.metrics.SQLRequests.WithLabelValues(outcome).Inc()
	}
}

func completionError(err error) error {
	var ce *domain.CompletionServiceError
	if errors.As(err, &ce) {
		return err
	}
	status := 0
	var sc statusCoder
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "timed out: " + msg
	}
	return &domain.CompletionServiceError{Status: status, Message: msg}
}
