// Package embed maps text to embedding vectors through an external backend,
// isolating failures per text and guarding the backend with a timeout, a
// rate limiter, optional retry and a circuit breaker.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/docsearch/engine/domain"
	"github.com/WessleyAI/docsearch/pkg/fn"
	"github.com/WessleyAI/docsearch/pkg/metrics"
	"github.com/WessleyAI/docsearch/pkg/resilience"
)

// ErrDimensionMismatch is returned when a backend vector has the wrong length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Backend is an embedding service client.
type Backend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// statusCoder is implemented by backend errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// Options configures the adapter.
type Options struct {
	// Dimensions is the expected vector length. Zero skips the check.
	Dimensions int
	// Workers bounds concurrent calls in EmbedMany. 1 is sequential.
	Workers int
	// Timeout bounds each backend call.
	Timeout time.Duration
	// Retry applies to transient service errors only.
	Retry fn.RetryOpts
	// Rate and Burst configure the client-side limiter. Rate 0 disables it.
	Rate  float64
	Burst int
	// Breaker configures the circuit breaker.
	Breaker resilience.BreakerOpts
}

// DefaultOptions matches the single-attempt, sequential behavior the
// pipeline was designed around.
func DefaultOptions() Options {
	return Options{
		Workers: 1,
		Timeout: 30 * time.Second,
		Retry:   fn.DefaultRetry,
		Burst:   1,
		Breaker: resilience.DefaultBreakerOpts,
	}
}

// Outcome is the per-text result of EmbedMany.
type Outcome struct {
	Index  int
	Vector []float32
	Err    error
}

// Adapter wraps a Backend.
type Adapter struct {
	backend Backend
	opts    Options
	limiter *resilience.Limiter
	breaker *resilience.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an Adapter. m may be nil.
func New(backend Backend, opts Options, logger *slog.Logger, m *metrics.Metrics) *Adapter {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		backend: backend,
		opts:    opts,
		limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: opts.Rate, Burst: opts.Burst}),
		logger:  logger.With("component", "embed", "backend", backend.Name()),
		metrics: m,
	}
	bo := opts.Breaker
	bo.IsFailure = IsTransient
	bo.OnStateChange = func(from, to resilience.State) {
		a.logger.Warn("embedding circuit breaker state changed", "from", from.String(), "to", to.String())
		if a.metrics != nil {
			a.metrics.BreakerState.WithLabelValues("embedding").Set(float64(to))
		}
	}
	a.breaker = resilience.NewBreaker(bo)
	a.opts.Retry.RetryIf = IsTransient
	a.opts.Retry.OnRetry = func(attempt int, err error) {
		a.logger.Warn("retrying embedding call", "attempt", attempt, "error", err)
	}
	return a
}

// IsTransient reports whether err is a service error worth retrying.
func IsTransient(err error) bool {
	var se *domain.EmbeddingServiceError
	return errors.As(err, &se) && se.Transient()
}

// Embed returns the vector for text.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	return fn.Retry(ctx, a.opts.Retry, func(ctx context.Context) fn.Result[[]float32] {
		return a.attempt(ctx, text)
	}).Unwrap()
}

func (a *Adapter) attempt(ctx context.Context, text string) fn.Result[[]float32] {
	if err := a.limiter.Wait(ctx); err != nil {
		return fn.Err[[]float32](fmt.Errorf("embed: rate limiter: %w", err))
	}
	return resilience.CallResult(ctx, a.breaker, func(ctx context.Context) fn.Result[[]float32] {
		if a.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
			defer cancel()
		}
		start := time.Now()
		vec, err := a.backend.Embed(ctx, text)
		a.observe(start, err)
		if err != nil {
			return fn.Err[[]float32](serviceError(err))
		}
		if a.opts.Dimensions > 0 && len(vec) != a.opts.Dimensions {
			return fn.Err[[]float32](fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), a.opts.Dimensions))
		}
		return fn.Ok(vec)
	})
}

func (a *Adapter) observe(start time.Time, err error) {
	if a.metrics == nil {
		return
	}
	name := a.backend.Name()
	metrics.ObserveSince(a.metrics.EmbedDuration.WithLabelValues(name), start)
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeFailed
	}
	a.metrics.EmbedCalls.WithLabelValues(name, outcome).Inc()
}

// serviceError normalizes a backend error into an EmbeddingServiceError.
func serviceError(err error) error {
	var se *domain.EmbeddingServiceError
	if errors.As(err, &se) {
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
	return &domain.EmbeddingServiceError{Status: status, Message: msg}
}

// EmbedMany embeds every text independently. A failure for one text is
// reported in its Outcome and does not affect the others. Outcomes are in
// input order regardless of Workers.
func (a *Adapter) EmbedMany(ctx context.Context, texts []string) []Outcome {
	results := fn.ParMapResult(ctx, texts, a.opts.Workers, func(ctx context.Context, text string) fn.Result[[]float32] {
		return fn.FromPair(a.Embed(ctx, text))
	})
	out := make([]Outcome, len(results))
	for i, r := range results {
		vec, err := r.Unwrap()
		out[i] = Outcome{Index: i, Vector: vec, Err: err}
	}
	return out
}
