// Package extract runs the first pipeline stage: it lists source blobs,
// sends each one through layout analysis and persists the recognized text as
// one JSON file per blob for the indexer to pick up.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/WessleyAI/docsearch/engine/domain"
	"github.com/WessleyAI/docsearch/pkg/blobstore"
	"github.com/WessleyAI/docsearch/pkg/docintel"
	"github.com/WessleyAI/docsearch/pkg/fn"
	"github.com/WessleyAI/docsearch/pkg/metrics"
)

// BlobSource lists and downloads source documents.
type BlobSource interface {
	List(ctx context.Context, prefix string) ([]blobstore.Blob, error)
	Download(ctx context.Context, name string) ([]byte, error)
}

// Analyzer recognizes the text layout of a document.
type Analyzer interface {
	Analyze(ctx context.Context, content []byte) (*docintel.AnalyzeResult, error)
}

// Options configures a Runner.
type Options struct {
	Prefix  string
	OutDir  string
	Timeout time.Duration
	Workers int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		OutDir:  "processed_data",
		Timeout: 5 * time.Minute,
		Workers: 1,
	}
}

// Failure records one blob that produced no output.
type Failure struct {
	Blob   string `json:"blob"`
	Reason string `json:"reason"`
}

// Report summarizes an extraction run.
type Report struct {
	Listed    int           `json:"listed"`
	Extracted int           `json:"extracted"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Failures  []Failure     `json:"failures,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Runner drives one extraction run.
type Runner struct {
	src     BlobSource
	an      Analyzer
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Runner.
func New(src BlobSource, an Analyzer, opts Options, logger *slog.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{src: src, an: an, opts: opts, logger: logger.With("component", "extract"), metrics: m}
}

type outcome int

const (
	extracted outcome = iota
	skipped
)

// Run extracts every blob under the configured prefix. Failing to list or
// to create the output directory aborts the run; a failing blob is logged,
// reported and skipped.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep := &Report{}
	defer func() {
		rep.Duration = time.Since(start)
		if r.metrics != nil {
			r.metrics.RunDuration.WithLabelValues("extract").Observe(rep.Duration.Seconds())
		}
	}()

	if err := os.MkdirAll(r.opts.OutDir, 0o755); err != nil {
		return rep, fmt.Errorf("extract: output dir: %w", err)
	}
	blobs, err := r.src.List(ctx, r.opts.Prefix)
	if err != nil {
		return rep, fmt.Errorf("extract: list blobs: %w", err)
	}
	rep.Listed = len(blobs)
	r.logger.Info("extraction start", "prefix", r.opts.Prefix, "blobs", len(blobs), "out", r.opts.OutDir)

	results := fn.ParMapResult(ctx, blobs, r.opts.Workers, func(ctx context.Context, b blobstore.Blob) fn.Result[outcome] {
		return r.extractOne(ctx, b)
	})
	for i, res := range results {
		o, err := res.Unwrap()
		switch {
		case err != nil:
			rep.Failed++
			rep.Failures = append(rep.Failures, Failure{Blob: blobs[i].Name, Reason: err.Error()})
			r.count(metrics.OutcomeFailed)
		case o == skipped:
			rep.Skipped++
			r.count(metrics.OutcomeSkipped)
		default:
			rep.Extracted++
			r.count(metrics.OutcomeOK)
		}
	}

	r.logger.Info("extraction complete",
		"extracted", rep.Extracted, "skipped", rep.Skipped, "failed", rep.Failed)
	return rep, nil
}

func (r *Runner) extractOne(ctx context.Context, b blobstore.Blob) fn.Result[outcome] {
	log := r.logger.With("blob", b.Name)
	if b.Size == 0 {
		log.Info("skipping empty blob")
		return fn.Ok(skipped)
	}
	log.Info("processing blob", "size", b.Size)

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	fail := func(err error) fn.Result[outcome] {
		log.Error("extraction failed", "error", err)
		return fn.Err[outcome](&domain.ExtractionFailure{SourceName: b.Name, Err: err})
	}

	data, err := r.src.Download(ctx, b.Name)
	if err != nil {
		return fail(fmt.Errorf("download: %w", err))
	}
	res, err := r.an.Analyze(ctx, data)
	if err != nil {
		return fail(fmt.Errorf("analyze: %w", err))
	}
	path := filepath.Join(r.opts.OutDir, domain.ProcessedFileName(b.Name))
	if err := writeResult(path, toResult(b.Name, res)); err != nil {
		return fail(fmt.Errorf("persist: %w", err))
	}
	log.Info("saved extracted text", "path", path, "pages", len(res.Pages))
	return fn.Ok(extracted)
}

func (r *Runner) count(label string) {
	if r.metrics != nil {
		r.metrics.Blobs.WithLabelValues(label).Inc()
	}
}

func toResult(source string, res *docintel.AnalyzeResult) domain.ExtractionResult {
	out := domain.ExtractionResult{Source: source, Content: res.Content, Model: res.ModelID}
	for _, p := range res.Pages {
		page := domain.Page{Number: p.PageNumber, Lines: make([]string, len(p.Lines))}
		for i, l := range p.Lines {
			page.Lines[i] = l.Content
		}
		out.Pages = append(out.Pages, page)
	}
	return out
}

// writeResult writes via a temp file so a crashed run never leaves a
// truncated JSON file for the indexer.
func writeResult(path string, res domain.ExtractionResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
