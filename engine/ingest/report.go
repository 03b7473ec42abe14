package ingest

import (
	"time"

	"github.com/WessleyAI/docsearch/engine/domain"
)

// Pipeline stage names used in failure entries.
const (
	StageLoad   = "load"
	StageChunk  = "chunk"
	StageEmbed  = "embed"
	StageUpload = "upload"
)

// Failure is one item-level problem recorded during a run. Chunk is -1 for
// document-level failures.
type Failure struct {
	Document string `json:"document"`
	Chunk    int    `json:"chunk"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
}

// Report summarizes an indexing run.
type Report struct {
	Index               string        `json:"index"`
	StartedAt           time.Time     `json:"started_at"`
	Duration            time.Duration `json:"duration_ns"`
	DocumentsProcessed  int           `json:"documents_processed"`
	DocumentsIndexed    int           `json:"documents_indexed"`
	DocumentsSkipped    int           `json:"documents_skipped"`
	DocumentsFailed     int           `json:"documents_failed"`
	DocumentsAbandoned  int           `json:"documents_abandoned"`
	ChunksEmbedded      int           `json:"chunks_embedded"`
	ChunksFailed        int           `json:"chunks_failed"`
	UploadBatchesFailed int           `json:"upload_batches_failed"`
	Cancelled           bool          `json:"cancelled"`
	Failures            []Failure     `json:"failures,omitempty"`
}

func newReport(index string) *Report {
	return &Report{Index: index, StartedAt: time.Now()}
}

func (r *Report) addFailure(doc string, chunk int, stage string, err error) {
	r.Failures = append(r.Failures, Failure{Document: doc, Chunk: chunk, Stage: stage, Reason: err.Error()})
}

// Healthy reports whether every attempted document was indexed in full.
func (r *Report) Healthy() bool {
	return !r.Cancelled && r.DocumentsFailed == 0 && r.ChunksFailed == 0 && r.UploadBatchesFailed == 0
}

// AddLoadFailures records source files that could not be read as failed
// documents.
func (r *Report) AddLoadFailures(fs []*domain.ExtractionFailure) {
	for _, f := range fs {
		r.DocumentsFailed++
		r.addFailure(f.SourceName, -1, StageLoad, f.Err)
	}
}
