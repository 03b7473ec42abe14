package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for validation failures.
var (
	ErrInvalidQuery = errors.New("invalid query")
	ErrEmptyQuery   = errors.New("query is empty")
	ErrQueryTooLong = errors.New("query too long")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// ConfigurationError reports missing or invalid settings. It is always fatal
// and is raised before any external call.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + strings.Join(e.Problems, "; ")
}

// NewConfigurationError builds a ConfigurationError from a formatted problem.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// ExtractionFailure reports a single document the extraction stage could not
// produce text for.
type ExtractionFailure struct {
	SourceName string
	Err        error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extraction failed for %q: %v", e.SourceName, e.Err)
}

func (e *ExtractionFailure) Unwrap() error { return e.Err }

// EmbeddingFailure reports a chunk (or a query, with Index -1) whose
// embedding call failed.
type EmbeddingFailure struct {
	Index      int
	SourceName string
	Err        error
}

func (e *EmbeddingFailure) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("embedding failed for query: %v", e.Err)
	}
	return fmt.Sprintf("embedding failed for %q chunk %d: %v", e.SourceName, e.Index, e.Err)
}

func (e *EmbeddingFailure) Unwrap() error { return e.Err }

// EmbeddingServiceError is returned by embedding backends. Status is the
// HTTP status when one was received, 0 for transport failures.
type EmbeddingServiceError struct {
	Status  int
	Message string
}

func (e *EmbeddingServiceError) Error() string {
	if e.Status == 0 {
		return "embedding service: " + e.Message
	}
	return fmt.Sprintf("embedding service: status %d: %s", e.Status, e.Message)
}

// Transient reports whether a retry could plausibly succeed.
func (e *EmbeddingServiceError) Transient() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// IndexSchemaError reports a failure to delete or create the index. It aborts
// the indexing run.
type IndexSchemaError struct {
	Index string
	Op    string
	Err   error
}

func (e *IndexSchemaError) Error() string {
	return fmt.Sprintf("index schema: %s %q: %v", e.Op, e.Index, e.Err)
}

func (e *IndexSchemaError) Unwrap() error { return e.Err }

// UploadFailure reports a rejected upsert batch for one document.
type UploadFailure struct {
	SourceName string
	Count      int
	Err        error
}

func (e *UploadFailure) Error() string {
	return fmt.Sprintf("upload of %d chunks for %q failed: %v", e.Count, e.SourceName, e.Err)
}

func (e *UploadFailure) Unwrap() error { return e.Err }

// QueryServiceError reports a failed vector search.
type QueryServiceError struct {
	Index string
	Err   error
}

func (e *QueryServiceError) Error() string {
	return fmt.Sprintf("query service: search %q: %v", e.Index, e.Err)
}

func (e *QueryServiceError) Unwrap() error { return e.Err }

// CompletionServiceError is returned by completion backends.
type CompletionServiceError struct {
	Status  int
	Message string
}

func (e *CompletionServiceError) Error() string {
	if e.Status == 0 {
		return "completion service: " + e.Message
	}
	return fmt.Sprintf("completion service: status %d: %s", e.Status, e.Message)
}
