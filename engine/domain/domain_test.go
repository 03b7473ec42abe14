package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery("what does the warranty cover?"); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if err := ValidateQuery("   "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if err := ValidateQuery(strings.Repeat("a", MaxQueryLength+1)); !errors.Is(err, ErrQueryTooLong) {
		t.Fatalf("expected ErrQueryTooLong, got %v", err)
	}
}

func TestValidateDocument(t *testing.T) {
	if ValidateDocument(Document{Name: "a", RawText: " \n\t"}) {
		t.Fatal("whitespace-only document should be rejected")
	}
	if !ValidateDocument(Document{Name: "a", RawText: "x"}) {
		t.Fatal("non-empty document should be accepted")
	}
}

func TestProcessedFileName(t *testing.T) {
	got := ProcessedFileName("reports/2024/q3.pdf")
	if got != "reports_2024_q3.pdf.json" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractionResultDocument(t *testing.T) {
	r := ExtractionResult{Content: "hello"}
	d := r.Document("file.json")
	if d.Name != "file.json" || d.RawText != "hello" {
		t.Fatalf("unexpected document %+v", d)
	}

	r = ExtractionResult{Source: "a/b.pdf", Pages: []Page{
		{Number: 1, Lines: []string{"l1", "l2"}},
		{Number: 2, Lines: []string{"l3"}},
	}}
	d = r.Document("ignored")
	if d.Name != "a/b.pdf" {
		t.Fatalf("name = %q", d.Name)
	}
	if d.RawText != "l1\nl2\n\nl3" {
		t.Fatalf("text = %q", d.RawText)
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	cases := []error{
		&ExtractionFailure{SourceName: "a", Err: base},
		&EmbeddingFailure{Index: 2, SourceName: "a", Err: base},
		&IndexSchemaError{Index: "docs", Op: "create", Err: base},
		&UploadFailure{SourceName: "a", Count: 3, Err: base},
		&QueryServiceError{Index: "docs", Err: base},
	}
	for _, err := range cases {
		if !errors.Is(err, base) {
			t.Errorf("%T does not unwrap to base error", err)
		}
		if err.Error() == "" {
			t.Errorf("%T has empty message", err)
		}
	}
}

func TestEmbeddingFailureQueryMessage(t *testing.T) {
	err := &EmbeddingFailure{Index: -1, Err: errors.New("timeout")}
	if !strings.Contains(err.Error(), "query") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestEmbeddingServiceErrorTransient(t *testing.T) {
	cases := map[int]bool{0: true, 429: true, 500: true, 503: true, 400: false, 401: false, 404: false}
	for status, want := range cases {
		e := &EmbeddingServiceError{Status: status, Message: "x"}
		if e.Transient() != want {
			t.Errorf("status %d: transient = %v, want %v", status, e.Transient(), want)
		}
	}
}

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Problems: []string{"INDEX_NAME is required", "CHUNK_SIZE: not an integer"}}
	msg := err.Error()
	if !strings.Contains(msg, "INDEX_NAME") || !strings.Contains(msg, "CHUNK_SIZE") {
		t.Fatalf("got %q", msg)
	}
	var ce *ConfigurationError
	if !errors.As(NewConfigurationError("bad %s", "x"), &ce) || ce.Problems[0] != "bad x" {
		t.Fatal("NewConfigurationError mismatch")
	}
}
