package ingest

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/WessleyAI/docsearch/engine/domain"
)

// LoadDir reads the extraction output in dir in file-name order. JSON files
// are decoded as domain.ExtractionResult and .txt files are taken verbatim
// with the file name as the source name. Unreadable files are returned as
// failures and do not stop the load; a missing directory is a configuration
// error.
func LoadDir(dir string) ([]domain.Document, []*domain.ExtractionFailure, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, domain.NewConfigurationError("processed data directory %q does not exist", dir)
	}
	if err != nil {
		return nil, nil, err
	}

	var (
		docs     []domain.Document
		failures []*domain.ExtractionFailure
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".json" && ext != ".txt" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			failures = append(failures, &domain.ExtractionFailure{SourceName: name, Err: err})
			continue
		}
		if ext == ".txt" {
			docs = append(docs, domain.Document{Name: name, RawText: string(data)})
			continue
		}
		var r domain.ExtractionResult
		if err := json.Unmarshal(data, &r); err != nil {
			failures = append(failures, &domain.ExtractionFailure{SourceName: name, Err: err})
			continue
		}
		docs = append(docs, r.Document(strings.TrimSuffix(name, filepath.Ext(name))))
	}
	return docs, failures, nil
}
