package domain

import "strings"

// ExtractionResult is the on-disk contract between the extraction and
// indexing stages: one JSON file per source document.
type ExtractionResult struct {
	Source  string `json:"source"`
	Content string `json:"content"`
	Pages   []Page `json:"pages,omitempty"`
	Model   string `json:"model,omitempty"`
}

// Page is the per-page line layout of an extracted document.
type Page struct {
	Number int      `json:"page_number"`
	Lines  []string `json:"lines,omitempty"`
}

// Document converts the extraction result into an indexable Document. When
// Content is empty the page lines are joined instead.
func (r ExtractionResult) Document(fallbackName string) Document {
	name := r.Source
	if name == "" {
		name = fallbackName
	}
	text := r.Content
	if strings.TrimSpace(text) == "" && len(r.Pages) > 0 {
		var b strings.Builder
		for i, p := range r.Pages {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(strings.Join(p.Lines, "\n"))
		}
		text = b.String()
	}
	return Document{Name: name, RawText: text}
}

// ProcessedFileName maps a blob path to its persisted JSON file name.
func ProcessedFileName(blobName string) string {
	return strings.ReplaceAll(blobName, "/", "_") + ".json"
}
