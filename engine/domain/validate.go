package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxQueryLength bounds the size of a search query or SQL question.
const MaxQueryLength = 4000

// ValidateQuery checks a free-text query at the chat entry point.
func ValidateQuery(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return NewValidationError("query", text, ErrEmptyQuery)
	}
	if n := utf8.RuneCountInString(text); n > MaxQueryLength {
		return NewValidationError("query", string([]rune(text)[:64])+"...", ErrQueryTooLong)
	}
	if !utf8.ValidString(text) {
		return NewValidationError("query", "", ErrInvalidQuery)
	}
	return nil
}

// ValidateDocument returns false for documents that carry no indexable text.
func ValidateDocument(doc Document) bool {
	return strings.TrimSpace(doc.RawText) != ""
}
