package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
)

// maxIDPrefix bounds the sanitized source-name part of a chunk id.
const maxIDPrefix = 128

// DeriveID returns the index key for chunk index of sourceName.
//
// The key uses only letters, digits, '_', '-' and '='. Path separators, dots
// and whitespace become '_' and other characters are dropped. Because that
// mapping is lossy, the first 8 hex digits of the SHA-1 of the unsanitized
// name are appended, so "a/b.pdf" and "a_b.pdf" get different keys.
func DeriveID(sourceName string, index int) string {
	prefix := sanitize(sourceName)
	if prefix == "" {
		prefix = "doc"
	}
	sum := sha1.Sum([]byte(sourceName))

	var b strings.Builder
	b.Grow(len(prefix) + 20)
	b.WriteString(prefix)
	b.WriteByte('-')
	b.WriteString(hex.EncodeToString(sum[:4]))
	b.WriteByte('_')
	b.WriteString(strconv.Itoa(index))
	return b.String()
}

func sanitize(name string) string {
	var b strings.Builder
	for _, c := range name {
		if b.Len() >= maxIDPrefix {
			break
		}
		switch {
		case c < unicode.MaxASCII && (unicode.IsLetter(c) || unicode.IsDigit(c)):
			b.WriteRune(c)
		case c == '_' || c == '-' || c == '=':
			b.WriteRune(c)
		case c == '.' || c == '/' || c == '\\' || unicode.IsSpace(c):
			b.WriteByte('_')
		}
	}
	return b.String()
}
