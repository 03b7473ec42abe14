package ingest

import (
	"unicode"

	"github.com/WessleyAI/docsearch/engine/domain"
)

const (
	// DefaultChunkSize is the maximum number of characters per chunk.
	DefaultChunkSize = 1000
	// DefaultOverlap is the number of characters shared by consecutive chunks.
	DefaultOverlap = 200
)

// boundary classes, best first.
const (
	cutParagraph = iota
	cutLine
	cutSentence
	cutWord
	numCuts
)

// Chunk splits text into overlapping windows of at most maxSize characters.
//
// Each window ends at the latest paragraph break it can, falling back to a
// line break, a sentence end, a word boundary and finally a hard cut at
// maxSize. The next window starts exactly overlap characters before the
// previous one ended, so dropping the first overlap characters of every
// chunk after the first and concatenating reconstructs text.
func Chunk(text string, maxSize, overlap int) ([]string, error) {
	if maxSize <= 0 {
		return nil, domain.NewConfigurationError("chunk size must be positive, got %d", maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, domain.NewConfigurationError("chunk overlap must be in [0, %d), got %d", maxSize, overlap)
	}
	if text == "" {
		return nil, nil
	}

	r := []rune(text)
	if len(r) <= maxSize {
		return []string{text}, nil
	}

	var chunks []string
	start := 0
	for {
		if len(r)-start <= maxSize {
			chunks = append(chunks, string(r[start:]))
			return chunks, nil
		}
		end := cutPoint(r, start+overlap+1, start+maxSize)
		chunks = append(chunks, string(r[start:end]))
		start = end - overlap
	}
}

// cutPoint returns the preferred end in [lo, hi]. A cut at e splits between
// r[e-1] and r[e].
func cutPoint(r []rune, lo, hi int) int {
	var best [numCuts]int
	for e := hi; e >= lo; e-- {
		prev := r[e-1]
		if !unicode.IsSpace(prev) {
			continue
		}
		if best[cutWord] == 0 {
			best[cutWord] = e
		}
		if e >= 2 {
			switch r[e-2] {
			case '.', '!', '?':
				if best[cutSentence] == 0 {
					best[cutSentence] = e
				}
			}
		}
		if prev == '\n' {
			if best[cutLine] == 0 {
				best[cutLine] = e
			}
			if e >= 2 && r[e-2] == '\n' {
				best[cutParagraph] = e
				break
			}
		}
	}
	for _, e := range best {
		if e > 0 {
			return e
		}
	}
	return hi
}
