package indexer

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize is the maximum chunk length in runes.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of runes shared by consecutive chunks.
	DefaultChunkOverlap = 200
)

// Chunker splits text into bounded, overlapping chunks.
// Output depends only on the text and the two parameters.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker producing chunks of at most size runes,
// where consecutive chunks share up to overlap runes.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into chunks in document order.
// Splits prefer paragraph breaks, then line breaks, then sentence ends, then
// spaces, and fall back to a hard cut. Whitespace-only input yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	chunks := []string{}
	n := len(runes)
	if n == 0 {
		return chunks
	}

	start := 0
	for start < n {
		end := start + c.size
		if end >= n {
			if s := strings.TrimSpace(string(runes[start:])); s != "" {
				chunks = append(chunks, s)
			}
			break
		}

		split := splitPoint(runes, start+c.size/2, end)
		if s := strings.TrimSpace(string(runes[start:split])); s != "" {
			chunks = append(chunks, s)
		}

		next := split - c.overlap
		if next <= start {
			next = start + 1
		}
		next = wordStart(runes, next, split)
		start = next
	}

	return chunks
}

// splitPoint returns the preferred cut position in (lo, hi], searching backwards from hi.
func splitPoint(runes []rune, lo, hi int) int {
	if pos := lastIndex(runes, lo, hi, isParagraphBreak); pos > 0 {
		return pos
	}
	if pos := lastIndex(runes, lo, hi, isLineBreak); pos > 0 {
		return pos
	}
	if pos := lastIndex(runes, lo, hi, isSentenceEnd); pos > 0 {
		return pos
	}
	if pos := lastIndex(runes, lo, hi, isSpace); pos > 0 {
		return pos
	}
	return hi
}

// lastIndex returns the largest p in (lo, hi] such that match(runes, p) holds, or -1.
func lastIndex(runes []rune, lo, hi int, match func([]rune, int) bool) int {
	for p := hi; p > lo; p-- {
		if match(runes, p) {
			return p
		}
	}
	return -1
}

// A cut at p splits runes into runes[:p] and runes[p:].

func isParagraphBreak(runes []rune, p int) bool {
	return p >= 2 && runes[p-1] == '\n' && runes[p-2] == '\n'
}

func isLineBreak(runes []rune, p int) bool {
	return p >= 1 && runes[p-1] == '\n'
}

func isSentenceEnd(runes []rune, p int) bool {
	if p < 2 || p >= len(runes) || !unicode.IsSpace(runes[p-1]) {
		return false
	}
	switch runes[p-2] {
	case '.', '!', '?':
		return true
	}
	return false
}

func isSpace(runes []rune, p int) bool {
	return p >= 1 && unicode.IsSpace(runes[p-1])
}

// wordStart moves p forward to the start of a word, without passing limit.
func wordStart(runes []rune, p, limit int) int {
	if p == 0 || unicode.IsSpace(runes[p-1]) {
		return p
	}
	for q := p; q < limit; q++ {
		if unicode.IsSpace(runes[q-1]) {
			return q
		}
	}
	return p
}
