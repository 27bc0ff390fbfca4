package indexer

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewChunker(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
		wantErr       bool
	}{
		{name: "defaults", size: DefaultChunkSize, overlap: DefaultChunkOverlap},
		{name: "no overlap", size: 10, overlap: 0},
		{name: "zero size", size: 0, overlap: 0, wantErr: true},
		{name: "negative overlap", size: 10, overlap: -1, wantErr: true},
		{name: "overlap equals size", size: 10, overlap: 10, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewChunker() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (c.Size() != tt.size || c.Overlap() != tt.overlap) {
				t.Errorf("NewChunker() = (%d, %d), want (%d, %d)", c.Size(), c.Overlap(), tt.size, tt.overlap)
			}
		})
	}
}

func TestChunker_Chunk(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
		text          string
		want          []string
	}{
		{
			name: "empty",
			size: 20,
			text: "",
			want: []string{},
		},
		{
			name: "whitespace only",
			size: 20,
			text: " \n\n\t ",
			want: []string{},
		},
		{
			name: "shorter than size",
			size: 20,
			text: "  Short text.  ",
			want: []string{"Short text."},
		},
		{
			name: "prefers paragraph break",
			size: 20,
			text: "First para.\n\nSecond paragraph here.",
			want: []string{"First para.", "Second paragraph", "here."},
		},
		{
			name:    "overlap starts on a word",
			size:    30,
			overlap: 10,
			text:    "alpha beta gamma delta epsilon zeta eta theta iota kappa",
			want:    []string{"alpha beta gamma delta", "delta epsilon zeta eta theta", "eta theta iota kappa"},
		},
		{
			name: "hard cut without spaces",
			size: 4,
			text: "abcdefghij",
			want: []string{"abcd", "efgh", "ij"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			if err != nil {
				t.Fatalf("NewChunker() error = %v", err)
			}
			got := c.Chunk(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Chunk() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChunker_Chunk_Bounds(t *testing.T) {
	c, err := NewChunker(50, 10)
	if err != nil {
		t.Fatalf("NewChunker() error = %v", err)
	}
	text := strings.Repeat("Ünïcödé wörds fill this sentence. ", 40)

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("Chunk() returned %d chunks, want several", len(chunks))
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
		if n := utf8.RuneCountInString(chunk); n == 0 || n > 50 {
			t.Errorf("chunk %d has %d runes, want 1..50", i, n)
		}
	}

	if !reflect.DeepEqual(chunks, c.Chunk(text)) {
		t.Error("Chunk() not deterministic")
	}
}
