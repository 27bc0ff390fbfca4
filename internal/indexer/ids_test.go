package indexer

import (
	"testing"

	"github.com/google/uuid"
)

func TestChunkID(t *testing.T) {
	id := ChunkID("report.pdf", 0)
	if id != ChunkID("report.pdf", 0) {
		t.Error("ChunkID() not deterministic")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("ChunkID() = %q, not a UUID: %v", id, err)
	}
	if parsed.Version() != 5 {
		t.Errorf("ChunkID() version = %d, want 5", parsed.Version())
	}
	want := uuid.NewSHA1(uuid.NameSpaceURL, []byte("report.pdf:0")).String()
	if id != want {
		t.Errorf("ChunkID() = %s, want %s", id, want)
	}

	for _, other := range []string{ChunkID("report.pdf", 1), ChunkID("other.pdf", 0)} {
		if other == id {
			t.Errorf("ChunkID() collision: %s", other)
		}
	}
}

func TestChunkIDs(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		wantLen  int
	}{
		{name: "range", from: 2, to: 5, wantLen: 3},
		{name: "empty", from: 3, to: 3, wantLen: 0},
		{name: "inverted", from: 5, to: 2, wantLen: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := ChunkIDs("a", tt.from, tt.to)
			if len(ids) != tt.wantLen {
				t.Fatalf("ChunkIDs() len = %d, want %d", len(ids), tt.wantLen)
			}
			for i, id := range ids {
				if id != ChunkID("a", tt.from+i) {
					t.Errorf("ChunkIDs()[%d] = %s, want ChunkID(a, %d)", i, id, tt.from+i)
				}
			}
		})
	}
}
