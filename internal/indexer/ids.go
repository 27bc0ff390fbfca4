package indexer

import (
	"fmt"

	"github.com/google/uuid"
)

// ChunkID returns the stored record id for a chunk ordinal of a source.
// It is a version-5 UUID in the URL namespace over "source_id:ordinal", so
// re-ingesting a source overwrites its records instead of duplicating them.
func ChunkID(sourceID string, ordinal int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s:%d", sourceID, ordinal))).String()
}

// ChunkIDs returns the ids for ordinals [from, to).
func ChunkIDs(sourceID string, from, to int) []string {
	if to <= from {
		return nil
	}
	ids := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		ids = append(ids, ChunkID(sourceID, i))
	}
	return ids
}
