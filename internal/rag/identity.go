package rag

import (
	"fmt"
	"hash/fnv"
)

// Collection names for the paired message collections.
const (
	// CollectionIndex is the semantic index: real vectors plus a
	// compact filterable payload.
	CollectionIndex = "chat_embeddings"

	// CollectionContent is the content store: dummy vectors plus the
	// authoritative serialized message.
	CollectionContent = "chat_messages"
)

// PointKey derives the canonical identity string for a message. The
// topic segment is present only for topic-scoped messages, so
// topic-scoped and non-topic-scoped keys differ structurally, not just
// by value.
func PointKey(sourceID, topicID, recordID int64) string {
	if topicID != 0 {
		return fmt.Sprintf("%d_%d_%d", sourceID, topicID, recordID)
	}
	return fmt.Sprintf("%d_%d", sourceID, recordID)
}

// StorageID maps a point key to the numeric id shared by both
// collections. FNV-1a masked to 63 bits: pure, reproducible from the
// natural key alone, and collision-resistant at practical collection
// sizes.
func StorageID(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64() & (1<<63 - 1)
}
