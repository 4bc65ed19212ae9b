// Package contacts maintains enriched author profiles: an in-memory
// known-contact set rebuilt from the content store at startup, a
// profile index, and a rate-limited background enrichment queue.
package contacts

import (
	"context"
	"sync"

	"github.com/sablelabs/leadlens/internal/vecstore"
)

// Collection names for the contact collections.
const (
	// CollectionContactIndex holds bio embeddings for free-text
	// contact search.
	CollectionContactIndex = "contact_embeddings"

	// CollectionContacts holds the authoritative serialized profiles,
	// keyed by author id.
	CollectionContacts = "contact_profiles"
)

// Store is the vector-collection boundary consumed by this package.
type Store interface {
	Upsert(ctx context.Context, collection string, points []*vecstore.Point) error
	Search(ctx context.Context, collection string, vector []float32, limit uint64, filter *vecstore.Filter) ([]*vecstore.ScoredPoint, error)
	Get(ctx context.Context, collection string, ids []uint64) ([]*vecstore.Point, error)
	Scroll(ctx context.Context, collection string, limit uint32, filter *vecstore.Filter) ([]*vecstore.Point, error)
}

// Embedder is the embedding boundary consumed by this package.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// KnownSet is the set of author ids with an indexed profile. Both the
// indexing path and the enrichment path insert concurrently; the mutex
// guarantees no lost inserts.
type KnownSet struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

// NewKnownSet creates an empty set.
func NewKnownSet() *KnownSet {
	return &KnownSet{ids: make(map[int64]struct{})}
}

// Add marks an author id as known.
func (k *KnownSet) Add(id int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ids[id] = struct{}{}
}

// Contains reports whether an author id is known.
func (k *KnownSet) Contains(id int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.ids[id]
	return ok
}

// Len returns the set size.
func (k *KnownSet) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.ids)
}
