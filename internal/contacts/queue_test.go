package contacts

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sablelabs/leadlens/internal/chat"
	"github.com/sablelabs/leadlens/internal/vecstore"
)

// memStore is an in-memory Store for contact tests.
type memStore struct {
	mu          sync.Mutex
	collections map[string]map[uint64]*vecstore.Point
}

func newMemStore() *memStore {
	return &memStore{collections: make(map[string]map[uint64]*vecstore.Point)}
}

func (m *memStore) Upsert(_ context.Context, collection string, points []*vecstore.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collections[collection] == nil {
		m.collections[collection] = make(map[uint64]*vecstore.Point)
	}
	for _, p := range points {
		m.collections[collection][p.ID] = p
	}
	return nil
}

func (m *memStore) Search(_ context.Context, collection string, _ []float32, limit uint64, _ *vecstore.Filter) ([]*vecstore.ScoredPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*vecstore.ScoredPoint
	for _, p := range m.collections[collection] {
		if uint64(len(out)) == limit {
			break
		}
		out = append(out, &vecstore.ScoredPoint{Point: vecstore.Point{ID: p.ID, Payload: p.Payload}, Score: 0.5})
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, collection string, ids []uint64) ([]*vecstore.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*vecstore.Point
	for _, id := range ids {
		if p, ok := m.collections[collection][id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) Scroll(_ context.Context, collection string, limit uint32, _ *vecstore.Filter) ([]*vecstore.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*vecstore.Point
	for _, p := range m.collections[collection] {
		if uint32(len(out)) == limit {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[collection])
}

// stubEmbedder returns a fixed vector.
type stubEmbedder struct{}

func (stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

// stubSource scripts FetchProfile outcomes, either per author id or
// after a fixed number of successful fetches.
type stubSource struct {
	mu        sync.Mutex
	errs      map[int64]error
	failAfter int // when > 0, every fetch past this count rate-limits
	fetched   []int64
}

func (s *stubSource) EachMessage(_ context.Context, _ chat.Selector, _ func(chat.Message) error) error {
	return nil
}

func (s *stubSource) FetchProfile(_ context.Context, authorID int64) (*chat.ContactProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, authorID)
	if s.failAfter > 0 && len(s.fetched) > s.failAfter {
		return nil, chat.ErrRateLimited
	}
	if err := s.errs[authorID]; err != nil {
		return nil, err
	}
	return &chat.ContactProfile{
		ID:     authorID,
		Handle: fmt.Sprintf("user%d", authorID),
		Bio:    fmt.Sprintf("bio of %d", authorID),
	}, nil
}

func (s *stubSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetched)
}

func newTestQueue(t *testing.T, source chat.Source, cfg QueueConfig) (*Queue, *Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc := NewService(store, stubEmbedder{}, NewKnownSet(), zap.NewNop())
	if cfg.Interval == 0 {
		cfg.Interval = time.Microsecond
	}
	return NewQueue(source, svc, cfg, zap.NewNop()), svc, store
}

func TestQueueObserve(t *testing.T) {
	t.Run("known and duplicate ids are ignored", func(t *testing.T) {
		source := &stubSource{}
		q, svc, _ := newTestQueue(t, source, QueueConfig{})
		svc.Known().Add(5)

		q.Observe([]int64{5, 6, 6, 0, 7})
		assert.Equal(t, 2, q.Pending())
	})
}

func TestQueueDrain(t *testing.T) {
	t.Run("enriches pending authors and marks them known", func(t *testing.T) {
		source := &stubSource{}
		q, svc, store := newTestQueue(t, source, QueueConfig{})

		q.Observe([]int64{1, 2, 3})
		q.drain(context.Background())

		assert.Equal(t, 0, q.Pending())
		assert.Equal(t, 3, svc.Known().Len())
		assert.Equal(t, 3, store.count(CollectionContacts))
		assert.Equal(t, 3, store.count(CollectionContactIndex))
	})

	t.Run("slice cap bounds one trigger", func(t *testing.T) {
		source := &stubSource{}
		q, _, _ := newTestQueue(t, source, QueueConfig{SliceCap: 50})

		ids := make([]int64, 60)
		for i := range ids {
			ids[i] = int64(i + 1)
		}
		q.Observe(ids)
		q.drain(context.Background())

		assert.Equal(t, 50, source.fetchCount())
		assert.Equal(t, 10, q.Pending())
	})

	t.Run("rate limit abandons the rest of the slice", func(t *testing.T) {
		// Every fetch after the ninth hits the source rate limit.
		source := &stubSource{failAfter: 9}
		q, svc, _ := newTestQueue(t, source, QueueConfig{SliceCap: 50})

		ids := make([]int64, 50)
		for i := range ids {
			ids[i] = int64(i + 1)
		}
		q.Observe(ids)
		q.drain(context.Background())

		assert.Equal(t, 10, source.fetchCount(), "fetching stops at the first rate limit")
		assert.Equal(t, 9, svc.Known().Len())
		assert.Equal(t, 41, q.Pending(), "unprocessed ids stay pending")
	})

	t.Run("privacy-restricted profiles are skipped without becoming known", func(t *testing.T) {
		source := &stubSource{errs: map[int64]error{
			2: chat.ErrPrivacyRestricted,
		}}
		q, svc, _ := newTestQueue(t, source, QueueConfig{})

		q.Observe([]int64{1, 2, 3})
		q.drain(context.Background())

		assert.Equal(t, 3, source.fetchCount(), "privacy error does not stop the slice")
		assert.Equal(t, 2, svc.Known().Len())
		assert.False(t, svc.Known().Contains(2))
		assert.Equal(t, 0, q.Pending())
	})
}

func TestServiceProfiles(t *testing.T) {
	t.Run("lookup round-trips an indexed profile", func(t *testing.T) {
		store := newMemStore()
		svc := NewService(store, stubEmbedder{}, NewKnownSet(), zap.NewNop())

		profile := &chat.ContactProfile{ID: 42, Handle: "alice", Bio: "freelance designer"}
		require.NoError(t, svc.IndexProfile(context.Background(), profile))

		got, err := svc.Lookup(context.Background(), 42)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "alice", got.Handle)
		assert.True(t, svc.Known().Contains(42))
	})

	t.Run("empty bio skips the contact index", func(t *testing.T) {
		store := newMemStore()
		svc := NewService(store, stubEmbedder{}, NewKnownSet(), zap.NewNop())

		require.NoError(t, svc.IndexProfile(context.Background(), &chat.ContactProfile{ID: 7}))
		assert.Equal(t, 1, store.count(CollectionContacts))
		assert.Equal(t, 0, store.count(CollectionContactIndex))
	})

	t.Run("lookup of unknown id returns nil", func(t *testing.T) {
		svc := NewService(newMemStore(), stubEmbedder{}, NewKnownSet(), zap.NewNop())
		got, err := svc.Lookup(context.Background(), 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("rebuild repopulates the known set", func(t *testing.T) {
		store := newMemStore()
		first := NewService(store, stubEmbedder{}, NewKnownSet(), zap.NewNop())
		require.NoError(t, first.IndexProfile(context.Background(), &chat.ContactProfile{ID: 1}))
		require.NoError(t, first.IndexProfile(context.Background(), &chat.ContactProfile{ID: 2}))

		second := NewService(store, stubEmbedder{}, NewKnownSet(), zap.NewNop())
		require.NoError(t, second.Rebuild(context.Background()))
		assert.Equal(t, 2, second.Known().Len())
		assert.True(t, second.Known().Contains(1))
	})
}
