package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sablelabs/leadlens/internal/chat"
	"github.com/sablelabs/leadlens/internal/vecstore"
)

// bulkFailStore rejects multi-point upserts so the per-record fallback
// path is exercised.
type bulkFailStore struct {
	*fakeStore
}

func (s *bulkFailStore) Upsert(ctx context.Context, collection string, points []*vecstore.Point) error {
	if len(points) > 1 {
		return errors.New("bulk write rejected")
	}
	return s.fakeStore.Upsert(ctx, collection, points)
}

// recordingNotifier collects observed author ids.
type recordingNotifier struct {
	observed []int64
}

func (n *recordingNotifier) Observe(ids []int64) {
	n.observed = append(n.observed, ids...)
}

func indexMsg(id, authorID int64, text string) chat.Message {
	return chat.Message{
		ID:       id,
		SourceID: 200,
		Text:     text,
		Author:   chat.Author{ID: authorID},
		Date:     time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestIndexOne(t *testing.T) {
	t.Run("writes both collections under the same id", func(t *testing.T) {
		store := newFakeStore()
		ix := NewIndexer(store, &fakeEmbedder{}, IndexerConfig{}, nil, zap.NewNop())

		msg := indexMsg(42, 7, "hiring a designer for a quick project")
		require.NoError(t, ix.IndexOne(context.Background(), msg))

		require.Len(t, store.upserts[CollectionContent], 1)
		require.Len(t, store.upserts[CollectionIndex], 1)

		content := store.upserts[CollectionContent][0][0]
		index := store.upserts[CollectionIndex][0][0]
		assert.Equal(t, content.ID, index.ID)
		assert.Equal(t, StorageID(PointKey(200, 0, 42)), content.ID)
		assert.Equal(t, []float32{0}, content.Vector)
	})

	t.Run("index payload carries excerpt and length", func(t *testing.T) {
		store := newFakeStore()
		ix := NewIndexer(store, &fakeEmbedder{}, IndexerConfig{ExcerptRunes: 10}, nil, zap.NewNop())

		msg := indexMsg(1, 7, "a text definitely longer than ten runes")
		require.NoError(t, ix.IndexOne(context.Background(), msg))

		payload := store.upserts[CollectionIndex][0][0].Payload
		assert.Equal(t, "a text def", payload["text"])
		assert.Equal(t, int64(39), payload["text_len"])
	})

	t.Run("content store write precedes index write", func(t *testing.T) {
		store := newFakeStore()
		store.upsertErr[CollectionContent] = errors.New("content down")
		ix := NewIndexer(store, &fakeEmbedder{}, IndexerConfig{}, nil, zap.NewNop())

		err := ix.IndexOne(context.Background(), indexMsg(1, 7, "text"))
		require.Error(t, err)
		assert.Empty(t, store.upserts[CollectionIndex], "index must not be written when content write fails")
	})

	t.Run("notifies author ids", func(t *testing.T) {
		store := newFakeStore()
		notifier := &recordingNotifier{}
		ix := NewIndexer(store, &fakeEmbedder{}, IndexerConfig{}, notifier, zap.NewNop())

		require.NoError(t, ix.IndexOne(context.Background(), indexMsg(1, 77, "text")))
		assert.Equal(t, []int64{77}, notifier.observed)
	})
}

func TestIndexBatch(t *testing.T) {
	t.Run("single embedding call per chunk", func(t *testing.T) {
		store := newFakeStore()
		embedder := &fakeEmbedder{}
		ix := NewIndexer(store, embedder, IndexerConfig{BatchSize: 3}, nil, zap.NewNop())

		msgs := make([]chat.Message, 7)
		for i := range msgs {
			msgs[i] = indexMsg(int64(i+1), 7, fmt.Sprintf("message number %d", i+1))
		}

		indexed := ix.IndexBatch(context.Background(), msgs)
		assert.Equal(t, 7, indexed)
		assert.Len(t, embedder.batches, 3) // 3 + 3 + 1
	})

	t.Run("failed bulk write degrades to per-record fallback", func(t *testing.T) {
		store := &bulkFailStore{fakeStore: newFakeStore()}
		ix := NewIndexer(store, &fakeEmbedder{}, IndexerConfig{BatchSize: 5}, nil, zap.NewNop())

		msgs := []chat.Message{
			indexMsg(1, 7, "first"),
			indexMsg(2, 7, "second"),
			indexMsg(3, 7, "third"),
		}

		indexed := ix.IndexBatch(context.Background(), msgs)
		assert.Equal(t, 3, indexed)
		// Every record landed through a single-point write.
		for _, batch := range store.upserts[CollectionContent] {
			assert.Len(t, batch, 1)
		}
	})

	t.Run("empty input indexes nothing", func(t *testing.T) {
		store := newFakeStore()
		embedder := &fakeEmbedder{}
		ix := NewIndexer(store, embedder, IndexerConfig{}, nil, zap.NewNop())

		assert.Equal(t, 0, ix.IndexBatch(context.Background(), nil))
		assert.Empty(t, embedder.batches)
	})
}
