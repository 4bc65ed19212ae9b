package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sablelabs/leadlens/internal/chat"
	"github.com/sablelabs/leadlens/internal/vecstore"
)

// ContactNotifier receives the author ids of freshly indexed messages.
// Implemented by the contact enrichment queue; indexing never blocks
// on it.
type ContactNotifier interface {
	Observe(authorIDs []int64)
}

// IndexerConfig holds indexing settings.
type IndexerConfig struct {
	// BatchSize is the number of texts embedded per provider call.
	// Default: 100.
	BatchSize int

	// ExcerptRunes caps the truncated excerpt stored in the semantic
	// index payload for lightweight display. Default: 500.
	ExcerptRunes int
}

func (c *IndexerConfig) applyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.ExcerptRunes == 0 {
		c.ExcerptRunes = 500
	}
}

// Indexer writes messages to the paired collections: the full record
// to the content store and an embedding plus compact payload to the
// semantic index. Both writes must succeed for a message to count as
// indexed; identity keys make re-indexing idempotent.
type Indexer struct {
	store    Store
	embedder Embedder
	config   IndexerConfig
	notifier ContactNotifier
	logger   *zap.Logger
}

// NewIndexer creates an Indexer. notifier may be nil.
func NewIndexer(store Store, embedder Embedder, cfg IndexerConfig, notifier ContactNotifier, logger *zap.Logger) *Indexer {
	cfg.applyDefaults()
	return &Indexer{
		store:    store,
		embedder: embedder,
		config:   cfg,
		notifier: notifier,
		logger:   logger.Named("indexer"),
	}
}

// IndexOne indexes a single message.
func (ix *Indexer) IndexOne(ctx context.Context, msg chat.Message) error {
	vector, err := ix.embedder.EmbedQuery(ctx, msg.Text)
	if err != nil {
		return fmt.Errorf("embedding message: %w", err)
	}

	contentPoint, indexPoint, err := ix.buildPoints(msg, vector)
	if err != nil {
		return err
	}

	if err := ix.store.Upsert(ctx, CollectionContent, []*vecstore.Point{contentPoint}); err != nil {
		return fmt.Errorf("writing content store: %w", err)
	}
	if err := ix.store.Upsert(ctx, CollectionIndex, []*vecstore.Point{indexPoint}); err != nil {
		return fmt.Errorf("writing semantic index: %w", err)
	}

	indexedRecords.Inc()
	ix.notify([]chat.Message{msg})
	return nil
}

// IndexBatch indexes messages in embedding batches. A failed batch is
// degraded to per-record indexing so one bad record does not lose the
// whole batch; only the aggregate indexed count is reported.
func (ix *Indexer) IndexBatch(ctx context.Context, msgs []chat.Message) int {
	indexed := 0

	for start := 0; start < len(msgs); start += ix.config.BatchSize {
		end := start + ix.config.BatchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		batch := msgs[start:end]

		n, err := ix.indexChunk(ctx, batch)
		if err != nil {
			indexFallbacks.Inc()
			ix.logger.Warn("batch indexing failed, falling back to per-record",
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			n = 0
			for _, msg := range batch {
				if err := ix.IndexOne(ctx, msg); err != nil {
					ix.logger.Warn("indexing message failed",
						zap.String("key", PointKey(msg.SourceID, msg.TopicID, msg.ID)),
						zap.Error(err),
					)
					continue
				}
				n++
			}
			indexed += n
			continue
		}

		indexed += n
		indexedRecords.Add(float64(n))
		ix.notify(batch)
	}

	return indexed
}

// indexChunk embeds a chunk in one provider call and bulk-writes both
// collections.
func (ix *Indexer) indexChunk(ctx context.Context, batch []chat.Message) (int, error) {
	texts := make([]string, len(batch))
	for i, msg := range batch {
		texts[i] = msg.Text
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding batch: %w", err)
	}

	contentPoints := make([]*vecstore.Point, len(batch))
	indexPoints := make([]*vecstore.Point, len(batch))
	for i, msg := range batch {
		content, index, err := ix.buildPoints(msg, vectors[i])
		if err != nil {
			return 0, err
		}
		contentPoints[i] = content
		indexPoints[i] = index
	}

	if err := ix.store.Upsert(ctx, CollectionContent, contentPoints); err != nil {
		return 0, fmt.Errorf("writing content store: %w", err)
	}
	if err := ix.store.Upsert(ctx, CollectionIndex, indexPoints); err != nil {
		return 0, fmt.Errorf("writing semantic index: %w", err)
	}
	return len(batch), nil
}

func (ix *Indexer) buildPoints(msg chat.Message, vector []float32) (content, index *vecstore.Point, err error) {
	key := PointKey(msg.SourceID, msg.TopicID, msg.ID)
	id := StorageID(key)

	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, nil, fmt.Errorf("serializing message %s: %w", key, err)
	}

	content = &vecstore.Point{
		ID:     id,
		Vector: []float32{0},
		Payload: map[string]interface{}{
			"point_key":    key,
			"source_id":    msg.SourceID,
			"source_title": msg.SourceTitle,
			"topic_id":     msg.TopicID,
			"topic_title":  msg.TopicTitle,
			"record_id":    msg.ID,
			"message_json": string(raw),
		},
	}

	index = &vecstore.Point{
		ID:     id,
		Vector: vector,
		Payload: map[string]interface{}{
			"point_key":     key,
			"source_id":     msg.SourceID,
			"source_title":  msg.SourceTitle,
			"source_handle": msg.SourceHandle,
			"topic_id":      msg.TopicID,
			"topic_title":   msg.TopicTitle,
			"record_id":     msg.ID,
			"author_id":     msg.Author.ID,
			"author_handle": msg.Author.Handle,
			"text":          truncateRunes(msg.Text, ix.config.ExcerptRunes),
			"text_len":      int64(runeLen(msg.Text)),
			"date":          msg.Date.UTC().Format(time.RFC3339),
		},
	}
	return content, index, nil
}

func (ix *Indexer) notify(batch []chat.Message) {
	if ix.notifier == nil {
		return
	}
	ids := make([]int64, 0, len(batch))
	for _, msg := range batch {
		if msg.Author.ID != 0 {
			ids = append(ids, msg.Author.ID)
		}
	}
	if len(ids) > 0 {
		ix.notifier.Observe(ids)
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func runeLen(s string) int {
	return len([]rune(s))
}
