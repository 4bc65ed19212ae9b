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

// QueryExpander is the best-effort expansion stage. *Expander
// satisfies it.
type QueryExpander interface {
	Expand(ctx context.Context, query string) string
}

// SearchRequest parameterizes one retrieval.
type SearchRequest struct {
	Query      string
	SourceIDs  []int64
	TopK       int
	MinTextLen int
	Expand     bool
}

// RetrieverConfig holds retrieval tuning constants.
type RetrieverConfig struct {
	// OverFetch multiplies TopK on the index query to leave room for
	// the post-retrieval length filter. Default: 3.
	OverFetch int
}

func (c *RetrieverConfig) applyDefaults() {
	if c.OverFetch == 0 {
		c.OverFetch = 3
	}
}

// Retriever runs filtered nearest-neighbor search against the semantic
// index and resolves hits from the content store.
type Retriever struct {
	store    Store
	embedder Embedder
	expander QueryExpander
	config   RetrieverConfig
	logger   *zap.Logger
}

// NewRetriever creates a Retriever. expander may be nil to disable
// expansion entirely.
func NewRetriever(store Store, embedder Embedder, expander QueryExpander, cfg RetrieverConfig, logger *zap.Logger) *Retriever {
	cfg.applyDefaults()
	return &Retriever{
		store:    store,
		embedder: embedder,
		expander: expander,
		config:   cfg,
		logger:   logger.Named("retriever"),
	}
}

// Search returns at most TopK resolved results in index ranking order,
// along with the elapsed wall time of the whole retrieval.
//
// The minimum-text-length filter cannot be pushed into the vector
// index, so the index is over-fetched by the configured factor and the
// filter applied to the candidates. Candidates whose content entry is
// missing are stale index entries and are skipped, not errors.
func (r *Retriever) Search(ctx context.Context, req SearchRequest) ([]Result, time.Duration, error) {
	start := time.Now()
	defer func() {
		searchDuration.Observe(time.Since(start).Seconds())
	}()

	if req.TopK <= 0 {
		return nil, 0, fmt.Errorf("top_k must be positive, got %d", req.TopK)
	}

	query := req.Query
	if req.Expand && r.expander != nil {
		query = r.expander.Expand(ctx, query)
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("embedding query: %w", err)
	}

	var filter *vecstore.Filter
	if len(req.SourceIDs) > 0 {
		filter = vecstore.NewFilter(vecstore.MatchAnyInt("source_id", req.SourceIDs))
	}

	limit := uint64(req.TopK * r.config.OverFetch)
	hits, err := r.store.Search(ctx, CollectionIndex, vector, limit, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("searching index: %w", err)
	}

	results := make([]Result, 0, req.TopK)
	for _, hit := range hits {
		if len(results) >= req.TopK {
			break
		}
		if int(vecstore.PayloadInt(hit.Payload, "text_len")) < req.MinTextLen {
			continue
		}

		msg, ok, err := r.resolve(ctx, hit.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("resolving content for hit %d: %w", hit.ID, err)
		}
		if !ok {
			continue
		}

		results = append(results, Result{
			Message: msg,
			Score:   hit.Score,
			Excerpt: vecstore.PayloadString(hit.Payload, "text"),
		})
	}

	elapsed := time.Since(start)
	r.logger.Debug("search complete",
		zap.Int("candidates", len(hits)),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", elapsed),
	)
	return results, elapsed, nil
}

// resolve fetches the authoritative message for a semantic hit. A
// store error is a failed retrieval and propagates; only a missing
// entry (stale index) or a corrupt payload is skipped.
func (r *Retriever) resolve(ctx context.Context, id uint64) (chat.Message, bool, error) {
	points, err := r.store.Get(ctx, CollectionContent, []uint64{id})
	if err != nil {
		return chat.Message{}, false, fmt.Errorf("content store lookup: %w", err)
	}
	if len(points) == 0 {
		// Stale index entry; the content was deleted underneath it.
		return chat.Message{}, false, nil
	}

	raw := vecstore.PayloadString(points[0].Payload, "message_json")
	var msg chat.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.logger.Warn("corrupt content entry", zap.Uint64("id", id), zap.Error(err))
		return chat.Message{}, false, nil
	}
	return msg, true, nil
}
