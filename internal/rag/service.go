package rag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sablelabs/leadlens/internal/chat"
	"github.com/sablelabs/leadlens/internal/vecstore"
)

// catalogScrollLimit bounds the source-catalog scroll.
const catalogScrollLimit = 10000

// ServiceConfig holds request-level defaults for the pipeline.
type ServiceConfig struct {
	// TopK is the default result count when a request leaves it unset.
	TopK int

	// MinTextLen is the default minimum trimmed text length.
	MinTextLen int

	// TokenBudget caps the estimated token cost of the canonical
	// document set per answer request.
	TokenBudget int
}

func (c *ServiceConfig) applyDefaults() {
	if c.TopK == 0 {
		c.TopK = 10
	}
	if c.MinTextLen == 0 {
		c.MinTextLen = 20
	}
	if c.TokenBudget == 0 {
		c.TokenBudget = 3000
	}
}

// AnswerRequest parameterizes one answer-generation request.
type AnswerRequest struct {
	Query      string
	SourceIDs  []int64
	TopK       int
	MinTextLen int
	Expand     bool
	Style      string
}

// Answer is the full result of an answer request: the canonical
// documents the payload cites, the validated payload, its rendering,
// and the retrieval cost.
type Answer struct {
	Query     string          `json:"query"`
	Documents []CanonicalDoc  `json:"documents"`
	Payload   *AnswerPayload  `json:"payload"`
	Rendered  string          `json:"rendered"`
	Retrieval time.Duration   `json:"retrieval_ns"`
}

// Service wires the pipeline stages into the two public flows: search
// and answer. Stages run sequentially; the only batching happens
// inside the embedding provider call.
type Service struct {
	store     Store
	retriever *Retriever
	composer  *Composer
	config    ServiceConfig
	logger    *zap.Logger
}

// NewService creates the pipeline service.
func NewService(store Store, retriever *Retriever, composer *Composer, cfg ServiceConfig, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		store:     store,
		retriever: retriever,
		composer:  composer,
		config:    cfg,
		logger:    logger.Named("rag"),
	}
}

// Search runs retrieval only.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]Result, time.Duration, error) {
	if req.TopK == 0 {
		req.TopK = s.config.TopK
	}
	if req.MinTextLen == 0 {
		req.MinTextLen = s.config.MinTextLen
	}
	return s.retriever.Search(ctx, req)
}

// Answer runs the full pipeline: retrieve, canonicalize, compose,
// validate citations, render.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	search := SearchRequest{
		Query:      req.Query,
		SourceIDs:  req.SourceIDs,
		TopK:       req.TopK,
		MinTextLen: req.MinTextLen,
		Expand:     req.Expand,
	}
	if search.TopK == 0 {
		search.TopK = s.config.TopK
	}
	if search.MinTextLen == 0 {
		search.MinTextLen = s.config.MinTextLen
	}

	results, elapsed, err := s.retriever.Search(ctx, search)
	if err != nil {
		return nil, err
	}

	docs := Canonicalize(results, search.MinTextLen, s.config.TokenBudget)

	payload, err := s.composer.Compose(ctx, req.Query, docs, req.Style)
	if err != nil {
		return nil, err
	}

	payload = ValidateCitations(payload, len(docs))

	s.logger.Info("answer composed",
		zap.Int("results", len(results)),
		zap.Int("documents", len(docs)),
		zap.Int("sections", len(payload.Sections)),
		zap.Duration("retrieval", elapsed),
	)

	return &Answer{
		Query:     req.Query,
		Documents: docs,
		Payload:   payload,
		Rendered:  Render(payload),
		Retrieval: elapsed,
	}, nil
}

// Sources folds the semantic index into the unique (source, topic)
// pairs currently indexed, with message counts.
func (s *Service) Sources(ctx context.Context) ([]chat.SourceInfo, error) {
	points, err := s.store.Scroll(ctx, CollectionIndex, catalogScrollLimit, nil)
	if err != nil {
		return nil, fmt.Errorf("scrolling index: %w", err)
	}

	byKey := make(map[string]*chat.SourceInfo)
	order := make([]string, 0)
	for _, p := range points {
		sourceID := vecstore.PayloadInt(p.Payload, "source_id")
		topicID := vecstore.PayloadInt(p.Payload, "topic_id")
		key := fmt.Sprintf("%d_%d", sourceID, topicID)

		info, ok := byKey[key]
		if !ok {
			info = &chat.SourceInfo{
				SourceID:    sourceID,
				SourceTitle: vecstore.PayloadString(p.Payload, "source_title"),
				TopicID:     topicID,
				TopicTitle:  vecstore.PayloadString(p.Payload, "topic_title"),
			}
			byKey[key] = info
			order = append(order, key)
		}
		info.MessageCount++
	}

	sources := make([]chat.SourceInfo, 0, len(order))
	for _, key := range order {
		sources = append(sources, *byKey[key])
	}
	return sources, nil
}

// Stats reports point counts for both collections and the number of
// distinct sources.
func (s *Service) Stats(ctx context.Context) (map[string]int, error) {
	indexInfo, err := s.store.Info(ctx, CollectionIndex)
	if err != nil {
		return nil, err
	}
	contentInfo, err := s.store.Info(ctx, CollectionContent)
	if err != nil {
		return nil, err
	}
	sources, err := s.Sources(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int{
		"embeddings": indexInfo.PointCount,
		"messages":   contentInfo.PointCount,
		"sources":    len(sources),
	}, nil
}

// DeleteSource removes every point of a source from both collections.
func (s *Service) DeleteSource(ctx context.Context, sourceID int64) error {
	filter := vecstore.NewFilter(vecstore.MatchInt("source_id", sourceID))
	if err := s.store.DeleteByFilter(ctx, CollectionIndex, filter); err != nil {
		return err
	}
	return s.store.DeleteByFilter(ctx, CollectionContent, filter)
}
