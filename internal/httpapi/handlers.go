package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sablelabs/leadlens/internal/chat"
	"github.com/sablelabs/leadlens/internal/rag"
)

// SearchRequest is the request body for POST /api/rag/search.
type SearchRequest struct {
	Query      string  `json:"query"`
	SourceIDs  []int64 `json:"source_ids,omitempty"`
	TopK       int     `json:"top_k,omitempty"`
	MinTextLen int     `json:"min_text_len,omitempty"`
	Expand     bool    `json:"expand,omitempty"`
}

// SearchResponse is the response body for POST /api/rag/search.
type SearchResponse struct {
	Query      string       `json:"query"`
	Results    []rag.Result `json:"results"`
	DurationMS int64        `json:"duration_ms"`
}

// handleSearch runs retrieval only.
func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	results, elapsed, err := s.rag.Search(c.Request().Context(), rag.SearchRequest{
		Query:      req.Query,
		SourceIDs:  req.SourceIDs,
		TopK:       req.TopK,
		MinTextLen: req.MinTextLen,
		Expand:     req.Expand,
	})
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	if results == nil {
		results = []rag.Result{}
	}
	return c.JSON(http.StatusOK, SearchResponse{
		Query:      req.Query,
		Results:    results,
		DurationMS: elapsed.Milliseconds(),
	})
}

// AnswerRequest is the request body for POST /api/rag/answer.
type AnswerRequest struct {
	Query      string  `json:"query"`
	SourceIDs  []int64 `json:"source_ids,omitempty"`
	TopK       int     `json:"top_k,omitempty"`
	MinTextLen int     `json:"min_text_len,omitempty"`
	Expand     bool    `json:"expand,omitempty"`
	Style      string  `json:"style,omitempty"`
}

// handleAnswer runs the full retrieval-to-answer pipeline.
func (s *Server) handleAnswer(c echo.Context) error {
	var req AnswerRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid answer request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	answer, err := s.rag.Answer(c.Request().Context(), rag.AnswerRequest{
		Query:      req.Query,
		SourceIDs:  req.SourceIDs,
		TopK:       req.TopK,
		MinTextLen: req.MinTextLen,
		Expand:     req.Expand,
		Style:      req.Style,
	})
	if err != nil {
		if errors.Is(err, rag.ErrInvalidJSON) {
			s.logger.Error("generation output unusable after repair", zap.Error(err))
			return echo.NewHTTPError(http.StatusBadGateway, "generation returned invalid JSON")
		}
		s.logger.Error("answer failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "answer generation failed")
	}

	return c.JSON(http.StatusOK, answer)
}

// SourcesResponse is the response body for GET /api/rag/sources.
type SourcesResponse struct {
	Sources []chat.SourceInfo `json:"sources"`
}

// handleSources lists the indexed (source, topic) pairs.
func (s *Server) handleSources(c echo.Context) error {
	sources, err := s.rag.Sources(c.Request().Context())
	if err != nil {
		s.logger.Error("sources listing failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "sources listing failed")
	}
	if sources == nil {
		sources = []chat.SourceInfo{}
	}
	return c.JSON(http.StatusOK, SourcesResponse{Sources: sources})
}

// handleStats reports collection point counts.
func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.rag.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "stats failed")
	}
	return c.JSON(http.StatusOK, stats)
}

// handleDeleteSource removes every indexed record of a source.
func (s *Server) handleDeleteSource(c echo.Context) error {
	sourceID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "source id must be an integer")
	}

	if err := s.rag.DeleteSource(c.Request().Context(), sourceID); err != nil {
		s.logger.Error("source delete failed", zap.Int64("source_id", sourceID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "source delete failed")
	}

	s.logger.Info("source deleted", zap.Int64("source_id", sourceID))
	return c.NoContent(http.StatusNoContent)
}

// IndexRequest is the request body for POST /api/messages/index.
// When Messages is non-empty they are indexed directly; otherwise the
// configured ingestion source is streamed per the selector fields.
type IndexRequest struct {
	SourceID int64 `json:"source_id"`
	TopicID  int64 `json:"topic_id,omitempty"`
	Limit    int   `json:"limit,omitempty"`
	MinID    int64 `json:"min_id,omitempty"`
	MaxID    int64 `json:"max_id,omitempty"`

	Messages []chat.Message `json:"messages,omitempty"`
}

// IndexResponse is the response body for POST /api/messages/index.
type IndexResponse struct {
	SourceID   int64 `json:"source_id"`
	TopicID    int64 `json:"topic_id,omitempty"`
	Fetched    int   `json:"fetched"`
	Indexed    int   `json:"indexed"`
	DurationMS int64 `json:"duration_ms"`
}

// indexBatchSize is how many streamed messages accumulate before a
// bulk index call.
const indexBatchSize = 100

// handleIndex streams messages from the ingestion source and indexes
// them in batches.
func (s *Server) handleIndex(c echo.Context) error {
	if s.indexer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "indexing not configured")
	}

	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid index request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if len(req.Messages) > 0 {
		start := time.Now()
		indexed := s.indexer.IndexBatch(c.Request().Context(), req.Messages)
		return c.JSON(http.StatusOK, IndexResponse{
			SourceID:   req.SourceID,
			TopicID:    req.TopicID,
			Fetched:    len(req.Messages),
			Indexed:    indexed,
			DurationMS: time.Since(start).Milliseconds(),
		})
	}

	if s.source == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no ingestion source configured")
	}
	if req.SourceID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "source_id field is required")
	}

	sel := chat.Selector{
		SourceID: req.SourceID,
		TopicID:  req.TopicID,
		Window: chat.Window{
			Limit: req.Limit,
			MinID: req.MinID,
			MaxID: req.MaxID,
		},
	}

	start := time.Now()
	ctx := c.Request().Context()
	fetched, indexed := 0, 0
	batch := make([]chat.Message, 0, indexBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		indexed += s.indexer.IndexBatch(ctx, batch)
		batch = batch[:0]
	}

	err := s.source.EachMessage(ctx, sel, func(msg chat.Message) error {
		fetched++
		batch = append(batch, msg)
		if len(batch) == indexBatchSize {
			flush()
		}
		return ctx.Err()
	})
	flush()
	if err != nil {
		s.logger.Error("ingestion failed",
			zap.Int64("source_id", req.SourceID),
			zap.Int("fetched", fetched),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "ingestion source failed")
	}

	s.logger.Info("source indexed",
		zap.Int64("source_id", req.SourceID),
		zap.Int64("topic_id", req.TopicID),
		zap.Int("fetched", fetched),
		zap.Int("indexed", indexed))

	return c.JSON(http.StatusOK, IndexResponse{
		SourceID:   req.SourceID,
		TopicID:    req.TopicID,
		Fetched:    fetched,
		Indexed:    indexed,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

// handleContactLookup resolves one contact profile by author id.
func (s *Server) handleContactLookup(c echo.Context) error {
	if s.contacts == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "contact service not configured")
	}

	authorID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "contact id must be an integer")
	}

	profile, err := s.contacts.Lookup(c.Request().Context(), authorID)
	if err != nil {
		s.logger.Error("contact lookup failed", zap.Int64("author_id", authorID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "contact lookup failed")
	}
	if profile == nil {
		return echo.NewHTTPError(http.StatusNotFound, "contact not found")
	}
	return c.JSON(http.StatusOK, profile)
}

// ContactSearchRequest is the request body for POST /api/contacts/search.
type ContactSearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// handleContactSearch runs free-text similarity search over contact
// biographies.
func (s *Server) handleContactSearch(c echo.Context) error {
	if s.contacts == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "contact service not configured")
	}

	var req ContactSearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	profiles, err := s.contacts.SearchBios(c.Request().Context(), req.Query, req.TopK)
	if err != nil {
		s.logger.Error("contact search failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "contact search failed")
	}
	if profiles == nil {
		profiles = []*chat.ContactProfile{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"contacts": profiles})
}
