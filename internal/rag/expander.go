package rag

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sablelabs/leadlens/internal/llm"
)

const expandSystemPrompt = `You expand search queries to improve recall over informal chat history. ` +
	`Reply with up to 100 words of synonyms, related terms, and rephrasings of the query, ` +
	`in the same language and register as the query. No explanations, no punctuation lists, just the terms.`

const expandTimeout = 10 * time.Second

// Expander enriches a query with related terms before embedding.
// Strictly best-effort: any failure yields the original query, and the
// expansion is always appended, never a replacement, so the original
// intent keeps contributing to the embedding.
type Expander struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewExpander creates an Expander.
func NewExpander(completer llm.Completer, logger *zap.Logger) *Expander {
	return &Expander{
		completer: completer,
		logger:    logger.Named("expander"),
	}
}

// Expand returns the query concatenated with recall-improving terms,
// or the query unchanged on any failure.
func (e *Expander) Expand(ctx context.Context, query string) string {
	ctx, cancel := context.WithTimeout(ctx, expandTimeout)
	defer cancel()

	out, err := e.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Text: expandSystemPrompt},
		{Role: llm.RoleUser, Text: query},
	}, llm.Options{
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		e.logger.Debug("query expansion failed, using original query", zap.Error(err))
		return query
	}

	expansion := strings.TrimSpace(out)
	if expansion == "" {
		return query
	}
	return query + "\n" + expansion
}
