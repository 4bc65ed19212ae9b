// Package rag implements the retrieval-to-answer pipeline: query
// expansion, filtered vector retrieval, canonicalization under a token
// budget, schema-constrained answer composition, citation validation,
// and deterministic rendering.
package rag

import (
	"context"
	"time"

	"github.com/sablelabs/leadlens/internal/chat"
	"github.com/sablelabs/leadlens/internal/vecstore"
)

// Store is the vector-collection boundary consumed by the pipeline.
// *vecstore.Store satisfies it; tests substitute fakes.
type Store interface {
	Upsert(ctx context.Context, collection string, points []*vecstore.Point) error
	Search(ctx context.Context, collection string, vector []float32, limit uint64, filter *vecstore.Filter) ([]*vecstore.ScoredPoint, error)
	Get(ctx context.Context, collection string, ids []uint64) ([]*vecstore.Point, error)
	Scroll(ctx context.Context, collection string, limit uint32, filter *vecstore.Filter) ([]*vecstore.Point, error)
	DeleteByFilter(ctx context.Context, collection string, filter *vecstore.Filter) error
	Info(ctx context.Context, collection string) (*vecstore.CollectionInfo, error)
}

// Embedder is the embedding boundary consumed by the pipeline.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is one retrieval hit: the resolved message and its similarity
// score, in index ranking order.
type Result struct {
	Message chat.Message `json:"message"`
	Score   float32      `json:"score"`
	Excerpt string       `json:"excerpt,omitempty"`
}

// CanonicalDoc is the deduplicated, budget-admitted, citation-
// addressable view of a retrieved message, built per request.
type CanonicalDoc struct {
	// CID is the citation id: 1..N, contiguous, in ranking order.
	CID int `json:"cid"`

	Key         string    `json:"key"`
	SourceID    int64     `json:"source_id"`
	SourceTitle string    `json:"source_title"`
	TopicTitle  string    `json:"topic_title,omitempty"`
	AuthorID    int64     `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	Date        time.Time `json:"date"`
	Text        string    `json:"text"`
	Score       float32   `json:"score"`
	Permalink   string    `json:"permalink"`
}

// AnswerPayload is the structured answer produced by the composer.
type AnswerPayload struct {
	Summary  string     `json:"summary"`
	Sections []Section  `json:"sections"`
	Rejected []Rejected `json:"rejected"`
}

// Section groups related answer items under a title.
type Section struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Item is one grounded claim. Citations reference canonical document
// cids; an item without valid citations is dropped by validation.
type Item struct {
	Lead      string `json:"lead"`
	WhyFit    string `json:"why_fit"`
	NextStep  string `json:"next_step"`
	Citations []int  `json:"citations"`
}

// Rejected records an explicitly dismissed candidate with its grounds.
type Rejected struct {
	Reason    string `json:"reason"`
	Citations []int  `json:"citations"`
}
