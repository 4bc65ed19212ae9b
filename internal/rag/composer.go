package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sablelabs/leadlens/internal/llm"
)

// ErrInvalidJSON is returned when generation output cannot be parsed
// as an AnswerPayload even after the single repair attempt.
var ErrInvalidJSON = errors.New("generation returned invalid JSON")

const composeSchemaPrompt = `You analyze chat messages and answer the user's query grounded ONLY in the numbered documents supplied.
Respond with a single JSON object, no prose, matching exactly:
{
  "summary": "one paragraph answering the query",
  "sections": [
    {
      "title": "section title",
      "items": [
        {
          "lead": "who or what this item is about",
          "why_fit": "why it matches the query, grounded in the documents",
          "next_step": "a concrete suggested follow-up",
          "citations": [1, 2]
        }
      ]
    }
  ],
  "rejected": [
    {"reason": "why a candidate was dismissed", "citations": [3]}
  ]
}
Rules:
- citations are document numbers from the supplied list; every item and rejected entry MUST cite at least one
- never invent facts beyond the documents; if the documents do not support a claim, omit it
- produce 3 to 6 sections when the data supports it, fewer otherwise
- "rejected" may be empty`

const repairPrompt = `Coerce the following content into valid JSON matching the schema: ` +
	`{"summary": string, "sections": [{"title": string, "items": [{"lead": string, "why_fit": string, "next_step": string, "citations": [int]}]}], ` +
	`"rejected": [{"reason": string, "citations": [int]}]}. Output the JSON object only, no prose.`

// insufficientSummary is the fixed answer for an empty document set.
const insufficientSummary = "Insufficient indexed data to answer this query. Index more sources or broaden the query."

// InsufficientAnswer returns the fixed payload used when retrieval
// produced no canonical documents.
func InsufficientAnswer() *AnswerPayload {
	return &AnswerPayload{
		Summary:  insufficientSummary,
		Sections: []Section{},
		Rejected: []Rejected{},
	}
}

// ComposerConfig holds generation settings for answer composition.
type ComposerConfig struct {
	Temperature float64
	MaxTokens   int
}

func (c *ComposerConfig) applyDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}
}

// Composer builds a grounding prompt over the canonical documents and
// parses the provider's structured output. The provider's declared
// JSON mode is never trusted: output always passes an explicit
// parse-and-validate step, with exactly one repair attempt on failure.
type Composer struct {
	completer llm.Completer
	config    ComposerConfig
	logger    *zap.Logger
}

// NewComposer creates a Composer.
func NewComposer(completer llm.Completer, cfg ComposerConfig, logger *zap.Logger) *Composer {
	cfg.applyDefaults()
	return &Composer{
		completer: completer,
		config:    cfg,
		logger:    logger.Named("composer"),
	}
}

// Compose generates a structured answer for the query grounded in
// docs. An empty document set short-circuits to the fixed
// insufficient-data payload without any provider call. style, when
// non-empty, nudges tone only, never schema.
func (c *Composer) Compose(ctx context.Context, query string, docs []CanonicalDoc, style string) (*AnswerPayload, error) {
	if len(docs) == 0 {
		return InsufficientAnswer(), nil
	}

	system := composeSchemaPrompt
	if style != "" {
		system += "\nStyle guidance: " + style
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Text: system},
		{Role: llm.RoleUser, Text: buildUserBlock(query, docs)},
	}

	raw, err := c.completer.Complete(ctx, messages, llm.Options{
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("composing answer: %w", err)
	}

	payload, err := parsePayload(raw)
	if err == nil {
		return payload, nil
	}

	c.logger.Warn("malformed generation output, attempting repair", zap.Error(err))
	payload, repairErr := c.repair(ctx, raw)
	if repairErr != nil {
		answerRepairs.WithLabelValues("failed").Inc()
		return nil, repairErr
	}
	answerRepairs.WithLabelValues("recovered").Inc()
	return payload, nil
}

// repair issues the single allowed repair call.
func (c *Composer) repair(ctx context.Context, raw string) (*AnswerPayload, error) {
	fixed, err := c.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Text: repairPrompt},
		{Role: llm.RoleUser, Text: raw},
	}, llm.Options{
		Temperature: 0,
		MaxTokens:   c.config.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("repair call: %w", err)
	}

	payload, err := parsePayload(fixed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return payload, nil
}

// buildUserBlock serializes the query and canonical documents for the
// model to ground against.
func buildUserBlock(query string, docs []CanonicalDoc) string {
	var b strings.Builder
	b.WriteString("Query: ")
	b.WriteString(query)
	b.WriteString("\n\nDocuments:\n")
	for _, doc := range docs {
		fmt.Fprintf(&b, "[%d] source=%q", doc.CID, doc.SourceTitle)
		if doc.TopicTitle != "" {
			fmt.Fprintf(&b, " topic=%q", doc.TopicTitle)
		}
		fmt.Fprintf(&b, " author=%q date=%s\n%s\n\n",
			doc.AuthorName, doc.Date.Format("2006-01-02"), doc.Text)
	}
	return b.String()
}

// parsePayload parses generation output into an AnswerPayload,
// tolerating markdown code fences around the JSON.
func parsePayload(raw string) (*AnswerPayload, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var payload AnswerPayload
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	if payload.Summary == "" {
		return nil, fmt.Errorf("payload missing summary")
	}
	if payload.Sections == nil {
		payload.Sections = []Section{}
	}
	if payload.Rejected == nil {
		payload.Rejected = []Rejected{}
	}
	return &payload, nil
}
