package rag

import (
	"strings"
	"unicode/utf8"
)

// tokenEstimateDivisor is the characters-per-token heuristic. This is
// an approximation, not a tokenizer count — treat it as a tunable
// constant, not a contract with any provider's accounting.
const tokenEstimateDivisor = 4

// EstimateTokens returns the estimated token cost of a text:
// max(1, ceil(runes/divisor)).
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	cost := (n + tokenEstimateDivisor - 1) / tokenEstimateDivisor
	if cost < 1 {
		return 1
	}
	return cost
}

// Canonicalize turns ranked retrieval results into the canonical
// document set an answer is grounded on.
//
// Results are consumed in ranking order. A result is skipped when its
// record identity was already accepted (dedup by identity key, not
// storage id) or its trimmed text is shorter than minTextLen. The
// first document that would exceed tokenBudget ends iteration — a hard
// stop, not best-fit packing. Cids are assigned 1..N in output order.
func Canonicalize(results []Result, minTextLen, tokenBudget int) []CanonicalDoc {
	seen := make(map[string]struct{}, len(results))
	docs := make([]CanonicalDoc, 0, len(results))
	used := 0

	for _, res := range results {
		msg := res.Message
		key := PointKey(msg.SourceID, msg.TopicID, msg.ID)
		if _, dup := seen[key]; dup {
			continue
		}

		text := strings.TrimSpace(msg.Text)
		if utf8.RuneCountInString(text) < minTextLen {
			continue
		}

		cost := EstimateTokens(text)
		if used+cost > tokenBudget {
			break
		}

		seen[key] = struct{}{}
		used += cost
		docs = append(docs, CanonicalDoc{
			CID:         len(docs) + 1,
			Key:         key,
			SourceID:    msg.SourceID,
			SourceTitle: msg.SourceTitle,
			TopicTitle:  msg.TopicTitle,
			AuthorID:    msg.Author.ID,
			AuthorName:  msg.Author.DisplayName(),
			Date:        msg.Date,
			Text:        text,
			Score:       res.Score,
			Permalink:   msg.Permalink(),
		})
	}

	return docs
}
