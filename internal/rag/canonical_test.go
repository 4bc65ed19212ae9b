package rag

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sablelabs/leadlens/internal/chat"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty text still costs one token", "", 1},
		{"short text rounds up", "abc", 1},
		{"exact multiple", "abcd", 1},
		{"one over the boundary", "abcde", 2},
		{"counts runes not bytes", "привет мир", 3}, // 10 runes
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

func result(sourceID, topicID, recordID int64, text string, score float32) Result {
	return Result{
		Message: chat.Message{
			ID:       recordID,
			SourceID: sourceID,
			TopicID:  topicID,
			Text:     text,
			Date:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		Score: score,
	}
}

func TestCanonicalize(t *testing.T) {
	long := strings.Repeat("lead generation discussion ", 4)

	t.Run("dedup and length filter", func(t *testing.T) {
		results := []Result{
			result(1, 0, 10, long, 0.9),
			result(1, 0, 11, long, 0.8),
			result(1, 0, 10, long, 0.7), // duplicate of first
			result(1, 0, 12, "too short", 0.6),
			result(2, 5, 10, long, 0.5),
		}

		docs := Canonicalize(results, 20, 1000)
		require.Len(t, docs, 3)
		assert.Equal(t, "1_10", docs[0].Key)
		assert.Equal(t, "1_11", docs[1].Key)
		assert.Equal(t, "2_5_10", docs[2].Key)
	})

	t.Run("cids are contiguous from one", func(t *testing.T) {
		results := []Result{
			result(1, 0, 1, long, 0.9),
			result(1, 0, 2, long, 0.8),
			result(1, 0, 3, long, 0.7),
		}
		docs := Canonicalize(results, 20, 1000)
		require.Len(t, docs, 3)
		for i, doc := range docs {
			assert.Equal(t, i+1, doc.CID)
		}
	})

	t.Run("budget is a hard stop", func(t *testing.T) {
		// Each text costs 25 tokens (100 runes).
		text := strings.Repeat("x", 100)
		results := []Result{
			result(1, 0, 1, text, 0.9),
			result(1, 0, 2, text, 0.8),
			result(1, 0, 3, text, 0.7),
			// 10 runes, would fit in the leftover budget but must not
			// be admitted once iteration has stopped.
			result(1, 0, 4, strings.Repeat("y", 10), 0.6),
		}

		docs := Canonicalize(results, 5, 60)
		require.Len(t, docs, 2)

		total := 0
		for _, doc := range docs {
			total += EstimateTokens(doc.Text)
		}
		assert.LessOrEqual(t, total, 60)
	})

	t.Run("text is trimmed before filtering and costing", func(t *testing.T) {
		padded := "   " + long + "   "
		docs := Canonicalize([]Result{result(1, 0, 1, padded, 0.9)}, 20, 1000)
		require.Len(t, docs, 1)
		assert.Equal(t, strings.TrimSpace(padded), docs[0].Text)
	})

	t.Run("empty input yields empty set", func(t *testing.T) {
		assert.Empty(t, Canonicalize(nil, 20, 1000))
	})
}
