package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCitations(t *testing.T) {
	t.Run("drops out-of-range and duplicate citations", func(t *testing.T) {
		p := &AnswerPayload{
			Summary: "summary",
			Sections: []Section{{
				Title: "Leads",
				Items: []Item{{
					Lead:      "alice",
					Citations: []int{3, 0, 7, 3, -1, 1},
				}},
			}},
		}

		cleaned := ValidateCitations(p, 5)
		require.Len(t, cleaned.Sections, 1)
		require.Len(t, cleaned.Sections[0].Items, 1)
		assert.Equal(t, []int{3, 1}, cleaned.Sections[0].Items[0].Citations)
	})

	t.Run("item with no valid citations is discarded", func(t *testing.T) {
		p := &AnswerPayload{
			Summary: "summary",
			Sections: []Section{{
				Title: "Leads",
				Items: []Item{
					{Lead: "ungrounded", Citations: []int{7, 8}},
					{Lead: "grounded", Citations: []int{2}},
				},
			}},
		}

		cleaned := ValidateCitations(p, 5)
		require.Len(t, cleaned.Sections, 1)
		require.Len(t, cleaned.Sections[0].Items, 1)
		assert.Equal(t, "grounded", cleaned.Sections[0].Items[0].Lead)
	})

	t.Run("section emptied by item removal is discarded", func(t *testing.T) {
		p := &AnswerPayload{
			Summary: "summary",
			Sections: []Section{
				{Title: "Empty after cleaning", Items: []Item{{Lead: "x", Citations: []int{9}}}},
				{Title: "Kept", Items: []Item{{Lead: "y", Citations: []int{1}}}},
			},
		}

		cleaned := ValidateCitations(p, 5)
		require.Len(t, cleaned.Sections, 1)
		assert.Equal(t, "Kept", cleaned.Sections[0].Title)
	})

	t.Run("rejected entries follow the same rules", func(t *testing.T) {
		p := &AnswerPayload{
			Summary: "summary",
			Rejected: []Rejected{
				{Reason: "off topic", Citations: []int{6}},
				{Reason: "wrong region", Citations: []int{4, 4, 2}},
			},
		}

		cleaned := ValidateCitations(p, 5)
		require.Len(t, cleaned.Rejected, 1)
		assert.Equal(t, "wrong region", cleaned.Rejected[0].Reason)
		assert.Equal(t, []int{4, 2}, cleaned.Rejected[0].Citations)
	})

	t.Run("summary survives even when everything else is dropped", func(t *testing.T) {
		p := &AnswerPayload{
			Summary:  "nothing grounded",
			Sections: []Section{{Title: "Leads", Items: []Item{{Lead: "x", Citations: []int{99}}}}},
		}

		cleaned := ValidateCitations(p, 3)
		assert.Equal(t, "nothing grounded", cleaned.Summary)
		assert.Empty(t, cleaned.Sections)
	})
}

func TestRender(t *testing.T) {
	payload := &AnswerPayload{
		Summary: "Two candidates found.",
		Sections: []Section{{
			Title: "Strong fits",
			Items: []Item{{
				Lead:      "Alice (@alice)",
				WhyFit:    "asked for exactly this service.",
				NextStep:  "reply in thread.",
				Citations: []int{1, 3},
			}},
		}},
		Rejected: []Rejected{{
			Reason:    "Bob is selling, not buying",
			Citations: []int{2},
		}},
	}

	t.Run("renders all parts in order", func(t *testing.T) {
		out := Render(payload)
		assert.Contains(t, out, "Two candidates found.")
		assert.Contains(t, out, "## Strong fits")
		assert.Contains(t, out, "- Alice (@alice)")
		assert.Contains(t, out, "[1][3]")
		assert.Contains(t, out, "## Not a fit")
		assert.Contains(t, out, "[2]")
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Render(payload), Render(payload))
	})

	t.Run("omits rejected heading when empty", func(t *testing.T) {
		out := Render(&AnswerPayload{Summary: "s"})
		assert.Equal(t, "s", out)
	})
}
