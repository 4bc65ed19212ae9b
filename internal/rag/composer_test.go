package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sablelabs/leadlens/internal/llm"
)

// fakeCompleter returns scripted responses in call order.
type fakeCompleter struct {
	responses []string
	errs      []error
	calls     int
	prompts   [][]llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message, _ llm.Options) (string, error) {
	idx := f.calls
	f.calls++
	f.prompts = append(f.prompts, messages)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "", errors.New("unexpected call")
}

const validAnswer = `{"summary":"Found one lead.","sections":[{"title":"Leads","items":[{"lead":"Alice","why_fit":"asked for the service","next_step":"reply","citations":[1]}]}],"rejected":[]}`

func testDocs() []CanonicalDoc {
	return []CanonicalDoc{{
		CID:         1,
		Key:         "1_10",
		SourceTitle: "Freelance Chat",
		AuthorName:  "Alice",
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Text:        "Looking for someone to build a landing page",
	}}
}

func TestComposerCompose(t *testing.T) {
	t.Run("empty documents short-circuit without provider call", func(t *testing.T) {
		fake := &fakeCompleter{}
		c := NewComposer(fake, ComposerConfig{}, zap.NewNop())

		payload, err := c.Compose(context.Background(), "query", nil, "")
		require.NoError(t, err)
		assert.Equal(t, 0, fake.calls)
		assert.Contains(t, payload.Summary, "Insufficient indexed data")
		assert.Empty(t, payload.Sections)
	})

	t.Run("valid output parses on first attempt", func(t *testing.T) {
		fake := &fakeCompleter{responses: []string{validAnswer}}
		c := NewComposer(fake, ComposerConfig{}, zap.NewNop())

		payload, err := c.Compose(context.Background(), "who needs a landing page", testDocs(), "")
		require.NoError(t, err)
		assert.Equal(t, 1, fake.calls)
		assert.Equal(t, "Found one lead.", payload.Summary)
		require.Len(t, payload.Sections, 1)
		assert.Equal(t, []int{1}, payload.Sections[0].Items[0].Citations)
	})

	t.Run("fenced output is tolerated", func(t *testing.T) {
		fake := &fakeCompleter{responses: []string{"```json\n" + validAnswer + "\n```"}}
		c := NewComposer(fake, ComposerConfig{}, zap.NewNop())

		payload, err := c.Compose(context.Background(), "q", testDocs(), "")
		require.NoError(t, err)
		assert.Equal(t, 1, fake.calls)
		assert.Equal(t, "Found one lead.", payload.Summary)
	})

	t.Run("malformed output triggers exactly one repair", func(t *testing.T) {
		fake := &fakeCompleter{responses: []string{"Sure! Here are the leads:", validAnswer}}
		c := NewComposer(fake, ComposerConfig{}, zap.NewNop())

		payload, err := c.Compose(context.Background(), "q", testDocs(), "")
		require.NoError(t, err)
		assert.Equal(t, 2, fake.calls)
		assert.Equal(t, "Found one lead.", payload.Summary)
	})

	t.Run("failed repair returns ErrInvalidJSON", func(t *testing.T) {
		fake := &fakeCompleter{responses: []string{"not json", "still not json"}}
		c := NewComposer(fake, ComposerConfig{}, zap.NewNop())

		_, err := c.Compose(context.Background(), "q", testDocs(), "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidJSON)
		assert.Equal(t, 2, fake.calls, "no second repair attempt")
	})

	t.Run("provider error propagates without repair", func(t *testing.T) {
		boom := errors.New("provider down")
		fake := &fakeCompleter{errs: []error{boom}}
		c := NewComposer(fake, ComposerConfig{}, zap.NewNop())

		_, err := c.Compose(context.Background(), "q", testDocs(), "")
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, fake.calls)
	})

	t.Run("style nudges the system prompt", func(t *testing.T) {
		fake := &fakeCompleter{responses: []string{validAnswer}}
		c := NewComposer(fake, ComposerConfig{}, zap.NewNop())

		_, err := c.Compose(context.Background(), "q", testDocs(), "terse bullet points")
		require.NoError(t, err)
		require.Len(t, fake.prompts, 1)
		assert.Contains(t, fake.prompts[0][0].Text, "terse bullet points")
	})

	t.Run("missing summary counts as malformed", func(t *testing.T) {
		noSummary := `{"sections":[],"rejected":[]}`
		fake := &fakeCompleter{responses: []string{noSummary, validAnswer}}
		c := NewComposer(fake, ComposerConfig{}, zap.NewNop())

		payload, err := c.Compose(context.Background(), "q", testDocs(), "")
		require.NoError(t, err)
		assert.Equal(t, 2, fake.calls)
		assert.Equal(t, "Found one lead.", payload.Summary)
	})
}

func TestExpander(t *testing.T) {
	t.Run("appends expansion to the original query", func(t *testing.T) {
		fake := &fakeCompleter{responses: []string{"landing page website one-pager"}}
		e := NewExpander(fake, zap.NewNop())

		out := e.Expand(context.Background(), "who needs a site")
		assert.Equal(t, "who needs a site\nlanding page website one-pager", out)
	})

	t.Run("provider failure falls back to original query", func(t *testing.T) {
		fake := &fakeCompleter{errs: []error{errors.New("timeout")}}
		e := NewExpander(fake, zap.NewNop())

		assert.Equal(t, "who needs a site", e.Expand(context.Background(), "who needs a site"))
	})

	t.Run("blank expansion falls back to original query", func(t *testing.T) {
		fake := &fakeCompleter{responses: []string{"   "}}
		e := NewExpander(fake, zap.NewNop())

		assert.Equal(t, "q", e.Expand(context.Background(), "q"))
	})
}
