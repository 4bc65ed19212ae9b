package chat

import (
	"context"
	"errors"
)

var (
	// ErrRateLimited is the back-off signal from the ingestion source.
	// Callers must abandon the current batch of work and rely on being
	// re-triggered later.
	ErrRateLimited = errors.New("ingestion source rate limited")

	// ErrPrivacyRestricted indicates a profile the source will not
	// disclose. It is a "no data" outcome, not a failure.
	ErrPrivacyRestricted = errors.New("profile privacy restricted")

	// ErrProfileNotFound indicates an unknown author id.
	ErrProfileNotFound = errors.New("profile not found")
)

// Window bounds a message fetch from a source.
type Window struct {
	Limit    int
	OffsetID int64
	MinID    int64
	MaxID    int64
}

// Selector identifies what to fetch: a source and, for forums, an
// optional topic (0 = whole source).
type Selector struct {
	SourceID int64
	TopicID  int64
	Window   Window
}

// Source is the upstream message-ingestion boundary. Implementations
// live outside this module; the pipeline only consumes this interface.
//
// EachMessage streams messages lazily in source order and stops on the
// first callback error; the sequence is finite and restartable per
// call. FetchProfile may fail with ErrRateLimited, which callers must
// treat as a circuit-breaker signal.
type Source interface {
	EachMessage(ctx context.Context, sel Selector, fn func(Message) error) error
	FetchProfile(ctx context.Context, authorID int64) (*ContactProfile, error)
}
