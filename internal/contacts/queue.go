package contacts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sablelabs/leadlens/internal/chat"
	"github.com/sablelabs/leadlens/internal/rag"
)

var _ rag.ContactNotifier = (*Queue)(nil)

// QueueConfig controls enrichment pacing.
type QueueConfig struct {
	// SliceCap bounds how many authors a single trigger may enrich.
	// Remaining authors stay pending for later triggers.
	SliceCap int
	// Interval is the minimum delay between upstream profile fetches.
	Interval time.Duration
}

// ApplyDefaults fills zero-value fields.
func (c *QueueConfig) ApplyDefaults() {
	if c.SliceCap <= 0 {
		c.SliceCap = 50
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
}

// Queue accumulates unknown author ids observed during indexing and
// enriches them in the background, pacing upstream fetches to stay
// under source rate limits.
type Queue struct {
	source  chat.Source
	service *Service
	known   *KnownSet
	limiter *rate.Limiter
	config  QueueConfig
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[int64]struct{}
	wake    chan struct{}
}

// NewQueue creates an enrichment queue. Run must be called for
// observed authors to be processed.
func NewQueue(source chat.Source, service *Service, config QueueConfig, logger *zap.Logger) *Queue {
	config.ApplyDefaults()
	return &Queue{
		source:  source,
		service: service,
		known:   service.Known(),
		limiter: rate.NewLimiter(rate.Every(config.Interval), 1),
		config:  config,
		logger:  logger.Named("enrich"),
		pending: make(map[int64]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Observe records author ids seen during indexing. Known authors are
// ignored; the rest become pending and the worker is woken.
func (q *Queue) Observe(authorIDs []int64) {
	q.mu.Lock()
	added := 0
	for _, id := range authorIDs {
		if id == 0 || q.known.Contains(id) {
			continue
		}
		if _, ok := q.pending[id]; !ok {
			q.pending[id] = struct{}{}
			added++
		}
	}
	q.mu.Unlock()

	if added > 0 {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
}

// Pending reports how many authors await enrichment.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run processes pending authors until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
			q.drain(ctx)
		}
	}
}

// drain enriches one slice of pending authors. A rate-limit error from
// the source abandons the rest of the slice; the untouched ids remain
// pending and are retried on the next trigger.
func (q *Queue) drain(ctx context.Context) {
	slice := q.take(q.config.SliceCap)
	if len(slice) == 0 {
		return
	}

	trigger := uuid.NewString()
	log := q.logger.With(zap.String("trigger", trigger))
	log.Info("enrichment slice started", zap.Int("authors", len(slice)))

	enriched, skipped := 0, 0
	for i, id := range slice {
		if err := q.limiter.Wait(ctx); err != nil {
			q.requeue(slice[i:])
			return
		}

		profile, err := q.source.FetchProfile(ctx, id)
		switch {
		case errors.Is(err, chat.ErrRateLimited):
			// Circuit-break: stop hitting the source, keep the rest
			// for the next trigger.
			q.requeue(slice[i:])
			log.Warn("source rate limit hit, slice abandoned",
				zap.Int("remaining", len(slice)-i))
			return
		case errors.Is(err, chat.ErrPrivacyRestricted):
			// Not marked known so a later pass can retry if the
			// author relaxes their settings.
			skipped++
			continue
		case errors.Is(err, chat.ErrProfileNotFound):
			skipped++
			continue
		case err != nil:
			log.Warn("profile fetch failed", zap.Int64("author_id", id), zap.Error(err))
			skipped++
			continue
		}

		if err := q.service.IndexProfile(ctx, profile); err != nil {
			log.Warn("profile index failed", zap.Int64("author_id", id), zap.Error(err))
			skipped++
			continue
		}
		enriched++
	}

	log.Info("enrichment slice finished",
		zap.Int("enriched", enriched),
		zap.Int("skipped", skipped),
		zap.Int("pending", q.Pending()))
}

// take removes and returns up to n pending ids.
func (q *Queue) take(n int) []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]int64, 0, n)
	for id := range q.pending {
		if len(ids) == n {
			break
		}
		ids = append(ids, id)
		delete(q.pending, id)
	}
	return ids
}

func (q *Queue) requeue(ids []int64) {
	q.mu.Lock()
	for _, id := range ids {
		q.pending[id] = struct{}{}
	}
	q.mu.Unlock()
}
