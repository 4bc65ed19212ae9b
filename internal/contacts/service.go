package contacts

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sablelabs/leadlens/internal/chat"
	"github.com/sablelabs/leadlens/internal/vecstore"
)

// rebuildScrollLimit bounds the startup profile scroll.
const rebuildScrollLimit = 10000

// Service indexes and queries contact profiles. Profile identity is
// the author id; re-enrichment overwrites in place.
type Service struct {
	store    Store
	embedder Embedder
	known    *KnownSet
	logger   *zap.Logger
}

// NewService creates a contact service.
func NewService(store Store, embedder Embedder, known *KnownSet, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		known:    known,
		logger:   logger.Named("contacts"),
	}
}

// Known returns the shared known-contact set.
func (s *Service) Known() *KnownSet {
	return s.known
}

// Rebuild repopulates the known set from the profile store. Called
// once at process start.
func (s *Service) Rebuild(ctx context.Context) error {
	points, err := s.store.Scroll(ctx, CollectionContacts, rebuildScrollLimit, nil)
	if err != nil {
		return fmt.Errorf("scrolling profiles: %w", err)
	}
	for _, p := range points {
		if id := vecstore.PayloadInt(p.Payload, "author_id"); id != 0 {
			s.known.Add(id)
		}
	}
	s.logger.Info("known contacts rebuilt", zap.Int("count", s.known.Len()))
	return nil
}

// IndexProfile writes a profile to the content store and, when the
// biography is non-empty, a bio embedding to the contact index. The
// author is marked known only after both writes succeed.
func (s *Service) IndexProfile(ctx context.Context, profile *chat.ContactProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("serializing profile %d: %w", profile.ID, err)
	}

	id := uint64(profile.ID)
	content := &vecstore.Point{
		ID:     id,
		Vector: []float32{0},
		Payload: map[string]interface{}{
			"author_id":    profile.ID,
			"handle":       profile.Handle,
			"name":         profile.DisplayName(),
			"profile_json": string(raw),
		},
	}
	if err := s.store.Upsert(ctx, CollectionContacts, []*vecstore.Point{content}); err != nil {
		return fmt.Errorf("writing profile store: %w", err)
	}

	if profile.Bio != "" {
		vector, err := s.embedder.EmbedQuery(ctx, profile.Bio)
		if err != nil {
			return fmt.Errorf("embedding bio: %w", err)
		}
		index := &vecstore.Point{
			ID:     id,
			Vector: vector,
			Payload: map[string]interface{}{
				"author_id": profile.ID,
				"handle":    profile.Handle,
				"name":      profile.DisplayName(),
				"bio":       profile.Bio,
			},
		}
		if err := s.store.Upsert(ctx, CollectionContactIndex, []*vecstore.Point{index}); err != nil {
			return fmt.Errorf("writing contact index: %w", err)
		}
	}

	s.known.Add(profile.ID)
	return nil
}

// Lookup resolves a profile by author id. Returns nil when no profile
// is indexed.
func (s *Service) Lookup(ctx context.Context, authorID int64) (*chat.ContactProfile, error) {
	points, err := s.store.Get(ctx, CollectionContacts, []uint64{uint64(authorID)})
	if err != nil {
		return nil, fmt.Errorf("retrieving profile %d: %w", authorID, err)
	}
	if len(points) == 0 {
		return nil, nil
	}

	raw := vecstore.PayloadString(points[0].Payload, "profile_json")
	var profile chat.ContactProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("corrupt profile %d: %w", authorID, err)
	}
	return &profile, nil
}

// SearchBios runs free-text similarity search over biographies.
func (s *Service) SearchBios(ctx context.Context, query string, topK int) ([]*chat.ContactProfile, error) {
	if topK <= 0 {
		topK = 10
	}
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := s.store.Search(ctx, CollectionContactIndex, vector, uint64(topK), nil)
	if err != nil {
		return nil, fmt.Errorf("searching contact index: %w", err)
	}

	profiles := make([]*chat.ContactProfile, 0, len(hits))
	for _, hit := range hits {
		profile, err := s.Lookup(ctx, vecstore.PayloadInt(hit.Payload, "author_id"))
		if err != nil || profile == nil {
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}
