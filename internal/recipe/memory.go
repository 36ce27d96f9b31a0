package recipe

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Compile-time interface checks.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// MemoryStore is a process-local Store used when no database is configured.
type MemoryStore struct {
	detections  *cache.Cache
	suggestions *cache.Cache
}

// NewMemoryStore creates a MemoryStore whose entries live for ttl. A ttl of
// zero keeps entries forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &MemoryStore{
		detections:  cache.New(ttl, 10*time.Minute),
		suggestions: cache.New(ttl, 10*time.Minute),
	}
}

func (m *MemoryStore) GetDetection(ctx context.Context, imageHash string) (*Detection, error) {
	v, ok := m.detections.Get(imageHash)
	if !ok {
		return nil, nil
	}
	d := v.(Detection)
	return &d, nil
}

func (m *MemoryStore) SaveDetection(ctx context.Context, detection *Detection) error {
	m.detections.SetDefault(detection.ImageHash, *detection)
	return nil
}

func (m *MemoryStore) GetSuggestion(ctx context.Context, ingredientsKey string) (*Suggestion, error) {
	v, ok := m.suggestions.Get(ingredientsKey)
	if !ok {
		return nil, nil
	}
	sg := v.(Suggestion)
	return &sg, nil
}

func (m *MemoryStore) SaveSuggestion(ctx context.Context, suggestion *Suggestion) error {
	m.suggestions.SetDefault(suggestion.IngredientsKey, *suggestion)
	return nil
}
