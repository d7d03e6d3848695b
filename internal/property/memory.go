package property

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// MemoryRepository keeps properties in memory. It backs the memory storage
// driver and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Property
}

// NewMemoryRepository builds a repository seeded with the given properties.
func NewMemoryRepository(seed ...Property) *MemoryRepository {
	r := &MemoryRepository{items: make(map[string]Property, len(seed))}
	for _, p := range seed {
		r.items[p.ID] = p
	}
	return r
}

// LoadSeedFile reads a JSON array of properties from path.
func LoadSeedFile(path string) ([]Property, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read property seed file: %w", err)
	}
	var props []Property
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, fmt.Errorf("decode property seed file: %w", err)
	}
	return props, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Save inserts or replaces a property.
func (r *MemoryRepository) Save(p Property) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = p
}
