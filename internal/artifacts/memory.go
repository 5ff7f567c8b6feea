package artifacts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/derailed-dash/rickbot/pkg/models"
)

// MemoryStore keeps artifacts in memory, for tests and throwaway runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*models.Artifact
}

// NewMemoryStore creates an empty in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]*models.Artifact{}}
}

func memKey(owner, filename string) string {
	return owner + "/" + filename
}

func (m *MemoryStore) Save(ctx context.Context, owner, filename, mimeType string, data []byte) error {
	if owner == "" || !validName(filename) {
		return fmt.Errorf("invalid artifact key %q/%q", owner, filename)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[memKey(owner, filename)] = &models.Artifact{
		Owner:     owner,
		Filename:  filename,
		MimeType:  mimeType,
		Data:      append([]byte(nil), data...),
		UpdatedAt: time.Now(),
	}
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, owner, filename string) (*models.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	artifact, ok := m.items[memKey(owner, filename)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *artifact
	clone.Data = append([]byte(nil), artifact.Data...)
	return &clone, nil
}
