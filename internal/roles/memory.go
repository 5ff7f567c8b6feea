package roles

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/derailed-dash/rickbot/pkg/models"
)

// MemoryStore is an in-memory role store for tests and single-node
// development runs.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]models.UserRecord
	tiers map[string]models.Role
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: map[string]models.UserRecord{},
		tiers: map[string]models.Role{},
	}
}

// UserRole returns the user's role, standard when absent.
func (s *MemoryStore) UserRole(ctx context.Context, user *models.User) models.Role {
	if user == nil {
		return models.RoleStandard
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.users[user.Key()]
	if !ok {
		return models.RoleStandard
	}
	return normalizeRole(string(record.Role))
}

// RequiredRole returns the role a persona requires, standard when no
// requirement is configured.
func (s *MemoryStore) RequiredRole(ctx context.Context, personality string) models.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.tiers[personality]
	if !ok {
		return models.RoleStandard
	}
	return normalizeRole(string(role))
}

// SyncUser upserts the user's profile, keeping any assigned role.
func (s *MemoryStore) SyncUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existingRole := models.RoleStandard
	if record, ok := s.users[user.Key()]; ok {
		existingRole = record.Role
	}
	s.users[user.Key()] = syncedRecord(user, existingRole)
	return nil
}

// SetUserRole assigns role to user, creating the record if needed.
func (s *MemoryStore) SetUserRole(ctx context.Context, user *models.User, role models.Role) error {
	if user == nil {
		return errors.New("nil user")
	}
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.users[user.Key()]
	if !ok {
		record = syncedRecord(user, role)
	}
	record.Role = role
	s.users[user.Key()] = record
	return nil
}

// SetRequiredRole sets the role personality requires.
func (s *MemoryStore) SetRequiredRole(ctx context.Context, personality string, role models.Role) error {
	if personality == "" {
		return errors.New("empty personality")
	}
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tiers[personality] = role
	return nil
}
