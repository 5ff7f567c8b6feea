package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/derailed-dash/rickbot/pkg/models"
)

const (
	userKeyPrefix = "user:"
	tierKeyPrefix = "tier:"
)

// BadgerStore is a durable role store backed by BadgerDB. Records
// survive restarts, which matters because roles are assigned out of
// band and must not reset when the service redeploys.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerStore wraps an open BadgerDB handle. The caller owns the
// handle's lifecycle.
func NewBadgerStore(db *badger.DB, logger *slog.Logger) *BadgerStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStore{db: db, logger: logger.With("component", "roles")}
}

func userKey(user *models.User) []byte {
	return []byte(userKeyPrefix + user.Key())
}

func tierKey(personality string) []byte {
	return []byte(tierKeyPrefix + personality)
}

// UserRole returns the user's role, standard when absent or on error.
func (s *BadgerStore) UserRole(ctx context.Context, user *models.User) models.Role {
	if user == nil {
		return models.RoleStandard
	}
	record, err := s.getUser(user)
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn("user role lookup failed", "user", user.Key(), "error", err)
		}
		return models.RoleStandard
	}
	return normalizeRole(string(record.Role))
}

// RequiredRole returns the role a persona requires, standard when no
// requirement is configured.
func (s *BadgerStore) RequiredRole(ctx context.Context, personality string) models.Role {
	var raw string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tierKey(personality))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = string(val)
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn("persona tier lookup failed", "personality", personality, "error", err)
		}
		return models.RoleStandard
	}
	return normalizeRole(raw)
}

// SyncUser upserts the user's profile, keeping any assigned role.
func (s *BadgerStore) SyncUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}

	existingRole := models.RoleStandard
	if record, err := s.getUser(user); err == nil {
		existingRole = record.Role
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("load user record: %w", err)
	}

	return s.putUser(syncedRecord(user, existingRole))
}

// SetUserRole assigns role to user, creating the record if needed.
func (s *BadgerStore) SetUserRole(ctx context.Context, user *models.User, role models.Role) error {
	if user == nil {
		return errors.New("nil user")
	}
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}

	record, err := s.getUser(user)
	if errors.Is(err, badger.ErrKeyNotFound) {
		record = syncedRecord(user, role)
	} else if err != nil {
		return fmt.Errorf("load user record: %w", err)
	}
	record.Role = role

	return s.putUser(record)
}

// SetRequiredRole sets the role personality requires.
func (s *BadgerStore) SetRequiredRole(ctx context.Context, personality string, role models.Role) error {
	if personality == "" {
		return errors.New("empty personality")
	}
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(tierKey(personality), []byte(role))
	})
}

func (s *BadgerStore) getUser(user *models.User) (models.UserRecord, error) {
	var record models.UserRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(user))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	return record, err
}

func (s *BadgerStore) putUser(record models.UserRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal user record: %w", err)
	}
	key := []byte(userKeyPrefix + string(record.Provider) + ":" + record.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}
