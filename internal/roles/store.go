// Package roles maps users to access roles and personas to the role
// they require.
//
// Lookups fail open: a missing record, an unknown value, or a storage
// error all resolve to the standard role, so a broken role backend
// degrades users to the base tier instead of locking them out of it.
package roles

import (
	"context"
	"time"

	"github.com/derailed-dash/rickbot/pkg/models"
)

// Store persists user roles and per-persona role requirements.
type Store interface {
	// UserRole returns the role for a user, models.RoleStandard when
	// no record exists or the lookup fails.
	UserRole(ctx context.Context, user *models.User) models.Role

	// RequiredRole returns the role a persona requires,
	// models.RoleStandard when none is configured.
	RequiredRole(ctx context.Context, personality string) models.Role

	// SyncUser upserts the user's profile record, preserving any role
	// already assigned and stamping the last login time.
	SyncUser(ctx context.Context, user *models.User) error

	// SetUserRole assigns a role to a user, creating the record if
	// needed.
	SetUserRole(ctx context.Context, user *models.User, role models.Role) error

	// SetRequiredRole sets the role a persona requires.
	SetRequiredRole(ctx context.Context, personality string, role models.Role) error
}

// normalizeRole maps stored values to a valid role, defaulting to
// standard for anything unknown.
func normalizeRole(raw string) models.Role {
	role := models.Role(raw)
	if !role.Valid() {
		return models.RoleStandard
	}
	return role
}

// syncedRecord builds the record written on login, carrying forward a
// previously assigned role.
func syncedRecord(user *models.User, existingRole models.Role) models.UserRecord {
	role := existingRole
	if !role.Valid() {
		role = models.RoleStandard
	}
	return models.UserRecord{
		ID:        user.ID,
		Provider:  user.Provider,
		Name:      user.Name,
		Email:     user.Email,
		Role:      role,
		LastLogin: time.Now().UTC(),
	}
}
