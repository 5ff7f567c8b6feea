// Package rbac gates persona access by user role.
package rbac

import (
	"context"
	"log/slog"
	"strings"

	"github.com/derailed-dash/rickbot/internal/auth"
	"github.com/derailed-dash/rickbot/internal/roles"
	"github.com/derailed-dash/rickbot/pkg/models"
)

// Decision is the outcome of a persona access check.
type Decision struct {
	Allowed      bool
	RequiredRole models.Role
	Personality  string
}

// Guard decides whether a caller may use a persona. Both lookups hit
// the role store on every request; role changes take effect on the
// next call without a restart.
type Guard struct {
	store              roles.Store
	defaultPersonality string
	logger             *slog.Logger
}

// NewGuard builds a guard over the role store. defaultPersonality is
// assumed when a request does not name one.
func NewGuard(store roles.Store, defaultPersonality string, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		store:              store,
		defaultPersonality: defaultPersonality,
		logger:             logger.With("component", "rbac"),
	}
}

// Check resolves the caller's role against the persona's requirement.
// An empty personality falls back to the default. Unauthenticated
// callers and store failures count as standard, so only personas with
// an explicit supporter requirement are ever denied.
func (g *Guard) Check(ctx context.Context, personality string) Decision {
	if personality == "" {
		personality = g.defaultPersonality
	}

	required := g.store.RequiredRole(ctx, strings.ToLower(personality))

	userRole := models.RoleStandard
	if user, ok := auth.UserFromContext(ctx); ok {
		userRole = g.store.UserRole(ctx, user)
	}

	allowed := required != models.RoleSupporter || userRole == models.RoleSupporter
	if !allowed {
		g.logger.Info("persona access denied",
			"personality", personality,
			"required_role", required,
			"user_role", userRole)
	}
	return Decision{
		Allowed:      allowed,
		RequiredRole: required,
		Personality:  personality,
	}
}
