// Package auth resolves bearer tokens to identities.
//
// Verification is passive: every provider path swallows its own
// failures and yields "no identity" rather than an error, so callers
// can treat the result as pure identity resolution. Authorization is
// someone else's job.
package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/derailed-dash/rickbot/pkg/models"
)

const mockTokenPrefix = "mock:"

// Verifier resolves a raw bearer token to a user, or nil when the
// token cannot be verified by any provider.
type Verifier interface {
	Verify(ctx context.Context, token string) *models.User
}

// Config configures the verification chain.
type Config struct {
	// AllowMock enables mock:<id>:<email>:<name> tokens. Development
	// only; with this off, mock tokens are just invalid tokens.
	AllowMock bool
	Google    *GoogleVerifier
	GitHub    *GitHubVerifier
}

// Service tries each configured provider in fixed priority order:
// mock, Google ID token, GitHub opaque token.
type Service struct {
	allowMock bool
	google    *GoogleVerifier
	github    *GitHubVerifier
	logger    *slog.Logger
}

// NewService constructs the verification chain.
func NewService(cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		allowMock: cfg.AllowMock,
		google:    cfg.Google,
		github:    cfg.GitHub,
		logger:    logger.With("component", "auth"),
	}
}

// Verify resolves token to a user, or nil. It never returns an error:
// malformed, expired, and unverifiable tokens all yield nil.
func (s *Service) Verify(ctx context.Context, token string) *models.User {
	token = strings.TrimSpace(token)
	// Some clients serialize a missing token as the string "undefined".
	if token == "" || token == "undefined" {
		return nil
	}

	if strings.HasPrefix(token, mockTokenPrefix) {
		if !s.allowMock {
			return nil
		}
		return parseMockToken(token)
	}

	if s.google != nil {
		if user, err := s.google.Verify(ctx, token); err == nil {
			return user
		} else {
			s.logger.Debug("google verification failed", "error", err)
		}
	}

	if s.github != nil {
		if user, err := s.github.Verify(ctx, token); err == nil {
			return user
		} else {
			s.logger.Debug("github verification failed", "error", err)
		}
	}

	return nil
}

// parseMockToken parses mock:<id>:<email>:<name>. Exactly four
// colon-delimited fields; anything else yields no identity.
func parseMockToken(token string) *models.User {
	parts := strings.Split(token, ":")
	if len(parts) != 4 {
		return nil
	}
	id, email, name := parts[1], parts[2], parts[3]
	if id == "" || email == "" || name == "" {
		return nil
	}
	return &models.User{
		ID:       id,
		Email:    email,
		Name:     name,
		Provider: models.ProviderMock,
	}
}
