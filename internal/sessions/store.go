// Package sessions persists chat sessions and their message history.
package sessions

import (
	"context"
	"errors"

	"github.com/derailed-dash/rickbot/pkg/models"
)

// ErrNotFound is returned when a session does not exist for the given
// app, user, and id.
var ErrNotFound = errors.New("session not found")

// Store is the interface for session persistence. Sessions are scoped
// by application and owner; a session id is only meaningful inside
// that scope, so one user can never address another user's session.
type Store interface {
	// Create starts a new session for the owner under sessionID, or a
	// generated id when sessionID is empty. Creating an id that already
	// exists returns the existing session unchanged.
	Create(ctx context.Context, appID, userKey, sessionID string) (*models.Session, error)

	// Get returns the session, or ErrNotFound. It never creates.
	Get(ctx context.Context, appID, userKey, sessionID string) (*models.Session, error)

	// AppendMessage appends msg to the session's history and bumps the
	// session's updated time. Returns ErrNotFound for unknown sessions.
	AppendMessage(ctx context.Context, appID, userKey, sessionID string, msg *models.Message) error

	// History returns the session's messages in append order, newest
	// last. A positive limit returns only the most recent messages.
	History(ctx context.Context, appID, userKey, sessionID string, limit int) ([]*models.Message, error)
}

// sessionKey scopes a session id to its app and owner.
func sessionKey(appID, userKey, sessionID string) string {
	return appID + ":" + userKey + ":" + sessionID
}
