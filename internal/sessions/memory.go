package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/derailed-dash/rickbot/pkg/models"
)

// maxMessagesPerSession bounds stored history per session. When
// exceeded, the oldest messages are trimmed.
const maxMessagesPerSession = 1000

// MemoryStore provides an in-memory Store implementation for local
// runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	messages map[string][]*models.Message
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*models.Session{},
		messages: map[string][]*models.Message{},
	}
}

func (m *MemoryStore) Create(ctx context.Context, appID, userKey, sessionID string) (*models.Session, error) {
	if appID == "" || userKey == "" {
		return nil, errors.New("app id and user key are required")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[sessionKey(appID, userKey, sessionID)]; ok {
		return cloneSession(existing), nil
	}

	now := time.Now()
	session := &models.Session{
		ID:        sessionID,
		AppID:     appID,
		UserID:    userKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[sessionKey(appID, userKey, session.ID)] = session
	return cloneSession(session), nil
}

func (m *MemoryStore) Get(ctx context.Context, appID, userKey, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionKey(appID, userKey, sessionID)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, appID, userKey, sessionID string, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(appID, userKey, sessionID)
	session, ok := m.sessions[key]
	if !ok {
		return ErrNotFound
	}

	clone := cloneMessage(msg)
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	m.messages[key] = append(m.messages[key], clone)
	session.UpdatedAt = time.Now()

	if len(m.messages[key]) > maxMessagesPerSession {
		excess := len(m.messages[key]) - maxMessagesPerSession
		m.messages[key] = m.messages[key][excess:]
	}
	return nil
}

func (m *MemoryStore) History(ctx context.Context, appID, userKey, sessionID string, limit int) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := sessionKey(appID, userKey, sessionID)
	if _, ok := m.sessions[key]; !ok {
		return nil, ErrNotFound
	}

	messages := m.messages[key]
	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}
	out := make([]*models.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		out = append(out, cloneMessage(msg))
	}
	return out, nil
}

func cloneSession(session *models.Session) *models.Session {
	if session == nil {
		return nil
	}
	clone := *session
	return &clone
}

func cloneMessage(msg *models.Message) *models.Message {
	if msg == nil {
		return nil
	}
	clone := *msg
	if len(msg.Attachments) > 0 {
		clone.Attachments = append([]models.Attachment{}, msg.Attachments...)
	}
	return &clone
}
