package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/derailed-dash/rickbot/internal/agent"
	"github.com/derailed-dash/rickbot/internal/artifacts"
	"github.com/derailed-dash/rickbot/internal/auth"
	"github.com/derailed-dash/rickbot/internal/sessions"
	"github.com/derailed-dash/rickbot/pkg/models"
)

// maxUploadBytes bounds multipart chat uploads.
const maxUploadBytes = 32 << 20

// historyLimit is how many prior messages are handed to the runner.
const historyLimit = 50

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); !ok {
		writeUnauthorized(w)
		return
	}

	all := s.personas.All()
	out := make([]models.PersonaSummary, 0, len(all))
	for _, p := range all {
		out = append(out, p.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	filename := chi.URLParam(r, "filename")
	artifact, err := s.artifacts.Load(r.Context(), user.Key(), filename)
	if errors.Is(err, artifacts.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Artifact not found.")
		return
	}
	if err != nil {
		s.logger.Error("artifact load failed", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to load artifact.")
		return
	}

	w.Header().Set("Content-Type", artifact.MimeType)
	w.WriteHeader(http.StatusOK)
	w.Write(artifact.Data)
}

// chatTurn is the prepared state shared by the sync and streaming chat
// handlers.
type chatTurn struct {
	user        *models.User
	session     *models.Session
	prompt      string
	personality *models.Personality
	agent       *agent.Agent
	request     agent.Request
}

// prepareChat validates the form, resolves the persona and session,
// persists uploads, records the user message, and builds the runner
// request. It writes the error response itself when it returns nil.
func (s *Server) prepareChat(w http.ResponseWriter, r *http.Request) *chatTurn {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "Malformed form body.")
		return nil
	}
	prompt := strings.TrimSpace(r.PostFormValue("prompt"))
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "A prompt is required.")
		return nil
	}

	// Keep the durable user record fresh. Chat proceeds even when the
	// role backend is down.
	if err := s.roles.SyncUser(r.Context(), user); err != nil {
		s.logger.Warn("user sync failed", "user", user.Key(), "error", err)
	}

	personality := s.personas.Personality(r.PostFormValue("personality"))

	session, err := s.resolveSession(r.Context(), user, r.PostFormValue("session_id"))
	if err != nil {
		s.logger.Error("session resolution failed", "user", user.Key(), "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to resolve session.")
		return nil
	}

	uploads, err := s.saveUploads(r, user)
	if err != nil {
		s.logger.Error("attachment save failed", "user", user.Key(), "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to store attachments.")
		return nil
	}

	userMsg := &models.Message{
		Role:        models.MessageRoleUser,
		Text:        prompt,
		Personality: personality.Name,
		Attachments: uploads,
	}
	if err := s.sessions.AppendMessage(r.Context(), s.appID, user.Key(), session.ID, userMsg); err != nil {
		s.logger.Error("append user message failed", "session", session.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to record message.")
		return nil
	}

	history, err := s.sessions.History(r.Context(), s.appID, user.Key(), session.ID, historyLimit)
	if err != nil {
		s.logger.Error("history load failed", "session", session.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to load history.")
		return nil
	}

	a := s.personas.Agent(personality.Name)
	return &chatTurn{
		user:        user,
		session:     session,
		prompt:      prompt,
		personality: personality,
		agent:       a,
		request: agent.Request{
			SessionID:   session.ID,
			UserKey:     user.Key(),
			Prompt:      prompt,
			History:     history,
			Attachments: uploads,
		},
	}
}

// resolveSession returns the named session, creating it under the
// client's id on the first message that carries it. An empty id starts
// a fresh session with a generated id.
func (s *Server) resolveSession(ctx context.Context, user *models.User, sessionID string) (*models.Session, error) {
	if sessionID != "" {
		session, err := s.sessions.Get(ctx, s.appID, user.Key(), sessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, sessions.ErrNotFound) {
			return nil, err
		}
	}
	return s.sessions.Create(ctx, s.appID, user.Key(), sessionID)
}

// saveUploads persists multipart attachments under the calling user
// and returns their metadata.
func (s *Server) saveUploads(r *http.Request, user *models.User) ([]models.Attachment, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var out []models.Attachment
	for _, header := range r.MultipartForm.File["attachments"] {
		file, err := header.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, err
		}

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		if err := s.artifacts.Save(r.Context(), user.Key(), header.Filename, mimeType, data); err != nil {
			return nil, err
		}
		out = append(out, models.Attachment{
			Filename: header.Filename,
			MimeType: mimeType,
			Size:     int64(len(data)),
		})
	}
	return out, nil
}

// chatResponse is the non-streaming chat reply.
type chatResponse struct {
	Response    string              `json:"response"`
	SessionID   string              `json:"session_id"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	turn := s.prepareChat(w, r)
	if turn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), turn.agent.Timeout)
	defer cancel()

	events, err := s.runner.Run(ctx, turn.agent, turn.request)
	if err != nil {
		s.chatFailed(w, turn, "sync", err)
		return
	}

	var reply strings.Builder
	for event := range events {
		switch event.Type {
		case models.RunnerEventText:
			reply.WriteString(event.Text)
		case models.RunnerEventError:
			s.chatFailed(w, turn, "sync", event.Err)
			return
		}
	}

	s.recordReply(r.Context(), turn, reply.String())
	s.metrics.ChatCounter.WithLabelValues(turn.personality.Name, "sync", "ok").Inc()
	writeJSON(w, http.StatusOK, chatResponse{
		Response:    reply.String(),
		SessionID:   turn.session.ID,
		Attachments: turn.request.Attachments,
	})
}

func (s *Server) chatFailed(w http.ResponseWriter, turn *chatTurn, mode string, err error) {
	s.logger.Error("agent run failed",
		"personality", turn.personality.Name,
		"session", turn.session.ID,
		"error", err)
	s.metrics.ChatCounter.WithLabelValues(turn.personality.Name, mode, "error").Inc()
	writeError(w, http.StatusBadGateway, "The agent was unable to respond. Please try again.")
}

// recordReply appends the assistant's reply to the session. History is
// best effort here; the reply has already been delivered.
func (s *Server) recordReply(ctx context.Context, turn *chatTurn, text string) {
	if text == "" {
		return
	}
	msg := &models.Message{
		Role:        models.MessageRoleAssistant,
		Text:        text,
		Personality: turn.personality.Name,
	}
	if err := s.sessions.AppendMessage(ctx, s.appID, turn.user.Key(), turn.session.ID, msg); err != nil {
		s.logger.Warn("append assistant message failed", "session", turn.session.ID, "error", err)
	}
}
