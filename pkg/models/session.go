package models

import "time"

// Session is one conversation, identified by the (app, user, session)
// triple. The gateway only holds it by key; history mutation happens
// through the session store as the runner produces output.
type Session struct {
	ID        string    `json:"id"`
	AppID     string    `json:"app_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageRole distinguishes who produced a message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	ID          string       `json:"id"`
	Role        MessageRole  `json:"role"`
	Text        string       `json:"text"`
	Personality string       `json:"personality,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Attachment references an uploaded file stored in the artifact store.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}
