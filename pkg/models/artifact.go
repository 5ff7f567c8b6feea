package models

import "time"

// Artifact is a user-owned uploaded file. Artifacts are namespaced by
// owner, not by session: saving the same filename for the same owner
// overwrites the previous version.
type Artifact struct {
	Owner     string    `json:"owner"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	Data      []byte    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}
