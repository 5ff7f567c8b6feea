// Package artifacts stores user-scoped files produced or uploaded
// during chats.
package artifacts

import (
	"context"
	"errors"
	"strings"

	"github.com/derailed-dash/rickbot/pkg/models"
)

// ErrNotFound is returned when no artifact exists for the owner and
// filename.
var ErrNotFound = errors.New("artifact not found")

// Store persists artifacts keyed by (owner, filename). Saving an
// existing key overwrites it.
type Store interface {
	Save(ctx context.Context, owner, filename, mimeType string, data []byte) error
	Load(ctx context.Context, owner, filename string) (*models.Artifact, error)
}

// validName rejects filenames that could escape an owner's namespace.
func validName(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\")
}
