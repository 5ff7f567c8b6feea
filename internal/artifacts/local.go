package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/derailed-dash/rickbot/pkg/models"
)

// LocalStore persists artifacts on the local filesystem, one directory
// per owner with a JSON sidecar carrying the mime type.
type LocalStore struct {
	basePath string
}

type sidecar struct {
	MimeType  string    `json:"mime_type"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLocalStore creates a filesystem-backed store rooted at basePath.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// ownerDir maps an owner key to a directory name. Owner keys contain
// colons (provider:id), which are not portable path characters.
func (s *LocalStore) ownerDir(owner string) string {
	return filepath.Join(s.basePath, strings.ReplaceAll(owner, ":", "__"))
}

func (s *LocalStore) Save(ctx context.Context, owner, filename, mimeType string, data []byte) error {
	if owner == "" || !validName(filename) {
		return fmt.Errorf("invalid artifact key %q/%q", owner, filename)
	}
	dir := s.ownerDir(owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create owner directory: %w", err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	meta, err := json.Marshal(sidecar{MimeType: mimeType, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal artifact metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta.json", meta, 0o644); err != nil {
		return fmt.Errorf("write artifact metadata: %w", err)
	}
	return nil
}

func (s *LocalStore) Load(ctx context.Context, owner, filename string) (*models.Artifact, error) {
	if owner == "" || !validName(filename) {
		return nil, ErrNotFound
	}
	path := filepath.Join(s.ownerDir(owner), filename)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	artifact := &models.Artifact{
		Owner:    owner,
		Filename: filename,
		MimeType: "application/octet-stream",
		Data:     data,
	}
	if meta, err := os.ReadFile(path + ".meta.json"); err == nil {
		var side sidecar
		if err := json.Unmarshal(meta, &side); err == nil {
			if side.MimeType != "" {
				artifact.MimeType = side.MimeType
			}
			artifact.UpdatedAt = side.UpdatedAt
		}
	}
	return artifact, nil
}
