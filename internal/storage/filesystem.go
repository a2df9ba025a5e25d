package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// PublicPrefix is the URL path the generated root is served under.
const PublicPrefix = "/generated"

// FileStore owns the generated-media root. Final videos live at the top level
// and every chain run gets its own temp_<session> workspace below it.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if !filepath.IsAbs(basePath) {
		if abs, err := filepath.Abs(basePath); err == nil {
			basePath = abs
		}
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Write persists the provided bytes at the given relative key and returns the
// canonicalized storage key. Keys are cleaned to prevent directory traversal.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := s.Path(cleanKey)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

// Path maps a storage key to its absolute location.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// FinalKey returns a fresh key for a stitched video of the given family.
func (s *FileStore) FinalKey(family string) string {
	if family == "" {
		family = "video"
	}
	return fmt.Sprintf("%s_complete_%s.mp4", family, uuid.NewString())
}

// PublicURL joins the public origin with the served path of key.
func PublicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + PublicPrefix + "/" + strings.TrimLeft(key, "/")
}

// Workspace is the scratch directory of a single chain run.
type Workspace struct {
	store     *FileStore
	SessionID string
	Dir       string
}

// NewWorkspace creates temp_<sessionID> under the root.
func (s *FileStore) NewWorkspace(sessionID string) (*Workspace, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("storage: session id is required")
	}
	dir := s.Path("temp_" + sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create workspace: %w", err)
	}
	return &Workspace{store: s, SessionID: sessionID, Dir: dir}, nil
}

// Key returns the storage key of a file inside the workspace.
func (w *Workspace) Key(name string) string {
	return "temp_" + w.SessionID + "/" + name
}

// Path returns the absolute path of a file inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Write stores data inside the workspace.
func (w *Workspace) Write(ctx context.Context, name string, data []byte) (string, error) {
	key, err := w.store.Write(ctx, w.Key(name), data)
	if err != nil {
		return "", err
	}
	return w.store.Path(key), nil
}

// Remove deletes the workspace recursively.
func (w *Workspace) Remove() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	return os.RemoveAll(w.Dir)
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
