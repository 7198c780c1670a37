package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/crew/pkg/domain"
)

// WorkspaceWriter writes agent artifacts relative to the workspace root.
type WorkspaceWriter struct {
	root string
}

func NewWorkspaceWriter(root string) *WorkspaceWriter {
	return &WorkspaceWriter{root: root}
}

// ResolvePath maps a workspace-relative path to an absolute one and rejects
// absolute paths and traversal out of the root.
func (w *WorkspaceWriter) ResolvePath(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", domain.ErrIO)
	}
	if w.root == "" {
		return "", fmt.Errorf("%w: no workspace root", domain.ErrIO)
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: absolute path not allowed: %s", domain.ErrIO, rel)
	}

	base := filepath.Clean(w.root)
	full := filepath.Clean(filepath.Join(base, filepath.FromSlash(rel)))
	if full == base || !strings.HasPrefix(full, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path escapes workspace: %s", domain.ErrIO, rel)
	}
	return full, nil
}

// CreateFile writes a new file, replacing any existing content.
func (w *WorkspaceWriter) CreateFile(path, content string) error {
	return w.write(path, content)
}

// UpdateFile rewrites an existing file. Missing files are created.
func (w *WorkspaceWriter) UpdateFile(path, content string) error {
	return w.write(path, content)
}

func (w *WorkspaceWriter) write(rel, content string) error {
	full, err := w.ResolvePath(rel)
	if err != nil {
		return err
	}
	if info, err := os.Stat(full); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", domain.ErrIO, rel)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	// #nosec G306 -- workspace artifacts are regular project files
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	return nil
}
