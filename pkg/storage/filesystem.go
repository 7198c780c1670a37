// Package storage persists crew's working state on the local filesystem,
// under .crew/ in the workspace root.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const CrewDir = ".crew"
const DebugDir = ".crewllm"
const PlanStateDir = "plan-state"
const PlanStateFile = "plan.json"
const HistoryDir = "history"
const LockFile = "plan.lock"
const FeedbackDir = "feedback"
const ChangesFile = "changes.jsonl"
const ConfigFile = "config.yaml"
const LogFile = "crew.log"

// FilesystemRepository owns everything under <root>/.crew.
type FilesystemRepository struct {
	root string
	now  func() time.Time

	// mu serializes backup and feedback file naming.
	mu sync.Mutex
}

// Option configures a FilesystemRepository.
type Option func(*FilesystemRepository)

// WithClock replaces time.Now, used for backup and feedback file names.
func WithClock(now func() time.Time) Option {
	return func(r *FilesystemRepository) { r.now = now }
}

func NewFilesystemRepository(root string, opts ...Option) *FilesystemRepository {
	r := &FilesystemRepository{root: root, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the workspace root directory.
func (r *FilesystemRepository) Root() string {
	return r.root
}

// ResolvePath joins parts below .crew and rejects anything that escapes it.
func (r *FilesystemRepository) ResolvePath(parts ...string) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("filename cannot be empty")
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `/\`) {
			return "", fmt.Errorf("invalid file path: %s", filepath.Join(parts...))
		}
	}

	baseDir := filepath.Join(r.root, CrewDir)
	cleanPath := filepath.Clean(filepath.Join(append([]string{baseDir}, parts...)...))
	if !strings.HasPrefix(cleanPath, baseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid file path: %s", filepath.Join(parts...))
	}
	return cleanPath, nil
}

// Initialize creates the .crew directory.
func (r *FilesystemRepository) Initialize() error {
	path := filepath.Join(r.root, CrewDir)
	// G301: Use 0700 for directories
	if err := os.MkdirAll(path, 0700); err != nil {
		return fmt.Errorf("failed to create .crew directory: %w", err)
	}
	return nil
}

func (r *FilesystemRepository) IsInitialized() bool {
	_, err := os.Stat(filepath.Join(r.root, CrewDir))
	return err == nil
}

func (r *FilesystemRepository) ensureDir(parts ...string) (string, error) {
	dir, err := r.ResolvePath(parts...)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}
