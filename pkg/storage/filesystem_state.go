package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/crew/pkg/domain/planning"
)

// backupLayout is fixed width so lexicographic order is chronological.
const backupLayout = "2006-01-02T15:04:05.000000000Z07:00"

var backupNamePattern = regexp.MustCompile(`^plan-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{9}Z\.json$`)

// BackupName returns the history file name for a backup taken at t.
func BackupName(t time.Time) string {
	stamp := t.UTC().Format(backupLayout)
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return "plan-" + stamp + ".json"
}

// SavePlanState writes the live state file. It never backs up; callers
// that want a history entry call BackupPlanState first.
func (r *FilesystemRepository) SavePlanState(s *planning.PlanState) error {
	if _, err := r.ensureDir(PlanStateDir); err != nil {
		return err
	}
	path, err := r.ResolvePath(PlanStateDir, PlanStateFile)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan state: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadPlanState returns (nil, nil) when no state file exists and an error
// when the file cannot be parsed.
func (r *FilesystemRepository) LoadPlanState() (*planning.PlanState, error) {
	path, err := r.ResolvePath(PlanStateDir, PlanStateFile)
	if err != nil {
		return nil, err
	}
	return readPlanState(path)
}

func readPlanState(path string) (*planning.PlanState, error) {
	// #nosec G304 -- Path is resolved and validated via ResolvePath
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read plan state: %w", err)
	}

	var s planning.PlanState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan state: %w", err)
	}
	if s.AgentOutputs == nil {
		s.AgentOutputs = make(map[string]string)
	}
	return &s, nil
}

// BackupPlanState copies the live state into history/. It returns "" when
// there is no live state.
func (r *FilesystemRepository) BackupPlanState() (string, error) {
	src, err := r.ResolvePath(PlanStateDir, PlanStateFile)
	if err != nil {
		return "", err
	}
	// #nosec G304 -- Path is resolved and validated via ResolvePath
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read plan state for backup: %w", err)
	}

	dir, err := r.ensureDir(PlanStateDir, HistoryDir)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now()
	for {
		name := BackupName(ts)
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if os.IsExist(err) {
			ts = ts.Add(time.Nanosecond)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create backup: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("failed to write backup: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close backup: %w", err)
		}
		return name, nil
	}
}

// DeletePlanState removes the live state file. A missing file is not an error.
func (r *FilesystemRepository) DeletePlanState() error {
	path, err := r.ResolvePath(PlanStateDir, PlanStateFile)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete plan state: %w", err)
	}
	return nil
}

// ListHistory returns backup file names oldest first.
func (r *FilesystemRepository) ListHistory() ([]string, error) {
	dir, err := r.ResolvePath(PlanStateDir, HistoryDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && backupNamePattern.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadBackup reads one history entry by file name.
func (r *FilesystemRepository) LoadBackup(name string) (*planning.PlanState, error) {
	if !backupNamePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid backup name: %s", name)
	}
	path, err := r.ResolvePath(PlanStateDir, HistoryDir, name)
	if err != nil {
		return nil, err
	}
	s, err := readPlanState(path)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("backup not found: %s", name)
	}
	return s, nil
}
