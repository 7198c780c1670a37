package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/felixgeelhaar/crew/pkg/domain"
	"github.com/felixgeelhaar/crew/pkg/domain/feedback"
)

var feedbackNamePattern = regexp.MustCompile(`^feedback-\d{13}\.json$`)

// FeedbackFileName embeds the epoch milliseconds, zero padded so that
// lexicographic order is chronological.
func FeedbackFileName(t time.Time) string {
	return fmt.Sprintf("feedback-%013d.json", t.UnixMilli())
}

// SaveFeedback writes fb as a new file under feedback/<agent>/. A zero
// timestamp is filled from the clock; a name collision moves the
// timestamp forward by a millisecond until the name is free.
func (r *FilesystemRepository) SaveFeedback(fb *feedback.AgentFeedback) error {
	if _, err := domain.NewStageID(fb.AgentName); err != nil {
		return fmt.Errorf("invalid feedback agent name: %w", err)
	}
	dir, err := r.ensureDir(FeedbackDir, fb.AgentName)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if fb.Timestamp.IsZero() {
		fb.Timestamp = r.now()
	}
	fb.Timestamp = fb.Timestamp.Truncate(time.Millisecond)

	for {
		path := filepath.Join(dir, FeedbackFileName(fb.Timestamp))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if os.IsExist(err) {
			fb.Timestamp = fb.Timestamp.Add(time.Millisecond)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to create feedback file: %w", err)
		}

		data, err := json.MarshalIndent(fb, "", "  ")
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to marshal feedback: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write feedback: %w", err)
		}
		return f.Close()
	}
}

// LatestFeedback returns the newest record for agentName, or (nil, nil)
// when there is none. Unreadable files are skipped.
func (r *FilesystemRepository) LatestFeedback(agentName string) (*feedback.AgentFeedback, error) {
	if _, err := domain.NewStageID(agentName); err != nil {
		return nil, fmt.Errorf("invalid feedback agent name: %w", err)
	}
	dir, err := r.ResolvePath(FeedbackDir, agentName)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read feedback directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && feedbackNamePattern.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for _, name := range names {
		// #nosec G304 -- Path is built from a validated directory and a pattern-matched name
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var fb feedback.AgentFeedback
		if err := json.Unmarshal(data, &fb); err != nil {
			continue
		}
		return &fb, nil
	}
	return nil, nil
}

// ListFeedbackAgents returns the agents that have a feedback directory, sorted.
func (r *FilesystemRepository) ListFeedbackAgents() ([]string, error) {
	dir, err := r.ResolvePath(FeedbackDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read feedback directory: %w", err)
	}

	agents := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			agents = append(agents, e.Name())
		}
	}
	sort.Strings(agents)
	return agents, nil
}
