package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/crew/pkg/domain"
)

// ChangeLog is a hash-chained JSON Lines audit trail of workspace writes.
type ChangeLog struct {
	repo *FilesystemRepository

	mu     sync.Mutex
	loaded bool
	last   string
	seen   map[string]bool
}

func NewChangeLog(repo *FilesystemRepository) *ChangeLog {
	return &ChangeLog{repo: repo, seen: make(map[string]bool)}
}

// RecordChange appends an entry for path. The first entry for a path is a
// create, later ones are updates.
func (c *ChangeLog) RecordChange(path, content string) error {
	return c.RecordStageChange("", path, content)
}

// RecordStageChange is RecordChange tagged with the stage that wrote the file.
func (c *ChangeLog) RecordStageChange(stage, path, content string) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		changes, err := c.load()
		if err != nil {
			return err
		}
		for _, ch := range changes {
			c.seen[ch.Path] = true
			c.last = ch.Hash
		}
		c.loaded = true
	}

	action := domain.ChangeCreate
	if c.seen[path] {
		action = domain.ChangeUpdate
	}
	change := domain.Change{
		ID:          uuid.NewString(),
		Timestamp:   c.repo.now().UTC(),
		Path:        path,
		Action:      action,
		Stage:       stage,
		Size:        len(content),
		ContentHash: domain.ContentDigest(content),
		PrevHash:    c.last,
	}
	change.Hash = change.CalculateHash()

	if err := c.repo.Initialize(); err != nil {
		return err
	}
	logPath, err := c.repo.ResolvePath(ChangesFile)
	if err != nil {
		return err
	}
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	data = append(data, '\n')

	// #nosec G304 -- Path is resolved and validated via ResolvePath
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open changes file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close changes file: %w", cerr)
		}
	}()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write change: %w", err)
	}

	c.seen[path] = true
	c.last = change.Hash
	return nil
}

// Changes returns every recorded change in append order.
func (c *ChangeLog) Changes() ([]domain.Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

func (c *ChangeLog) load() ([]domain.Change, error) {
	path, err := c.repo.ResolvePath(ChangesFile)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- Path is resolved and validated via ResolvePath
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Change{}, nil
		}
		return nil, fmt.Errorf("open changes file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	var changes []domain.Change
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ch domain.Change
		if err := json.Unmarshal(line, &ch); err != nil {
			continue // Skip malformed lines
		}
		changes = append(changes, ch)
	}
	return changes, scanner.Err()
}
