package storage

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/crew/pkg/domain"
)

// FileLock is an advisory lock on the plan state: an O_EXCL lock file
// holding "<pid> <unix seconds>", plus a mutex for callers in this process.
// A lock file older than staleAfter is taken over, so long runs call
// Refresh to keep the timestamp current.
type FileLock struct {
	repo       *FilesystemRepository
	staleAfter time.Duration
	pid        int

	mu sync.Mutex

	heldMu sync.Mutex
	held   string
}

// NewFileLock creates a lock for repo. staleAfter <= 0 disables takeover.
func NewFileLock(repo *FilesystemRepository, staleAfter time.Duration) *FileLock {
	return &FileLock{repo: repo, staleAfter: staleAfter, pid: os.Getpid()}
}

// Acquire takes the lock or returns *domain.LockError when another holder
// has it. The returned func releases it.
func (l *FileLock) Acquire() (func() error, error) {
	l.mu.Lock()

	if _, err := l.repo.ensureDir(PlanStateDir); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	path, err := l.repo.ResolvePath(PlanStateDir, LockFile)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			_, werr := f.WriteString(l.stamp())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				l.mu.Unlock()
				return nil, fmt.Errorf("failed to write lock file: %v", firstErr(werr, cerr))
			}
			l.setHeld(path)
			var once sync.Once
			return func() error {
				var rerr error
				once.Do(func() {
					l.setHeld("")
					if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
						rerr = fmt.Errorf("failed to release lock: %w", err)
					}
					l.mu.Unlock()
				})
				return rerr
			}, nil
		}
		if !os.IsExist(err) {
			l.mu.Unlock()
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		holder, since := readLock(path)
		if l.staleAfter > 0 && !since.IsZero() && l.repo.now().Sub(since) > l.staleAfter {
			_ = os.Remove(path)
			continue
		}
		l.mu.Unlock()
		return nil, &domain.LockError{Path: path, HolderPID: holder}
	}

	l.mu.Unlock()
	return nil, &domain.LockError{Path: path}
}

// Refresh rewrites the held lock's timestamp. Without a held lock it does
// nothing.
func (l *FileLock) Refresh() error {
	l.heldMu.Lock()
	defer l.heldMu.Unlock()
	if l.held == "" {
		return nil
	}
	tmp := l.held + ".tmp"
	if err := os.WriteFile(tmp, []byte(l.stamp()), 0600); err != nil {
		return fmt.Errorf("failed to refresh lock: %w", err)
	}
	if err := os.Rename(tmp, l.held); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to refresh lock: %w", err)
	}
	return nil
}

func (l *FileLock) stamp() string {
	return fmt.Sprintf("%d %d\n", l.pid, l.repo.now().Unix())
}

func (l *FileLock) setHeld(path string) {
	l.heldMu.Lock()
	l.held = path
	l.heldMu.Unlock()
}

func readLock(path string) (int, time.Time) {
	// #nosec G304 -- Path is resolved and validated via ResolvePath
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, time.Time{}
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, time.Time{}
	}
	pid, _ := strconv.Atoi(fields[0])
	secs, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return pid, time.Time{}
	}
	return pid, time.Unix(secs, 0)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
