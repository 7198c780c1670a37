package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIO wraps file writer failures (permissions, bad paths).
	ErrIO = errors.New("workspace io error")

	// ErrWorkspaceLocked is matched by LockError.
	ErrWorkspaceLocked = errors.New("workspace is locked by another crew process")
)

// LockError is returned when the plan-state lock is held by someone else.
type LockError struct {
	Path      string
	HolderPID int
}

func (e *LockError) Error() string {
	if e.HolderPID > 0 {
		return fmt.Sprintf("workspace locked: %s held by pid %d; wait for it to finish or remove the lock file", e.Path, e.HolderPID)
	}
	return fmt.Sprintf("workspace locked: %s; wait for it to finish or remove the lock file", e.Path)
}

// Is lets errors.Is(err, ErrWorkspaceLocked) match.
func (e *LockError) Is(target error) bool {
	return target == ErrWorkspaceLocked
}
