package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// stagePattern matches agent ids: lowercase alphanumeric with hyphens/underscores.
var stagePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// StageID is a validated pipeline stage (agent) identifier. Stage ids end
// up in file names, so anything outside the pattern is rejected.
type StageID struct {
	value string
}

// NewStageID creates a StageID from a string value.
func NewStageID(value string) (StageID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return StageID{}, fmt.Errorf("stage ID cannot be empty")
	}
	if !stagePattern.MatchString(value) {
		return StageID{}, fmt.Errorf("invalid stage ID format: %q", value)
	}
	return StageID{value: value}, nil
}

// MustStageID creates a StageID or panics if invalid. Use only in tests.
func MustStageID(value string) StageID {
	id, err := NewStageID(value)
	if err != nil {
		panic(err)
	}
	return id
}

func (id StageID) String() string {
	return id.value
}

// IsZero returns true if the StageID is empty.
func (id StageID) IsZero() bool {
	return id.value == ""
}
