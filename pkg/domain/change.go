package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ChangeAction names what happened to a workspace file.
type ChangeAction string

const (
	ChangeCreate ChangeAction = "create"
	ChangeUpdate ChangeAction = "update"
)

// Change is one entry of the workspace change log. Entries are chained by
// hash so a tampered or truncated log can be detected.
type Change struct {
	ID          string       `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	Path        string       `json:"path"`
	Action      ChangeAction `json:"action"`
	Stage       string       `json:"stage,omitempty"`
	Size        int          `json:"size"`
	ContentHash string       `json:"content_hash"`
	PrevHash    string       `json:"prev_hash,omitempty"`
	Hash        string       `json:"hash,omitempty"`
}

// ContentDigest returns the hex sha256 of file content.
func ContentDigest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// CalculateHash generates a deterministic SHA256 hash of the change.
func (c *Change) CalculateHash() string {
	h := sha256.New()
	h.Write([]byte(c.PrevHash))
	h.Write([]byte(c.ID))
	h.Write([]byte(c.Timestamp.Format(time.RFC3339Nano)))
	h.Write([]byte(c.Path))
	h.Write([]byte(c.Action))
	h.Write([]byte(c.Stage))
	h.Write([]byte(c.ContentHash))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChain returns the index of the first entry whose hash or link is
// wrong, or -1 when the chain is intact.
func VerifyChain(changes []Change) int {
	prev := ""
	for i := range changes {
		c := changes[i]
		if c.PrevHash != prev || c.Hash != c.CalculateHash() {
			return i
		}
		prev = c.Hash
	}
	return -1
}
