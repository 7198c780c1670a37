package domain

import (
	"testing"
	"time"
)

func TestChangeCalculateHashDeterminism(t *testing.T) {
	change := &Change{
		ID:          "c1",
		Path:        "main.go",
		Action:      ChangeCreate,
		Timestamp:   time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC),
		ContentHash: ContentDigest("package main"),
	}

	first := change.CalculateHash()
	if first != change.CalculateHash() {
		t.Fatalf("expected deterministic hash")
	}

	change.Path = "other.go"
	if first == change.CalculateHash() {
		t.Fatalf("hash should change when path changes")
	}
}

func TestVerifyChain(t *testing.T) {
	var chain []Change
	prev := ""
	for i, p := range []string{"a.go", "b.go", "c.go"} {
		c := Change{
			ID:        string(rune('a' + i)),
			Path:      p,
			Action:    ChangeCreate,
			Timestamp: time.Unix(int64(i), 0).UTC(),
			PrevHash:  prev,
		}
		c.Hash = c.CalculateHash()
		prev = c.Hash
		chain = append(chain, c)
	}

	if idx := VerifyChain(chain); idx != -1 {
		t.Fatalf("expected intact chain, broken at %d", idx)
	}

	chain[1].Path = "tampered.go"
	if idx := VerifyChain(chain); idx != 1 {
		t.Fatalf("expected break at 1, got %d", idx)
	}
}
