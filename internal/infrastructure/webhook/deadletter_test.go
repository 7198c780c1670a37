package webhook

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDeadLetterStore_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhook-dead-letters.jsonl")
	store := NewDeadLetterStore(path)

	dl := DeadLetter{
		Timestamp:   time.Now(),
		WebhookName: "test",
		URL:         "https://example.com/hook",
		EventType:   "stage.failed",
		Payload:     `{"event_type":"stage.failed"}`,
		Error:       "connection refused",
		Attempts:    3,
	}
	for i := 0; i < 2; i++ {
		if err := store.Append(dl); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].WebhookName != "test" {
		t.Errorf("expected webhook name test, got %s", entries[0].WebhookName)
	}
}

func TestDeadLetterStore_ReadAll_MissingFile(t *testing.T) {
	store := NewDeadLetterStore(filepath.Join(t.TempDir(), "nonexistent.jsonl"))

	entries, err := store.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if entries != nil {
		t.Errorf("expected nil entries, got %v", entries)
	}
}

func TestDeadLetterStore_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dl.jsonl")
	content := "not json\n" + `{"webhook_name":"ok","attempts":1}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	entries, err := NewDeadLetterStore(path).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].WebhookName != "ok" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}
