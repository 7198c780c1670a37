package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeEvent is a feedback record that appeared or changed.
type ChangeEvent struct {
	Path       string
	Agent      string
	ChangeType string // "create" or "write"
}

// FeedbackWatcher reports feedback records written below a directory laid
// out as <root>/<agent>/feedback-<millis>.json.
type FeedbackWatcher struct {
	watcher *fsnotify.Watcher
	root    string
	filter  *RecordFilter
	window  time.Duration
	onBatch func([]ChangeEvent)
	logger  *zap.Logger
}

// NewFeedbackWatcher creates root if needed and watches it and every agent
// directory already inside it.
func NewFeedbackWatcher(root string, window time.Duration, onBatch func([]ChangeEvent), logger *zap.Logger) (*FeedbackWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window == 0 {
		window = 500 * time.Millisecond
	}
	// G301: Use 0700 for directories
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("create feedback directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	fw := &FeedbackWatcher{
		watcher: w,
		root:    root,
		filter:  NewRecordFilter(root, nil, []string{"*.tmp"}),
		window:  window,
		onBatch: onBatch,
		logger:  logger,
	}
	if err := fw.addTree(); err != nil {
		_ = w.Close()
		return nil, err
	}
	return fw, nil
}

func (w *FeedbackWatcher) addTree() error {
	if err := w.watcher.Add(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("read %s: %w", w.root, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(w.root, e.Name())
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return nil
}

// Run delivers batches until ctx is cancelled. The underlying watcher is
// closed on return, so Run may be called only once.
func (w *FeedbackWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	batcher := NewBatcher(w.window, func(batch []ChangeEvent) {
		if w.onBatch != nil {
			w.onBatch(batch)
		}
	})
	defer batcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			changeType := opToChangeType(event.Op)
			if changeType == "" {
				continue
			}

			// A new agent directory: watch it and pick up records that
			// landed before the watch was in place.
			if event.Op.Has(fsnotify.Create) && filepath.Dir(event.Name) == w.root {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.watchAgentDir(event.Name, batcher)
					continue
				}
			}

			agent, ok := w.filter.Agent(event.Name)
			if !ok {
				continue
			}
			batcher.Add(ChangeEvent{Path: event.Name, Agent: agent, ChangeType: changeType})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (w *FeedbackWatcher) watchAgentDir(dir string, batcher *Batcher) {
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("cannot watch agent directory", zap.String("dir", dir), zap.Error(err))
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if agent, ok := w.filter.Agent(path); ok {
			batcher.Add(ChangeEvent{Path: path, Agent: agent, ChangeType: "create"})
		}
	}
}

func opToChangeType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	default:
		return ""
	}
}
