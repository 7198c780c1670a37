package agents

import (
	"context"
	"errors"
	"sync"

	"github.com/felixgeelhaar/crew/pkg/ai"
	"github.com/felixgeelhaar/crew/pkg/domain/feedback"
)

type stubLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (s *stubLLM) GenerateText(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type memWriter struct {
	created map[string]string
	updated map[string]string
	failOn  string
}

func newMemWriter() *memWriter {
	return &memWriter{created: map[string]string{}, updated: map[string]string{}}
}

func (w *memWriter) CreateFile(path, content string) error {
	if path == w.failOn {
		return errors.New("disk full")
	}
	w.created[path] = content
	return nil
}

func (w *memWriter) UpdateFile(path, content string) error {
	if path == w.failOn {
		return errors.New("disk full")
	}
	w.updated[path] = content
	return nil
}

type memTracker struct {
	stages []string
	paths  []string
}

func (m *memTracker) RecordChange(path, content string) error {
	m.paths = append(m.paths, path)
	return nil
}

func (m *memTracker) RecordStageChange(stage, path, content string) error {
	m.stages = append(m.stages, stage)
	m.paths = append(m.paths, path)
	return errors.New("ignored")
}

type memSink struct {
	records []*feedback.AgentFeedback
}

func (s *memSink) CreateFeedback(ctx context.Context, fb *feedback.AgentFeedback) (*feedback.AgentFeedback, error) {
	s.records = append(s.records, fb)
	return fb, nil
}
