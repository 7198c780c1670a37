// Package dashboard serves a read-only web view of a crew workspace: the
// plan lifecycle, stage progress and each agent's latest feedback.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/pkg/application"
	"github.com/felixgeelhaar/crew/pkg/domain/feedback"
	"github.com/felixgeelhaar/crew/pkg/domain/planning"
)

//go:embed templates/*
var templatesFS embed.FS

// StatusSource reports the persisted plan status.
type StatusSource interface {
	Status() application.Status
}

// FeedbackSource returns the latest record of every agent.
type FeedbackSource interface {
	LatestAll() ([]*feedback.AgentFeedback, error)
}

// Server is the dashboard HTTP server.
type Server struct {
	addr     string
	status   StatusSource
	feedback FeedbackSource
	isCoding planning.CodingClassifier
	logger   *zap.Logger
	server   *http.Server
	tmpl     *template.Template
}

// NewServer creates a dashboard server. isCoding labels stages by phase and
// defaults to the built-in coding set.
func NewServer(addr string, status StatusSource, fb FeedbackSource, isCoding planning.CodingClassifier, logger *zap.Logger) (*Server, error) {
	funcMap := template.FuncMap{
		"formatTime": formatTime,
		"json":       toJSON,
		"sevClass":   severityClass,
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if isCoding == nil {
		isCoding = planning.IsDefaultCodingStep
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		addr:     addr,
		status:   status,
		feedback: fb,
		isCoding: isCoding,
		logger:   logger.Named("dashboard"),
		tmpl:     tmpl,
	}, nil
}

// Handler returns the dashboard routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/status", s.handleAPIStatus)
	mux.HandleFunc("GET /api/feedback", s.handleAPIFeedback)
	return mux
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard server starting", zap.String("addr", s.addr))
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// PageData holds data for template rendering.
type PageData struct {
	Title    string
	Status   application.Status
	Stages   []StageView
	Feedback []FeedbackView
	Stats    DashboardStats
	Error    string
}

// StageView is one stage of the persisted plan.
type StageView struct {
	ID    string
	Phase string
	Done  bool
}

// FeedbackView summarizes an agent's latest record.
type FeedbackView struct {
	Agent     string
	Timestamp time.Time
	Completed int
	Remaining int
	Issues    []feedback.Issue
	Blocking  int
}

// DashboardStats holds summary statistics.
type DashboardStats struct {
	TotalStages    int
	Completed      int
	Pending        int
	Completion     float64
	BlockingIssues int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.status.Status()
	data := PageData{
		Title:  "Dashboard",
		Status: st,
		Stages: buildStageViews(st, s.isCoding),
	}

	records, err := s.feedback.LatestAll()
	if err != nil {
		data.Error = err.Error()
	}
	data.Feedback = buildFeedbackViews(records)
	data.Stats = calculateStats(st, data.Feedback)

	s.render(w, "index.html", data)
}

func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status.Status())
}

func (s *Server) handleAPIFeedback(w http.ResponseWriter, r *http.Request) {
	records, err := s.feedback.LatestAll()
	if err != nil {
		s.logger.Error("read feedback", zap.Error(err))
		http.Error(w, "failed to read feedback", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*feedback.AgentFeedback{}
	}
	writeJSON(w, records)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template error", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func buildStageViews(st application.Status, isCoding planning.CodingClassifier) []StageView {
	views := make([]StageView, 0, len(st.Completed)+len(st.Pending))
	phase := func(id string) string {
		if isCoding(id) {
			return "code"
		}
		return "plan"
	}
	for _, id := range st.Completed {
		views = append(views, StageView{ID: id, Phase: phase(id), Done: true})
	}
	for _, id := range st.Pending {
		views = append(views, StageView{ID: id, Phase: phase(id)})
	}
	return views
}

func buildFeedbackViews(records []*feedback.AgentFeedback) []FeedbackView {
	views := make([]FeedbackView, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		views = append(views, FeedbackView{
			Agent:     rec.AgentName,
			Timestamp: rec.Timestamp,
			Completed: len(rec.CompletedTasks),
			Remaining: len(rec.RemainingWork),
			Issues:    rec.IssuesEncountered,
			Blocking:  len(rec.BlockingIssues()),
		})
	}
	return views
}

func calculateStats(st application.Status, fb []FeedbackView) DashboardStats {
	stats := DashboardStats{
		TotalStages: len(st.Completed) + len(st.Pending),
		Completed:   len(st.Completed),
		Pending:     len(st.Pending),
	}
	if stats.TotalStages > 0 {
		stats.Completion = float64(stats.Completed) / float64(stats.TotalStages) * 100
	}
	for _, v := range fb {
		stats.BlockingIssues += v.Blocking
	}
	return stats
}

// Template helper functions
func severityClass(sev feedback.Severity) string {
	return "sev-" + string(sev)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func toJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
