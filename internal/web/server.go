package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"erpai/internal/audit"
	"erpai/internal/engine"
	"erpai/internal/metrics"
	"erpai/internal/report"
)

const maxRequestBody = 1 << 20 // 1 MB

// Store is the database surface the HTTP layer needs.
type Store interface {
	ListActiveActions(ctx context.Context) ([]engine.Action, error)
	CreateAction(ctx context.Context, payload []byte) (string, error)
	GetExecution(ctx context.Context, execID string) (engine.Execution, error)
	ListExecutions(ctx context.Context, limit, offset int) ([]byte, error)
	ApproveExecution(ctx context.Context, execID, approver, notes string) error
	CancelExecution(ctx context.Context, execID string) error
	CreateTemplate(ctx context.Context, payload []byte) (string, error)
	ListTemplates(ctx context.Context, limit, offset int) ([]byte, error)
	CreateReportSchedule(ctx context.Context, payload []byte) (string, error)
	ListReportSchedules(ctx context.Context) ([]byte, error)
	DeleteReportSchedule(ctx context.Context, scheduleID string) error
	ListAuditEvents(ctx context.Context, limit, offset int) ([]byte, error)
}

// PromptProcessor turns a prompt into an execution result.
type PromptProcessor interface {
	Process(ctx context.Context, prompt, userID string) (engine.Result, error)
}

// DispatchStarter runs an approved execution, either inline or through the
// workflow engine.
type DispatchStarter interface {
	StartDispatch(ctx context.Context, executionID string) (string, error)
}

// ReportGenerator runs report templates on demand.
type ReportGenerator interface {
	Generate(ctx context.Context, templateID string, overrides map[string]map[string]any, narrate bool) (*report.Report, error)
}

// LocalStarter dispatches approved executions synchronously in-process. Used
// when no workflow engine is configured.
type LocalStarter struct {
	Dispatcher *engine.Dispatcher
}

func (l *LocalStarter) StartDispatch(ctx context.Context, executionID string) (string, error) {
	_, err := l.Dispatcher.Dispatch(ctx, executionID)
	return "", err
}

type Server struct {
	Mux        *http.ServeMux
	Store      Store
	DBConn     *sql.DB
	Processor  PromptProcessor
	Dispatcher DispatchStarter
	Reports    ReportGenerator
	Audit      *audit.Store
}

// NewServer wires routes onto the server's mux.
func NewServer(s *Server) *Server {
	if s.Mux == nil {
		s.Mux = http.NewServeMux()
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Mux.HandleFunc("/healthz", s.handleHealthz)
	s.Mux.HandleFunc("/readyz", s.handleReadyz)
	s.Mux.Handle("/metrics", metrics.Handler())

	s.Mux.HandleFunc("/v1/requests", s.handleRequests)
	s.Mux.HandleFunc("/v1/actions", s.handleActions)
	s.Mux.HandleFunc("/v1/executions", s.handleExecutions)
	s.Mux.HandleFunc("/v1/executions/", s.handleExecutionByID)
	s.Mux.HandleFunc("/v1/reports/templates", s.handleTemplates)
	s.Mux.HandleFunc("/v1/reports/generate", s.handleGenerateReport)
	s.Mux.HandleFunc("/v1/schedules", s.handleSchedules)
	s.Mux.HandleFunc("/v1/schedules/", s.handleScheduleByID)
	s.Mux.HandleFunc("/v1/audit/events", s.handleAuditEvents)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.DBConn != nil {
		if err := s.DBConn.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) auditEvent(ctx context.Context, actor, action, decision string, ctxData map[string]any, note string) {
	_ = s.Audit.Record(ctx, audit.Event{
		Actor:    actor,
		Action:   action,
		Decision: decision,
		Context:  ctxData,
		Note:     note,
	})
}

// statusForError maps the engine error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, engine.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrSafetyLimit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// parsePagination extracts limit and offset from query parameters.
// Defaults: limit=50, max limit=200, offset>=0.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 200 {
		limit = 200
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(dest)
}
