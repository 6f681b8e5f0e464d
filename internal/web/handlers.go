package web

import (
	"io"
	"net/http"
	"strings"
)

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
		UserID string `json:"user_id"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt and user_id are required"})
		return
	}

	result, err := s.Processor.Process(r.Context(), req.Prompt, req.UserID)
	if err != nil {
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}
	s.auditEvent(r.Context(), req.UserID, "prompt_request", result.Status, map[string]any{
		"action_name":  result.ActionName,
		"execution_id": result.ExecutionID,
	}, "")
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		actions, err := s.Store.ListActiveActions(r.Context())
		if err != nil {
			writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, actions)
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		id, err := s.Store.CreateAction(r.Context(), body)
		if err != nil {
			writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
			return
		}
		s.auditEvent(r.Context(), "system", "action_created", "allow", map[string]any{"action_id": id}, "")
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, offset := parsePagination(r)
	page, err := s.Store.ListExecutions(r.Context(), limit, offset)
	if err != nil {
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}
	writeRaw(w, http.StatusOK, page)
}

func (s *Server) handleExecutionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/executions/")
	execID, verb, _ := strings.Cut(rest, "/")
	if execID == "" {
		http.Error(w, "execution id required", http.StatusBadRequest)
		return
	}

	switch {
	case verb == "" && r.Method == http.MethodGet:
		exec, err := s.Store.GetExecution(r.Context(), execID)
		if err != nil {
			writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, exec)
	case verb == "approve" && r.Method == http.MethodPost:
		s.handleApprove(w, r, execID)
	case verb == "cancel" && r.Method == http.MethodPost:
		s.handleCancel(w, r, execID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, execID string) {
	var req struct {
		ApproverID string `json:"approver_id"`
		Notes      string `json:"notes"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ApproverID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "approver_id is required"})
		return
	}

	if err := s.Store.ApproveExecution(r.Context(), execID, req.ApproverID, req.Notes); err != nil {
		s.auditEvent(r.Context(), req.ApproverID, "execution_approve", "deny", map[string]any{"execution_id": execID}, err.Error())
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}
	s.auditEvent(r.Context(), req.ApproverID, "execution_approve", "allow", map[string]any{"execution_id": execID}, req.Notes)

	resp := map[string]string{"id": execID, "status": "approved"}
	if s.Dispatcher != nil {
		workflowID, err := s.Dispatcher.StartDispatch(r.Context(), execID)
		if err != nil {
			writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
			return
		}
		if workflowID != "" {
			resp["workflow_id"] = workflowID
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, execID string) {
	var req struct {
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	if err := decodeBody(w, r, &req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Actor == "" {
		req.Actor = "system"
	}

	if err := s.Store.CancelExecution(r.Context(), execID); err != nil {
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}
	s.auditEvent(r.Context(), req.Actor, "execution_cancel", "allow", map[string]any{"execution_id": execID}, req.Reason)
	writeJSON(w, http.StatusOK, map[string]string{"id": execID, "status": "cancelled"})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, offset := parsePagination(r)
		page, err := s.Store.ListTemplates(r.Context(), limit, offset)
		if err != nil {
			writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
			return
		}
		writeRaw(w, http.StatusOK, page)
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		id, err := s.Store.CreateTemplate(r.Context(), body)
		if err != nil {
			writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		TemplateID string                    `json:"template_id"`
		Overrides  map[string]map[string]any `json:"overrides"`
		Narrate    bool                      `json:"narrate"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TemplateID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "template_id is required"})
		return
	}

	rep, err := s.Reports.Generate(r.Context(), req.TemplateID, req.Overrides, req.Narrate)
	if err != nil {
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page, err := s.Store.ListReportSchedules(r.Context())
		if err != nil {
			writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
			return
		}
		writeRaw(w, http.StatusOK, page)
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		id, err := s.Store.CreateReportSchedule(r.Context(), body)
		if err != nil {
			writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleScheduleByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	scheduleID := strings.TrimPrefix(r.URL.Path, "/v1/schedules/")
	if scheduleID == "" {
		http.Error(w, "schedule id required", http.StatusBadRequest)
		return
	}
	if err := s.Store.DeleteReportSchedule(r.Context(), scheduleID); err != nil {
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": scheduleID, "status": "deleted"})
}

func (s *Server) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, offset := parsePagination(r)
	page, err := s.Store.ListAuditEvents(r.Context(), limit, offset)
	if err != nil {
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}
	writeRaw(w, http.StatusOK, page)
}
