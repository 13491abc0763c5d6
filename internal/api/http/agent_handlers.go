package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerpilot/ledgerpilot/internal/application/agents"
	"github.com/ledgerpilot/ledgerpilot/internal/application/orchestrator"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/agent"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/execution"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/queue"
)

type submitRequest struct {
	Priority string          `json:"priority,omitempty"`
	Input    json.RawMessage `json:"input"`
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"agents": s.orch.Agents()})
}

func (s *Server) submitExecution(w http.ResponseWriter, r *http.Request) {
	agentType, err := agent.ParseType(chi.URLParam(r, "agentType"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "unknown agent type")
		return
	}

	u := authUserFromContext(r.Context())
	perms, err := s.orch.RequiredPermissions(agentType)
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	if err := s.authSvc.Authorize(u, perms...); err != nil {
		respondError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}

	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	in, err := decodeAgentInput(agentType, req.Input)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	submittedBy := u.Username
	id, err := s.orch.Submit(r.Context(), in, queue.ParsePriority(req.Priority), &submittedBy)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, orchestrator.ErrAgentUnavailable) {
			status = http.StatusConflict
		}
		respondError(w, status, "SUBMIT_FAILED", err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"executionId": id.String()})
}

func decodeAgentInput(t agent.Type, raw json.RawMessage) (agents.Input, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	var in agents.Input
	switch t {
	case agent.TypeDocument:
		in = &agents.DocumentInput{}
	case agent.TypeTax:
		in = &agents.TaxInput{}
	case agent.TypeReconciliation:
		in = &agents.ReconciliationInput{}
	case agent.TypeTaskAssignment:
		in = &agents.AssignmentInput{}
	case agent.TypeNotification:
		in = &agents.NotificationInput{}
	default:
		return nil, agent.ErrUnknownType
	}
	if err := json.Unmarshal(raw, in); err != nil {
		return nil, err
	}
	return in, nil
}

func (s *Server) enableAgent(w http.ResponseWriter, r *http.Request) {
	s.toggleAgent(w, r, true)
}

func (s *Server) disableAgent(w http.ResponseWriter, r *http.Request) {
	s.toggleAgent(w, r, false)
}

func (s *Server) toggleAgent(w http.ResponseWriter, r *http.Request, enabled bool) {
	u := authUserFromContext(r.Context())
	if err := s.authSvc.Authorize(u, "agents:manage"); err != nil {
		respondError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}
	agentType, err := agent.ParseType(chi.URLParam(r, "agentType"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "unknown agent type")
		return
	}
	if err := s.orch.SetAgentEnabled(agentType, enabled); err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"agentType": agentType, "enabled": enabled})
}

func (s *Server) agentMetrics(w http.ResponseWriter, r *http.Request) {
	agentType, err := agent.ParseType(chi.URLParam(r, "agentType"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "unknown agent type")
		return
	}
	respondJSON(w, http.StatusOK, s.orch.Metrics(agentType))
}

func (s *Server) allAgentMetrics(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"metrics": s.orch.AllMetrics()})
}

func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	filter := execution.Filter{Limit: parseLimit(r, 100, 500)}
	if v := r.URL.Query().Get("agentType"); v != "" {
		t, err := agent.ParseType(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "unknown agent type")
			return
		}
		filter.AgentType = &t
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st := execution.Status(v)
		filter.Status = &st
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"executions": s.orch.ListExecutions(filter)})
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "executionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid executionId")
		return
	}
	exec, err := s.orch.GetExecution(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, exec)
}

type escalateRequest struct {
	StaffID string `json:"staffId,omitempty"`
	Reason  string `json:"reason"`
}

func (s *Server) escalateExecution(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "executionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid executionId")
		return
	}
	var req escalateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if err := s.orch.EscalateToHuman(id, req.StaffID, req.Reason); err != nil {
		if errors.Is(err, orchestrator.ErrExecutionNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		respondError(w, http.StatusConflict, "INVALID_STATE", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "escalated"})
}

type reviewRequest struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes,omitempty"`
}

func (s *Server) reviewExecution(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	if err := s.authSvc.Authorize(u, "executions:review"); err != nil {
		respondError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}
	id, err := parseUUIDParam(r, "executionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid executionId")
		return
	}
	var req reviewRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if err := s.orch.CompleteHumanReview(id, u.Username, req.Approved, req.Notes); err != nil {
		if errors.Is(err, orchestrator.ErrExecutionNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		respondError(w, http.StatusConflict, "INVALID_STATE", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reviewed"})
}
