package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loom/internal/crm"
)

type upsertPartnerRequest struct {
	crm.PartnerSpec
	CaseID string `json:"case_id"`
}

type createLeadRequest struct {
	crm.LeadSpec
	CaseID string `json:"case_id"`
}

type createProjectRequest struct {
	crm.ProjectSpec
	CaseID string `json:"case_id"`
}

type createTasksRequest struct {
	ProjectID int            `json:"project_id"`
	Tasks     []crm.TaskSpec `json:"tasks"`
	CaseID    string         `json:"case_id"`
}

type scheduleActivityRequest struct {
	crm.ActivitySpec
	CaseID string `json:"case_id"`
}

type createCalendarEventRequest struct {
	crm.EventSpec
	CaseID string `json:"case_id"`
}

type executeProposalRequest struct {
	Confirmed bool `json:"confirmed"`
}

// handleCreateProposal builds a pending proposal of the requested kind.
// Nothing is written to the CRM here; lookups only.
func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	if s.proposer == nil || s.ledger == nil {
		respondError(w, http.StatusServiceUnavailable, "CRM is not configured")
		return
	}

	kind := crm.OperationKind(chi.URLParam(r, "kind"))

	var (
		proposal *crm.Proposal
		err      error
	)
	switch kind {
	case crm.OpUpsertPartner:
		var req upsertPartnerRequest
		if err = decodeJSON(r, &req); err == nil {
			proposal, err = s.proposer.ProposeUpsertPartner(r.Context(), req.PartnerSpec, req.CaseID)
		}
	case crm.OpCreateLead:
		var req createLeadRequest
		if err = decodeJSON(r, &req); err == nil {
			proposal = s.proposer.ProposeCreateLead(req.LeadSpec, req.CaseID)
		}
	case crm.OpCreateProject:
		var req createProjectRequest
		if err = decodeJSON(r, &req); err == nil {
			proposal = s.proposer.ProposeCreateProject(req.ProjectSpec, req.CaseID)
		}
	case crm.OpCreateTasks:
		var req createTasksRequest
		if err = decodeJSON(r, &req); err == nil {
			if len(req.Tasks) == 0 {
				respondError(w, http.StatusBadRequest, "at least one task is required")
				return
			}
			proposal = s.proposer.ProposeCreateTasks(req.ProjectID, req.Tasks, req.CaseID)
		}
	case crm.OpScheduleActivity:
		var req scheduleActivityRequest
		if err = decodeJSON(r, &req); err == nil {
			proposal, err = s.proposer.ProposeScheduleActivity(r.Context(), req.ActivitySpec, req.CaseID)
		}
	case crm.OpCreateCalendarEvent:
		var req createCalendarEventRequest
		if err = decodeJSON(r, &req); err == nil {
			proposal = s.proposer.ProposeCreateCalendarEvent(req.EventSpec, req.CaseID)
		}
	default:
		respondError(w, http.StatusNotFound, "unknown proposal kind: "+string(kind))
		return
	}

	if err != nil {
		s.logger.Error("proposal build failed", zap.String("kind", string(kind)), zap.Error(err))
		respondError(w, http.StatusBadGateway, "failed to build proposal: "+err.Error())
		return
	}

	s.ledger.Propose(proposal)
	respondJSON(w, http.StatusCreated, proposal)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		respondError(w, http.StatusServiceUnavailable, "CRM is not configured")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"proposals": s.ledger.List(),
	})
}

// handleExecuteProposal performs the confirm-and-execute step. The
// confirmation flag travels in the request body, never defaulted.
func (s *Server) handleExecuteProposal(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		respondError(w, http.StatusServiceUnavailable, "CRM is not configured")
		return
	}

	proposalID := chi.URLParam(r, "proposalID")
	var req executeProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid execute request: "+err.Error())
		return
	}

	result, err := s.ledger.ConfirmAndExecute(r.Context(), proposalID, req.Confirmed)
	switch {
	case errors.Is(err, crm.ErrNotConfirmed):
		respondError(w, http.StatusPreconditionFailed, "proposal must be confirmed before execution")
	case errors.Is(err, crm.ErrNotFound):
		respondError(w, http.StatusNotFound, "proposal not found")
	case err != nil:
		s.logger.Error("proposal execution failed", zap.String("proposal_id", proposalID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to execute proposal")
	default:
		respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleCancelProposal(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		respondError(w, http.StatusServiceUnavailable, "CRM is not configured")
		return
	}

	proposalID := chi.URLParam(r, "proposalID")
	if err := s.ledger.Cancel(proposalID); err != nil {
		respondError(w, http.StatusNotFound, "proposal not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"proposal_id": proposalID,
		"status":      "cancelled",
	})
}
