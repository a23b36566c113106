package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loom/internal/pipeline"
	"loom/internal/types"
)

// handleStartCase opens a case and returns immediately; the pipeline
// runs in the background and clients poll the case for progress.
func (s *Server) handleStartCase(w http.ResponseWriter, r *http.Request) {
	var spec types.CaseSpec
	if err := decodeJSON(r, &spec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid case request: "+err.Error())
		return
	}
	if spec.Title == "" || spec.Target == "" {
		respondError(w, http.StatusBadRequest, "title and target are required")
		return
	}
	if len(spec.Tools) == 0 {
		respondError(w, http.StatusBadRequest, "at least one tool is required")
		return
	}

	caseID, err := s.orch.Start(spec)
	if err != nil {
		s.logger.Error("case start failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to start case")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"case_id": caseID,
		"status":  types.StatusProcessing,
	})
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.index.List()
	if err != nil {
		s.logger.Error("case listing failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list cases")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	c, err := s.orch.Status(caseID)
	if err != nil {
		if pipeline.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "case not found")
			return
		}
		s.logger.Error("case load failed", zap.String("case_id", caseID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load case")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleAbortCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	switch s.orch.Abort(caseID) {
	case pipeline.AbortAccepted:
		respondJSON(w, http.StatusAccepted, map[string]any{
			"case_id": caseID,
			"status":  types.StatusAborted,
		})
	case pipeline.AbortConflict:
		respondError(w, http.StatusConflict, "case already finished")
	default:
		respondError(w, http.StatusNotFound, "case not found")
	}
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	report, err := s.store.LoadReport(caseID)
	if err != nil {
		if pipeline.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "report not found")
			return
		}
		s.logger.Error("report load failed", zap.String("case_id", caseID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"case_id": caseID,
		"report":  report,
	})
}

func (s *Server) handleGetToolResult(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	tool := chi.URLParam(r, "tool")
	result, err := s.store.LoadToolResult(caseID, tool)
	if err != nil {
		if pipeline.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "results for "+tool+" not found")
			return
		}
		s.logger.Error("tool result load failed",
			zap.String("case_id", caseID), zap.String("tool", tool), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load tool results")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"tools": s.registry.Statuses(),
	})
}
