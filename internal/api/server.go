// Package api exposes the HTTP surface: case lifecycle, tool listing,
// the gated CRM proposal endpoints, and operational routes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"loom/internal/auditlog"
	"loom/internal/casestore"
	"loom/internal/config"
	"loom/internal/crm"
	"loom/internal/pipeline"
	"loom/internal/tools"
)

const serviceVersion = "2.0.0"

// Server wires the orchestrator and its collaborators into HTTP routes.
type Server struct {
	cfg      *config.Config
	orch     *pipeline.Orchestrator
	store    *casestore.Store
	index    *casestore.Index
	mirror   *casestore.Mirror
	registry *tools.Registry
	audit    *auditlog.Log
	proposer *crm.Proposer
	ledger   *crm.Ledger
	logger   *zap.Logger

	health *healthCache
}

// New builds a Server. proposer and ledger may be nil when no CRM is
// configured; the proposal routes then answer 503.
func New(
	cfg *config.Config,
	orch *pipeline.Orchestrator,
	store *casestore.Store,
	index *casestore.Index,
	mirror *casestore.Mirror,
	registry *tools.Registry,
	audit *auditlog.Log,
	proposer *crm.Proposer,
	ledger *crm.Ledger,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		orch:     orch,
		store:    store,
		index:    index,
		mirror:   mirror,
		registry: registry,
		audit:    audit,
		proposer: proposer,
		ledger:   ledger,
		logger:   logger,
		health:   newHealthCache(30 * time.Second),
	}
}

// Router assembles the route tree. Operational routes stay open; the
// case and proposal routes sit behind the API key when one is set.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/config", s.handleConfig)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Get("/tools", s.handleListTools)

		r.Post("/cases", s.handleStartCase)
		r.Get("/cases", s.handleListCases)
		r.Get("/cases/{caseID}", s.handleGetCase)
		r.Delete("/cases/{caseID}/run", s.handleAbortCase)
		r.Get("/cases/{caseID}/report", s.handleGetReport)
		r.Get("/cases/{caseID}/tools/{tool}", s.handleGetToolResult)

		r.Post("/proposals/{kind}", s.handleCreateProposal)
		r.Get("/proposals", s.handleListProposals)
		r.Post("/proposals/{proposalID}/execute", s.handleExecuteProposal)
		r.Delete("/proposals/{proposalID}", s.handleCancelProposal)
	})

	return r
}

// Run serves HTTP until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// requireAPIKey rejects requests lacking the configured X-API-Key. An
// empty key disables the check.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Server.APIKey != "" && r.Header.Get("X-API-Key") != s.cfg.Server.APIKey {
			respondError(w, http.StatusForbidden, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"service": "Loom OSINT Orchestration Platform",
		"status":  "operational",
		"version": serviceVersion,
	})
}

// handleConfig reports the non-secret configuration for UIs.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"synthesis_provider": s.cfg.Synthesis.Provider,
		"ollama_model":       s.cfg.Synthesis.OllamaModel,
		"mirror_enabled":     s.mirror.Enabled(),
		"crm_enabled":        s.ledger != nil,
		"tools":              s.registry.Names(),
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
