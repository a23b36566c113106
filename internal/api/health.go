package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// healthCache memoizes the dependency probe so clients polling /health
// cannot hammer the backends.
type healthCache struct {
	ttl time.Duration

	mu      sync.Mutex
	data    map[string]string
	expires time.Time
}

func newHealthCache(ttl time.Duration) *healthCache {
	return &healthCache{ttl: ttl}
}

// probeClient keeps dependency probes on a short leash even when the
// request context carries a longer deadline.
var probeClient = &http.Client{Timeout: 5 * time.Second}

func (h *healthCache) get() (map[string]string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.data == nil || time.Now().After(h.expires) {
		return nil, false
	}
	return h.data, true
}

func (h *healthCache) set(data map[string]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = data
	h.expires = time.Now().Add(h.ttl)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.health.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]string{
		"api":      "ok",
		"ollama":   "unknown",
		"couchdb":  "unknown",
		"auditlog": "unknown",
	}

	status["ollama"] = probeStatus(s.probeOllama(ctx))

	if s.mirror.Enabled() {
		status["couchdb"] = probeStatus(s.mirror.Ping(ctx))
	} else {
		status["couchdb"] = "disabled"
	}

	if s.audit != nil {
		status["auditlog"] = probeStatus(s.audit.Ping(ctx))
	} else {
		status["auditlog"] = "disabled"
	}

	s.health.set(status)
	respondJSON(w, http.StatusOK, status)
}

// probeOllama checks the model server is reachable.
func (s *Server) probeOllama(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Synthesis.OllamaURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := probeClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

func probeStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
