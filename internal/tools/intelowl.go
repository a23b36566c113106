package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loom/internal/types"
)

// IntelOwl submits the target to an IntelOwl instance as an analysis job
// and polls the job until its analyzer reports are available.
type IntelOwl struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
}

// NewIntelOwl builds the intelowl adapter. An empty baseURL disables it.
func NewIntelOwl(baseURL, apiKey string) *IntelOwl {
	return &IntelOwl{
		baseURL:      baseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: 15 * time.Second,
	}
}

func (t *IntelOwl) Name() string        { return "intelowl" }
func (t *IntelOwl) Enabled() bool       { return t.baseURL != "" }
func (t *IntelOwl) Description() string { return "Threat intelligence platform" }

// Execute creates an analysis job for the target and polls for reports.
// Option "analyzers" selects analyzers (default all).
func (t *IntelOwl) Execute(ctx context.Context, target string, options map[string]any) (types.ToolResult, error) {
	analyzers := []string{"all"}
	if requested, ok := options["analyzers"].([]any); ok && len(requested) > 0 {
		analyzers = analyzers[:0]
		for _, a := range requested {
			if s, ok := a.(string); ok {
				analyzers = append(analyzers, s)
			}
		}
	}

	payload, err := json.Marshal(map[string]any{
		"observable_name":           target,
		"observable_classification": classifyObservable(target),
		"analyzers_requested":       analyzers,
	})
	if err != nil {
		return types.ToolResult{}, err
	}

	body, err := t.call(ctx, http.MethodPost, "/api/jobs", bytes.NewReader(payload))
	if err != nil {
		return types.ToolResult{}, err
	}

	var created struct {
		JobID json.Number `json:"job_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.JobID == "" {
		return types.ToolResult{}, fmt.Errorf("intelowl job creation gave no job id")
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return types.ToolResult{}, ctx.Err()
		case <-ticker.C:
		}

		body, err = t.call(ctx, http.MethodGet, "/api/jobs/"+created.JobID.String(), nil)
		if err != nil {
			return types.ToolResult{}, err
		}

		var job struct {
			Status          string `json:"status"`
			AnalyzerReports []struct {
				Name   string `json:"name"`
				Status string `json:"status"`
			} `json:"analyzer_reports"`
		}
		if err := json.Unmarshal(body, &job); err != nil {
			return types.ToolResult{}, fmt.Errorf("intelowl job parse failed: %w", err)
		}

		switch job.Status {
		case "reported_without_fails", "reported_with_fails", "failed":
		default:
			continue // still running
		}

		findings := make([]types.Finding, 0, len(job.AnalyzerReports))
		for _, report := range job.AnalyzerReports {
			findings = append(findings, types.Finding{
				Type:    "analyzer_report",
				Value:   report.Name,
				Content: report.Status,
			})
		}
		return successResult(t.Name(), target, findings, string(body)), nil
	}
}

func (t *IntelOwl) call(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Token "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("intelowl request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("intelowl API error: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// classifyObservable guesses the IntelOwl observable class for a target.
func classifyObservable(target string) string {
	switch {
	case strings.Contains(target, "@"):
		return "email"
	case strings.Contains(target, "://"):
		return "url"
	case strings.Count(target, ".") > 0 && strings.Trim(target, "0123456789.") == "":
		return "ip"
	default:
		return "domain"
	}
}
