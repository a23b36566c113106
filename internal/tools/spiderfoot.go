package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"loom/internal/types"
)

// SpiderFoot starts a scan on a SpiderFoot instance and polls until the
// API hands back results or the registry deadline trips.
type SpiderFoot struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
}

// NewSpiderFoot builds the spiderfoot adapter. An empty baseURL disables it.
func NewSpiderFoot(baseURL, apiKey string) *SpiderFoot {
	return &SpiderFoot{
		baseURL:      baseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: 10 * time.Second,
	}
}

func (s *SpiderFoot) Name() string        { return "spiderfoot" }
func (s *SpiderFoot) Enabled() bool       { return s.baseURL != "" }
func (s *SpiderFoot) Description() string { return "OSINT automation framework" }

// Execute starts a scan and polls for its results.
// Option "modules" selects the module list (default "all").
func (s *SpiderFoot) Execute(ctx context.Context, target string, options map[string]any) (types.ToolResult, error) {
	modules := optString(options, "modules", "all")

	form := url.Values{
		"scanname":   {fmt.Sprintf("loom_%s_%d", target, time.Now().Unix())},
		"scantarget": {target},
		"modulelist": {modules},
		"typelist":   {"DOMAIN_NAME,IP_ADDRESS,EMAILADDR"},
	}

	body, err := s.call(ctx, http.MethodPost, "/api?func=scanstart", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return types.ToolResult{}, err
	}

	var started struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &started); err != nil || started.ID == "" {
		return types.ToolResult{}, fmt.Errorf("spiderfoot scanstart gave no scan id")
	}

	// The scan API has no completion callback; poll until results appear.
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return types.ToolResult{}, ctx.Err()
		case <-ticker.C:
		}

		body, err = s.call(ctx, http.MethodGet, "/api?func=scanresults&id="+url.QueryEscape(started.ID), nil, "")
		if err != nil {
			return types.ToolResult{}, err
		}

		var rows []map[string]any
		if err := json.Unmarshal(body, &rows); err != nil {
			continue // scan still spinning up
		}
		if len(rows) == 0 {
			continue
		}

		findings := make([]types.Finding, 0, len(rows))
		for _, row := range rows {
			findings = append(findings, types.Finding{
				Type:  asString(row["type"], "scan_event"),
				Value: asString(row["data"], ""),
			})
		}
		return successResult(s.Name(), target, findings, string(body)), nil
	}
}

func (s *SpiderFoot) call(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spiderfoot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spiderfoot API error: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func asString(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
