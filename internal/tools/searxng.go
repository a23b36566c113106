package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"loom/internal/types"
)

// SearxNG queries a SearXNG metasearch instance for web results about
// the target.
type SearxNG struct {
	baseURL    string
	httpClient *http.Client
}

// NewSearxNG builds the searxng adapter. An empty baseURL disables it.
func NewSearxNG(baseURL string) *SearxNG {
	return &SearxNG{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *SearxNG) Name() string        { return "searxng" }
func (s *SearxNG) Enabled() bool       { return s.baseURL != "" }
func (s *SearxNG) Description() string { return "Web search via SearXNG" }

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Engine  string `json:"engine"`
	} `json:"results"`
}

// Execute searches for the target and returns the top results.
// Option "num_results" caps the returned findings (default 15).
func (s *SearxNG) Execute(ctx context.Context, target string, options map[string]any) (types.ToolResult, error) {
	numResults := optInt(options, "num_results", 15)

	params := url.Values{
		"q":      {target},
		"format": {"json"},
		"pageno": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return types.ToolResult{}, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return types.ToolResult{}, fmt.Errorf("searxng request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.ToolResult{}, fmt.Errorf("searxng returned status %d", resp.StatusCode)
	}

	var parsed searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return types.ToolResult{}, fmt.Errorf("searxng response parse failed: %w", err)
	}

	findings := make([]types.Finding, 0, numResults)
	for _, item := range parsed.Results {
		if len(findings) >= numResults {
			break
		}
		findings = append(findings, types.Finding{
			Type:    "search_result",
			Title:   item.Title,
			URL:     item.URL,
			Content: item.Content,
			Engine:  item.Engine,
		})
	}

	return successResult(s.Name(), target, findings, ""), nil
}
