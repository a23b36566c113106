package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/types"
)

type capturingProvider struct {
	system string
	prompt string
	reply  string
	err    error
}

func (p *capturingProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	p.system = system
	p.prompt = prompt
	return p.reply, p.err
}

func (p *capturingProvider) Name() string { return "capturing" }

func TestSynthesizePassesAnalystPromptAndCaseContext(t *testing.T) {
	provider := &capturingProvider{reply: "# Report"}
	s := NewSynthesizer(provider, 0, nil)

	c := &types.Case{
		ID:          "1a2b3c4d",
		Title:       "Acme recon",
		Description: "supplier due diligence",
		Target:      "acme.example",
	}
	results := []types.ToolResult{
		{
			Tool:    "searxng",
			Status:  types.ResultSuccess,
			Results: []types.Finding{{Type: "search_result", Title: "Acme Corp"}},
		},
		{
			Tool:   "sherlock",
			Status: types.ResultError,
			Error:  "docker unavailable",
		},
	}

	report, err := s.Synthesize(context.Background(), c, results)
	require.NoError(t, err)
	assert.Equal(t, "# Report", report)

	assert.Contains(t, provider.system, "expert OSINT analyst")
	assert.Contains(t, provider.system, "Executive Summary")

	assert.Contains(t, provider.prompt, "Target: acme.example")
	assert.Contains(t, provider.prompt, "Case: Acme recon")
	assert.Contains(t, provider.prompt, "Description: supplier due diligence")
	assert.Contains(t, provider.prompt, "## SEARXNG Results")
	assert.Contains(t, provider.prompt, "## SHERLOCK Results")
	assert.Contains(t, provider.prompt, "**Error:** docker unavailable")
	assert.Contains(t, provider.prompt, "Generate a comprehensive unified OSINT intelligence report.")
}

func TestSynthesizeEmptyDescriptionRendersNA(t *testing.T) {
	provider := &capturingProvider{reply: "r"}
	s := NewSynthesizer(provider, 0, nil)

	_, err := s.Synthesize(context.Background(), &types.Case{
		ID: "1a2b3c4d", Title: "t", Target: "x",
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, provider.prompt, "Description: N/A")
}

func TestSynthesizeWrapsProviderErrors(t *testing.T) {
	provider := &capturingProvider{err: errors.New("model not loaded")}
	s := NewSynthesizer(provider, 0, nil)

	_, err := s.Synthesize(context.Background(), &types.Case{ID: "1a2b3c4d"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report synthesis failed")
}

func TestFindingsCappedPerTool(t *testing.T) {
	findings := make([]types.Finding, 0, maxFindingsPerTool+25)
	for i := 0; i < maxFindingsPerTool+25; i++ {
		findings = append(findings, types.Finding{Type: "subdomain", Value: fmt.Sprintf("host%d", i)})
	}

	rendered := findingsJSON(findings)
	assert.Equal(t, maxFindingsPerTool, strings.Count(rendered, `"type"`))
	assert.NotContains(t, rendered, fmt.Sprintf("host%d", maxFindingsPerTool))
}

func TestFindingsJSONNilIsEmptyArray(t *testing.T) {
	assert.Equal(t, "[]", findingsJSON(nil))
}
