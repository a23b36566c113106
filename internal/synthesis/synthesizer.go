package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"loom/internal/types"
)

// maxFindingsPerTool caps how many findings per tool reach the prompt.
const maxFindingsPerTool = 50

const systemPrompt = `You are an expert OSINT analyst. Synthesize the provided results from multiple OSINT tools into a comprehensive, well-structured intelligence report.

The results come from various tools (SearXNG, Recon-ng, TheHarvester, Sherlock, SpiderFoot, IntelOwl).

Format your report in markdown with:
- Executive Summary
- Key Findings (organized by category: Infrastructure, People, Social Media, Threats, etc.)
- Tool-by-Tool Analysis
- Cross-Reference Analysis (correlations between different tool findings)
- Recommendations
- Sources

Be factual, cite the tool that provided each finding, and highlight information gaps.`

// Synthesizer builds the unified-report prompt for a case and hands it
// to a Provider. It is treated as total by the pipeline: any error it
// returns escalates the case, since a case without a report is
// incomplete.
type Synthesizer struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewSynthesizer wires a synthesizer over the given provider.
func NewSynthesizer(provider Provider, timeout time.Duration, logger *zap.Logger) *Synthesizer {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{provider: provider, timeout: timeout, logger: logger}
}

// Synthesize produces the unified report for a case from its full
// ordered tool results. It runs even when every tool failed; the report
// then documents the failure.
func (s *Synthesizer) Synthesize(ctx context.Context, c *types.Case, results []types.ToolResult) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := buildPrompt(c, results)

	start := time.Now()
	report, err := s.provider.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("report synthesis failed: %w", err)
	}

	s.logger.Info("report synthesized",
		zap.String("case_id", c.ID),
		zap.String("provider", s.provider.Name()),
		zap.Int("report_bytes", len(report)),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

// buildPrompt renders the case header and one block per tool result.
func buildPrompt(c *types.Case, results []types.ToolResult) string {
	var blocks []string
	for _, result := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "## %s Results\n", strings.ToUpper(result.Tool))
		fmt.Fprintf(&b, "**Status:** %s\n", result.Status)
		fmt.Fprintf(&b, "**Results Count:** %d\n", len(result.Results))
		if result.Error != "" {
			fmt.Fprintf(&b, "**Error:** %s\n", result.Error)
		}
		b.WriteString("\n### Findings:\n")
		b.WriteString(findingsJSON(result.Results))
		blocks = append(blocks, b.String())
	}

	description := c.Description
	if description == "" {
		description = "N/A"
	}

	return fmt.Sprintf(`Target: %s
Case: %s
Description: %s

Tool Results:
%s

Generate a comprehensive unified OSINT intelligence report.`,
		c.Target, c.Title, description, strings.Join(blocks, "\n\n"))
}

// findingsJSON serializes up to maxFindingsPerTool findings.
func findingsJSON(findings []types.Finding) string {
	if len(findings) > maxFindingsPerTool {
		findings = findings[:maxFindingsPerTool]
	}
	if findings == nil {
		findings = []types.Finding{}
	}
	data, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
