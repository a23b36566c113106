package tools

import (
	"context"
	"strings"

	"loom/internal/types"
)

// Sherlock searches for a username across social platforms by running
// the sherlock image in a one-shot container.
type Sherlock struct {
	image  string
	docker *dockerCLI
}

// NewSherlock builds the sherlock adapter. The adapter disables itself
// when the docker daemon is unreachable.
func NewSherlock(image string) *Sherlock {
	return &Sherlock{image: image, docker: newDockerCLI()}
}

func (s *Sherlock) Name() string        { return "sherlock" }
func (s *Sherlock) Enabled() bool       { return s.image != "" && s.docker.available }
func (s *Sherlock) Description() string { return "Username search across social media" }

// Execute searches platforms for the target username.
func (s *Sherlock) Execute(ctx context.Context, target string, options map[string]any) (types.ToolResult, error) {
	output, err := s.docker.Run(ctx, s.image, target)
	if err != nil {
		return types.ToolResult{}, err
	}

	return successResult(s.Name(), target, parseSherlockOutput(output, target), output), nil
}

// parseSherlockOutput extracts "[+] Platform: URL" hit lines.
func parseSherlockOutput(output, username string) []types.Finding {
	var findings []types.Finding
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "[+]") {
			continue
		}
		rest := strings.TrimSpace(strings.SplitN(line, "[+]", 2)[1])
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			continue
		}
		findings = append(findings, types.Finding{
			Type:     "social_media",
			Platform: strings.TrimSpace(parts[0]),
			URL:      strings.TrimSpace(parts[1]),
			Username: username,
		})
	}
	return findings
}
