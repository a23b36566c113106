package tools

import (
	"context"
	"strings"

	"loom/internal/types"
)

// Harvester runs theHarvester in a one-shot container and parses the
// emails and hosts it reports for the target domain.
type Harvester struct {
	image  string
	docker *dockerCLI
}

// NewHarvester builds the theharvester adapter. The adapter disables
// itself when the docker daemon is unreachable.
func NewHarvester(image string) *Harvester {
	return &Harvester{image: image, docker: newDockerCLI()}
}

func (h *Harvester) Name() string        { return "theharvester" }
func (h *Harvester) Enabled() bool       { return h.image != "" && h.docker.available }
func (h *Harvester) Description() string { return "Email and subdomain harvesting" }

// Execute harvests emails and hosts for the target.
// Option "sources" overrides the default search engine list.
func (h *Harvester) Execute(ctx context.Context, target string, options map[string]any) (types.ToolResult, error) {
	sources := optString(options, "sources", "google,bing,duckduckgo")

	output, err := h.docker.Run(ctx, h.image, "-d", target, "-b", sources)
	if err != nil {
		return types.ToolResult{}, err
	}

	return successResult(h.Name(), target, parseHarvesterOutput(output), output), nil
}

// parseHarvesterOutput walks the sectioned report format: a header line
// announces each section, the entries follow one per line.
func parseHarvesterOutput(output string) []types.Finding {
	var findings []types.Finding
	section := ""

	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, "[*] Emails found:"):
			section = "email"
		case strings.Contains(line, "[*] Hosts found:"):
			section = "host"
		case strings.TrimSpace(line) != "" && section != "":
			value := strings.TrimSpace(line)
			if section == "email" && !strings.Contains(value, "@") {
				continue
			}
			findings = append(findings, types.Finding{
				Type:  section,
				Value: value,
			})
		}
	}
	return findings
}
