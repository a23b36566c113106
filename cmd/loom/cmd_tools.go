package main

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"loom/internal/tools"
)

var (
	toolNameStyle = lipgloss.NewStyle().Bold(true).Width(14)
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Width(10)
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Width(10)
	descStyle     = lipgloss.NewStyle().Faint(true)
)

// toolsCmd lists the registered OSINT tools
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List available OSINT tools and their status",
	RunE:  runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
	var resp struct {
		Tools []tools.Status `json:"tools"`
	}
	if err := newAPIClient().do(http.MethodGet, "/tools", nil, &resp); err != nil {
		return err
	}

	for _, t := range resp.Tools {
		state := enabledStyle.Render("enabled")
		if !t.Enabled {
			state = disabledStyle.Render("disabled")
		}
		fmt.Printf("%s %s %s\n",
			toolNameStyle.Render(t.Name),
			state,
			descStyle.Render(t.Description))
	}
	return nil
}
