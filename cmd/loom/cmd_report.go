package main

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var reportRaw bool

// reportCmd fetches and renders a case report
var reportCmd = &cobra.Command{
	Use:   "report [case-id]",
	Short: "Show the synthesized report for a case",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportRaw, "raw", false, "Print raw markdown without terminal rendering")
}

func runReport(cmd *cobra.Command, args []string) error {
	var resp struct {
		CaseID string `json:"case_id"`
		Report string `json:"report"`
	}
	if err := newAPIClient().do(http.MethodGet, "/cases/"+args[0]+"/report", nil, &resp); err != nil {
		return err
	}

	if reportRaw {
		fmt.Println(resp.Report)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Println(resp.Report)
		return nil
	}

	rendered, err := renderer.Render(resp.Report)
	if err != nil {
		fmt.Println(resp.Report)
		return nil
	}
	fmt.Print(rendered)
	return nil
}
