package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/types"
)

var (
	caseTitle       string
	caseDescription string
	caseTarget      string
	caseTools       []string
)

// caseCmd is the parent command for case operations
var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Manage investigation cases",
	Long: `Cases are individual OSINT investigations: a target, a set of tools
to run against it, and the synthesized report.

Examples:
  loom case start --title "Acme recon" --target acme.example --tools searxng,sherlock
  loom case list
  loom case status 1a2b3c4d
  loom case abort 1a2b3c4d`,
}

// caseStartCmd opens a case on the server
var caseStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new investigation case",
	RunE:  runCaseStart,
}

var caseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all cases",
	RunE:  runCaseList,
}

var caseStatusCmd = &cobra.Command{
	Use:   "status [case-id]",
	Short: "Show the full state of a case",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseStatus,
}

var caseAbortCmd = &cobra.Command{
	Use:   "abort [case-id]",
	Short: "Abort a running case",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseAbort,
}

func init() {
	caseStartCmd.Flags().StringVar(&caseTitle, "title", "", "Case title (required)")
	caseStartCmd.Flags().StringVar(&caseDescription, "description", "", "Case description")
	caseStartCmd.Flags().StringVar(&caseTarget, "target", "", "Investigation target (required)")
	caseStartCmd.Flags().StringSliceVar(&caseTools, "tools", nil, "Tools to run (comma-separated)")
	_ = caseStartCmd.MarkFlagRequired("title")
	_ = caseStartCmd.MarkFlagRequired("target")

	caseCmd.AddCommand(caseStartCmd)
	caseCmd.AddCommand(caseListCmd)
	caseCmd.AddCommand(caseStatusCmd)
	caseCmd.AddCommand(caseAbortCmd)
}

func runCaseStart(cmd *cobra.Command, args []string) error {
	if len(caseTools) == 0 {
		return fmt.Errorf("at least one tool is required (--tools)")
	}

	spec := types.CaseSpec{
		Title:       caseTitle,
		Description: caseDescription,
		Target:      caseTarget,
		Tools:       caseTools,
	}

	var resp struct {
		CaseID string `json:"case_id"`
		Status string `json:"status"`
	}
	if err := newAPIClient().do(http.MethodPost, "/cases", spec, &resp); err != nil {
		return err
	}

	fmt.Printf("Case %s started (%s)\n", resp.CaseID, resp.Status)
	fmt.Printf("Track progress with: loom case status %s\n", resp.CaseID)
	return nil
}

func runCaseList(cmd *cobra.Command, args []string) error {
	var resp struct {
		Cases []types.CaseSummary `json:"cases"`
	}
	if err := newAPIClient().do(http.MethodGet, "/cases", nil, &resp); err != nil {
		return err
	}

	if len(resp.Cases) == 0 {
		fmt.Println("No cases found.")
		return nil
	}
	for _, c := range resp.Cases {
		fmt.Printf("%s  %-12s  %-20s  %s\n",
			c.ID, c.Status, c.Target, c.Title)
		if len(c.ToolsUsed) > 0 {
			fmt.Printf("          tools: %s\n", strings.Join(c.ToolsUsed, ", "))
		}
	}
	return nil
}

func runCaseStatus(cmd *cobra.Command, args []string) error {
	var c types.Case
	if err := newAPIClient().do(http.MethodGet, "/cases/"+args[0], nil, &c); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runCaseAbort(cmd *cobra.Command, args []string) error {
	var resp struct {
		CaseID string `json:"case_id"`
		Status string `json:"status"`
	}
	if err := newAPIClient().do(http.MethodDelete, "/cases/"+args[0]+"/run", nil, &resp); err != nil {
		return err
	}
	fmt.Printf("Case %s abort requested\n", resp.CaseID)
	return nil
}
