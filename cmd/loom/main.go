package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loom/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	serverURL  string
	apiKey     string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Loom - local OSINT orchestration platform",
	Long: `Loom runs OSINT investigations as cases: a requested set of tools
executes concurrently against a target, the results are synthesized into a
unified intelligence report by a local model, and any writes to the CRM go
through an explicit propose-and-confirm gate.

Examples:
  loom serve
  loom case start --title "Acme recon" --target acme.example --tools searxng,sherlock
  loom case status 1a2b3c4d
  loom report 1a2b3c4d`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8787", "Loom server URL (client commands)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for the Loom server")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(caseCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
