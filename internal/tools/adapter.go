// Package tools holds the OSINT tool adapters and the registry that runs
// a requested subset of them concurrently against a target. Each adapter
// is a thin wrapper over an external collaborator (remote shell,
// container, scan API, search API); the registry is the only caller.
package tools

import (
	"context"

	"loom/internal/types"
)

// Adapter executes one kind of analysis against a target. Implementations
// report routine failures through the returned ToolResult, not the error
// value; anything they do return as an error (or panic) is converted by
// the registry into a synthetic error result.
type Adapter interface {
	// Name is the stable registry key for this adapter.
	Name() string
	// Enabled reports whether the adapter's collaborator is reachable in
	// this deployment. Disabled adapters are skipped by the registry.
	Enabled() bool
	// Description is a one-line summary for status listings.
	Description() string
	// Execute runs the tool against target. options is a tool-specific
	// bag; unknown keys are ignored.
	Execute(ctx context.Context, target string, options map[string]any) (types.ToolResult, error)
}

// Status is the static view of one adapter for listings.
type Status struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// optString pulls a string option with a default.
func optString(options map[string]any, key, fallback string) string {
	if options != nil {
		if v, ok := options[key].(string); ok && v != "" {
			return v
		}
	}
	return fallback
}

// optInt pulls an int option with a default. JSON decoding hands us
// float64, so both numeric shapes are accepted.
func optInt(options map[string]any, key string, fallback int) int {
	if options != nil {
		switch v := options[key].(type) {
		case int:
			return v
		case float64:
			return int(v)
		}
	}
	return fallback
}
