package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"loom/internal/config"
	"loom/internal/metrics"
	"loom/internal/types"
)

// Registry maps tool names to adapters and fans a requested subset out
// concurrently. Adapters are resolved once at construction; there is no
// runtime registration.
type Registry struct {
	adapters map[string]Adapter
	order    []string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewRegistry builds the production adapter set from configuration.
func NewRegistry(cfg config.ToolsConfig, logger *zap.Logger) *Registry {
	return newRegistry(cfg.Timeout.Std(), logger,
		NewSearxNG(cfg.SearxNGURL),
		NewReconNG(cfg.ReconSSHHost, cfg.ReconSSHUser, cfg.ReconSSHKey),
		NewHarvester(cfg.HarvesterImage),
		NewSherlock(cfg.SherlockImage),
		NewSpiderFoot(cfg.SpiderFootURL, cfg.SpiderFootAPIKey),
		NewIntelOwl(cfg.IntelOwlURL, cfg.IntelOwlAPIKey),
	)
}

// NewRegistryWithAdapters builds a registry over an explicit adapter set.
// Tests and embedders use this to inject fakes.
func NewRegistryWithAdapters(timeout time.Duration, logger *zap.Logger, adapters ...Adapter) *Registry {
	return newRegistry(timeout, logger, adapters...)
}

func newRegistry(timeout time.Duration, logger *zap.Logger, adapters ...Adapter) *Registry {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		adapters: make(map[string]Adapter, len(adapters)),
		timeout:  timeout,
		logger:   logger,
	}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
		r.order = append(r.order, a.Name())
	}
	return r
}

// Statuses reports the static status of every registered adapter, in
// registration order.
func (r *Registry) Statuses() []Status {
	statuses := make([]Status, 0, len(r.order))
	for _, name := range r.order {
		a := r.adapters[name]
		statuses = append(statuses, Status{
			Name:        a.Name(),
			Enabled:     a.Enabled(),
			Description: a.Description(),
		})
	}
	return statuses
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// ExecuteTools runs the named tools concurrently against target and
// returns one result per executed tool, in the caller-requested order
// regardless of completion order. Unknown or disabled names are skipped
// silently. A failing or panicking adapter yields a synthetic error
// result and never disturbs its siblings. Each adapter call is bounded
// by the registry timeout so a misbehaving collaborator cannot wedge the
// caller.
func (r *Registry) ExecuteTools(ctx context.Context, target string, names []string, options map[string]map[string]any) []types.ToolResult {
	type slot struct {
		name    string
		adapter Adapter
	}

	var slots []slot
	for _, name := range names {
		adapter, ok := r.adapters[name]
		if !ok || !adapter.Enabled() {
			r.logger.Warn("skipping unknown or disabled tool", zap.String("tool", name))
			continue
		}
		slots = append(slots, slot{name: name, adapter: adapter})
	}

	results := make([]types.ToolResult, len(slots))
	g, gctx := errgroup.WithContext(ctx)

	for i, s := range slots {
		g.Go(func() error {
			results[i] = r.executeOne(gctx, s.adapter, target, options[s.name])
			return nil
		})
	}

	// Adapters never return errors through the group; Wait only orders
	// the writes to results.
	_ = g.Wait()

	for _, res := range results {
		metrics.ToolExecuted(res.Tool, res.Status)
	}
	return results
}

// executeOne runs a single adapter under the registry deadline,
// converting errors and panics into error results.
func (r *Registry) executeOne(ctx context.Context, adapter Adapter, target string, options map[string]any) (result types.ToolResult) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool adapter panicked",
				zap.String("tool", adapter.Name()),
				zap.Any("panic", rec))
			result = errorResult(adapter.Name(), target, fmt.Sprintf("adapter panic: %v", rec))
		}
	}()

	start := time.Now()
	result, err := adapter.Execute(ctx, target, options)
	if err != nil {
		r.logger.Warn("tool adapter failed",
			zap.String("tool", adapter.Name()),
			zap.String("target", target),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return errorResult(adapter.Name(), target, err.Error())
	}

	r.logger.Debug("tool adapter finished",
		zap.String("tool", adapter.Name()),
		zap.String("status", result.Status),
		zap.Int("findings", len(result.Results)),
		zap.Duration("elapsed", time.Since(start)))
	return result
}

// errorResult builds the synthetic result for a failed adapter.
func errorResult(tool, target, msg string) types.ToolResult {
	return types.ToolResult{
		Tool:      tool,
		Target:    target,
		Status:    types.ResultError,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	}
}

// successResult builds a success result, stamping the timestamp.
func successResult(tool, target string, findings []types.Finding, raw string) types.ToolResult {
	return types.ToolResult{
		Tool:      tool,
		Target:    target,
		Status:    types.ResultSuccess,
		Results:   findings,
		RawOutput: raw,
		Timestamp: time.Now().UTC(),
	}
}
