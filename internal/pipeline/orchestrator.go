// Package pipeline drives a case through its stages: execute the
// requested tools concurrently, persist every result, synthesize the
// unified report, and record the terminal transition. Cases run
// asynchronously in their own goroutine; cancellation is cooperative and
// observed at stage boundaries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loom/internal/casestore"
	"loom/internal/metrics"
	"loom/internal/types"
)

// CaseStore is the authoritative persistence surface the pipeline
// requires. *casestore.Store satisfies it.
type CaseStore interface {
	SaveCase(c *types.Case) error
	LoadCase(caseID string) (*types.Case, error)
	SaveToolResult(caseID string, result types.ToolResult) error
	SaveReport(caseID, report string) error
}

// ToolRunner executes a set of tools against a target. *tools.Registry
// satisfies it.
type ToolRunner interface {
	ExecuteTools(ctx context.Context, target string, names []string, options map[string]map[string]any) []types.ToolResult
}

// Synthesizer produces the unified report. *synthesis.Synthesizer
// satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, c *types.Case, results []types.ToolResult) (string, error)
}

// Mirrorer pushes final case metadata to the secondary store.
// *casestore.Mirror satisfies it.
type Mirrorer interface {
	Push(ctx context.Context, c *types.Case) error
}

// Auditor appends activity records. *auditlog.Log satisfies it.
type Auditor interface {
	Append(ctx context.Context, caseID, tool, status, step string, details map[string]any)
}

// AbortOutcome is the result of an abort request.
type AbortOutcome int

const (
	// AbortAccepted means cancellation was signalled to a running case.
	AbortAccepted AbortOutcome = iota
	// AbortNotFound means no such case exists (or none is running and the
	// persisted state is not terminal).
	AbortNotFound
	// AbortConflict means the case already reached a terminal status.
	AbortConflict
)

// loomTool labels pipeline-level (not per-tool) audit records.
const loomTool = "loom"

// runningCase is the in-flight handle for one active case. It exists
// only while the case runs and is removed unconditionally when the run
// goroutine exits, whatever the outcome.
type runningCase struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator owns the case-id to running-case map and the staged run
// body. The map is the only process-wide mutable state here; the mutex
// covers insert and remove, never the long-running body.
type Orchestrator struct {
	store  CaseStore
	tools  ToolRunner
	synth  Synthesizer
	mirror Mirrorer
	audit  Auditor
	logger *zap.Logger

	mu      sync.Mutex
	running map[string]*runningCase
}

// New wires an orchestrator.
func New(store CaseStore, tools ToolRunner, synth Synthesizer, mirror Mirrorer, audit Auditor, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:   store,
		tools:   tools,
		synth:   synth,
		mirror:  mirror,
		audit:   audit,
		logger:  logger,
		running: make(map[string]*runningCase),
	}
}

// Start allocates a case, persists its initial metadata, registers the
// running handle, and launches the asynchronous run body. It returns as
// soon as the initial state is durable; callers poll Status for
// progress. Validation of the spec is the transport boundary's job.
func (o *Orchestrator) Start(spec types.CaseSpec) (string, error) {
	caseID := uuid.NewString()[:8]

	c := &types.Case{
		ID:             caseID,
		Title:          spec.Title,
		Description:    spec.Description,
		Target:         spec.Target,
		ToolsRequested: spec.Tools,
		ToolOptions:    spec.ToolOptions,
		Status:         types.StatusProcessing,
		CreatedAt:      time.Now().UTC(),
	}

	if err := o.store.SaveCase(c); err != nil {
		return "", fmt.Errorf("failed to persist new case: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	handle := &runningCase{cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	o.running[caseID] = handle
	o.mu.Unlock()

	metrics.CaseStarted()
	o.audit.Append(ctx, caseID, loomTool, "started", "case_created", map[string]any{
		"title":  c.Title,
		"target": c.Target,
		"tools":  c.ToolsRequested,
	})
	o.logger.Info("case started",
		zap.String("case_id", caseID),
		zap.String("target", c.Target),
		zap.Strings("tools", c.ToolsRequested))

	go o.run(ctx, handle, c)
	return caseID, nil
}

// Abort signals cooperative cancellation to a running case. When no
// handle is registered, the persisted status decides the answer: a
// terminal case is a conflict, anything else is not found.
func (o *Orchestrator) Abort(caseID string) AbortOutcome {
	o.mu.Lock()
	handle, ok := o.running[caseID]
	o.mu.Unlock()

	if ok {
		o.logger.Info("case abort requested", zap.String("case_id", caseID))
		handle.cancel()
		return AbortAccepted
	}

	c, err := o.store.LoadCase(caseID)
	if err != nil {
		return AbortNotFound
	}
	if c.Status.Terminal() {
		return AbortConflict
	}
	// Persisted as active but nothing is running: a crash or cleanup bug
	// left the case behind. Surface it as not found rather than pretend
	// the signal went anywhere.
	o.logger.Warn("abort for non-running case in active state",
		zap.String("case_id", caseID),
		zap.String("status", string(c.Status)))
	return AbortNotFound
}

// Status reads the persisted case. It has no side effects.
func (o *Orchestrator) Status(caseID string) (*types.Case, error) {
	return o.store.LoadCase(caseID)
}

// ActiveCases reports how many cases are currently running.
func (o *Orchestrator) ActiveCases() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.running)
}

// Shutdown waits for all running cases to finish, up to ctx's deadline.
// It does not cancel them; callers wanting a hard stop abort first.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	handles := make([]*runningCase, 0, len(o.running))
	for _, h := range o.running {
		handles = append(handles, h)
	}
	o.mu.Unlock()

	for _, h := range handles {
		select {
		case <-h.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// run is the asynchronous pipeline body. Every exit path funnels through
// the deferred cleanup, which removes the running handle exactly once
// and records the terminal metrics.
func (o *Orchestrator) run(ctx context.Context, handle *runningCase, c *types.Case) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("case pipeline panicked",
				zap.String("case_id", c.ID),
				zap.Any("panic", rec))
			o.failCase(c, fmt.Sprintf("pipeline panic: %v", rec))
		}

		o.mu.Lock()
		delete(o.running, c.ID)
		o.mu.Unlock()

		handle.cancel()
		close(handle.done)
		metrics.CaseFinished(string(c.Status), time.Since(start))
	}()

	if err := o.runStages(ctx, c); err != nil {
		if errors.Is(err, context.Canceled) {
			o.abortCase(c)
			return
		}
		o.failCase(c, err.Error())
	}
}

// runStages executes the sequential stages. A context.Canceled return
// means the case was aborted, not that it failed.
func (o *Orchestrator) runStages(ctx context.Context, c *types.Case) error {
	// Stage: tool execution. Per-tool failures are isolated inside the
	// runner; only cancellation stops the stage.
	o.audit.Append(ctx, c.ID, loomTool, "running", "executing_tools", map[string]any{
		"tools": c.ToolsRequested,
	})

	results := o.tools.ExecuteTools(ctx, c.Target, c.ToolsRequested, c.ToolOptions)
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, result := range results {
		if err := o.store.SaveToolResult(c.ID, result); err != nil {
			return err
		}
		o.audit.Append(ctx, c.ID, result.Tool, result.Status, "tool_completed", map[string]any{
			"results_count": len(result.Results),
		})
	}

	c.ToolResults = results
	c.Status = types.StatusSynthesizing
	if err := o.store.SaveCase(c); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Stage: synthesis. Runs even when every tool failed so the case
	// always ends with a report documenting what happened.
	o.audit.Append(ctx, c.ID, loomTool, "running", "synthesizing_report", nil)

	report, err := o.synth.Synthesize(ctx, c, results)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if err := o.store.SaveReport(c.ID, report); err != nil {
		return err
	}

	now := time.Now().UTC()
	c.Report = report
	c.Status = types.StatusCompleted
	c.CompletedAt = &now
	if err := o.store.SaveCase(c); err != nil {
		return err
	}

	// Stage: best-effort mirror. Detached from the case context so a
	// late abort signal cannot strand a completed case's mirror write.
	mirrorCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if err := o.mirror.Push(mirrorCtx, c); err != nil {
		o.logger.Warn("case mirror failed", zap.String("case_id", c.ID), zap.Error(err))
	}

	o.audit.Append(mirrorCtx, c.ID, loomTool, "completed", "pipeline_finished", nil)
	o.logger.Info("case completed",
		zap.String("case_id", c.ID),
		zap.Int("tool_results", len(results)))
	return nil
}

// abortCase performs the terminal aborted transition.
func (o *Orchestrator) abortCase(c *types.Case) {
	now := time.Now().UTC()
	c.Status = types.StatusAborted
	c.AbortedAt = &now

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := o.store.SaveCase(c); err != nil {
		o.logger.Error("failed to persist aborted case", zap.String("case_id", c.ID), zap.Error(err))
	}
	o.audit.Append(ctx, c.ID, loomTool, "aborted", "pipeline_aborted", nil)
	o.logger.Info("case aborted", zap.String("case_id", c.ID))
}

// failCase performs the terminal error transition, preserving the
// failure message for operators.
func (o *Orchestrator) failCase(c *types.Case, msg string) {
	c.Status = types.StatusError
	c.Error = msg

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := o.store.SaveCase(c); err != nil {
		o.logger.Error("failed to persist errored case", zap.String("case_id", c.ID), zap.Error(err))
	}
	o.audit.Append(ctx, c.ID, loomTool, "error", "pipeline_failed", map[string]any{
		"error": msg,
	})
	o.logger.Error("case failed", zap.String("case_id", c.ID), zap.String("error", msg))
}

// IsNotFound reports whether err means the case does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, casestore.ErrNotFound)
}
