package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/types"
)

// fakeAdapter is a scriptable adapter for registry tests.
type fakeAdapter struct {
	name    string
	enabled bool
	run     func(ctx context.Context, target string, options map[string]any) (types.ToolResult, error)
}

func (f *fakeAdapter) Name() string        { return f.name }
func (f *fakeAdapter) Enabled() bool       { return f.enabled }
func (f *fakeAdapter) Description() string { return "fake " + f.name }

func (f *fakeAdapter) Execute(ctx context.Context, target string, options map[string]any) (types.ToolResult, error) {
	return f.run(ctx, target, options)
}

func okAdapter(name string, delay time.Duration) *fakeAdapter {
	return &fakeAdapter{
		name:    name,
		enabled: true,
		run: func(ctx context.Context, target string, options map[string]any) (types.ToolResult, error) {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return types.ToolResult{}, ctx.Err()
				}
			}
			return types.ToolResult{
				Tool:    name,
				Target:  target,
				Status:  types.ResultSuccess,
				Results: []types.Finding{{Type: "test", Value: name}},
			}, nil
		},
	}
}

func TestExecuteToolsPreservesRequestOrder(t *testing.T) {
	// Completion order is deliberately scrambled by the delays; the
	// result slice must still follow the request order.
	reg := NewRegistryWithAdapters(time.Second, nil,
		okAdapter("slow", 60*time.Millisecond),
		okAdapter("instant", 0),
		okAdapter("medium", 20*time.Millisecond),
	)

	results := reg.ExecuteTools(context.Background(), "example.com", []string{"slow", "instant", "medium"}, nil)

	require.Len(t, results, 3)
	assert.Equal(t, "slow", results[0].Tool)
	assert.Equal(t, "instant", results[1].Tool)
	assert.Equal(t, "medium", results[2].Tool)
	for _, r := range results {
		assert.Equal(t, types.ResultSuccess, r.Status)
		assert.Equal(t, "example.com", r.Target)
	}
}

func TestExecuteToolsSkipsUnknownAndDisabled(t *testing.T) {
	disabled := okAdapter("sherlock", 0)
	disabled.enabled = false

	reg := NewRegistryWithAdapters(time.Second, nil, okAdapter("searxng", 0), disabled)

	results := reg.ExecuteTools(context.Background(), "example.com",
		[]string{"searxng", "no-such-tool", "sherlock"}, nil)

	require.Len(t, results, 1)
	assert.Equal(t, "searxng", results[0].Tool)
}

func TestExecuteToolsIsolatesFailures(t *testing.T) {
	failing := &fakeAdapter{
		name:    "reconng",
		enabled: true,
		run: func(ctx context.Context, target string, options map[string]any) (types.ToolResult, error) {
			return types.ToolResult{}, errors.New("ssh connect refused")
		},
	}

	reg := NewRegistryWithAdapters(time.Second, nil, okAdapter("searxng", 0), failing)
	results := reg.ExecuteTools(context.Background(), "example.com", []string{"searxng", "reconng"}, nil)

	require.Len(t, results, 2)
	assert.Equal(t, types.ResultSuccess, results[0].Status)
	assert.Equal(t, types.ResultError, results[1].Status)
	assert.Contains(t, results[1].Error, "ssh connect refused")
	assert.False(t, results[1].Timestamp.IsZero())
}

func TestExecuteToolsRecoversFromPanic(t *testing.T) {
	panicking := &fakeAdapter{
		name:    "spiderfoot",
		enabled: true,
		run: func(ctx context.Context, target string, options map[string]any) (types.ToolResult, error) {
			panic("nil dereference in parser")
		},
	}

	reg := NewRegistryWithAdapters(time.Second, nil, panicking, okAdapter("searxng", 0))
	results := reg.ExecuteTools(context.Background(), "example.com", []string{"spiderfoot", "searxng"}, nil)

	require.Len(t, results, 2)
	assert.Equal(t, types.ResultError, results[0].Status)
	assert.Contains(t, results[0].Error, "panic")
	assert.Equal(t, types.ResultSuccess, results[1].Status)
}

func TestExecuteToolsEnforcesTimeout(t *testing.T) {
	reg := NewRegistryWithAdapters(20*time.Millisecond, nil, okAdapter("intelowl", time.Second))

	start := time.Now()
	results := reg.ExecuteTools(context.Background(), "example.com", []string{"intelowl"}, nil)

	require.Len(t, results, 1)
	assert.Equal(t, types.ResultError, results[0].Status)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestExecuteToolsRoutesOptionsByName(t *testing.T) {
	var seen map[string]any
	capturing := &fakeAdapter{
		name:    "searxng",
		enabled: true,
		run: func(ctx context.Context, target string, options map[string]any) (types.ToolResult, error) {
			seen = options
			return types.ToolResult{Tool: "searxng", Target: target, Status: types.ResultSuccess}, nil
		},
	}

	reg := NewRegistryWithAdapters(time.Second, nil, capturing)
	reg.ExecuteTools(context.Background(), "example.com", []string{"searxng"},
		map[string]map[string]any{
			"searxng": {"num_results": 5},
			"other":   {"ignored": true},
		})

	require.NotNil(t, seen)
	assert.Equal(t, 5, seen["num_results"])
}

func TestStatusesFollowRegistrationOrder(t *testing.T) {
	disabled := okAdapter("b", 0)
	disabled.enabled = false
	reg := NewRegistryWithAdapters(time.Second, nil, okAdapter("c", 0), disabled, okAdapter("a", 0))

	statuses := reg.Statuses()
	require.Len(t, statuses, 3)
	assert.Equal(t, "c", statuses[0].Name)
	assert.Equal(t, "b", statuses[1].Name)
	assert.False(t, statuses[1].Enabled)
	assert.Equal(t, "a", statuses[2].Name)

	assert.Equal(t, []string{"a", "b", "c"}, reg.Names())
}
