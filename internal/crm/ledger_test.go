package crm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConnector records every CRM call so tests can prove the gate
// held.
type fakeConnector struct {
	mu sync.Mutex

	searchResults map[string][]int
	createErr     error
	writeErr      error

	searches int
	creates  []string
	writes   []string
	nextID   int
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{searchResults: make(map[string][]int), nextID: 100}
}

func (f *fakeConnector) Search(ctx context.Context, model string, domain []any, limit int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	return f.searchResults[model], nil
}

func (f *fakeConnector) Read(ctx context.Context, model string, ids []int, fields []string) ([]map[string]any, error) {
	return nil, nil
}

func (f *fakeConnector) Create(ctx context.Context, model string, values map[string]any) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.creates = append(f.creates, model)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeConnector) Write(ctx context.Context, model string, ids []int, values map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return false, f.writeErr
	}
	f.writes = append(f.writes, model)
	return true, nil
}

func (f *fakeConnector) mutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.writes)
}

func TestUnconfirmedExecutionNeverTouchesCRM(t *testing.T) {
	conn := newFakeConnector()
	ledger := NewLedger(conn, nil)

	p := newProposal("Create opportunity: Acme", "1a2b3c4d", Operation{
		Kind: OpCreateLead, Model: "crm.lead", Method: "create",
		Values: map[string]any{"name": "Acme"},
	})
	ledger.Propose(p)

	_, err := ledger.ConfirmAndExecute(context.Background(), p.ID, false)
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Equal(t, 0, conn.mutationCount())

	// Still pending, still executable afterwards.
	pending := ledger.List()
	require.Len(t, pending, 1)
	assert.Equal(t, p.ID, pending[0].ID)
}

func TestProposalsAreSingleUse(t *testing.T) {
	conn := newFakeConnector()
	ledger := NewLedger(conn, nil)

	p := newProposal("Create opportunity: Acme", "1a2b3c4d", Operation{
		Kind: OpCreateLead, Model: "crm.lead", Method: "create",
		Values: map[string]any{"name": "Acme"},
	})
	ledger.Propose(p)

	result, err := ledger.ConfirmAndExecute(context.Background(), p.ID, true)
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Success)
	assert.NotZero(t, result.Results[0].RecordID)

	_, err = ledger.ConfirmAndExecute(context.Background(), p.ID, true)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, conn.mutationCount())
}

func TestExecuteUnknownProposal(t *testing.T) {
	ledger := NewLedger(newFakeConnector(), nil)
	_, err := ledger.ConfirmAndExecute(context.Background(), "deadbeef", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailedOperationDoesNotStopLaterOnes(t *testing.T) {
	conn := newFakeConnector()
	conn.writeErr = errors.New("record locked")
	ledger := NewLedger(conn, nil)

	p := newProposal("Update partner then create lead", "1a2b3c4d",
		Operation{Kind: OpUpsertPartner, Model: "res.partner", Method: "write",
			IDs: []int{7}, Values: map[string]any{"name": "Acme"}},
		Operation{Kind: OpCreateLead, Model: "crm.lead", Method: "create",
			Values: map[string]any{"name": "Acme opportunity"}},
	)
	ledger.Propose(p)

	result, err := ledger.ConfirmAndExecute(context.Background(), p.ID, true)
	require.NoError(t, err)
	require.Len(t, result.Results, 2)

	assert.False(t, result.Results[0].Success)
	assert.Contains(t, result.Results[0].Error, "record locked")
	assert.True(t, result.Results[1].Success)
	assert.Equal(t, []string{"crm.lead"}, conn.creates)
}

func TestCancelRemovesPendingProposal(t *testing.T) {
	conn := newFakeConnector()
	ledger := NewLedger(conn, nil)

	p := newProposal("Create project: Recon", "1a2b3c4d", Operation{
		Kind: OpCreateProject, Model: "project.project", Method: "create",
		Values: map[string]any{"name": "Recon"},
	})
	ledger.Propose(p)

	require.NoError(t, ledger.Cancel(p.ID))
	assert.ErrorIs(t, ledger.Cancel(p.ID), ErrNotFound)

	_, err := ledger.ConfirmAndExecute(context.Background(), p.ID, true)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, conn.mutationCount())
}

func TestListReturnsOldestFirst(t *testing.T) {
	ledger := NewLedger(newFakeConnector(), nil)

	first := newProposal("first", "", Operation{Kind: OpCreateLead, Model: "crm.lead", Method: "create"})
	second := newProposal("second", "", Operation{Kind: OpCreateLead, Model: "crm.lead", Method: "create"})
	second.CreatedAt = first.CreatedAt.Add(1)

	ledger.Propose(second)
	ledger.Propose(first)

	pending := ledger.List()
	require.Len(t, pending, 2)
	assert.Equal(t, "first", pending[0].Summary)
	assert.Equal(t, "second", pending[1].Summary)
}

func TestGetAndListReturnSnapshots(t *testing.T) {
	ledger := NewLedger(newFakeConnector(), nil)

	p := newProposal("Create lead: Acme", "1a2b3c4d", Operation{
		Kind: OpCreateLead, Model: "crm.lead", Method: "create",
		Values: map[string]any{"name": "Acme"},
	})
	ledger.Propose(p)

	listed := ledger.List()
	require.Len(t, listed, 1)

	// Execution must not reach into a snapshot handed out earlier.
	_, err := ledger.ConfirmAndExecute(context.Background(), p.ID, true)
	require.NoError(t, err)
	assert.False(t, listed[0].Confirmed)

	// Nor does writing through a snapshot reach the ledger.
	ledger.Propose(newProposal("Create lead: Globex", "", Operation{
		Kind: OpCreateLead, Model: "crm.lead", Method: "create",
	}))
	got, err := ledger.Get(ledger.List()[0].ID)
	require.NoError(t, err)
	got.Summary = "tampered"

	fresh, err := ledger.Get(got.ID)
	require.NoError(t, err)
	assert.Equal(t, "Create lead: Globex", fresh.Summary)
}
