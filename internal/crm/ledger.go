package crm

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound means no pending proposal has the given id.
	ErrNotFound = errors.New("proposal not found")
	// ErrNotConfirmed means execution was requested without confirmation.
	ErrNotConfirmed = errors.New("proposal must be confirmed before execution")
)

// OperationResult records the outcome of one executed operation.
type OperationResult struct {
	Kind      OperationKind `json:"op"`
	Model     string        `json:"model"`
	Method    string        `json:"method"`
	Success   bool          `json:"success"`
	RecordID  int           `json:"record_id,omitempty"`
	RecordIDs []int         `json:"record_ids,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ExecutionResult is the full outcome of executing a proposal.
type ExecutionResult struct {
	ProposalID string            `json:"proposal_id"`
	CaseID     string            `json:"case_id,omitempty"`
	ExecutedAt time.Time         `json:"executed_at"`
	Results    []OperationResult `json:"results"`
}

// Ledger holds pending proposals and is the only path through which a
// mutation reaches the CRM. A proposal is single-use: executing or
// cancelling it removes it, and a second attempt gets ErrNotFound.
type Ledger struct {
	conn   Connector
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]*Proposal
}

// NewLedger builds an empty ledger over the given connector.
func NewLedger(conn Connector, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		conn:    conn,
		logger:  logger,
		pending: make(map[string]*Proposal),
	}
}

// Propose registers a proposal as pending.
func (l *Ledger) Propose(p *Proposal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[p.ID] = p
	l.logger.Info("proposal registered",
		zap.String("proposal_id", p.ID),
		zap.String("summary", p.Summary),
		zap.Int("operations", len(p.Operations)))
}

// Get returns a snapshot of a pending proposal by id.
func (l *Ledger) Get(id string) (*Proposal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pending[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// List returns snapshots of all pending proposals, oldest first.
func (l *Ledger) List() []*Proposal {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Proposal, 0, len(l.pending))
	for _, p := range l.pending {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Cancel discards a pending proposal without touching the CRM.
func (l *Ledger) Cancel(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.pending[id]; !ok {
		return ErrNotFound
	}
	delete(l.pending, id)
	l.logger.Info("proposal cancelled", zap.String("proposal_id", id))
	return nil
}

// ConfirmAndExecute consumes a pending proposal and runs its
// operations. Without confirmed=true nothing is looked up and the CRM
// is never contacted. The proposal is removed before execution starts,
// so a concurrent second confirm gets ErrNotFound rather than a double
// execution. A failed operation is recorded and later operations are
// still attempted.
func (l *Ledger) ConfirmAndExecute(ctx context.Context, id string, confirmed bool) (*ExecutionResult, error) {
	if !confirmed {
		return nil, ErrNotConfirmed
	}

	l.mu.Lock()
	p, ok := l.pending[id]
	if !ok {
		l.mu.Unlock()
		return nil, ErrNotFound
	}
	delete(l.pending, id)
	p.Confirmed = true
	l.mu.Unlock()

	l.logger.Info("executing proposal",
		zap.String("proposal_id", p.ID),
		zap.String("case_id", p.CaseID),
		zap.Int("operations", len(p.Operations)))

	result := &ExecutionResult{
		ProposalID: p.ID,
		CaseID:     p.CaseID,
		ExecutedAt: time.Now().UTC(),
		Results:    make([]OperationResult, 0, len(p.Operations)),
	}

	for _, op := range p.Operations {
		opResult := OperationResult{
			Kind:   op.Kind,
			Model:  op.Model,
			Method: op.Method,
		}
		switch op.Method {
		case "create":
			recordID, err := l.conn.Create(ctx, op.Model, op.Values)
			if err != nil {
				opResult.Error = err.Error()
				l.logger.Error("proposal operation failed",
					zap.String("proposal_id", p.ID),
					zap.String("model", op.Model),
					zap.Error(err))
			} else {
				opResult.Success = true
				opResult.RecordID = recordID
			}
		case "write":
			ok, err := l.conn.Write(ctx, op.Model, op.IDs, op.Values)
			if err != nil {
				opResult.Error = err.Error()
				l.logger.Error("proposal operation failed",
					zap.String("proposal_id", p.ID),
					zap.String("model", op.Model),
					zap.Error(err))
			} else {
				opResult.Success = ok
				opResult.RecordIDs = op.IDs
			}
		default:
			opResult.Error = "unsupported method: " + op.Method
		}
		result.Results = append(result.Results, opResult)
	}

	return result, nil
}
