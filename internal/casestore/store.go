// Package casestore is the persistence gateway for case state. The
// filesystem tree under <data>/cases is authoritative; a CouchDB mirror
// and the audit log are best-effort secondaries with their own
// availability semantics. Layout per case:
//
//	cases/<id>/case.json          case metadata
//	cases/<id>/tools/<tool>.json  one file per tool result
//	cases/<id>/report.md          synthesized report
//	cases/<id>/raw/               adapter scratch space
package casestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"loom/internal/types"
)

// ErrNotFound is returned when a case (or one of its artifacts) does not
// exist on disk.
var ErrNotFound = errors.New("case not found")

// Store reads and writes the authoritative case tree. Cases write
// disjoint keys (their own id), so no cross-case locking is needed.
type Store struct {
	casesDir string
	logger   *zap.Logger
}

// New creates the store rooted at dataDir, ensuring the cases directory
// exists.
func New(dataDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	casesDir := filepath.Join(dataDir, "cases")
	if err := os.MkdirAll(casesDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cases directory: %w", err)
	}
	return &Store{casesDir: casesDir, logger: logger}, nil
}

// CasesDir returns the root of the case tree.
func (s *Store) CasesDir() string { return s.casesDir }

// caseDir creates (if needed) and returns one case's directory structure.
func (s *Store) caseDir(caseID string) (string, error) {
	dir := filepath.Join(s.casesDir, caseID)
	for _, sub := range []string{dir, filepath.Join(dir, "raw"), filepath.Join(dir, "tools")} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return "", fmt.Errorf("failed to create case directory: %w", err)
		}
	}
	return dir, nil
}

// SaveCase persists case metadata to case.json.
func (s *Store) SaveCase(c *types.Case) error {
	dir, err := s.caseDir(c.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode case %s: %w", c.ID, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "case.json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write case %s: %w", c.ID, err)
	}
	return nil
}

// LoadCase reads case metadata. Returns ErrNotFound when absent.
func (s *Store) LoadCase(caseID string) (*types.Case, error) {
	data, err := os.ReadFile(filepath.Join(s.casesDir, caseID, "case.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read case %s: %w", caseID, err)
	}
	var c types.Case
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse case %s: %w", caseID, err)
	}
	return &c, nil
}

// SaveToolResult persists one tool's result under tools/<tool>.json.
func (s *Store) SaveToolResult(caseID string, result types.ToolResult) error {
	dir, err := s.caseDir(caseID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result %s/%s: %w", caseID, result.Tool, err)
	}
	path := filepath.Join(dir, "tools", result.Tool+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result %s/%s: %w", caseID, result.Tool, err)
	}
	return nil
}

// LoadToolResult reads one persisted tool result.
func (s *Store) LoadToolResult(caseID, tool string) (*types.ToolResult, error) {
	data, err := os.ReadFile(filepath.Join(s.casesDir, caseID, "tools", tool+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read result %s/%s: %w", caseID, tool, err)
	}
	var result types.ToolResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse result %s/%s: %w", caseID, tool, err)
	}
	return &result, nil
}

// SaveReport persists the synthesized markdown report.
func (s *Store) SaveReport(caseID, report string) error {
	dir, err := s.caseDir(caseID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(report), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", caseID, err)
	}
	return nil
}

// LoadReport reads the synthesized report. Returns ErrNotFound when the
// case has not produced one.
func (s *Store) LoadReport(caseID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.casesDir, caseID, "report.md"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read report %s: %w", caseID, err)
	}
	return string(data), nil
}

// ListCases walks the case tree and returns every readable case summary.
// Unreadable entries are skipped with a log line, not an error: a listing
// should survive a single corrupt case.
func (s *Store) ListCases() ([]types.CaseSummary, error) {
	entries, err := os.ReadDir(s.casesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}

	summaries := make([]types.CaseSummary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		c, err := s.LoadCase(entry.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable case", zap.String("case_id", entry.Name()), zap.Error(err))
			continue
		}
		summaries = append(summaries, c.Summary())
	}
	return summaries, nil
}
