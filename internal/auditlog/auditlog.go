// Package auditlog appends per-case activity records to a sqlite
// database. It is an append-only secondary store: writes that fail are
// logged and dropped, never escalated to the owning case.
package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Entry is one activity record.
type Entry struct {
	ID        int64          `json:"id"`
	CaseID    string         `json:"case_id"`
	Tool      string         `json:"tool"`
	Status    string         `json:"status"`
	Step      string         `json:"step"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Log is the append-only activity log.
type Log struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the activity log database at path.
func Open(path string, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	l := &Log{db: db, logger: logger}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id TEXT NOT NULL,
		tool TEXT NOT NULL,
		status TEXT NOT NULL,
		step TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_case ON activity_log(case_id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Append records one activity row. Failures are swallowed after logging;
// the log has mirror-store semantics and must never fail a case.
func (l *Log) Append(ctx context.Context, caseID, tool, status, step string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO activity_log (case_id, tool, status, step, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		caseID, tool, status, step, string(detailsJSON), time.Now().UTC())
	if err != nil {
		l.logger.Error("activity log append failed",
			zap.String("case_id", caseID),
			zap.String("step", step),
			zap.Error(err))
		return
	}
	l.logger.Debug("activity logged",
		zap.String("case_id", caseID),
		zap.String("tool", tool),
		zap.String("step", step))
}

// ByCase returns the activity rows for one case in insertion order.
func (l *Log) ByCase(ctx context.Context, caseID string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, case_id, tool, status, step, details, created_at
		FROM activity_log WHERE case_id = ? ORDER BY id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("activity log query failed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var detailsJSON string
		if err := rows.Scan(&e.ID, &e.CaseID, &e.Tool, &e.Status, &e.Step, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("activity log scan failed: %w", err)
		}
		if err := json.Unmarshal([]byte(detailsJSON), &e.Details); err != nil {
			e.Details = nil
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ping verifies the database answers, for health reporting.
func (l *Log) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
