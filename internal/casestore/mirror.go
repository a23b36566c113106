package casestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"loom/internal/config"
	"loom/internal/types"
)

const mirrorAttempts = 3

// Mirror copies final case metadata to a CouchDB database. It is
// strictly best-effort: Push retries with doubling backoff and reports
// failure through its return value, but the owning case must never fail
// because of it.
type Mirror struct {
	url        string
	database   string
	username   string
	password   string
	httpClient *http.Client
	logger     *zap.Logger

	// sleep is swapped out in tests to skip real backoff waits.
	sleep func(context.Context, time.Duration) error
}

// NewMirror builds the CouchDB mirror. An empty URL yields a disabled
// mirror whose Push is a no-op.
func NewMirror(cfg config.MirrorConfig, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		url:        cfg.URL,
		database:   cfg.Database,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// Enabled reports whether a mirror endpoint is configured.
func (m *Mirror) Enabled() bool { return m.url != "" }

// Push writes the case document to CouchDB, retrying up to three times
// with exponential backoff (1s, 2s).
func (m *Mirror) Push(ctx context.Context, c *types.Case) error {
	if !m.Enabled() {
		return nil
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode case for mirror: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < mirrorAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			if err := m.sleep(ctx, backoff); err != nil {
				return err
			}
		}

		if err := m.put(ctx, c.ID, data); err != nil {
			lastErr = err
			m.logger.Warn("mirror attempt failed",
				zap.String("case_id", c.ID),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		m.logger.Info("case mirrored", zap.String("case_id", c.ID))
		return nil
	}
	return fmt.Errorf("mirror failed after %d attempts: %w", mirrorAttempts, lastErr)
}

// Ping checks that the mirror database answers, for health reporting.
func (m *Mirror) Ping(ctx context.Context) error {
	if !m.Enabled() {
		return fmt.Errorf("mirror disabled")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url+"/"+m.database, nil)
	if err != nil {
		return err
	}
	m.setAuth(req)
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mirror returned status %d", resp.StatusCode)
	}
	return nil
}

func (m *Mirror) put(ctx context.Context, caseID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/%s/%s", m.url, m.database, caseID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	m.setAuth(req)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("mirror store returned status %d", resp.StatusCode)
	}
}

func (m *Mirror) setAuth(req *http.Request) {
	if m.username != "" {
		req.SetBasicAuth(m.username, m.password)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
