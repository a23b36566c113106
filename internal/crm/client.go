// Package crm gates every mutation of the Odoo system-of-record behind
// a propose, confirm, execute protocol. Reads go straight through; a
// write only ever leaves this package as part of a confirmed proposal.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"loom/internal/config"
)

// Connector is the narrow CRM surface the proposal machinery calls.
// *Client satisfies it; tests substitute fakes.
type Connector interface {
	Search(ctx context.Context, model string, domain []any, limit int) ([]int, error)
	Read(ctx context.Context, model string, ids []int, fields []string) ([]map[string]any, error)
	Create(ctx context.Context, model string, values map[string]any) (int, error)
	Write(ctx context.Context, model string, ids []int, values map[string]any) (bool, error)
}

// Client talks to Odoo's external API over its JSON-RPC endpoint.
// Authentication happens lazily on first use and the uid is cached for
// the client's lifetime.
type Client struct {
	url      string
	database string
	username string
	password string

	httpClient *http.Client
	logger     *zap.Logger

	mu  sync.Mutex
	uid int

	reqID atomic.Int64
}

// NewClient builds an Odoo client from configuration.
func NewClient(cfg config.CRMConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:        cfg.URL,
		database:   cfg.Database,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Configured reports whether an Odoo endpoint is set.
func (c *Client) Configured() bool { return c.url != "" }

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) String() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

// call performs one JSON-RPC round trip against /jsonrpc.
func (c *Client) call(ctx context.Context, service, method string, args []any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.reqID.Add(1),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/jsonrpc", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("odoo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("odoo returned status %d", resp.StatusCode)
	}

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("odoo response parse failed: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("odoo error: %s", parsed.Error.String())
	}
	return parsed.Result, nil
}

// authenticate resolves and caches the session uid.
func (c *Client) authenticate(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid != 0 {
		return c.uid, nil
	}

	result, err := c.call(ctx, "common", "authenticate", []any{c.database, c.username, c.password, map[string]any{}})
	if err != nil {
		return 0, fmt.Errorf("odoo authentication failed: %w", err)
	}

	var uid int
	if err := json.Unmarshal(result, &uid); err != nil || uid == 0 {
		return 0, fmt.Errorf("odoo authentication rejected for %s", c.username)
	}

	c.uid = uid
	c.logger.Info("authenticated with odoo", zap.String("user", c.username), zap.Int("uid", uid))
	return uid, nil
}

// executeKw invokes a model method through the object service.
func (c *Client) executeKw(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	uid, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	result, err := c.call(ctx, "object", "execute_kw",
		[]any{c.database, uid, c.password, model, method, args, kwargs})
	if err != nil {
		return nil, fmt.Errorf("odoo %s.%s failed: %w", model, method, err)
	}
	return result, nil
}

// Search returns record ids matching the domain.
func (c *Client) Search(ctx context.Context, model string, domain []any, limit int) ([]int, error) {
	kwargs := map[string]any{}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	result, err := c.executeKw(ctx, model, "search", []any{domain}, kwargs)
	if err != nil {
		return nil, err
	}
	var ids []int
	if err := json.Unmarshal(result, &ids); err != nil {
		return nil, fmt.Errorf("odoo search result parse failed: %w", err)
	}
	return ids, nil
}

// Read fetches the given fields for a set of record ids.
func (c *Client) Read(ctx context.Context, model string, ids []int, fields []string) ([]map[string]any, error) {
	kwargs := map[string]any{}
	if len(fields) > 0 {
		kwargs["fields"] = fields
	}
	result, err := c.executeKw(ctx, model, "read", []any{ids}, kwargs)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(result, &records); err != nil {
		return nil, fmt.Errorf("odoo read result parse failed: %w", err)
	}
	return records, nil
}

// SearchRead combines search and read in one round trip.
func (c *Client) SearchRead(ctx context.Context, model string, domain []any, fields []string, limit int) ([]map[string]any, error) {
	kwargs := map[string]any{}
	if len(fields) > 0 {
		kwargs["fields"] = fields
	}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	result, err := c.executeKw(ctx, model, "search_read", []any{domain}, kwargs)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(result, &records); err != nil {
		return nil, fmt.Errorf("odoo search_read result parse failed: %w", err)
	}
	return records, nil
}

// Create inserts a record and returns its id.
func (c *Client) Create(ctx context.Context, model string, values map[string]any) (int, error) {
	result, err := c.executeKw(ctx, model, "create", []any{values}, nil)
	if err != nil {
		return 0, err
	}
	var id int
	if err := json.Unmarshal(result, &id); err != nil {
		return 0, fmt.Errorf("odoo create result parse failed: %w", err)
	}
	return id, nil
}

// Write updates existing records.
func (c *Client) Write(ctx context.Context, model string, ids []int, values map[string]any) (bool, error) {
	result, err := c.executeKw(ctx, model, "write", []any{ids, values}, nil)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(result, &ok); err != nil {
		return false, fmt.Errorf("odoo write result parse failed: %w", err)
	}
	return ok, nil
}
