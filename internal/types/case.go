// Package types holds the shared case model. The JSON field names are
// the on-disk schema of case.json and the CouchDB mirror documents, so
// they change only with a data migration.
package types

import "time"

// CaseStatus is a case's pipeline state.
type CaseStatus string

const (
	StatusProcessing   CaseStatus = "processing"
	StatusSynthesizing CaseStatus = "synthesizing"
	StatusCompleted    CaseStatus = "completed"
	StatusAborted      CaseStatus = "aborted"
	StatusError        CaseStatus = "error"
)

// Terminal reports whether the status is final.
func (s CaseStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusAborted, StatusError:
		return true
	}
	return false
}

// Tool result statuses.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// CaseSpec is the client-supplied request to open a case.
type CaseSpec struct {
	Title       string                    `json:"title"`
	Description string                    `json:"description,omitempty"`
	Target      string                    `json:"target"`
	Tools       []string                  `json:"tools"`
	ToolOptions map[string]map[string]any `json:"tool_options,omitempty"`
}

// Case is the authoritative record of one investigation.
type Case struct {
	ID             string                    `json:"case_id"`
	Title          string                    `json:"title"`
	Description    string                    `json:"description,omitempty"`
	Target         string                    `json:"target"`
	ToolsRequested []string                  `json:"tools_requested"`
	ToolOptions    map[string]map[string]any `json:"tool_options,omitempty"`
	Status         CaseStatus                `json:"status"`
	ToolResults    []ToolResult              `json:"tool_results,omitempty"`
	Error          string                    `json:"error,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	CompletedAt    *time.Time                `json:"completed_at,omitempty"`
	AbortedAt      *time.Time                `json:"aborted_at,omitempty"`

	// Report lives in report.md, not case.json.
	Report string `json:"-"`
}

// Summary projects the case into its listing form.
func (c *Case) Summary() CaseSummary {
	return CaseSummary{
		ID:        c.ID,
		Title:     c.Title,
		Target:    c.Target,
		ToolsUsed: c.ToolsRequested,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
}

// CaseSummary is the listing view of a case.
type CaseSummary struct {
	ID        string     `json:"case_id"`
	Title     string     `json:"title"`
	Target    string     `json:"target"`
	ToolsUsed []string   `json:"tools_used"`
	Status    CaseStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToolResult is one tool's contribution to a case.
type ToolResult struct {
	Tool      string    `json:"tool"`
	Target    string    `json:"target"`
	Status    string    `json:"status"`
	Results   []Finding `json:"results"`
	RawOutput string    `json:"raw_output,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Succeeded reports whether the tool run produced usable results.
func (r ToolResult) Succeeded() bool { return r.Status == ResultSuccess }

// Finding is a single discrete intelligence item. Which fields are set
// depends on the producing tool.
type Finding struct {
	Type     string `json:"type"`
	Value    string `json:"value,omitempty"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	Content  string `json:"content,omitempty"`
	Engine   string `json:"engine,omitempty"`
	Platform string `json:"platform,omitempty"`
	Username string `json:"username,omitempty"`
}
