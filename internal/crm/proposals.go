package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OperationKind names a proposed CRM mutation.
type OperationKind string

const (
	OpUpsertPartner       OperationKind = "upsert_partner"
	OpCreateLead          OperationKind = "create_lead"
	OpCreateProject       OperationKind = "create_project"
	OpCreateTasks         OperationKind = "create_tasks"
	OpScheduleActivity    OperationKind = "schedule_activity"
	OpCreateCalendarEvent OperationKind = "create_calendar_event"
)

// Operation is one concrete create or write against an Odoo model.
// Ops are resolved at proposal time, so execution needs no further
// lookups.
type Operation struct {
	Kind   OperationKind  `json:"op"`
	Model  string         `json:"model"`
	Method string         `json:"method"` // create or write
	IDs    []int          `json:"ids,omitempty"`
	Values map[string]any `json:"values"`
}

// Proposal is a set of operations awaiting explicit confirmation.
type Proposal struct {
	ID                   string      `json:"proposal_id"`
	Summary              string      `json:"summary"`
	Operations           []Operation `json:"operations"`
	CaseID               string      `json:"case_id,omitempty"`
	RequiresConfirmation bool        `json:"requires_confirmation"`
	Confirmed            bool        `json:"confirmed"`
	CreatedAt            time.Time   `json:"created_at"`
}

func newProposal(summary, caseID string, ops ...Operation) *Proposal {
	return &Proposal{
		ID:                   uuid.NewString()[:8],
		Summary:              summary,
		Operations:           ops,
		CaseID:               caseID,
		RequiresConfirmation: true,
		CreatedAt:            time.Now().UTC(),
	}
}

// caseTag prefixes free-text CRM fields so records trace back to the
// investigation that produced them.
func caseTag(caseID, text, fallback string) string {
	if text == "" {
		text = fallback
	}
	return fmt.Sprintf("[Loom Case: %s] %s", caseID, text)
}

func caseTagBlock(caseID, text string) string {
	return fmt.Sprintf("[Loom Case: %s]\n\n%s", caseID, text)
}

// Proposer builds proposals. Lookups needed to resolve an operation
// (does this partner already exist, which country id is "US") happen
// here; the mutation itself waits for confirmation.
type Proposer struct {
	conn Connector
}

// NewProposer wraps a connector.
func NewProposer(conn Connector) *Proposer {
	return &Proposer{conn: conn}
}

// PartnerSpec describes a contact or company to upsert.
type PartnerSpec struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Website     string `json:"website,omitempty"`
	IsCompany   bool   `json:"is_company"`
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

// ProposeUpsertPartner proposes creating or updating a res.partner.
// The existing-record lookup prefers an exact email match, then a
// website match, then an exact name match.
func (p *Proposer) ProposeUpsertPartner(ctx context.Context, spec PartnerSpec, caseID string) (*Proposal, error) {
	var domain []any
	switch {
	case spec.Email != "":
		domain = []any{[]any{"email", "=", spec.Email}}
	case spec.Website != "":
		domain = []any{[]any{"website", "ilike", spec.Website}}
	default:
		domain = []any{[]any{"name", "=", spec.Name}}
	}

	existing, err := p.conn.Search(ctx, "res.partner", domain, 1)
	if err != nil {
		return nil, fmt.Errorf("partner lookup failed: %w", err)
	}

	values := map[string]any{
		"name":       spec.Name,
		"is_company": spec.IsCompany,
		"comment":    caseTag(caseID, spec.Comment, "OSINT investigation"),
	}
	if spec.Email != "" {
		values["email"] = spec.Email
	}
	if spec.Phone != "" {
		values["phone"] = spec.Phone
	}
	if spec.Website != "" {
		values["website"] = spec.Website
	}
	if spec.Street != "" {
		values["street"] = spec.Street
	}
	if spec.City != "" {
		values["city"] = spec.City
	}
	if spec.CountryCode != "" {
		countryIDs, err := p.conn.Search(ctx, "res.country",
			[]any{[]any{"code", "=", strings.ToUpper(spec.CountryCode)}}, 1)
		if err != nil {
			return nil, fmt.Errorf("country lookup failed: %w", err)
		}
		if len(countryIDs) > 0 {
			values["country_id"] = countryIDs[0]
		}
	}

	op := Operation{
		Kind:   OpUpsertPartner,
		Model:  "res.partner",
		Method: "create",
		Values: values,
	}
	verb := "Create"
	if len(existing) > 0 {
		op.Method = "write"
		op.IDs = existing
		verb = "Update"
	}

	summary := fmt.Sprintf("%s partner: %s", verb, spec.Name)
	if spec.Email != "" {
		summary += fmt.Sprintf(" (%s)", spec.Email)
	}
	return newProposal(summary, caseID, op), nil
}

// LeadSpec describes a CRM opportunity to create.
type LeadSpec struct {
	Name            string  `json:"name"`
	PartnerID       int     `json:"partner_id,omitempty"`
	EmailFrom       string  `json:"email_from,omitempty"`
	Phone           string  `json:"phone,omitempty"`
	Description     string  `json:"description,omitempty"`
	ExpectedRevenue float64 `json:"expected_revenue,omitempty"`
}

// ProposeCreateLead proposes a new crm.lead opportunity.
func (p *Proposer) ProposeCreateLead(spec LeadSpec, caseID string) *Proposal {
	values := map[string]any{
		"name":        spec.Name,
		"type":        "opportunity",
		"description": caseTagBlock(caseID, spec.Description),
	}
	if spec.PartnerID != 0 {
		values["partner_id"] = spec.PartnerID
	}
	if spec.EmailFrom != "" {
		values["email_from"] = spec.EmailFrom
	}
	if spec.Phone != "" {
		values["phone"] = spec.Phone
	}
	if spec.ExpectedRevenue != 0 {
		values["expected_revenue"] = spec.ExpectedRevenue
	}

	return newProposal(fmt.Sprintf("Create opportunity: %s", spec.Name), caseID, Operation{
		Kind:   OpCreateLead,
		Model:  "crm.lead",
		Method: "create",
		Values: values,
	})
}

// ProjectSpec describes a project to create.
type ProjectSpec struct {
	Name      string `json:"name"`
	PartnerID int    `json:"partner_id,omitempty"`
	UserID    int    `json:"user_id,omitempty"`
	DateStart string `json:"date_start,omitempty"` // YYYY-MM-DD
}

// ProposeCreateProject proposes a new project.project.
func (p *Proposer) ProposeCreateProject(spec ProjectSpec, caseID string) *Proposal {
	values := map[string]any{"name": spec.Name}
	if spec.PartnerID != 0 {
		values["partner_id"] = spec.PartnerID
	}
	if spec.UserID != 0 {
		values["user_id"] = spec.UserID
	}
	if spec.DateStart != "" {
		values["date_start"] = spec.DateStart
	}

	return newProposal(fmt.Sprintf("Create project: %s", spec.Name), caseID, Operation{
		Kind:   OpCreateProject,
		Model:  "project.project",
		Method: "create",
		Values: values,
	})
}

// TaskSpec describes one task within a batch.
type TaskSpec struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	UserIDs      []int  `json:"user_ids,omitempty"`
	DateDeadline string `json:"date_deadline,omitempty"`
	Priority     string `json:"priority,omitempty"`
}

// ProposeCreateTasks proposes a batch of project.task records. Each
// task becomes its own operation so a failure mid-batch leaves earlier
// records in place and later ones still attempted.
func (p *Proposer) ProposeCreateTasks(projectID int, tasks []TaskSpec, caseID string) *Proposal {
	ops := make([]Operation, 0, len(tasks))
	for _, task := range tasks {
		values := map[string]any{
			"project_id":  projectID,
			"name":        task.Name,
			"description": caseTagBlock(caseID, task.Description),
		}
		if len(task.UserIDs) > 0 {
			values["user_ids"] = []any{[]any{6, 0, task.UserIDs}}
		}
		if task.DateDeadline != "" {
			values["date_deadline"] = task.DateDeadline
		}
		if task.Priority != "" {
			values["priority"] = task.Priority
		}
		ops = append(ops, Operation{
			Kind:   OpCreateTasks,
			Model:  "project.task",
			Method: "create",
			Values: values,
		})
	}
	return newProposal(fmt.Sprintf("Create %d task(s) in project", len(tasks)), caseID, ops...)
}

// ActivitySpec describes a follow-up activity to schedule.
type ActivitySpec struct {
	ResModel     string `json:"res_model"`
	ResID        int    `json:"res_id"`
	ActivityType string `json:"activity_type"`
	Summary      string `json:"summary"`
	DateDeadline string `json:"date_deadline"` // YYYY-MM-DD
	UserID       int    `json:"user_id,omitempty"`
	Note         string `json:"note,omitempty"`
}

// ProposeScheduleActivity proposes a mail.activity on an existing
// record. The activity type name is resolved at proposal time; an
// unknown name falls back to type id 1.
func (p *Proposer) ProposeScheduleActivity(ctx context.Context, spec ActivitySpec, caseID string) (*Proposal, error) {
	typeIDs, err := p.conn.Search(ctx, "mail.activity.type",
		[]any{[]any{"name", "ilike", spec.ActivityType}}, 1)
	if err != nil {
		return nil, fmt.Errorf("activity type lookup failed: %w", err)
	}
	typeID := 1
	if len(typeIDs) > 0 {
		typeID = typeIDs[0]
	}

	values := map[string]any{
		"res_model":        spec.ResModel,
		"res_id":           spec.ResID,
		"activity_type_id": typeID,
		"summary":          spec.Summary,
		"date_deadline":    spec.DateDeadline,
		"note":             caseTagBlock(caseID, spec.Note),
	}
	if spec.UserID != 0 {
		values["user_id"] = spec.UserID
	}

	return newProposal(fmt.Sprintf("Schedule activity: %s", spec.Summary), caseID, Operation{
		Kind:   OpScheduleActivity,
		Model:  "mail.activity",
		Method: "create",
		Values: values,
	}), nil
}

// EventSpec describes a calendar event to create.
type EventSpec struct {
	Name        string    `json:"name"`
	Start       time.Time `json:"start"`
	Stop        time.Time `json:"stop"`
	PartnerIDs  []int     `json:"partner_ids,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
}

// ProposeCreateCalendarEvent proposes a calendar.event.
func (p *Proposer) ProposeCreateCalendarEvent(spec EventSpec, caseID string) *Proposal {
	values := map[string]any{
		"name":        spec.Name,
		"start":       spec.Start.Format(time.RFC3339),
		"stop":        spec.Stop.Format(time.RFC3339),
		"description": caseTagBlock(caseID, spec.Description),
	}
	if len(spec.PartnerIDs) > 0 {
		values["partner_ids"] = []any{[]any{6, 0, spec.PartnerIDs}}
	}
	if spec.Location != "" {
		values["location"] = spec.Location
	}

	return newProposal(fmt.Sprintf("Create calendar event: %s", spec.Name), caseID, Operation{
		Kind:   OpCreateCalendarEvent,
		Model:  "calendar.event",
		Method: "create",
		Values: values,
	})
}
