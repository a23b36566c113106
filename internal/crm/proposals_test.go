package crm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// domainConnector scripts Search responses per model for builder tests.
type domainConnector struct {
	fakeConnector
	domains []struct {
		model  string
		domain []any
	}
	results map[string][]int
}

func (d *domainConnector) Search(ctx context.Context, model string, domain []any, limit int) ([]int, error) {
	d.domains = append(d.domains, struct {
		model  string
		domain []any
	}{model, domain})
	return d.results[model], nil
}

func firstCondition(t *testing.T, domain []any) []any {
	t.Helper()
	require.NotEmpty(t, domain)
	cond, ok := domain[0].([]any)
	require.True(t, ok, "domain condition should be a triple")
	require.Len(t, cond, 3)
	return cond
}

func TestUpsertPartnerLookupPriority(t *testing.T) {
	t.Run("email wins over website and name", func(t *testing.T) {
		conn := &domainConnector{results: map[string][]int{}}
		p := NewProposer(conn)

		_, err := p.ProposeUpsertPartner(context.Background(), PartnerSpec{
			Name: "Acme", Email: "info@acme.example", Website: "acme.example",
		}, "1a2b3c4d")
		require.NoError(t, err)

		cond := firstCondition(t, conn.domains[0].domain)
		assert.Equal(t, []any{"email", "=", "info@acme.example"}, cond)
	})

	t.Run("website when no email", func(t *testing.T) {
		conn := &domainConnector{results: map[string][]int{}}
		p := NewProposer(conn)

		_, err := p.ProposeUpsertPartner(context.Background(), PartnerSpec{
			Name: "Acme", Website: "acme.example",
		}, "1a2b3c4d")
		require.NoError(t, err)

		cond := firstCondition(t, conn.domains[0].domain)
		assert.Equal(t, []any{"website", "ilike", "acme.example"}, cond)
	})

	t.Run("name as last resort", func(t *testing.T) {
		conn := &domainConnector{results: map[string][]int{}}
		p := NewProposer(conn)

		_, err := p.ProposeUpsertPartner(context.Background(), PartnerSpec{Name: "Acme"}, "1a2b3c4d")
		require.NoError(t, err)

		cond := firstCondition(t, conn.domains[0].domain)
		assert.Equal(t, []any{"name", "=", "Acme"}, cond)
	})
}

func TestUpsertPartnerCreateVersusUpdate(t *testing.T) {
	t.Run("no match proposes create", func(t *testing.T) {
		conn := &domainConnector{results: map[string][]int{}}
		p := NewProposer(conn)

		proposal, err := p.ProposeUpsertPartner(context.Background(), PartnerSpec{
			Name: "Acme", Email: "info@acme.example",
		}, "1a2b3c4d")
		require.NoError(t, err)

		require.Len(t, proposal.Operations, 1)
		op := proposal.Operations[0]
		assert.Equal(t, "create", op.Method)
		assert.Empty(t, op.IDs)
		assert.Contains(t, proposal.Summary, "Create partner: Acme")
	})

	t.Run("match proposes write with ids", func(t *testing.T) {
		conn := &domainConnector{results: map[string][]int{"res.partner": {42}}}
		p := NewProposer(conn)

		proposal, err := p.ProposeUpsertPartner(context.Background(), PartnerSpec{
			Name: "Acme", Email: "info@acme.example",
		}, "1a2b3c4d")
		require.NoError(t, err)

		op := proposal.Operations[0]
		assert.Equal(t, "write", op.Method)
		assert.Equal(t, []int{42}, op.IDs)
		assert.Contains(t, proposal.Summary, "Update partner: Acme")
	})
}

func TestUpsertPartnerValuesCarryCaseAnnotation(t *testing.T) {
	conn := &domainConnector{results: map[string][]int{}}
	p := NewProposer(conn)

	proposal, err := p.ProposeUpsertPartner(context.Background(), PartnerSpec{
		Name: "Acme", Comment: "found via sherlock",
	}, "1a2b3c4d")
	require.NoError(t, err)

	comment, _ := proposal.Operations[0].Values["comment"].(string)
	assert.Equal(t, "[Loom Case: 1a2b3c4d] found via sherlock", comment)
}

func TestCreateTasksEmitsOneOperationPerTask(t *testing.T) {
	p := NewProposer(newFakeConnector())

	proposal := p.ProposeCreateTasks(9, []TaskSpec{
		{Name: "enumerate subdomains"},
		{Name: "review breach data", DateDeadline: "2026-09-15"},
	}, "1a2b3c4d")

	require.Len(t, proposal.Operations, 2)
	for _, op := range proposal.Operations {
		assert.Equal(t, OpCreateTasks, op.Kind)
		assert.Equal(t, "project.task", op.Model)
		assert.Equal(t, "create", op.Method)
		assert.Equal(t, 9, op.Values["project_id"])
	}
	assert.Equal(t, "2026-09-15", proposal.Operations[1].Values["date_deadline"])
	assert.Contains(t, proposal.Summary, "2 task(s)")
}

func TestScheduleActivityResolvesTypeWithFallback(t *testing.T) {
	t.Run("resolved type id", func(t *testing.T) {
		conn := &domainConnector{results: map[string][]int{"mail.activity.type": {5}}}
		p := NewProposer(conn)

		proposal, err := p.ProposeScheduleActivity(context.Background(), ActivitySpec{
			ResModel: "res.partner", ResID: 42, ActivityType: "Call",
			Summary: "Follow up", DateDeadline: "2026-09-10",
		}, "1a2b3c4d")
		require.NoError(t, err)
		assert.Equal(t, 5, proposal.Operations[0].Values["activity_type_id"])
	})

	t.Run("unknown type falls back to 1", func(t *testing.T) {
		conn := &domainConnector{results: map[string][]int{}}
		p := NewProposer(conn)

		proposal, err := p.ProposeScheduleActivity(context.Background(), ActivitySpec{
			ResModel: "res.partner", ResID: 42, ActivityType: "Carrier Pigeon",
			Summary: "Follow up", DateDeadline: "2026-09-10",
		}, "1a2b3c4d")
		require.NoError(t, err)
		assert.Equal(t, 1, proposal.Operations[0].Values["activity_type_id"])
	})
}

func TestProposalIDsAreShort(t *testing.T) {
	p := NewProposer(newFakeConnector())
	proposal := p.ProposeCreateLead(LeadSpec{Name: "Acme"}, "1a2b3c4d")

	assert.Len(t, proposal.ID, 8)
	assert.True(t, proposal.RequiresConfirmation)
	assert.False(t, proposal.Confirmed)
	assert.Equal(t, "opportunity", proposal.Operations[0].Values["type"])
}
