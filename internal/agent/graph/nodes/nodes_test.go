package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-realty/leadbot/internal/agent/model"
)

func TestDeps_Validate(t *testing.T) {
	d := &Deps{}
	err := d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier")
	assert.Contains(t, err.Error(), "lead store")
}

func TestNewNextCondition(t *testing.T) {
	cond := NewNextCondition(NodeDecision, DecisionRoutes)

	next, err := cond(context.Background(), &model.Turn{Next: NodeSearch})
	require.NoError(t, err)
	assert.Equal(t, NodeSearch, next)

	_, err = cond(context.Background(), &model.Turn{Next: NodeChat})
	assert.Error(t, err)
}

func TestTracePreHandler(t *testing.T) {
	s := &model.AppState{}
	in := &model.Turn{SessionID: "s1"}

	out, err := NewTracePreHandler(NodeDispatch)(context.Background(), in, s)
	require.NoError(t, err)
	_, err = NewTracePreHandler(NodeChat)(context.Background(), out, s)
	require.NoError(t, err)

	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, []string{NodeDispatch, NodeChat}, s.Steps)
}

func TestIntentRoute(t *testing.T) {
	tests := map[model.Intent]string{
		model.IntentPropertySearch:     NodeCapability,
		model.IntentCapabilityQuestion: NodeCapability,
		model.IntentSwitchSearch:       NodeClearMemory,
		model.IntentReset:              NodeClearMemory,
		model.IntentLeadRequest:        NodeLeadCollector,
		model.IntentClarification:      NodeClarify,
		model.IntentGeneralChat:        NodeChat,
	}
	for intent, want := range tests {
		assert.Equal(t, want, intentRoute(intent), intent)
		assert.Contains(t, DispatchRoutes, want)
	}
}

func TestFlowOwner(t *testing.T) {
	st := model.SessionState{ActiveFlow: model.FlowAwaitingEmail, PendingIntent: model.IntentLeadRequest}
	node, intent := flowOwner(st)
	assert.Equal(t, NodeLoadIdentity, node)
	assert.Equal(t, model.IntentLeadRequest, intent)

	node, intent = flowOwner(model.SessionState{ActiveFlow: model.FlowAwaitingSearchFields})
	assert.Equal(t, NodeExtractor, node)
	assert.Equal(t, model.IntentPropertySearch, intent)

	node, _ = flowOwner(model.SessionState{ActiveFlow: model.FlowAwaitingLeadDetails})
	assert.Equal(t, NodeLeadCollector, node)

	node, _ = flowOwner(model.SessionState{})
	assert.Empty(t, node)
}

func TestExtractEmail(t *testing.T) {
	assert.Equal(t, "alex.tan+rent@example.com.sg", ExtractEmail("it's Alex.Tan+rent@Example.com.sg thanks"))
	assert.Empty(t, ExtractEmail("alex at example dot com"))
}

func TestDefaultTable(t *testing.T) {
	assert.Equal(t, model.TableResidentialRent, defaultTable(model.CommonAgent("Ava")))
	assert.Equal(t, model.TableRooms, defaultTable(model.AgentConfig{
		EnabledTables: []model.ListingTable{model.TableCommercialRent, model.TableRooms},
	}))
	assert.Empty(t, defaultTable(model.AgentConfig{}))
}

func TestDenialText(t *testing.T) {
	agent := model.AgentConfig{EnabledTables: []model.ListingTable{model.TableColiving}}
	assert.Equal(t,
		"Sorry, I can't help with commercial rentals here. I can help you with: Co-living Spaces.",
		denialText(agent, model.TableCommercialRent))
	assert.Equal(t, "Sorry, I can't help with properties here.", denialText(model.AgentConfig{}, ""))
}

func TestCapabilityAnswer(t *testing.T) {
	agent := model.AgentConfig{EnabledTables: []model.ListingTable{model.TableColiving}}
	assert.Contains(t, capabilityAnswer(agent, model.TableColiving), "Yes, I can help you with co-living spaces!")
	assert.Contains(t, capabilityAnswer(agent, model.TableRooms), "Sorry, I can't help with standard rooms here.")
	assert.Equal(t, "I can help you with: Co-living Spaces. What are you looking for?", capabilityAnswer(agent, ""))
}

func TestDedupe(t *testing.T) {
	in := []model.Property{{ID: "a"}, {ID: "b"}, {ID: "a"}, {ID: ""}}
	out := dedupe(in)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestAskFieldsText(t *testing.T) {
	one := askFieldsText([]model.FilterField{model.FieldLocation}, model.TableResidentialRent)
	assert.Contains(t, one, "Could you tell me")

	many := askFieldsText([]model.FilterField{model.FieldLocation, model.FieldPropertyType}, model.TableResidentialRent)
	assert.Contains(t, many, "To find the right place for you, could you tell me:\n- ")
}

type stubQuery struct {
	props []model.Property
	calls int
}

func (s *stubQuery) Search(ctx context.Context, table model.ListingTable, filters model.Filters, limit int) ([]model.Property, error) {
	return s.props, nil
}

func (s *stubQuery) GetProperties(ctx context.Context, ids []string) ([]model.Property, error) {
	s.calls++
	var out []model.Property
	for _, id := range ids {
		out = append(out, model.Property{ID: id})
	}
	return out, nil
}

func TestPageProperties(t *testing.T) {
	q := &stubQuery{}
	d := &Deps{Query: q}
	found := []model.Property{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}

	page, err := d.pageProperties(context.Background(), found, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, "B", page[0].Name)
	assert.Zero(t, q.calls)

	page, err = d.pageProperties(context.Background(), nil, []string{"c", "d"})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, 1, q.calls)
}
