package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/chative-realty/leadbot/internal/agent/model"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

// NewCapabilityNode answers capability questions and gates searches on the
// agent's enabled tables. An unresolved table is allowed through.
func NewCapabilityNode(d *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		st := &t.State
		table := t.Classification.TargetTable
		if !table.Known() {
			table = st.TargetTable
		}
		if !table.Known() {
			table = model.ResolveTable(st.Filters)
		}

		if t.Classification.Intent == model.IntentCapabilityQuestion {
			t.Say(capabilityAnswer(t.Agent, table))
			t.Next = NodeFinalize
			return t, nil
		}

		if table.Known() && !t.Agent.Enables(table) {
			logx.Info().
				Str("session_id", t.SessionID).
				Str("agent_id", t.Agent.ID).
				Str("table", string(table)).
				Msg("search denied by capability check")
			st.ActiveFlow = model.FlowNone
			t.Say(denialText(t.Agent, table))
			t.Next = NodeFinalize
			return t, nil
		}
		if table.Known() {
			st.TargetTable = table
		}
		t.Next = NodeExtractor
		return t, nil
	})
}

func capabilityAnswer(a model.AgentConfig, table model.ListingTable) string {
	if table.Known() {
		if !a.Enables(table) {
			return denialText(a, table)
		}
		return fmt.Sprintf("Yes, I can help you with %s! Tell me the area, budget and the kind of place you have in mind.",
			strings.ToLower(table.DisplayName()))
	}
	services := servicesText(a)
	if services == "" {
		return "I'm not able to help with property searches right now, but I'm happy to answer general questions."
	}
	return fmt.Sprintf("I can help you with: %s. What are you looking for?", services)
}

func denialText(a model.AgentConfig, table model.ListingTable) string {
	name := "properties"
	if table.Known() {
		name = strings.ToLower(table.DisplayName())
	}
	services := servicesText(a)
	if services == "" {
		return fmt.Sprintf("Sorry, I can't help with %s here.", name)
	}
	return fmt.Sprintf("Sorry, I can't help with %s here. I can help you with: %s.", name, services)
}
