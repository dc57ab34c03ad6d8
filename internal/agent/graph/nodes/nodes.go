package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/chative-realty/leadbot/internal/agent/model"
	"github.com/chative-realty/leadbot/pkg/background"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

// FallbackReply is sent whenever a turn fails; the session state is left as it was.
const FallbackReply = "Sorry, I ran into a problem handling that. Could you please try again in a moment?"

const (
	defaultPageSize    = 3
	defaultSearchLimit = 10
	kbResultLimit      = 3
)

// TaskSubmitter hands work to the background registry without blocking.
type TaskSubmitter interface {
	Submit(name string, task background.Task) error
}

// Deps are the collaborators shared by every node.
type Deps struct {
	Classifier model.Classifier
	Extractor  model.Extractor
	Responder  model.Responder
	Query      model.QueryService
	KB         model.KnowledgeBase
	Leads      model.LeadStore
	Prospects  model.ProspectStore
	Notifier   model.Notifier
	Background TaskSubmitter

	Prompt      model.ResponsePromptConfig
	PageSize    int
	SearchLimit int
	Now         func() time.Time
}

// Validate checks the required collaborators and fills defaults.
func (d *Deps) Validate() error {
	var missing []string
	if d.Classifier == nil {
		missing = append(missing, "classifier")
	}
	if d.Extractor == nil {
		missing = append(missing, "extractor")
	}
	if d.Responder == nil {
		missing = append(missing, "responder")
	}
	if d.Query == nil {
		missing = append(missing, "query service")
	}
	if d.Leads == nil {
		missing = append(missing, "lead store")
	}
	if len(missing) > 0 {
		return fmt.Errorf("node deps missing: %s", strings.Join(missing, ", "))
	}
	if d.PageSize <= 0 {
		d.PageSize = defaultPageSize
	}
	if d.SearchLimit <= 0 {
		d.SearchLimit = defaultSearchLimit
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Prompt.Currency == "" {
		d.Prompt.Currency = "SGD"
	}
	return nil
}

// NewTracePreHandler records the node in the turn's step trace.
func NewTracePreHandler(node string) func(context.Context, *model.Turn, *model.AppState) (*model.Turn, error) {
	return func(ctx context.Context, in *model.Turn, s *model.AppState) (*model.Turn, error) {
		if s.SessionID == "" {
			s.SessionID = in.SessionID
		}
		s.Steps = append(s.Steps, node)
		return in, nil
	}
}

// NewNextCondition routes on the hint the previous node left in Turn.Next.
func NewNextCondition(from string, allowed []string) func(context.Context, *model.Turn) (string, error) {
	ok := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		ok[a] = true
	}
	return func(ctx context.Context, t *model.Turn) (string, error) {
		next := t.Next
		if !ok[next] {
			return "", fmt.Errorf("node %s routed to unexpected %q", from, next)
		}
		logx.Debug().Str("session_id", t.SessionID).Str("from", from).Str("to", next).Msg("route")
		return next, nil
	}
}

// NewFinalizeNode copies the step trace and cost from graph state into the turn.
func NewFinalizeNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		_ = compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			t.Steps = append([]string(nil), s.Steps...)
			t.CostUSD = s.TotalCostUSD
			return nil
		})
		t.Next = ""
		if strings.TrimSpace(t.Reply) == "" {
			logx.Warn().Str("session_id", t.SessionID).Strs("steps", t.Steps).Msg("turn produced no reply")
			t.Reply = FallbackReply
		}
		logx.Info().
			Str("session_id", t.SessionID).
			Str("intent", string(t.Classification.Intent)).
			Str("flow", t.State.ActiveFlow.String()).
			Strs("steps", t.Steps).
			Float64("cost_usd", t.CostUSD).
			Msg("turn routed")
		return t, nil
	})
}

// intentRoute is the first node for an intent once identity is settled.
func intentRoute(intent model.Intent) string {
	switch intent {
	case model.IntentPropertySearch, model.IntentCapabilityQuestion:
		return NodeCapability
	case model.IntentSwitchSearch, model.IntentReset:
		return NodeClearMemory
	case model.IntentLeadRequest:
		return NodeLeadCollector
	case model.IntentClarification:
		return NodeClarify
	default:
		return NodeChat
	}
}

// flowOwner is the node that continues an active flow and the intent it serves.
func flowOwner(st model.SessionState) (string, model.Intent) {
	switch st.ActiveFlow {
	case model.FlowAwaitingEmail:
		return NodeLoadIdentity, st.PendingIntent
	case model.FlowAwaitingSearchFields:
		return NodeExtractor, model.IntentPropertySearch
	case model.FlowAwaitingLeadDetails:
		return NodeLeadCollector, model.IntentLeadRequest
	}
	return "", ""
}

// sayNotes emits pending validation notes once.
func sayNotes(t *model.Turn) []string {
	notes := t.Notes
	for _, n := range notes {
		t.Say(n)
	}
	t.Notes = nil
	return notes
}

func servicesText(a model.AgentConfig) string {
	services := a.EnabledServices()
	if len(services) == 0 {
		return ""
	}
	return strings.Join(services, ", ")
}
