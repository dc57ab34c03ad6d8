package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/chative-realty/leadbot/internal/agent/model"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

// NewDispatchNode picks the first handler. An active flow owns the turn and
// the classifier is not consulted; otherwise the classified intent decides,
// behind the identity gate for intents that need an email.
func NewDispatchNode(d *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		st := &t.State

		if st.ActiveFlow.Active() {
			if next, intent := flowOwner(*st); next != "" {
				t.Classification = model.Classification{Intent: intent, TargetTable: st.TargetTable}
				t.Next = next
				logx.Debug().
					Str("session_id", t.SessionID).
					Str("flow", st.ActiveFlow.String()).
					Str("node", next).
					Msg("continuing active flow")
				return t, nil
			}
			logx.Warn().Str("session_id", t.SessionID).Str("flow", string(st.ActiveFlow)).Msg("dropping unknown flow")
			st.ActiveFlow = model.FlowNone
		}

		c, err := d.Classifier.Classify(ctx, t.Message, *st, t.History)
		if err != nil {
			logx.Warn().Err(err).Str("session_id", t.SessionID).Msg("classification failed, using general chat")
			c = model.Classification{Intent: model.IntentGeneralChat}
		}
		if intent, ok := model.ParseIntent(string(c.Intent)); ok {
			c.Intent = intent
		} else {
			c.Intent = model.IntentGeneralChat
		}
		if c.TargetTable != "" && !c.TargetTable.Known() {
			c.TargetTable = ""
		}
		t.Classification = c

		if c.Intent.NeedsIdentity() && st.Identity.Email == "" {
			t.Next = NodeLoadIdentity
			return t, nil
		}
		t.Next = intentRoute(c.Intent)
		return t, nil
	})
}
