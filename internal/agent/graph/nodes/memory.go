package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/chative-realty/leadbot/internal/agent/model"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

const resetText = "Done! I've cleared your search. What would you like to look for next?"

// NewClearMemoryNode resets search and lead progress. Identity survives. A
// switch keeps the tenant's own details and continues into a new search.
func NewClearMemoryNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		st := &t.State
		switching := t.Classification.Intent == model.IntentSwitchSearch

		var keep model.Filters
		if switching {
			keep.TenantGender = st.Filters.Clone().TenantGender
			keep.TenantNationality = st.Filters.Clone().TenantNationality
		}
		st.ResetSearch()
		st.Filters = keep

		logx.Debug().Str("session_id", t.SessionID).Bool("switching", switching).Msg("search memory cleared")
		if switching {
			t.Next = NodeCapability
			return t, nil
		}
		t.Say(resetText)
		t.Next = NodeFinalize
		return t, nil
	})
}
