package nodes

import (
	"context"

	"github.com/chative-realty/leadbot/internal/agent/model"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

// syncProspect copies what the turn revealed about the user into the CRM
// record. It never fails the turn.
func (d *Deps) syncProspect(ctx context.Context, t *model.Turn) {
	st := &t.State
	if d.Prospects == nil || st.Identity.Email == "" {
		return
	}
	p := model.Prospect{
		Email:         st.Identity.Email,
		AgentID:       t.Agent.ID,
		Name:          firstNonEmpty(st.Lead.Fields.Name, st.Identity.Profile.Name, st.Identity.Name),
		Nationality:   firstNonEmpty(st.Lead.Fields.Nationality, derefString(st.Filters.TenantNationality)),
		Gender:        derefString(st.Filters.TenantGender),
		PassType:      st.Lead.Fields.PassType,
		Phone:         st.Lead.Fields.Phone,
		LastSessionID: t.SessionID,
	}
	if err := d.Prospects.UpsertProspect(ctx, p); err != nil {
		logx.Warn().Err(err).Str("session_id", t.SessionID).Msg("prospect update failed")
	}
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
