package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/chative-realty/leadbot/internal/agent/model"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

var emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)

const (
	askEmailText     = "Before we start, could you share your email address? That way the agent can follow up with you about any listing you like."
	invalidEmailText = "Hmm, that doesn't look like an email address. Could you type it again, e.g. name@example.com?"
)

// ExtractEmail returns the first email address in s, lowercased.
func ExtractEmail(s string) string {
	return strings.ToLower(emailPattern.FindString(s))
}

// NewLoadIdentityNode asks for an email, or stores it and resumes the intent
// that was waiting for it.
func NewLoadIdentityNode(d *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		st := &t.State
		awaiting := st.ActiveFlow == model.FlowAwaitingEmail
		email := ExtractEmail(t.Message)

		if email == "" {
			if awaiting {
				t.Say(invalidEmailText)
			} else {
				st.PendingIntent = t.Classification.Intent
				st.PendingMessage = t.Message
				if t.Classification.Intent == model.IntentPropertySearch && t.Classification.TargetTable.Known() {
					st.TargetTable = t.Classification.TargetTable
				}
				st.ActiveFlow = model.FlowAwaitingEmail
				t.Say(askEmailText)
			}
			t.Next = NodeFinalize
			return t, nil
		}

		intent := t.Classification.Intent
		if awaiting {
			intent = st.PendingIntent
			t.Resumed = st.PendingMessage
		}
		st.PendingIntent = ""
		st.PendingMessage = ""
		st.ActiveFlow = model.FlowNone
		t.Classification.Intent = intent

		d.rememberIdentity(ctx, t, email)

		if !intent.NeedsIdentity() {
			t.Say("How can I help you today?")
			t.Next = NodeFinalize
			return t, nil
		}
		t.Next = intentRoute(intent)
		return t, nil
	})
}

// rememberIdentity stores the email and prefills the profile from the latest
// lead with the same email.
func (d *Deps) rememberIdentity(ctx context.Context, t *model.Turn, email string) {
	id := &t.State.Identity
	id.Email = email
	if id.Name == "" {
		id.Name = strings.TrimSpace(t.UserName)
	}

	prev, err := d.Leads.FindLatestLeadByEmail(ctx, email)
	if err != nil {
		logx.Warn().Err(err).Str("session_id", t.SessionID).Msg("lead lookup by email failed")
	}
	if prev == nil {
		t.Say(fmt.Sprintf("Thanks! I've noted %s.", email))
		return
	}

	id.Returning = true
	if id.Name == "" {
		id.Name = prev.Name
	}
	id.Profile = model.LeadFields{
		Name:        prev.Name,
		Nationality: prev.Nationality,
		PassType:    prev.PassType,
		Phone:       prev.Phone,
		LeaseMonths: prev.LeaseMonths,
	}
	logx.Debug().Str("session_id", t.SessionID).Msg("returning user profile loaded")
	if id.Name != "" {
		t.Say(fmt.Sprintf("Welcome back, %s!", id.Name))
	} else {
		t.Say("Welcome back!")
	}
}
