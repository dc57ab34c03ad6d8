package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"

	"github.com/chative-realty/leadbot/internal/agent/model"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

// DefaultPhoneRegion is used for numbers written without a country code.
const DefaultPhoneRegion = "SG"

const (
	leadCancelledText     = "No problem, I've cancelled the viewing request. Let me know if there's anything else I can help with."
	viewingPreferenceHint = "If you have a preference, let me know whether you'd like a virtual or in-person viewing and which days or times suit you."
	whichPropertyText     = "Which place are you thinking about?"
)

var (
	ordinalPattern = regexp.MustCompile(`(?i)\b(first|1st|second|2nd|third|3rd|fourth|4th|fifth|5th|last)\b|(?:\bnumber|\bno\.?|\boption|#)\s*(\d+)\b`)
	ordinalWords   = map[string]int{
		"first": 1, "1st": 1,
		"second": 2, "2nd": 2,
		"third": 3, "3rd": 3,
		"fourth": 4, "4th": 4,
		"fifth": 5, "5th": 5,
		"last": -1,
	}
)

// NewLeadCollectorNode runs the lead flow: it collects the required contact
// details over as many turns as needed, then saves the lead once and hands the
// agent notification to the background registry.
func NewLeadCollectorNode(d *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		st := &t.State
		text := t.SearchText()

		if st.Lead.Started() && model.IsCancelRequest(t.Message) {
			logx.Info().Str("session_id", t.SessionID).Str("flow_id", st.Lead.FlowID).Msg("lead flow cancelled")
			st.Lead = model.LeadDraft{}
			st.ActiveFlow = model.FlowNone
			t.Say(leadCancelledText)
			return t, nil
		}

		entering := !st.Lead.Started()
		if entering {
			st.Lead = model.LeadDraft{FlowID: uuid.NewString(), Fields: st.Identity.Profile}
			if st.Lead.Fields.Name == "" {
				st.Lead.Fields.Name = firstNonEmpty(st.Identity.Name, t.UserName)
			}
			logx.Info().Str("session_id", t.SessionID).Str("flow_id", st.Lead.FlowID).Msg("lead flow started")
		}
		if st.Lead.PropertyID == "" {
			st.Lead.PropertyID = d.resolveLeadProperty(ctx, text, st.LastShown)
		}

		partial, err := d.Extractor.ExtractLeadFields(ctx, text, st.Lead.Fields)
		if err != nil {
			return nil, fmt.Errorf("extract lead fields: %w", err)
		}
		invalid := applyLeadFields(&st.Lead.Fields, partial, st.TargetTable.MinLeaseMonths())
		st.Lead.Narrow()
		d.syncProspect(ctx, t)

		// Several listings on screen and none named: the lead needs to say which.
		needProperty := st.Lead.PropertyID == "" && len(st.LastShown) > 1

		if entering {
			t.Say(d.leadIntro(ctx, st.Lead.PropertyID))
		}
		if len(invalid) > 0 {
			st.ActiveFlow = model.FlowAwaitingLeadDetails
			for _, msg := range invalid {
				t.Say(msg)
			}
			return t, nil
		}
		if needProperty || !st.Lead.Complete() {
			st.ActiveFlow = model.FlowAwaitingLeadDetails
			if needProperty {
				t.Say(d.askPropertyText(ctx, st.LastShown))
			}
			if !st.Lead.Complete() {
				ask := askLeadFieldsText(st.Lead.Pending)
				if entering && st.Lead.Fields.ViewingType == "" && st.Lead.Fields.TimePreference == "" {
					ask += "\n" + viewingPreferenceHint
				}
				t.Say(ask)
			}
			return t, nil
		}

		if err := d.completeLead(ctx, t); err != nil {
			return nil, err
		}
		return t, nil
	})
}

// completeLead persists the lead and notifies the agent when the record is new.
// Saving is idempotent on the flow id, so a retried completion never notifies twice.
func (d *Deps) completeLead(ctx context.Context, t *model.Turn) error {
	st := &t.State
	f := st.Lead.Fields
	lead := model.LeadRecord{
		FlowID:      st.Lead.FlowID,
		SessionID:   t.SessionID,
		AgentID:     t.Agent.ID,
		PropertyID:  st.Lead.PropertyID,
		Email:       st.Identity.Email,
		Name:        f.Name,
		Nationality: f.Nationality,
		PassType:    f.PassType,
		Phone:       f.Phone,
		LeaseMonths: f.LeaseMonths,

		ViewingType:    f.ViewingType,
		TimePreference: f.TimePreference,
		CreatedAt:      d.Now().UTC(),
	}

	var property *model.Property
	if lead.PropertyID != "" {
		props, err := d.Query.GetProperties(ctx, []string{lead.PropertyID})
		if err != nil {
			logx.Warn().Err(err).Str("property_id", lead.PropertyID).Msg("loading lead property failed")
		} else if len(props) > 0 {
			property = &props[0]
			lead.PropertyName = property.Name
		}
	}

	summary, err := d.Responder.SummarizeLead(ctx, model.SummaryRequest{
		Lead:     lead,
		Property: property,
		Filters:  st.Filters,
		History:  t.History,
	})
	if err != nil || strings.TrimSpace(summary) == "" {
		logx.Warn().Err(err).Str("flow_id", lead.FlowID).Msg("lead summary generation failed, using template")
		summary = FallbackLeadSummary(lead, property, st.Filters)
	}
	lead.Summary = summary

	id, created, err := d.Leads.SaveLead(ctx, lead)
	if err != nil {
		return fmt.Errorf("save lead: %w", err)
	}
	lead.ID = id
	logx.Info().
		Str("session_id", t.SessionID).
		Str("flow_id", lead.FlowID).
		Str("lead_id", id).
		Bool("created", created).
		Msg("lead saved")

	if created {
		d.notifyAgent(t.Agent, lead)
	}

	// Viewing preferences belong to this enquiry, not to the person.
	st.Identity.Profile = f
	st.Identity.Profile.ViewingType = ""
	st.Identity.Profile.TimePreference = ""
	if st.Identity.Name == "" {
		st.Identity.Name = f.Name
	}
	st.Lead = model.LeadDraft{}
	st.ActiveFlow = model.FlowNone

	agent := "the agent"
	if t.Agent.ID != model.CommonAgentID && t.Agent.Name != "" {
		agent = t.Agent.Name
	}
	t.Say(fmt.Sprintf("Thank you, %s! I've passed your details to %s, who will contact you at %s shortly.", f.Name, agent, f.Phone))
	return nil
}

func (d *Deps) notifyAgent(agent model.AgentConfig, lead model.LeadRecord) {
	if d.Notifier == nil || d.Background == nil {
		logx.Warn().Str("lead_id", lead.ID).Msg("no notifier configured, lead notification skipped")
		return
	}
	to := strings.TrimSpace(agent.NotificationEmail)
	if to == "" {
		logx.Info().Str("lead_id", lead.ID).Str("agent_id", agent.ID).Msg("agent has no notification email, lead notification skipped")
		return
	}
	err := d.Background.Submit("lead-notification", func(ctx context.Context) error {
		return d.Notifier.SendLeadEmail(ctx, to, lead, lead.Summary)
	})
	if err != nil {
		logx.Warn().Err(err).Str("lead_id", lead.ID).Msg("lead notification not scheduled")
	}
}

func (d *Deps) leadIntro(ctx context.Context, propertyID string) string {
	if propertyID != "" {
		props, err := d.Query.GetProperties(ctx, []string{propertyID})
		if err == nil && len(props) > 0 {
			return fmt.Sprintf("Great choice! Let's arrange a viewing for %s.", props[0].Name)
		}
	}
	return "Great, let's get a viewing arranged."
}

// applyLeadFields copies valid values into fields and returns a re-prompt for each invalid one.
func applyLeadFields(fields *model.LeadFields, p model.PartialLead, minLease int) []string {
	var invalid []string
	if v := trimmed(p.Name); v != "" {
		fields.Name = v
	}
	if v := trimmed(p.Nationality); v != "" {
		fields.Nationality = v
	}
	if v := trimmed(p.PassType); v != "" {
		fields.PassType = v
	}
	if v := trimmed(p.Phone); v != "" {
		if e164, ok := NormalizePhone(v); ok {
			fields.Phone = e164
		} else {
			invalid = append(invalid, fmt.Sprintf("The phone number %q doesn't look right. Could you send it again, with the country code if it's not a Singapore number?", v))
		}
	}
	if v := trimmed(p.ViewingType); v != "" {
		if vt, ok := model.ParseViewingType(v); ok {
			fields.ViewingType = vt
		}
	}
	if v := trimmed(p.TimePreference); v != "" {
		fields.TimePreference = v
	}
	if p.LeaseMonths != nil && *p.LeaseMonths > 0 {
		if *p.LeaseMonths < minLease {
			invalid = append(invalid, fmt.Sprintf("The minimum lease here is %d months. How many months would you like to lease for?", minLease))
		} else {
			fields.LeaseMonths = *p.LeaseMonths
		}
	}
	return invalid
}

// NormalizePhone validates a phone number and formats it as E.164.
func NormalizePhone(raw string) (string, bool) {
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

// ResolvePropertyRef maps "the second one" or "option 2" onto the shown ids.
// With a single shown listing that listing is implied.
func ResolvePropertyRef(msg string, shown []string) string {
	if len(shown) == 0 {
		return ""
	}
	m := ordinalPattern.FindStringSubmatch(msg)
	if m == nil {
		if len(shown) == 1 {
			return shown[0]
		}
		return ""
	}
	idx := 0
	if m[1] != "" {
		idx = ordinalWords[strings.ToLower(m[1])]
	} else {
		idx, _ = strconv.Atoi(m[2])
	}
	if idx == -1 {
		idx = len(shown)
	}
	if idx < 1 || idx > len(shown) {
		return ""
	}
	return shown[idx-1]
}

// resolveLeadProperty finds the listing the user means: an ordinal reference,
// the only listing shown, or a listing named in the message.
func (d *Deps) resolveLeadProperty(ctx context.Context, msg string, shown []string) string {
	if id := ResolvePropertyRef(msg, shown); id != "" || len(shown) < 2 {
		return id
	}
	props, err := d.Query.GetProperties(ctx, shown)
	if err != nil {
		logx.Warn().Err(err).Msg("loading shown listings failed, cannot match by name")
		return ""
	}
	return MatchPropertyName(msg, props)
}

var nameWord = regexp.MustCompile(`[\p{L}\p{N}]+`)

// MatchPropertyName picks the listing whose name the message mentions. A full
// name wins; otherwise a name word counts only when no other listing shares it
// and it is not an area name. Ties resolve to nothing.
func MatchPropertyName(msg string, props []model.Property) string {
	lower := strings.ToLower(msg)
	for _, p := range props {
		if name := strings.ToLower(strings.TrimSpace(p.Name)); name != "" && strings.Contains(lower, name) {
			return p.ID
		}
	}

	owners := make(map[string]map[string]bool)
	areas := make(map[string]bool)
	for _, p := range props {
		for _, w := range nameWord.FindAllString(strings.ToLower(p.Area), -1) {
			areas[w] = true
		}
		for _, w := range nameWord.FindAllString(strings.ToLower(p.Name), -1) {
			if owners[w] == nil {
				owners[w] = make(map[string]bool)
			}
			owners[w][p.ID] = true
		}
	}

	said := make(map[string]bool)
	for _, w := range nameWord.FindAllString(lower, -1) {
		said[w] = true
	}
	hits := make(map[string]int)
	for w, ids := range owners {
		if len(ids) != 1 || len(w) < 3 || areas[w] || !said[w] {
			continue
		}
		for id := range ids {
			hits[id]++
		}
	}

	best, bestN, tie := "", 0, false
	for _, p := range props {
		switch n := hits[p.ID]; {
		case n > bestN:
			best, bestN, tie = p.ID, n, false
		case n > 0 && n == bestN:
			tie = true
		}
	}
	if tie {
		return ""
	}
	return best
}

func (d *Deps) askPropertyText(ctx context.Context, shown []string) string {
	props, err := d.Query.GetProperties(ctx, shown)
	if err != nil || len(props) == 0 {
		return whichPropertyText + ` You can say "the first one" or use the listing name.`
	}
	var b strings.Builder
	b.WriteString(whichPropertyText)
	for i, p := range props {
		fmt.Fprintf(&b, "\n%d. %s", i+1, p.Name)
		if p.Area != "" {
			fmt.Fprintf(&b, " (%s)", p.Area)
		}
	}
	return b.String()
}

func askLeadFieldsText(pending []model.LeadField) string {
	if len(pending) == 1 {
		return fmt.Sprintf("Could you share %s?", pending[0].Label())
	}
	var b strings.Builder
	b.WriteString("I just need a few details:")
	for _, f := range pending {
		b.WriteString("\n- ")
		b.WriteString(f.Label())
	}
	return b.String()
}

// FallbackLeadSummary is the Markdown summary used when the model cannot write one.
func FallbackLeadSummary(lead model.LeadRecord, property *model.Property, f model.Filters) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- **Name:** %s\n", lead.Name)
	fmt.Fprintf(&b, "- **Email:** %s\n", lead.Email)
	fmt.Fprintf(&b, "- **Phone:** %s\n", lead.Phone)
	fmt.Fprintf(&b, "- **Nationality:** %s\n", lead.Nationality)
	fmt.Fprintf(&b, "- **Pass type:** %s\n", lead.PassType)
	fmt.Fprintf(&b, "- **Lease:** %d months\n", lead.LeaseMonths)
	if lead.ViewingType != "" {
		fmt.Fprintf(&b, "- **Viewing:** %s\n", lead.ViewingType.Label())
	}
	if lead.TimePreference != "" {
		fmt.Fprintf(&b, "- **Preferred time:** %s\n", lead.TimePreference)
	}
	if property != nil {
		fmt.Fprintf(&b, "- **Property:** %s (%s)\n", property.Name, property.Area)
	}
	fmt.Fprintf(&b, "\nSearch criteria: %s.", f.Describe())
	return b.String()
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
