package model

import (
	"strings"
	"time"
)

// LeadField is a contact detail the lead flow must collect.
type LeadField string

const (
	LeadFieldName        LeadField = "name"
	LeadFieldNationality LeadField = "nationality"
	LeadFieldPassType    LeadField = "pass_type"
	LeadFieldPhone       LeadField = "phone"
	LeadFieldLeaseMonths LeadField = "lease_months"
)

// RequiredLeadFields is the asking order for lead details.
var RequiredLeadFields = []LeadField{
	LeadFieldName,
	LeadFieldNationality,
	LeadFieldPassType,
	LeadFieldPhone,
	LeadFieldLeaseMonths,
}

// Label is the human wording used in prompts.
func (f LeadField) Label() string {
	switch f {
	case LeadFieldName:
		return "your full name"
	case LeadFieldNationality:
		return "your nationality"
	case LeadFieldPassType:
		return "your pass type (e.g. Employment Pass, Student Pass, PR, Citizen)"
	case LeadFieldPhone:
		return "your phone number"
	case LeadFieldLeaseMonths:
		return "how many months you'd like to lease for"
	}
	return string(f)
}

// ViewingType is how the prospect wants to see the listing.
type ViewingType string

const (
	ViewingInPerson ViewingType = "in_person"
	ViewingVirtual  ViewingType = "virtual"
)

// ParseViewingType accepts the stored form and common wordings.
func ParseViewingType(s string) (ViewingType, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return "", false
	case strings.Contains(v, "virtual"), strings.Contains(v, "video"), strings.Contains(v, "online"), strings.Contains(v, "zoom"):
		return ViewingVirtual, true
	case strings.Contains(v, "person"), strings.Contains(v, "physical"), strings.Contains(v, "site"), strings.Contains(v, "onsite"):
		return ViewingInPerson, true
	}
	return "", false
}

func (v ViewingType) Label() string {
	switch v {
	case ViewingInPerson:
		return "In-person"
	case ViewingVirtual:
		return "Virtual"
	}
	return ""
}

// LeadFields are the collected contact details. Zero values are missing.
// ViewingType and TimePreference are optional and never pending.
type LeadFields struct {
	Name           string      `json:"name,omitempty"`
	Nationality    string      `json:"nationality,omitempty"`
	PassType       string      `json:"pass_type,omitempty"`
	Phone          string      `json:"phone,omitempty"`
	LeaseMonths    int         `json:"lease_months,omitempty"`
	ViewingType    ViewingType `json:"viewing_type,omitempty"`
	TimePreference string      `json:"time_preference,omitempty"`
}

// Missing returns the required fields that are still empty, in asking order.
func (l LeadFields) Missing() []LeadField {
	var out []LeadField
	for _, f := range RequiredLeadFields {
		if !l.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (l LeadFields) Has(f LeadField) bool {
	switch f {
	case LeadFieldName:
		return strings.TrimSpace(l.Name) != ""
	case LeadFieldNationality:
		return strings.TrimSpace(l.Nationality) != ""
	case LeadFieldPassType:
		return strings.TrimSpace(l.PassType) != ""
	case LeadFieldPhone:
		return strings.TrimSpace(l.Phone) != ""
	case LeadFieldLeaseMonths:
		return l.LeaseMonths > 0
	}
	return false
}

// PartialLead is what one message contributed to the lead details.
type PartialLead struct {
	Name        *string `json:"name,omitempty"`
	Nationality *string `json:"nationality,omitempty"`
	PassType    *string `json:"pass_type,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	LeaseMonths *int    `json:"lease_months,omitempty"`

	ViewingType    *string `json:"viewing_type,omitempty"`
	TimePreference *string `json:"time_preference,omitempty"`
}

// LeadDraft is an in-progress lead flow instance.
type LeadDraft struct {
	FlowID     string      `json:"flow_id,omitempty"`
	Fields     LeadFields  `json:"fields"`
	Pending    []LeadField `json:"pending_lead_fields"`
	PropertyID string      `json:"property_id,omitempty"`
}

func (d LeadDraft) Started() bool { return d.FlowID != "" }

// Narrow recomputes the pending set from the current fields. Once a flow has
// started the pending set can only shrink: it becomes the intersection of the
// previous pending fields and those still missing.
func (d *LeadDraft) Narrow() {
	missing := d.Fields.Missing()
	if d.Pending == nil {
		d.Pending = missing
		if d.Pending == nil {
			d.Pending = []LeadField{}
		}
		return
	}
	still := make(map[LeadField]bool, len(missing))
	for _, f := range missing {
		still[f] = true
	}
	kept := d.Pending[:0:0]
	for _, f := range d.Pending {
		if still[f] {
			kept = append(kept, f)
		}
	}
	d.Pending = kept
}

// Complete reports whether nothing is pending.
func (d LeadDraft) Complete() bool {
	return d.Started() && d.Pending != nil && len(d.Pending) == 0
}

func (d LeadDraft) Clone() LeadDraft {
	out := d
	if d.Pending != nil {
		out.Pending = append([]LeadField{}, d.Pending...)
	}
	return out
}

// LeadRecord is a persisted prospect enquiry. It is never mutated after creation.
type LeadRecord struct {
	ID           string    `json:"id"`
	FlowID       string    `json:"flow_id"`
	SessionID    string    `json:"session_id"`
	AgentID      string    `json:"agent_id"`
	PropertyID   string    `json:"property_id,omitempty"`
	PropertyName string    `json:"property_name,omitempty"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Nationality  string    `json:"nationality"`
	PassType     string    `json:"pass_type"`
	Phone        string    `json:"phone"`
	LeaseMonths  int       `json:"lease_months"`

	ViewingType    ViewingType `json:"viewing_type,omitempty"`
	TimePreference string      `json:"time_preference,omitempty"`

	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Prospect is the CRM view of a person, keyed by email and refreshed from
// whatever each conversation reveals. Empty fields never overwrite stored ones.
type Prospect struct {
	Email         string    `json:"email"`
	AgentID       string    `json:"agent_id,omitempty"`
	Name          string    `json:"name,omitempty"`
	Gender        string    `json:"gender,omitempty"`
	Nationality   string    `json:"nationality,omitempty"`
	PassType      string    `json:"pass_type,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	LastSessionID string    `json:"last_session_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}
