package model

import (
	"fmt"
	"strings"
)

// Flow marks a multi-turn task in progress. The zero value means no flow.
type Flow string

const (
	FlowNone                 Flow = ""
	FlowAwaitingEmail        Flow = "awaiting_email"
	FlowAwaitingSearchFields Flow = "awaiting_search_fields"
	FlowAwaitingLeadDetails  Flow = "awaiting_lead_details"
)

// ParseFlow validates a stored flow tag against the closed set.
func ParseFlow(s string) (Flow, error) {
	switch f := Flow(strings.TrimSpace(s)); f {
	case FlowNone, FlowAwaitingEmail, FlowAwaitingSearchFields, FlowAwaitingLeadDetails:
		return f, nil
	default:
		return FlowNone, fmt.Errorf("unknown flow %q", s)
	}
}

func (f Flow) Active() bool { return f != FlowNone }

func (f Flow) String() string {
	if f == FlowNone {
		return "none"
	}
	return string(f)
}

func (f *Flow) UnmarshalText(b []byte) error {
	parsed, err := ParseFlow(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Intent is the classifier's verdict for a message when no flow is active.
type Intent string

const (
	IntentPropertySearch     Intent = "property_search"
	IntentSwitchSearch       Intent = "switch_search"
	IntentLeadRequest        Intent = "lead_request"
	IntentCapabilityQuestion Intent = "capability_question"
	IntentReset              Intent = "reset"
	IntentClarification      Intent = "clarification"
	IntentGeneralChat        Intent = "general_chat"
)

var intentAliases = map[string]Intent{
	"property_search":     IntentPropertySearch,
	"search":              IntentPropertySearch,
	"switch_search":       IntentSwitchSearch,
	"lead_request":        IntentLeadRequest,
	"appointment":         IntentLeadRequest,
	"viewing":             IntentLeadRequest,
	"capability_question": IntentCapabilityQuestion,
	"capability":          IntentCapabilityQuestion,
	"reset":               IntentReset,
	"clear_memory":        IntentReset,
	"clarification":       IntentClarification,
	"general_chat":        IntentGeneralChat,
	"intelligent_chat":    IntentGeneralChat,
}

// ParseIntent maps raw classifier output onto the closed intent set.
// Anything unrecognised is general chat; ok reports whether the label was known.
func ParseIntent(raw string) (intent Intent, ok bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	if i, found := intentAliases[key]; found {
		return i, true
	}
	return IntentGeneralChat, false
}

// NeedsIdentity reports whether the intent requires a known email before it runs.
func (i Intent) NeedsIdentity() bool {
	switch i {
	case IntentPropertySearch, IntentSwitchSearch, IntentLeadRequest:
		return true
	}
	return false
}

func (i *Intent) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*i = ""
		return nil
	}
	parsed, ok := ParseIntent(string(b))
	if !ok {
		return fmt.Errorf("unknown intent %q", string(b))
	}
	*i = parsed
	return nil
}

// ListingTable identifies one of the listing collections an agent can serve.
type ListingTable string

const (
	TableColiving             ListingTable = "coliving_property"
	TableRooms                ListingTable = "rooms_for_rent"
	TableResidentialRent      ListingTable = "residential_properties_for_rent"
	TableResidentialResale    ListingTable = "residential_properties_for_resale"
	TableResidentialDeveloper ListingTable = "residential_properties_for_sale_by_developers"
	TableCommercialRent       ListingTable = "commercial_properties_for_rent"
	TableCommercialResale     ListingTable = "commercial_properties_for_resale"
	TableCommercialDeveloper  ListingTable = "commercial_properties_for_sale_by_developers"
)

type tableInfo struct {
	name       string
	room       bool
	commercial bool
	rental     bool
}

var listingTables = map[ListingTable]tableInfo{
	TableColiving:             {name: "Co-living Spaces", room: true, rental: true},
	TableRooms:                {name: "Standard Rooms", room: true, rental: true},
	TableResidentialRent:      {name: "Whole Unit Rentals", rental: true},
	TableResidentialResale:    {name: "Residential Sales"},
	TableResidentialDeveloper: {name: "New Launch Residential"},
	TableCommercialRent:       {name: "Commercial Rentals", commercial: true, rental: true},
	TableCommercialResale:     {name: "Commercial Sales", commercial: true},
	TableCommercialDeveloper:  {name: "New Launch Commercial", commercial: true},
}

// AllListingTables returns every table in display order.
func AllListingTables() []ListingTable {
	return []ListingTable{
		TableColiving,
		TableRooms,
		TableResidentialRent,
		TableResidentialResale,
		TableResidentialDeveloper,
		TableCommercialRent,
		TableCommercialResale,
		TableCommercialDeveloper,
	}
}

// ParseListingTable validates a table name; the empty string is not a table.
func ParseListingTable(s string) (ListingTable, bool) {
	t := ListingTable(strings.ToLower(strings.TrimSpace(s)))
	_, ok := listingTables[t]
	return t, ok
}

func (t ListingTable) Known() bool {
	_, ok := listingTables[t]
	return ok
}

func (t ListingTable) DisplayName() string {
	if info, ok := listingTables[t]; ok {
		return info.name
	}
	return string(t)
}

// IsRoom covers co-living and room rentals, which are matched on tenant gender.
func (t ListingTable) IsRoom() bool { return listingTables[t].room }

func (t ListingTable) IsCommercial() bool { return listingTables[t].commercial }

func (t ListingTable) IsResidential() bool {
	info, ok := listingTables[t]
	return ok && !info.room && !info.commercial
}

func (t ListingTable) IsRental() bool { return listingTables[t].rental }

// MinLeaseMonths is the shortest lease accepted in a lead for this table.
func (t ListingTable) MinLeaseMonths() int {
	if t.IsRoom() || !t.Known() {
		return 3
	}
	return 12
}
