package model

import "time"

// Identity is who the user is. It survives resets.
type Identity struct {
	Email     string     `json:"email,omitempty"`
	Name      string     `json:"name,omitempty"`
	Returning bool       `json:"returning,omitempty"`
	Profile   LeadFields `json:"profile"`
}

// SessionState is the per-session conversational memory.
// Version is the compare-and-swap token; stores bump it on every save.
type SessionState struct {
	SessionID      string       `json:"session_id"`
	Version        int64        `json:"version"`
	ActiveFlow     Flow         `json:"active_flow,omitempty"`
	PendingIntent  Intent       `json:"pending_intent,omitempty"`
	PendingMessage string       `json:"pending_message,omitempty"`
	TargetTable    ListingTable `json:"target_table,omitempty"`
	Filters        Filters      `json:"collected_filters"`
	Lead           LeadDraft    `json:"lead"`
	LastShown      []string     `json:"last_shown_properties,omitempty"`
	SearchResults  []string     `json:"search_results,omitempty"`
	ShownCount     int          `json:"shown_count,omitempty"`
	Identity       Identity     `json:"user_identity"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NewSessionState returns the default state for an unseen session.
func NewSessionState(sessionID string) SessionState {
	return SessionState{SessionID: sessionID}
}

// Clone returns a deep copy so a draft can be discarded without touching the original.
func (s SessionState) Clone() SessionState {
	out := s
	out.Filters = s.Filters.Clone()
	out.Lead = s.Lead.Clone()
	out.LastShown = cloneStrings(s.LastShown)
	out.SearchResults = cloneStrings(s.SearchResults)
	return out
}

// ResetSearch clears search and lead progress. Identity is kept.
func (s *SessionState) ResetSearch() {
	s.ActiveFlow = FlowNone
	s.PendingIntent = ""
	s.PendingMessage = ""
	s.TargetTable = ""
	s.Filters = Filters{}
	s.Lead = LeadDraft{}
	s.LastShown = nil
	s.SearchResults = nil
	s.ShownCount = 0
}

// RemainingResults is how many found listings have not been shown yet.
func (s SessionState) RemainingResults() int {
	n := len(s.SearchResults) - s.ShownCount
	if n < 0 {
		return 0
	}
	return n
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}
