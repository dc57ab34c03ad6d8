package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// AgentResolver looks up agent configuration. Missing agents yield errx.ErrNotFound.
type AgentResolver interface {
	GetAgent(ctx context.Context, agentID string) (*AgentConfig, error)
}

// Classifier picks the intent for a message when no flow is active.
type Classifier interface {
	Classify(ctx context.Context, message string, state SessionState, history []*schema.Message) (Classification, error)
}

// Extractor turns free text into structured values. Results are best-effort and may be empty.
type Extractor interface {
	ExtractFilters(ctx context.Context, message string, known Filters) (PartialFilters, error)
	ExtractLeadFields(ctx context.Context, message string, known LeadFields) (PartialLead, error)
}

// Responder produces free-form replies.
type Responder interface {
	AskForFields(ctx context.Context, req ElicitRequest) (string, error)
	Chat(ctx context.Context, req ChatRequest) (string, error)
	SummarizeLead(ctx context.Context, req SummaryRequest) (string, error)
}

// QueryService reads listings.
type QueryService interface {
	Search(ctx context.Context, table ListingTable, filters Filters, limit int) ([]Property, error)
	GetProperties(ctx context.Context, ids []string) ([]Property, error)
}

// KnowledgeBase searches agent documents.
type KnowledgeBase interface {
	SearchDocuments(ctx context.Context, agentID, query string, limit int) ([]KBDocument, error)
}

// LeadStore persists leads. SaveLead is idempotent on FlowID: a repeated save
// returns the existing id with created=false.
type LeadStore interface {
	SaveLead(ctx context.Context, lead LeadRecord) (id string, created bool, err error)
	FindLatestLeadByEmail(ctx context.Context, email string) (*LeadRecord, error)
}

// ProspectStore keeps the CRM record per prospect email. Upserts merge:
// empty fields leave stored values in place.
type ProspectStore interface {
	UpsertProspect(ctx context.Context, p Prospect) error
	GetProspect(ctx context.Context, email string) (*Prospect, error)
}

// SessionIndex remembers the latest session per external user id for a
// limited window so a returning user continues the same conversation.
// ActiveSession returns "" when there is none.
type SessionIndex interface {
	ActiveSession(ctx context.Context, userID string) (string, error)
	TouchSession(ctx context.Context, userID, sessionID string) error
}

// SessionStore persists SessionState with compare-and-swap on Version.
// Load returns a fresh state for unknown sessions. Save fails with
// errx.ErrStaleState when the stored version differs from expected.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (SessionState, error)
	Save(ctx context.Context, state SessionState, expected int64) (SessionState, error)
}

// Notifier delivers lead notifications. It is only called from background tasks.
type Notifier interface {
	SendLeadEmail(ctx context.Context, agentEmail string, lead LeadRecord, summary string) error
}

// ElicitRequest asks the user for missing search fields.
type ElicitRequest struct {
	Agent   AgentConfig
	Table   ListingTable
	Filters Filters
	Missing []FilterField
	Notes   []string
	Message string
}

// ChatRequest is an open conversation turn.
type ChatRequest struct {
	Agent      AgentConfig
	Message    string
	History    []*schema.Message
	Documents  []KBDocument
	Properties []Property
	Identity   Identity
}

// SummaryRequest summarises a conversation for the agent's lead email.
type SummaryRequest struct {
	Lead     LeadRecord
	Property *Property
	Filters  Filters
	History  []*schema.Message
}
