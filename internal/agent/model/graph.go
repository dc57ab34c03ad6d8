package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - Registered as Graph Local State via compose.WithGenLocalState.
//   - Read and written only inside state handlers or compose.ProcessState,
//     which Eino serializes, so no extra locking is needed.
type AppState struct {
	SessionID string
	Steps     []string // node keys in visiting order
	LLMCalls  int

	// Accumulated total LLM cost (USD) across model invocations for this turn
	TotalCostUSD float64
}

// Classification is the validated classifier output.
type Classification struct {
	Intent        Intent       `json:"intent"`
	TargetTable   ListingTable `json:"target_table,omitempty"`
	Clarification string       `json:"clarification,omitempty"`
}

// Turn is the value flowing through the router graph for one message.
// Prior is never modified; nodes edit State, which the router saves atomically.
type Turn struct {
	SessionID string
	Message   string
	UserName  string
	Agent     AgentConfig
	History   []*schema.Message

	Prior SessionState
	State SessionState

	Classification Classification
	Resumed        string // deferred message replayed after the identity step

	Missing []FilterField
	Notes   []string
	Found   []Property
	Shown   []Property
	Reply   string

	// Next is the routing hint read by the branch after the current node.
	Next string

	Steps   []string
	CostUSD float64
}

// NewTurn prepares a turn whose draft is a deep copy of prior.
func NewTurn(in RouteInput, prior SessionState, history []*schema.Message) *Turn {
	return &Turn{
		SessionID: in.SessionID,
		Message:   in.Message,
		UserName:  in.UserName,
		Agent:     in.Agent,
		History:   history,
		Prior:     prior,
		State:     prior.Clone(),
	}
}

// SearchText is the text filters are extracted from: the replayed message, if any, plus this one.
func (t *Turn) SearchText() string {
	if t.Resumed == "" {
		return t.Message
	}
	return t.Resumed + "\n" + t.Message
}

// Say appends a paragraph to the reply.
func (t *Turn) Say(text string) {
	if text == "" {
		return
	}
	if t.Reply == "" {
		t.Reply = text
		return
	}
	t.Reply += "\n\n" + text
}

// RouteInput is one inbound message with its resolved agent.
type RouteInput struct {
	SessionID string      `json:"session_id"`
	Message   string      `json:"message"`
	UserName  string      `json:"user_name,omitempty"`
	Agent     AgentConfig `json:"-"`
}

// RouteResult is what the router hands back to the transport.
type RouteResult struct {
	Reply      string       `json:"response"`
	Properties []Property   `json:"properties"`
	State      SessionState `json:"-"`
	Failed     bool         `json:"-"`
	Steps      []string     `json:"-"`
	CostUSD    float64      `json:"-"`
}
