package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type ConversationRepository interface {
	// AddMessage appends a message to the session's chat history
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// LoadHistory retrieves at most limit trailing messages; limit <= 0 loads everything
	LoadHistory(ctx context.Context, sessionID string, limit int) (*ConversationHistory, error)

	// ClearHistory removes all chat history for a session
	ClearHistory(ctx context.Context, sessionID string) error

	// GetMessageCount returns the number of messages in the session
	GetMessageCount(ctx context.Context, sessionID string) (int, error)
}

// ConversationHistory represents loaded chat history with metadata.
type ConversationHistory struct {
	SessionID string
	Messages  []*schema.Message
}
