package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/chative-realty/leadbot/internal/agent/model"
)

// MessagesManager reads and writes the per-session transcript.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	maxTurns := config.History.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         maxTurns,
	}
}

// RecentHistory returns the last maxTurns user/assistant exchanges, oldest first.
func (cm *MessagesManager) RecentHistory(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, sessionID, cm.maxTurns*2)
	if err != nil {
		return nil, err
	}
	return trimTail(history.Messages, cm.maxTurns*2), nil
}

// History returns up to limit stored messages for display.
func (cm *MessagesManager) History(ctx context.Context, sessionID string, limit int) ([]*schema.Message, error) {
	if limit <= 0 {
		limit = cm.maxTurns * 2
	}
	history, err := cm.conversationRepo.LoadHistory(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return history.Messages, nil
}

// SaveTurn appends the user message and the reply.
func (cm *MessagesManager) SaveTurn(ctx context.Context, sessionID, query, reply string) error {
	if err := cm.conversationRepo.AddMessage(ctx, sessionID, schema.UserMessage(query)); err != nil {
		return err
	}
	return cm.conversationRepo.AddMessage(ctx, sessionID, schema.AssistantMessage(reply, nil))
}

func (cm *MessagesManager) Clear(ctx context.Context, sessionID string) error {
	return cm.conversationRepo.ClearHistory(ctx, sessionID)
}

// FormatTranscript renders messages as "User: ..." / "Assistant: ..." lines
// for prompts that take the conversation as plain text.
func FormatTranscript(messages []*schema.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("User: ")
		case schema.Assistant:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(strings.TrimSpace(msg.Content))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, max int) []*schema.Message {
	if len(messages) <= max {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-max:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
