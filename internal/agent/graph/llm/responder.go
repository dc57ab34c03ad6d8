package llm

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/chative-realty/leadbot/internal/agent/graph/conversations"
	"github.com/chative-realty/leadbot/internal/agent/graph/prompts"
	"github.com/chative-realty/leadbot/internal/agent/model"
)

// Responder writes the free-form replies: elicitation, chat and lead summaries.
type Responder struct {
	chat      einomodel.BaseChatModel
	modelName string
	prompt    model.ResponsePromptConfig
}

func NewResponder(chat einomodel.BaseChatModel, modelName string, prompt model.ResponsePromptConfig) *Responder {
	return &Responder{chat: chat, modelName: modelName, prompt: prompt}
}

func (r *Responder) AskForFields(ctx context.Context, req model.ElicitRequest) (string, error) {
	msgs, err := prompts.RenderElicitation(ctx, r.prompt, req)
	if err != nil {
		return "", err
	}
	return r.text(ctx, "elicitation", msgs)
}

func (r *Responder) Chat(ctx context.Context, req model.ChatRequest) (string, error) {
	msgs, err := prompts.RenderChat(ctx, r.prompt, req)
	if err != nil {
		return "", err
	}
	return r.text(ctx, "chat", msgs)
}

func (r *Responder) SummarizeLead(ctx context.Context, req model.SummaryRequest) (string, error) {
	msgs, err := prompts.RenderLeadSummary(ctx, r.prompt, req, conversations.FormatTranscript(req.History))
	if err != nil {
		return "", err
	}
	return r.text(ctx, "lead_summary", msgs)
}

func (r *Responder) text(ctx context.Context, purpose string, msgs []*schema.Message) (string, error) {
	out, err := generate(ctx, r.chat, r.modelName, purpose, msgs)
	if err != nil {
		return "", err
	}
	content := strings.TrimSpace(out.Content)
	if content == "" {
		return "", fmt.Errorf("%s: model returned no text", purpose)
	}
	return content, nil
}
