package llm

import (
	"context"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/chative-realty/leadbot/internal/agent/graph/conversations"
	"github.com/chative-realty/leadbot/internal/agent/graph/parsers"
	"github.com/chative-realty/leadbot/internal/agent/graph/prompts"
	"github.com/chative-realty/leadbot/internal/agent/model"
)

// Classifier resolves intents with keyword overrides first and the LLM second.
type Classifier struct {
	chat      einomodel.BaseChatModel
	modelName string
	prompt    model.ResponsePromptConfig
}

func NewClassifier(chat einomodel.BaseChatModel, modelName string, prompt model.ResponsePromptConfig) *Classifier {
	return &Classifier{chat: chat, modelName: modelName, prompt: prompt}
}

// Classify never returns an intent outside the closed set. On error the
// returned classification is general chat.
func (c *Classifier) Classify(ctx context.Context, message string, state model.SessionState, history []*schema.Message) (model.Classification, error) {
	if cl, ok := KeywordIntent(message, state); ok {
		return cl, nil
	}
	fallback := model.Classification{Intent: model.IntentGeneralChat}

	msgs, err := prompts.RenderClassifier(ctx, c.prompt, state, conversations.FormatTranscript(history), message)
	if err != nil {
		return fallback, err
	}
	out, err := generate(ctx, c.chat, c.modelName, "classifier", msgs)
	if err != nil {
		return fallback, err
	}
	cl, err := parsers.ParseClassification(out.Content)
	if err != nil {
		return fallback, err
	}
	return cl, nil
}

// KeywordIntent handles phrases that must not depend on the model.
func KeywordIntent(message string, state model.SessionState) (model.Classification, bool) {
	switch {
	case model.IsResetRequest(message):
		return model.Classification{Intent: model.IntentReset}, true
	case model.IsNewSearchRequest(message):
		return model.Classification{Intent: model.IntentSwitchSearch}, true
	case model.IsMoreRequest(message) && state.RemainingResults() > 0:
		return model.Classification{Intent: model.IntentPropertySearch, TargetTable: state.TargetTable}, true
	case model.IsBookingRequest(message):
		return model.Classification{Intent: model.IntentLeadRequest}, true
	}
	return model.Classification{}, false
}
