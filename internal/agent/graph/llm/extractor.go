package llm

import (
	"context"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/chative-realty/leadbot/internal/agent/graph/parsers"
	"github.com/chative-realty/leadbot/internal/agent/graph/prompts"
	"github.com/chative-realty/leadbot/internal/agent/model"
)

// Extractor pulls structured search filters and contact details out of free text.
type Extractor struct {
	chat      einomodel.BaseChatModel
	modelName string
	prompt    model.ResponsePromptConfig
	now       func() time.Time
}

func NewExtractor(chat einomodel.BaseChatModel, modelName string, prompt model.ResponsePromptConfig) *Extractor {
	return &Extractor{chat: chat, modelName: modelName, prompt: prompt, now: time.Now}
}

func (e *Extractor) ExtractFilters(ctx context.Context, message string, known model.Filters) (model.PartialFilters, error) {
	msgs, err := prompts.RenderFilterExtractor(ctx, e.prompt, known, e.now(), message)
	if err != nil {
		return model.PartialFilters{}, err
	}
	out, err := generate(ctx, e.chat, e.modelName, "filter_extractor", msgs)
	if err != nil {
		return model.PartialFilters{}, err
	}
	return parsers.ParseFilters(out.Content)
}

func (e *Extractor) ExtractLeadFields(ctx context.Context, message string, known model.LeadFields) (model.PartialLead, error) {
	msgs, err := prompts.RenderLeadExtractor(ctx, known, known.Missing(), message)
	if err != nil {
		return model.PartialLead{}, err
	}
	out, err := generate(ctx, e.chat, e.modelName, "lead_extractor", msgs)
	if err != nil {
		return model.PartialLead{}, err
	}
	return parsers.ParseLeadFields(out.Content)
}
