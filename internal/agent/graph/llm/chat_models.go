package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/chative-realty/leadbot/internal/agent/model"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey          string
	BaseURL         string
	ClassifierModel *model.ClassifierModelConfig
	ResponseModel   *model.ResponseModelConfig
}

// ChatModels holds the classifier and response chat models
type ChatModels struct {
	Classifier          einomodel.BaseChatModel
	Response            einomodel.BaseChatModel
	ClassifierModelName string
	ResponseModelName   string
}

// NewChatModels creates both Gemini chat models over one genai client.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.ClassifierModel == nil || config.ResponseModel == nil {
		return nil, fmt.Errorf("model configs are required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	// Classification and extraction need fast, deterministic answers: no thinking budget.
	classifier, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.ClassifierModel.Model,
		Temperature: &config.ClassifierModel.Temperature,
		MaxTokens:   &config.ClassifierModel.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	response, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.ResponseModel.Model,
		Temperature: &config.ResponseModel.Temperature,
		MaxTokens:   &config.ResponseModel.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(1024)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	return &ChatModels{
		Classifier:          classifier,
		Response:            response,
		ClassifierModelName: config.ClassifierModel.Model,
		ResponseModelName:   config.ResponseModel.Model,
	}, nil
}

// generate calls the model and books token cost into the graph state when
// running inside the router graph.
func generate(ctx context.Context, cm einomodel.BaseChatModel, modelName, purpose string, in []*schema.Message) (*schema.Message, error) {
	// Called from inside lambda nodes: re-scope the graph's handlers so
	// model observers see a chat model run.
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      purpose,
		Type:      "Gemini",
		Component: components.ComponentOfChatModel,
	})
	out, err := cm.Generate(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%s generate: %w", purpose, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%s generate: empty response", purpose)
	}

	var totalC float64
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		usage := out.ResponseMeta.Usage
		var inC, outC float64
		inC, outC, totalC = model.ComputeCost(usage, model.ResolvePricing(modelName))
		logx.Debug().
			Str("purpose", purpose).
			Str("model", modelName).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Int("total_tokens", usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")
	}

	// Outside a graph run there is no state to book into.
	_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
		state.LLMCalls++
		state.TotalCostUSD += totalC
		return nil
	})
	return out, nil
}
