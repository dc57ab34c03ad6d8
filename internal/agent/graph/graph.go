package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/chative-realty/leadbot/internal/agent/graph/conversations"
	"github.com/chative-realty/leadbot/internal/agent/graph/llm"
	"github.com/chative-realty/leadbot/internal/agent/graph/nodes"
	"github.com/chative-realty/leadbot/internal/agent/model"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

const defaultMaxRunSteps = 20

// Config holds everything needed to compose the router end-to-end.
// This is a convenience layer over GraphConfig that also constructs the
// chat models, the LLM adapters and the MessagesManager.
type Config struct {
	APIKey          string
	BaseURL         string
	ClassifierModel model.ClassifierModelConfig
	ResponseModel   model.ResponseModelConfig
	ResponsePrompt  model.ResponsePromptConfig
	Conversation    model.ConversationConfig

	Sessions         model.SessionStore
	ConversationRepo model.ConversationRepository
	Query            model.QueryService
	KB               model.KnowledgeBase
	Leads            model.LeadStore
	Prospects        model.ProspectStore
	Notifier         model.Notifier
	Background       nodes.TaskSubmitter
}

// GraphConfig holds all configuration needed to build the graph and run turns.
type GraphConfig struct {
	Deps        *nodes.Deps
	Sessions    model.SessionStore
	Messages    *conversations.MessagesManager
	TurnTimeout time.Duration
}

// GraphBuilder handles the construction of the routing graph.
type GraphBuilder struct {
	deps  *nodes.Deps
	graph *compose.Graph[*model.Turn, *model.Turn]
}

// BuildRouter creates the Gemini models and adapters, then the router.
func BuildRouter(ctx context.Context, cfg Config) (*Router, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}

	cms, err := llm.NewChatModels(ctx, llm.ChatModelConfig{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		ClassifierModel: &cfg.ClassifierModel,
		ResponseModel:   &cfg.ResponseModel,
	})
	if err != nil {
		return nil, err
	}

	turnTimeout, err := time.ParseDuration(cfg.Conversation.TurnTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid turn timeout %q: %w", cfg.Conversation.TurnTimeout, err)
	}

	return NewRouter(ctx, &GraphConfig{
		Deps: &nodes.Deps{
			Classifier:  llm.NewClassifier(cms.Classifier, cms.ClassifierModelName, cfg.ResponsePrompt),
			Extractor:   llm.NewExtractor(cms.Classifier, cms.ClassifierModelName, cfg.ResponsePrompt),
			Responder:   llm.NewResponder(cms.Response, cms.ResponseModelName, cfg.ResponsePrompt),
			Query:       cfg.Query,
			KB:          cfg.KB,
			Leads:       cfg.Leads,
			Prospects:   cfg.Prospects,
			Notifier:    cfg.Notifier,
			Background:  cfg.Background,
			Prompt:      cfg.ResponsePrompt,
			PageSize:    cfg.Conversation.Search.PageSize,
			SearchLimit: cfg.Conversation.Search.Limit,
		},
		Sessions:    cfg.Sessions,
		Messages:    conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation),
		TurnTimeout: turnTimeout,
	})
}

// BuildGraph constructs and returns the compiled routing graph.
func BuildGraph(ctx context.Context, deps *nodes.Deps) (compose.Runnable[*model.Turn, *model.Turn], error) {
	if deps == nil {
		return nil, fmt.Errorf("node deps are nil")
	}
	if err := deps.Validate(); err != nil {
		return nil, err
	}

	builder := &GraphBuilder{
		deps: deps,
		graph: compose.NewGraph[*model.Turn, *model.Turn](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}
	return builder.compile(ctx)
}

// addNodes adds all processing nodes; each records itself in the step trace.
func (b *GraphBuilder) addNodes() error {
	d := b.deps
	lambdas := []struct {
		key    string
		lambda *compose.Lambda
	}{
		{nodes.NodeDispatch, nodes.NewDispatchNode(d)},
		{nodes.NodeLoadIdentity, nodes.NewLoadIdentityNode(d)},
		{nodes.NodeCapability, nodes.NewCapabilityNode(d)},
		{nodes.NodeExtractor, nodes.NewExtractorNode(d)},
		{nodes.NodeDecision, nodes.NewDecisionNode(d)},
		{nodes.NodeGenerator, nodes.NewGeneratorNode(d)},
		{nodes.NodeSearch, nodes.NewSearchNode(d)},
		{nodes.NodeDisplay, nodes.NewDisplayNode(d)},
		{nodes.NodeClearMemory, nodes.NewClearMemoryNode()},
		{nodes.NodeLeadCollector, nodes.NewLeadCollectorNode(d)},
		{nodes.NodeClarify, nodes.NewClarifyNode()},
		{nodes.NodeChat, nodes.NewChatNode(d)},
		{nodes.NodeFinalize, nodes.NewFinalizeNode()},
	}
	for _, n := range lambdas {
		if err := b.graph.AddLambdaNode(n.key, n.lambda,
			compose.WithStatePreHandler(nodes.NewTracePreHandler(n.key)),
		); err != nil {
			return fmt.Errorf("error adding node %s: %w", n.key, err)
		}
	}
	return nil
}

// addEdges creates the unconditional connections between nodes.
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeDispatch},
		{nodes.NodeExtractor, nodes.NodeDecision},
		{nodes.NodeGenerator, nodes.NodeFinalize},
		{nodes.NodeDisplay, nodes.NodeFinalize},
		{nodes.NodeLeadCollector, nodes.NodeFinalize},
		{nodes.NodeClarify, nodes.NodeFinalize},
		{nodes.NodeChat, nodes.NodeFinalize},
		{nodes.NodeFinalize, compose.END},
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches driven by Turn.Next.
func (b *GraphBuilder) addBranches() error {
	branches := []struct {
		from   string
		routes []string
	}{
		{nodes.NodeDispatch, nodes.DispatchRoutes},
		{nodes.NodeLoadIdentity, nodes.LoadIdentityRoutes},
		{nodes.NodeCapability, nodes.CapabilityRoutes},
		{nodes.NodeClearMemory, nodes.ClearMemoryRoutes},
		{nodes.NodeDecision, nodes.DecisionRoutes},
		{nodes.NodeSearch, nodes.SearchRoutes},
	}
	for _, br := range branches {
		ends := make(map[string]bool, len(br.routes))
		for _, r := range br.routes {
			ends[r] = true
		}
		branch := compose.NewGraphBranch(nodes.NewNextCondition(br.from, br.routes), ends)
		if err := b.graph.AddBranch(br.from, branch); err != nil {
			logx.Error().Err(err).Str("node", br.from).Msg("Error adding branch")
			return fmt.Errorf("error adding %s branch: %w", br.from, err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.Turn, *model.Turn], error) {
	// The longest path visits eight nodes; the cap only guards against a routing cycle.
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(defaultMaxRunSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
