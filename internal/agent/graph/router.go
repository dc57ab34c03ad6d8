package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/chative-realty/leadbot/internal/agent/graph/conversations"
	"github.com/chative-realty/leadbot/internal/agent/graph/nodes"
	"github.com/chative-realty/leadbot/internal/agent/graph/observers"
	"github.com/chative-realty/leadbot/internal/agent/model"
	errx "github.com/chative-realty/leadbot/internal/core/error"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

// Router runs one message through the graph and commits the resulting state.
// Turns for the same session are serialised; the store's version check
// catches writers in other processes.
type Router struct {
	runnable    compose.Runnable[*model.Turn, *model.Turn]
	sessions    model.SessionStore
	messages    *conversations.MessagesManager
	turnTimeout time.Duration
	locks       *keyedMutex
}

// NewRouter compiles the graph for config.
func NewRouter(ctx context.Context, config *GraphConfig) (*Router, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Sessions == nil {
		return nil, fmt.Errorf("session store is nil")
	}
	if config.Messages == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	runnable, err := BuildGraph(ctx, config.Deps)
	if err != nil {
		return nil, err
	}
	return &Router{
		runnable:    runnable,
		sessions:    config.Sessions,
		messages:    config.Messages,
		turnTimeout: config.TurnTimeout,
		locks:       newKeyedMutex(),
	}, nil
}

// Messages exposes the transcript manager to the transport.
func (r *Router) Messages() *conversations.MessagesManager { return r.messages }

// Route handles one inbound message. Invalid input is an error; any failure
// after that is contained: the user gets the fallback reply and the stored
// state is left untouched.
func (r *Router) Route(ctx context.Context, in model.RouteInput) (*model.RouteResult, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	if in.SessionID == "" {
		return nil, errx.Validation("session_id is required")
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, errx.Validation("message is required")
	}

	if r.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.turnTimeout)
		defer cancel()
	}

	log := logx.Logger().With().Str("session_id", in.SessionID).Str("agent_id", in.Agent.ID).Logger()

	// Waiting behind another turn counts against this turn's timeout.
	unlock, err := r.locks.Lock(ctx, in.SessionID)
	if err != nil {
		log.Warn().Err(err).Msg("timed out waiting for the previous turn")
		return failed(model.NewSessionState(in.SessionID)), nil
	}
	defer unlock()

	prior, err := r.sessions.Load(ctx, in.SessionID)
	if err != nil {
		log.Error().Err(err).Msg("loading session state failed")
		return failed(model.NewSessionState(in.SessionID)), nil
	}

	history, err := r.messages.RecentHistory(ctx, in.SessionID)
	if err != nil {
		log.Warn().Err(err).Msg("loading history failed, continuing without it")
		history = nil
	}

	out, err := r.runnable.Invoke(ctx, model.NewTurn(in, prior, history),
		compose.WithCallbacks(observers.NewAllCallbacks()),
	)
	if err != nil {
		log.Error().Err(err).Str("flow", prior.ActiveFlow.String()).Msg("turn failed")
		return failed(prior), nil
	}

	saved, err := r.sessions.Save(ctx, out.State, prior.Version)
	if err != nil {
		if errors.Is(err, errx.ErrStaleState) {
			log.Warn().Err(err).Msg("session changed during turn, discarding result")
		} else {
			log.Error().Err(err).Msg("saving session state failed")
		}
		return failed(prior), nil
	}

	if err := r.messages.SaveTurn(ctx, in.SessionID, in.Message, out.Reply); err != nil {
		log.Warn().Err(err).Msg("saving transcript failed")
	}

	return &model.RouteResult{
		Reply:      out.Reply,
		Properties: out.Shown,
		State:      saved,
		Steps:      out.Steps,
		CostUSD:    out.CostUSD,
	}, nil
}

func failed(prior model.SessionState) *model.RouteResult {
	return &model.RouteResult{
		Reply:  nodes.FallbackReply,
		State:  prior,
		Failed: true,
	}
}
