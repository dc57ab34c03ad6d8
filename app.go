package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/chative-realty/leadbot/internal/agent/graph"
	"github.com/chative-realty/leadbot/internal/agent/model"
	"github.com/chative-realty/leadbot/internal/agent/repo"
	"github.com/chative-realty/leadbot/internal/api"
	"github.com/chative-realty/leadbot/internal/notify"
	"github.com/chative-realty/leadbot/pkg/background"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

// app owns the long-lived dependencies shared by serve and chat.
type app struct {
	cfg      *AppConfig
	db       *sql.DB
	store    *repo.SQLStore
	rdb      *redis.Client
	registry *background.Registry
	router   *graph.Router
	resume   model.SessionIndex
}

// newApp wires storage, the background registry and the router. With inMemory
// set, session state and transcripts stay in process and Redis is not used.
func newApp(ctx context.Context, cfg *AppConfig, inMemory bool) (*app, error) {
	if err := cfg.requireLLM(); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	db, err := cfg.Database.New()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db
	if a.store, err = repo.NewSQLStore(ctx, db); err != nil {
		a.close(ctx)
		return nil, err
	}

	window, err := cfg.resumeWindow()
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	var (
		sessions model.SessionStore
		convos   model.ConversationRepository
	)
	if inMemory {
		sessions = repo.NewMemorySessionStore()
		convos = repo.NewMemoryConversationRepository()
		a.resume = repo.NewMemorySessionIndex(window)
	} else {
		ttl, err := cfg.sessionTTL()
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		if a.rdb, err = cfg.Redis.New(); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("initialise redis client: %w", err)
		}
		sessions = repo.NewRedisSessionStore(a.rdb, ttl)
		convos = repo.NewRedisConversationRepository(a.rdb, ttl)
		a.resume = repo.NewRedisSessionIndex(a.rdb, window)
	}

	a.registry = background.New(cfg.Background)

	a.router, err = graph.BuildRouter(ctx, graph.Config{
		APIKey:           cfg.APIKey,
		BaseURL:          cfg.BaseURL,
		ClassifierModel:  cfg.Classifier,
		ResponseModel:    cfg.Response,
		ResponsePrompt:   cfg.Prompt,
		Conversation:     cfg.Conversation,
		Sessions:         sessions,
		ConversationRepo: convos,
		Query:            a.store,
		KB:               a.store,
		Leads:            a.store,
		Prospects:        a.store,
		Notifier:         notify.New(cfg.SMTP),
		Background:       a.registry,
	})
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("build router: %w", err)
	}
	return a, nil
}

func (a *app) handler() *api.Handler {
	checks := map[string]api.HealthCheck{"sqlite": a.store.Ping}
	if a.rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }
	}
	return api.NewHandler(a.store, a.router, a.router.Messages(), a.resume, a.cfg.Prompt.BotName, checks)
}

// close drains background work first so pending notifications still reach SMTP.
func (a *app) close(ctx context.Context) {
	if a.registry != nil {
		if err := a.registry.Shutdown(ctx); err != nil {
			logx.Warn().Err(err).Msg("background tasks did not finish before shutdown")
		}
		completed, failed := a.registry.Stats()
		logx.Info().Int64("completed", completed).Int64("failed", failed).Msg("background registry stopped")
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			logx.Warn().Err(err).Msg("closing redis client failed")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logx.Warn().Err(err).Msg("closing database failed")
		}
	}
}
