// Package api exposes the chatbot over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/chative-realty/leadbot/internal/agent/model"
	errx "github.com/chative-realty/leadbot/internal/core/error"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

// ChatRouter routes one message for a session.
type ChatRouter interface {
	Route(ctx context.Context, in model.RouteInput) (*model.RouteResult, error)
}

// HistoryReader returns stored transcript messages.
type HistoryReader interface {
	History(ctx context.Context, sessionID string, limit int) ([]*schema.Message, error)
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// Handler serves the chat API.
type Handler struct {
	agents  model.AgentResolver
	router  ChatRouter
	history HistoryReader
	resume  model.SessionIndex
	botName string
	checks  map[string]HealthCheck
}

// NewHandler builds the API. resume may be nil, in which case requests
// without a session_id always start a new session.
func NewHandler(agents model.AgentResolver, router ChatRouter, history HistoryReader, resume model.SessionIndex, botName string, checks map[string]HealthCheck) *Handler {
	return &Handler{
		agents:  agents,
		router:  router,
		history: history,
		resume:  resume,
		botName: botName,
		checks:  checks,
	}
}

// Routes builds the chi router with request id, access logging and panic recovery.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logx.Logger()))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Post("/chat", h.chat)
	r.Post("/session/new", h.newSession)
	r.Post("/session/history", h.sessionHistory)
	r.Get("/agent/{agentID}", h.agentInfo)
	return r
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	level := zerolog.InfoLevel
	if status >= http.StatusInternalServerError {
		level = zerolog.ErrorLevel
	}
	hlog.FromRequest(r).WithLevel(level).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Warn().Err(err).Msg("failed to encode response")
	}
}

// Error writes err as a JSON error using its AppError status and safe message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := errx.StatusOf(err)
	msg := errx.MessageOf(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	JSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errx.Validation("invalid JSON body")
	}
	return nil
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("check", name).Msg("health check failed")
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	JSON(w, status, map[string]any{"status": overall, "checks": results})
}
