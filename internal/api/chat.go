package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/chative-realty/leadbot/internal/agent/model"
	errx "github.com/chative-realty/leadbot/internal/core/error"
)

const defaultHistoryLimit = 50

type chatRequest struct {
	Message   string `json:"message"`
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

type chatMetadata struct {
	Steps   []string `json:"steps,omitempty"`
	CostUSD float64  `json:"cost_usd"`
	Failed  bool     `json:"failed,omitempty"`
	Offline bool     `json:"offline,omitempty"`
}

type chatResponse struct {
	Response   string           `json:"response"`
	SessionID  string           `json:"session_id"`
	AgentID    string           `json:"agent_id"`
	AgentName  string           `json:"agent_name"`
	ActiveFlow string           `json:"active_flow"`
	Properties []model.Property `json:"properties"`
	Metadata   chatMetadata     `json:"metadata"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		Error(w, r, errx.Validation("message is required"))
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.SessionID == "" {
		req.SessionID = h.resumeSession(r, req.UserID)
	}

	agent, err := h.resolveAgent(r, strings.TrimSpace(req.AgentID))
	if err != nil {
		Error(w, r, err)
		return
	}

	resp := chatResponse{
		SessionID:  req.SessionID,
		AgentID:    agent.ID,
		AgentName:  agent.Name,
		ActiveFlow: model.FlowNone.String(),
		Properties: []model.Property{},
	}

	if !agent.ChatbotEnabled {
		resp.Response = fmt.Sprintf("%s's assistant is offline at the moment. Please contact %s directly.", agent.Name, agent.Name)
		resp.Metadata.Offline = true
		JSON(w, http.StatusOK, resp)
		return
	}

	res, err := h.router.Route(r.Context(), model.RouteInput{
		SessionID: req.SessionID,
		Message:   req.Message,
		UserName:  req.UserName,
		Agent:     agent,
	})
	if err != nil {
		Error(w, r, err)
		return
	}

	hlog.FromRequest(r).Debug().
		Str("session_id", req.SessionID).
		Str("user_id", req.UserID).
		Strs("steps", res.Steps).
		Msg("chat routed")
	h.rememberSession(r, req.UserID, req.SessionID)

	resp.Response = res.Reply
	resp.ActiveFlow = res.State.ActiveFlow.String()
	if len(res.Properties) > 0 {
		resp.Properties = res.Properties
	}
	resp.Metadata = chatMetadata{Steps: res.Steps, CostUSD: res.CostUSD, Failed: res.Failed}
	JSON(w, http.StatusOK, resp)
}

// resumeSession returns the user's recent session when there is one, else a new id.
// Lookup failures only cost continuity, so they fall back to a new session.
func (h *Handler) resumeSession(r *http.Request, userID string) string {
	if userID == "" || h.resume == nil {
		return uuid.NewString()
	}
	id, err := h.resume.ActiveSession(r.Context(), userID)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("user_id", userID).Msg("session lookup failed, starting a new one")
		return uuid.NewString()
	}
	if id == "" {
		return uuid.NewString()
	}
	hlog.FromRequest(r).Debug().Str("user_id", userID).Str("session_id", id).Msg("resuming session")
	return id
}

func (h *Handler) rememberSession(r *http.Request, userID, sessionID string) {
	if userID == "" || h.resume == nil {
		return
	}
	if err := h.resume.TouchSession(r.Context(), userID, sessionID); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("user_id", userID).Msg("remembering session failed")
	}
}

func (h *Handler) resolveAgent(r *http.Request, agentID string) (model.AgentConfig, error) {
	if agentID == model.CommonAgentID {
		return model.CommonAgent(h.botName), nil
	}
	a, err := h.agents.GetAgent(r.Context(), agentID)
	if err != nil {
		return model.AgentConfig{}, err
	}
	return *a, nil
}

func (h *Handler) newSession(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"session_id": uuid.NewString()})
}

type historyRequest struct {
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h *Handler) sessionHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		Error(w, r, errx.Validation("session_id is required"))
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultHistoryLimit
	}

	msgs, err := h.history.History(r.Context(), req.SessionID, req.Limit)
	if err != nil {
		Error(w, r, err)
		return
	}
	out := make([]historyMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, historyMessage{Role: string(m.Role), Content: m.Content})
	}
	JSON(w, http.StatusOK, map[string]any{"session_id": req.SessionID, "messages": out})
}

type agentResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Company        string   `json:"company,omitempty"`
	BotName        string   `json:"bot_name"`
	Bio            string   `json:"bio,omitempty"`
	ChatbotEnabled bool     `json:"chatbot_enabled"`
	Tables         []string `json:"enabled_tables"`
	Services       []string `json:"services"`
}

func (h *Handler) agentInfo(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	a, err := h.agents.GetAgent(r.Context(), agentID)
	if err != nil {
		Error(w, r, err)
		return
	}

	tables := make([]string, 0, len(a.EnabledTables))
	for _, t := range a.EnabledTables {
		tables = append(tables, string(t))
	}
	services := a.EnabledServices()
	if services == nil {
		services = []string{}
	}
	JSON(w, http.StatusOK, agentResponse{
		ID:             a.ID,
		Name:           a.Name,
		Company:        a.Company,
		BotName:        a.DisplayName(),
		Bio:            a.Bio,
		ChatbotEnabled: a.ChatbotEnabled,
		Tables:         tables,
		Services:       services,
	})
}
