package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"golang.org/x/sync/errgroup"

	"github.com/chative-realty/leadbot/internal/agent/model"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

const defaultClarification = "Could you tell me a bit more about what you're looking for? For example the area, your budget, or the type of property."

// NewClarifyNode asks the classifier's follow-up question.
func NewClarifyNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		q := strings.TrimSpace(t.Classification.Clarification)
		if q == "" {
			q = defaultClarification
		}
		t.Say(q)
		return t, nil
	})
}

// NewChatNode answers open questions grounded on the agent's knowledge base
// and the listings last shown. Both lookups run concurrently and are best-effort.
func NewChatNode(d *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		st := &t.State
		var (
			docs  []model.KBDocument
			props []model.Property
		)

		g, gctx := errgroup.WithContext(ctx)
		if d.KB != nil && t.Agent.ID != model.CommonAgentID {
			g.Go(func() error {
				out, err := d.KB.SearchDocuments(gctx, t.Agent.ID, t.Message, kbResultLimit)
				if err != nil {
					logx.Warn().Err(err).Str("session_id", t.SessionID).Msg("knowledge base search failed")
					return nil
				}
				docs = out
				return nil
			})
		}
		if len(st.LastShown) > 0 {
			ids := append([]string(nil), st.LastShown...)
			g.Go(func() error {
				out, err := d.Query.GetProperties(gctx, ids)
				if err != nil {
					logx.Warn().Err(err).Str("session_id", t.SessionID).Msg("loading shown properties failed")
					return nil
				}
				props = out
				return nil
			})
		}
		_ = g.Wait()

		identity := st.Identity
		if identity.Name == "" {
			identity.Name = t.UserName
		}
		reply, err := d.Responder.Chat(ctx, model.ChatRequest{
			Agent:      t.Agent,
			Message:    t.Message,
			History:    t.History,
			Documents:  docs,
			Properties: props,
			Identity:   identity,
		})
		if err != nil {
			return nil, fmt.Errorf("chat reply: %w", err)
		}
		t.Say(reply)
		return t, nil
	})
}
