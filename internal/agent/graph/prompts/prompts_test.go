package prompts

import (
	"context"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-realty/leadbot/internal/agent/model"
)

var promptCfg = model.ResponsePromptConfig{
	CompanyName: "Chative Realty",
	BotName:     "Ava",
	Market:      "Singapore",
	Currency:    "SGD",
	Timezone:    "UTC",
}

func TestRenderClassifier(t *testing.T) {
	state := model.NewSessionState("s")
	state.Filters.Location = model.Ptr("Bugis")

	msgs, err := RenderClassifier(context.Background(), promptCfg, state, "User: hi", "any condos?")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "residential_properties_for_rent (Whole Unit Rentals)")
	assert.Contains(t, msgs[0].Content, "in Bugis")
	assert.Contains(t, msgs[0].Content, "User: hi")
	assert.Equal(t, "any condos?", msgs[1].Content)
}

func TestRenderFilterExtractor_IncludesDateAndKnown(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	msgs, err := RenderFilterExtractor(context.Background(), promptCfg, model.Filters{Bedrooms: model.Ptr(2)}, now, "near Bugis")
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Content, "Today is 2026-03-10")
	assert.Contains(t, msgs[0].Content, `"bedrooms":2`)
}

func TestRenderChat_KeepsHistoryVerbatim(t *testing.T) {
	history := []*schema.Message{
		schema.UserMessage("what about {{.BotName}}?"),
		schema.AssistantMessage("hello", nil),
	}
	msgs, err := RenderChat(context.Background(), promptCfg, model.ChatRequest{
		Agent:      model.AgentConfig{ID: "a1", Name: "Tan", EnabledTables: []model.ListingTable{model.TableColiving}},
		Message:    "is it near the MRT?",
		History:    history,
		Documents:  []model.KBDocument{{Title: "Viewing policy", Content: "Weekends only"}},
		Properties: []model.Property{{Name: "Lyf Funan", Area: "City Hall", Price: 1800, Table: model.TableColiving}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.Contains(t, msgs[0].Content, "Co-living Spaces")
	assert.Contains(t, msgs[0].Content, "1. Lyf Funan in City Hall, SGD 1,800/month")
	assert.Contains(t, msgs[0].Content, "## Viewing policy")
	assert.Equal(t, "what about {{.BotName}}?", msgs[1].Content)
	assert.Equal(t, "is it near the MRT?", msgs[3].Content)
}

func TestRenderElicitation(t *testing.T) {
	msgs, err := RenderElicitation(context.Background(), promptCfg, model.ElicitRequest{
		Table:   model.TableColiving,
		Missing: []model.FilterField{model.FieldBudgetMax, model.FieldTenantGender},
		Message: "coliving please",
	})
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Content, "maximum monthly budget")
	assert.Contains(t, msgs[0].Content, "tenant's gender")
	assert.Contains(t, msgs[0].Content, "You are Ava")
}
