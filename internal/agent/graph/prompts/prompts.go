package prompts

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/chative-realty/leadbot/internal/agent/model"
)

var (
	//go:embed template/classifier.txt
	classifierPrompt string
	//go:embed template/filter_extractor.txt
	filterExtractorPrompt string
	//go:embed template/lead_extractor.txt
	leadExtractorPrompt string
	//go:embed template/elicitation.txt
	elicitationPrompt string
	//go:embed template/chat.txt
	chatPrompt string
	//go:embed template/lead_summary.txt
	leadSummaryPrompt string
)

const (
	keyHistory   = "history"
	keyUserInput = "user_input"
)

// render formats a system template, optional history and the user turn via the
// Eino prompt component so prompt callbacks fire.
func render(ctx context.Context, name, system string, vars map[string]any, history []*schema.Message, user string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(system),
		schema.MessagesPlaceholder(keyHistory, true),
		schema.UserMessage("{{.user_input}}"),
	)
	vars[keyHistory] = history
	vars[keyUserInput] = user

	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{Name: name, Type: "Default", Component: components.ComponentOfPrompt})
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs, nil
}

// RenderClassifier builds the intent classification request.
func RenderClassifier(ctx context.Context, cfg model.ResponsePromptConfig, state model.SessionState, transcript, message string) ([]*schema.Message, error) {
	tables := make([]string, 0, 8)
	for _, t := range model.AllListingTables() {
		tables = append(tables, fmt.Sprintf("%s (%s)", t, t.DisplayName()))
	}
	search := "none"
	if !state.Filters.IsEmpty() || state.TargetTable != "" {
		search = state.Filters.Describe()
		if state.TargetTable != "" {
			search += " [" + string(state.TargetTable) + "]"
		}
	}
	if transcript == "" {
		transcript = "(no previous messages)"
	}
	return render(ctx, "classifier", classifierPrompt, map[string]any{
		"BotName":       cfg.BotName,
		"CompanyName":   cfg.CompanyName,
		"Market":        cfg.Market,
		"Tables":        tables,
		"SearchSummary": search,
		"Transcript":    transcript,
	}, nil, message)
}

// RenderFilterExtractor builds the search filter extraction request.
func RenderFilterExtractor(ctx context.Context, cfg model.ResponsePromptConfig, known model.Filters, now time.Time, message string) ([]*schema.Message, error) {
	return render(ctx, "filter_extractor", filterExtractorPrompt, map[string]any{
		"Market":   cfg.Market,
		"Currency": cfg.Currency,
		"Timezone": cfg.Timezone,
		"Today":    localDate(now, cfg.Timezone),
		"Known":    toJSON(known),
	}, nil, message)
}

// RenderLeadExtractor builds the contact details extraction request.
func RenderLeadExtractor(ctx context.Context, known model.LeadFields, asked []model.LeadField, message string) ([]*schema.Message, error) {
	names := make([]string, 0, len(asked))
	for _, f := range asked {
		names = append(names, string(f))
	}
	askedText := "none"
	if len(names) > 0 {
		askedText = strings.Join(names, ", ")
	}
	return render(ctx, "lead_extractor", leadExtractorPrompt, map[string]any{
		"Known": toJSON(known),
		"Asked": askedText,
	}, nil, message)
}

// RenderElicitation builds the request asking for missing search fields.
func RenderElicitation(ctx context.Context, cfg model.ResponsePromptConfig, req model.ElicitRequest) ([]*schema.Message, error) {
	missing := make([]string, 0, len(req.Missing))
	for _, f := range req.Missing {
		missing = append(missing, FieldQuestion(f, req.Table))
	}
	return render(ctx, "elicitation", elicitationPrompt, map[string]any{
		"BotName":   botName(req.Agent, cfg),
		"AgentName": agentName(req.Agent, cfg),
		"Market":    cfg.Market,
		"Table":     tableName(req.Table),
		"Known":     req.Filters.Describe(),
		"Missing":   missing,
		"Notes":     req.Notes,
	}, nil, req.Message)
}

// RenderChat builds the open conversation request with history.
func RenderChat(ctx context.Context, cfg model.ResponsePromptConfig, req model.ChatRequest) ([]*schema.Message, error) {
	services := strings.Join(req.Agent.EnabledServices(), ", ")
	if services == "" {
		services = "general property questions"
	}
	return render(ctx, "chat", chatPrompt, map[string]any{
		"BotName":   botName(req.Agent, cfg),
		"AgentName": agentName(req.Agent, cfg),
		"Company":   req.Agent.Company,
		"Bio":       req.Agent.Bio,
		"Market":    cfg.Market,
		"Currency":  cfg.Currency,
		"Services":  services,
		"UserName":  req.Identity.Name,
		"Listings":  FormatListings(req.Properties, cfg.Currency),
		"Documents": req.Documents,
	}, req.History, req.Message)
}

// RenderLeadSummary builds the request for the agent-facing lead summary.
func RenderLeadSummary(ctx context.Context, cfg model.ResponsePromptConfig, req model.SummaryRequest, transcript string) ([]*schema.Message, error) {
	property := ""
	if req.Property != nil {
		property = fmt.Sprintf("%s (%s, %s %s)", req.Property.Name, req.Property.Area, cfg.Currency, model.FormatAmount(req.Property.Price))
	}
	if transcript == "" {
		transcript = "(not available)"
	}
	l := req.Lead
	return render(ctx, "lead_summary", leadSummaryPrompt, map[string]any{
		"Market":      cfg.Market,
		"Name":        l.Name,
		"Nationality": l.Nationality,
		"PassType":    l.PassType,
		"Phone":       l.Phone,
		"Email":       l.Email,
		"LeaseMonths": l.LeaseMonths,
		"Property":    property,
		"Criteria":    req.Filters.Describe(),
		"Transcript":  transcript,
	}, nil, "Write the summary.")
}

// FieldQuestion is the plain wording for a missing search field.
func FieldQuestion(f model.FilterField, table model.ListingTable) string {
	switch f {
	case model.FieldLocation:
		return "which area or MRT station you prefer (or \"anywhere\")"
	case model.FieldBudgetMax:
		if table.IsRental() {
			return "your maximum monthly budget"
		}
		return "your maximum budget"
	case model.FieldTenantGender:
		return "the tenant's gender (some rooms are male or female only)"
	case model.FieldPropertyType:
		return "the type of property (e.g. condo, HDB, landed)"
	}
	return string(f)
}

// FormatListings renders properties as a numbered list.
func FormatListings(props []model.Property, currency string) string {
	var b strings.Builder
	for i, p := range props {
		fmt.Fprintf(&b, "%d. %s", i+1, p.Name)
		if p.PropertyType != "" {
			fmt.Fprintf(&b, " (%s)", p.PropertyType)
		}
		if p.Area != "" {
			fmt.Fprintf(&b, " in %s", p.Area)
		}
		fmt.Fprintf(&b, ", %s %s", currency, model.FormatAmount(p.Price))
		if p.Table.IsRental() {
			b.WriteString("/month")
		}
		if p.Bedrooms > 0 {
			fmt.Fprintf(&b, ", %d bed", p.Bedrooms)
		}
		if p.NearestMRT != "" {
			fmt.Fprintf(&b, ", near %s", p.NearestMRT)
		}
		if p.Description != "" {
			b.WriteString(". " + p.Description)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func botName(a model.AgentConfig, cfg model.ResponsePromptConfig) string {
	if a.BotName != "" {
		return a.BotName
	}
	return cfg.BotName
}

func agentName(a model.AgentConfig, cfg model.ResponsePromptConfig) string {
	if a.ID == model.CommonAgentID || a.Name == "" {
		return cfg.CompanyName
	}
	return a.Name
}

func tableName(t model.ListingTable) string {
	if !t.Known() {
		return "properties"
	}
	return t.DisplayName()
}

func localDate(now time.Time, tz string) string {
	if loc, err := time.LoadLocation(tz); err == nil {
		now = now.In(loc)
	}
	return now.Format(model.DateLayout)
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
