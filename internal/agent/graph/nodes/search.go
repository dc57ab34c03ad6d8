package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/chative-realty/leadbot/internal/agent/graph/prompts"
	"github.com/chative-realty/leadbot/internal/agent/model"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

// NewExtractorNode merges filters extracted from the message into the draft
// and resolves the target table when it is still open.
func NewExtractorNode(d *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		st := &t.State
		if model.IsMoreRequest(t.Message) && st.RemainingResults() > 0 {
			return t, nil
		}

		partial, err := d.Extractor.ExtractFilters(ctx, t.SearchText(), st.Filters)
		if err != nil {
			return nil, fmt.Errorf("extract filters: %w", err)
		}
		t.Notes = append(t.Notes, st.Filters.Merge(partial, d.Now())...)

		if !st.TargetTable.Known() {
			if table := model.ResolveTable(st.Filters); table != "" {
				st.TargetTable = table
			}
		}
		logx.Debug().
			Str("session_id", t.SessionID).
			Str("table", string(st.TargetTable)).
			Str("filters", st.Filters.Describe()).
			Msg("filters merged")
		if partial.TenantGender != nil || partial.TenantNationality != nil {
			d.syncProspect(ctx, t)
		}
		return t, nil
	})
}

// NewDecisionNode chooses between paging, asking for missing fields and searching.
func NewDecisionNode(d *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		st := &t.State
		if model.IsMoreRequest(t.Message) && len(st.SearchResults) > 0 {
			t.Next = NodeDisplay
			return t, nil
		}
		t.Missing = model.MissingFilterFields(d.searchTable(t), st.Filters)
		if len(t.Missing) > 0 {
			t.Next = NodeGenerator
		} else {
			t.Next = NodeSearch
		}
		return t, nil
	})
}

// NewGeneratorNode asks for every missing field in one message and keeps the
// search flow open.
func NewGeneratorNode(d *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		st := &t.State
		table := d.searchTable(t)
		notes := sayNotes(t)

		text, err := d.Responder.AskForFields(ctx, model.ElicitRequest{
			Agent:   t.Agent,
			Table:   table,
			Filters: st.Filters,
			Missing: t.Missing,
			Notes:   notes,
			Message: t.Message,
		})
		if err != nil || strings.TrimSpace(text) == "" {
			logx.Warn().Err(err).Str("session_id", t.SessionID).Msg("elicitation generation failed, using template")
			text = askFieldsText(t.Missing, table)
		}
		t.Say(text)
		st.ActiveFlow = model.FlowAwaitingSearchFields
		return t, nil
	})
}

// NewSearchNode re-checks capability on the resolved table, runs the query and
// stores the result window.
func NewSearchNode(d *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		st := &t.State
		table := d.searchTable(t)
		if !table.Known() || !t.Agent.Enables(table) {
			st.ActiveFlow = model.FlowNone
			t.Say(denialText(t.Agent, table))
			t.Next = NodeFinalize
			return t, nil
		}

		found, err := d.Query.Search(ctx, table, st.Filters, d.SearchLimit)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", table, err)
		}
		found = dedupe(found)

		ids := make([]string, 0, len(found))
		for _, p := range found {
			ids = append(ids, p.ID)
		}
		st.TargetTable = table
		st.ActiveFlow = model.FlowNone
		st.SearchResults = ids
		st.ShownCount = 0
		t.Found = found
		sayNotes(t)

		logx.Info().
			Str("session_id", t.SessionID).
			Str("table", string(table)).
			Int("results", len(found)).
			Msg("listing search")

		if len(found) == 0 {
			st.SearchResults = nil
			t.Say(noMatchText(table, st.Filters))
			t.Next = NodeFinalize
			return t, nil
		}
		t.Next = NodeDisplay
		return t, nil
	})
}

// NewDisplayNode shows the next page of the result window.
func NewDisplayNode(d *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		st := &t.State
		total := len(st.SearchResults)
		start := st.ShownCount
		end := start + d.PageSize
		if end > total {
			end = total
		}
		if start >= end {
			t.Say("That's all the listings I have for those criteria. Would you like to adjust your filters, or arrange a viewing for one you've seen?")
			return t, nil
		}

		ids := st.SearchResults[start:end]
		page, err := d.pageProperties(ctx, t.Found, ids)
		if err != nil {
			return nil, fmt.Errorf("load result page: %w", err)
		}

		switch {
		case start > 0 && len(page) == 1:
			t.Say("Here's one more option:")
		case start > 0:
			t.Say(fmt.Sprintf("Here are %d more options:", len(page)))
		case total == 1:
			t.Say("Great news! I found 1 property:")
		default:
			t.Say(fmt.Sprintf("Great news! I found %d properties. Here are the top %d:", total, len(page)))
		}
		t.Say(prompts.FormatListings(page, d.Prompt.Currency))

		switch remaining := total - end; remaining {
		case 0:
			t.Say("Would you like to arrange a viewing for any of these?")
		case 1:
			t.Say("I have 1 more option. Should I show it?")
		default:
			t.Say(fmt.Sprintf("I have %d more options. Should I show them?", remaining))
		}

		st.ShownCount = end
		st.LastShown = append([]string(nil), ids...)
		t.Shown = page
		return t, nil
	})
}

// searchTable is the table a search runs against: the resolved target, or the
// agent's default when the conversation has not settled one.
func (d *Deps) searchTable(t *model.Turn) model.ListingTable {
	if t.State.TargetTable.Known() {
		return t.State.TargetTable
	}
	return defaultTable(t.Agent)
}

func defaultTable(a model.AgentConfig) model.ListingTable {
	if a.Enables(model.TableResidentialRent) {
		return model.TableResidentialRent
	}
	for _, table := range model.AllListingTables() {
		if a.Enables(table) {
			return table
		}
	}
	return ""
}

// pageProperties takes the page from the fresh results, loading by id when paging a previous search.
func (d *Deps) pageProperties(ctx context.Context, found []model.Property, ids []string) ([]model.Property, error) {
	byID := make(map[string]model.Property, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	page := make([]model.Property, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return d.Query.GetProperties(ctx, ids)
		}
		page = append(page, p)
	}
	return page, nil
}

func dedupe(props []model.Property) []model.Property {
	seen := make(map[string]bool, len(props))
	out := props[:0:0]
	for _, p := range props {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func askFieldsText(missing []model.FilterField, table model.ListingTable) string {
	if len(missing) == 1 {
		return fmt.Sprintf("Could you tell me %s?", prompts.FieldQuestion(missing[0], table))
	}
	var b strings.Builder
	b.WriteString("To find the right place for you, could you tell me:")
	for _, f := range missing {
		b.WriteString("\n- ")
		b.WriteString(prompts.FieldQuestion(f, table))
	}
	return b.String()
}

func noMatchText(table model.ListingTable, f model.Filters) string {
	return fmt.Sprintf("I couldn't find any %s matching %s right now. Would you like to adjust your filters, for example a different area or a higher budget?",
		strings.ToLower(table.DisplayName()), f.Describe())
}
