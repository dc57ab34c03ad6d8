package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-realty/leadbot/internal/agent/graph/nodes"
	"github.com/chative-realty/leadbot/internal/agent/model"
	errx "github.com/chative-realty/leadbot/internal/core/error"
)

func TestRouter_Route_SearchEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.seed(t, identified("s1"))
	h.classifier.result = model.Classification{Intent: model.IntentPropertySearch}
	h.extractor.filters = bugisCondo

	res := h.route(t, "s1", "2-bedroom condo to rent in Bugis")

	assert.False(t, res.Failed)
	assert.Contains(t, res.Reply, "Great news! I found 2 properties. Here are the top 2:")
	assert.Contains(t, res.Reply, "Would you like to arrange a viewing for any of these?")
	require.Len(t, res.Properties, 2)
	assert.Equal(t, []string{
		nodes.NodeDispatch, nodes.NodeCapability, nodes.NodeExtractor, nodes.NodeDecision,
		nodes.NodeSearch, nodes.NodeDisplay, nodes.NodeFinalize,
	}, res.Steps)

	st := h.load(t, "s1")
	assert.Equal(t, int64(2), st.Version)
	assert.Equal(t, model.TableResidentialRent, st.TargetTable)
	assert.Equal(t, model.FlowNone, st.ActiveFlow)
	assert.Len(t, st.SearchResults, 2)
	assert.Equal(t, 2, st.ShownCount)
	assert.Equal(t, st.SearchResults, st.LastShown)

	history, err := h.router.Messages().History(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRouter_Route_ActiveFlowSkipsClassifier(t *testing.T) {
	h := newHarness(t)
	st := identified("s1")
	st.ActiveFlow = model.FlowAwaitingSearchFields
	st.TargetTable = model.TableResidentialRent
	st.Filters.PropertyType = model.Ptr("condo")
	h.seed(t, st)
	h.classifier.err = errors.New("must not be called")
	h.extractor.filters = func(string) (model.PartialFilters, error) {
		return model.PartialFilters{Location: model.Ptr("Bugis")}, nil
	}

	res := h.route(t, "s1", "Bugis please")

	assert.Equal(t, 0, h.classifier.Calls())
	require.GreaterOrEqual(t, len(res.Steps), 2)
	assert.Equal(t, nodes.NodeExtractor, res.Steps[1])
	assert.Contains(t, res.Reply, "Great news!")
	assert.Equal(t, model.FlowNone, h.load(t, "s1").ActiveFlow)
}

func TestRouter_Route_MissingFieldsKeepFlowOpen(t *testing.T) {
	h := newHarness(t)
	h.seed(t, identified("s1"))
	h.classifier.result = model.Classification{Intent: model.IntentPropertySearch}
	h.extractor.filters = func(string) (model.PartialFilters, error) {
		rent := model.TransactionRent
		return model.PartialFilters{Transaction: &rent}, nil
	}

	res := h.route(t, "s1", "I want to rent a place")

	assert.Contains(t, res.Steps, nodes.NodeGenerator)
	assert.Contains(t, res.Reply, "could you tell me")
	st := h.load(t, "s1")
	assert.Equal(t, model.FlowAwaitingSearchFields, st.ActiveFlow)
	assert.Equal(t, model.TableResidentialRent, st.TargetTable)
}

func TestRouter_Route_IdentityGateResumesSearch(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = model.Classification{Intent: model.IntentPropertySearch}
	h.extractor.filters = bugisCondo

	res := h.route(t, "s1", "2-bedroom condo to rent in Bugis")
	assert.Contains(t, res.Reply, "email address")
	st := h.load(t, "s1")
	assert.Equal(t, model.FlowAwaitingEmail, st.ActiveFlow)
	assert.Equal(t, model.IntentPropertySearch, st.PendingIntent)
	assert.Empty(t, h.extractor.FilterCalls())

	res = h.route(t, "s1", "not telling")
	assert.Contains(t, res.Reply, "doesn't look like an email")
	assert.Equal(t, model.FlowAwaitingEmail, h.load(t, "s1").ActiveFlow)

	res = h.route(t, "s1", "sure, Alex@Example.com")
	assert.Equal(t, 1, h.classifier.Calls())
	assert.Contains(t, res.Reply, "Thanks! I've noted alex@example.com.")
	assert.Contains(t, res.Reply, "Great news! I found 2 properties.")
	calls := h.extractor.FilterCalls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "condo to rent in Bugis")

	st = h.load(t, "s1")
	assert.Equal(t, "alex@example.com", st.Identity.Email)
	assert.Empty(t, st.PendingMessage)
	assert.Equal(t, model.FlowNone, st.ActiveFlow)
}

func TestRouter_Route_ShowMorePages(t *testing.T) {
	h := newHarness(t)
	st := identified("s1")
	st.TargetTable = model.TableResidentialRent
	st.SearchResults = []string{"p-bugis-1", "p-bugis-2", "p-bugis-3", "p-coliving-1"}
	st.ShownCount = 3
	h.seed(t, st)
	h.classifier.result = model.Classification{Intent: model.IntentPropertySearch, TargetTable: model.TableResidentialRent}

	res := h.route(t, "s1", "show me more")

	assert.Contains(t, res.Reply, "Here's one more option:")
	require.Len(t, res.Properties, 1)
	assert.Equal(t, "p-coliving-1", res.Properties[0].ID)
	assert.Empty(t, h.extractor.FilterCalls())
	assert.Equal(t, 4, h.load(t, "s1").ShownCount)
}

func TestRouter_Route_LeadFlow(t *testing.T) {
	h := newHarness(t)
	st := identified("s1")
	st.TargetTable = model.TableResidentialRent
	st.LastShown = []string{"p-bugis-1"}
	h.seed(t, st)
	h.classifier.result = model.Classification{Intent: model.IntentLeadRequest}

	turns := []struct {
		message string
		lead    model.PartialLead
	}{
		{"I'd like to view it", model.PartialLead{}},
		{"I'm Alex from Singapore, call 12", model.PartialLead{Name: model.Ptr("Alex Tan"), Nationality: model.Ptr("Singaporean"), Phone: model.Ptr("12")}},
		{"Citizen, 9123 4567", model.PartialLead{PassType: model.Ptr("Citizen"), Phone: model.Ptr("9123 4567")}},
	}

	var prev []model.LeadField
	for i, turn := range turns {
		lead := turn.lead
		h.extractor.lead = func(string) (model.PartialLead, error) { return lead, nil }
		res := h.route(t, "s1", turn.message)
		require.False(t, res.Failed, "turn %d", i)

		st := h.load(t, "s1")
		assert.Equal(t, model.FlowAwaitingLeadDetails, st.ActiveFlow, "turn %d", i)
		if prev != nil {
			assert.Subset(t, prev, st.Lead.Pending, "turn %d", i)
		}
		prev = st.Lead.Pending
	}

	st = h.load(t, "s1")
	assert.Equal(t, "p-bugis-1", st.Lead.PropertyID)
	assert.Equal(t, "+6591234567", st.Lead.Fields.Phone)
	assert.Equal(t, []model.LeadField{model.LeadFieldLeaseMonths}, st.Lead.Pending)

	h.extractor.lead = func(string) (model.PartialLead, error) {
		return model.PartialLead{LeaseMonths: model.Ptr(6)}, nil
	}
	res := h.route(t, "s1", "6 months")
	assert.Contains(t, res.Reply, "minimum lease here is 12 months")
	assert.Equal(t, []model.LeadField{model.LeadFieldLeaseMonths}, h.load(t, "s1").Lead.Pending)

	h.extractor.lead = func(string) (model.PartialLead, error) {
		return model.PartialLead{LeaseMonths: model.Ptr(12)}, nil
	}
	res = h.route(t, "s1", "ok, 12 months then")
	assert.Contains(t, res.Reply, "Thank you, Alex Tan! I've passed your details to Tan Mei Ling")

	st = h.load(t, "s1")
	assert.Equal(t, model.FlowNone, st.ActiveFlow)
	assert.False(t, st.Lead.Started())
	assert.Equal(t, "Alex Tan", st.Identity.Profile.Name)

	saved, err := h.store.FindLatestLeadByEmail(context.Background(), "alex@example.com")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "p-bugis-1", saved.PropertyID)
	assert.Equal(t, 12, saved.LeaseMonths)
	assert.Contains(t, saved.Summary, "Bugis Residences")

	require.Eventually(t, func() bool { return len(h.notifier.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "meiling@example.com", h.notifier.Sent()[0].to)
}

func TestRouter_Route_LeadAsksWhichListing(t *testing.T) {
	h := newHarness(t)
	st := identified("s1")
	st.TargetTable = model.TableResidentialRent
	st.LastShown = []string{"p-bugis-1", "p-bugis-2"}
	st.Identity.Profile = model.LeadFields{Name: "Alex", Nationality: "Singaporean", PassType: "Citizen", Phone: "+6591234567", LeaseMonths: 12}
	h.seed(t, st)
	h.classifier.result = model.Classification{Intent: model.IntentLeadRequest}

	res := h.route(t, "s1", "I'd like to book a viewing please")

	assert.False(t, res.Failed)
	assert.Contains(t, res.Reply, "Which place are you thinking about?\n1. Bugis Residences (Bugis)\n2. DUO Residences (Bugis)")
	st = h.load(t, "s1")
	assert.Equal(t, model.FlowAwaitingLeadDetails, st.ActiveFlow)
	assert.Empty(t, st.Lead.PropertyID)
	none, err := h.store.FindLatestLeadByEmail(context.Background(), "alex@example.com")
	require.NoError(t, err)
	assert.Nil(t, none)

	res = h.route(t, "s1", "the DUO one")

	assert.Contains(t, res.Reply, "Thank you, Alex!")
	saved, err := h.store.FindLatestLeadByEmail(context.Background(), "alex@example.com")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "p-bugis-2", saved.PropertyID)

	require.Eventually(t, func() bool { return len(h.notifier.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	sent := h.notifier.Sent()[0].lead
	assert.Equal(t, "DUO Residences", sent.PropertyName)
	assert.True(t, sent.CreatedAt.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))

	prospect, err := h.store.GetProspect(context.Background(), "alex@example.com")
	require.NoError(t, err)
	require.NotNil(t, prospect)
	assert.Equal(t, "Alex", prospect.Name)
	assert.Equal(t, "+6591234567", prospect.Phone)
	assert.Equal(t, "agent-tan", prospect.AgentID)
}

func TestRouter_Route_LeadViewingPreferences(t *testing.T) {
	h := newHarness(t)
	st := identified("s1")
	st.TargetTable = model.TableResidentialRent
	st.LastShown = []string{"p-bugis-1"}
	h.seed(t, st)
	h.classifier.result = model.Classification{Intent: model.IntentLeadRequest}

	res := h.route(t, "s1", "Can I arrange a viewing?")
	assert.Contains(t, res.Reply, "virtual or in-person viewing")

	h.extractor.lead = func(string) (model.PartialLead, error) {
		return model.PartialLead{
			Name: model.Ptr("Alex Tan"), Nationality: model.Ptr("Singaporean"), PassType: model.Ptr("Citizen"),
			Phone: model.Ptr("9123 4567"), LeaseMonths: model.Ptr(12),
			ViewingType: model.Ptr("virtual"), TimePreference: model.Ptr("weekday evenings"),
		}, nil
	}
	res = h.route(t, "s1", "Alex Tan, Singaporean citizen, 91234567, 12 months, video call on weekday evenings")
	assert.Contains(t, res.Reply, "Thank you, Alex Tan!")

	saved, err := h.store.FindLatestLeadByEmail(context.Background(), "alex@example.com")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, model.ViewingVirtual, saved.ViewingType)
	assert.Equal(t, "weekday evenings", saved.TimePreference)

	st = h.load(t, "s1")
	assert.Empty(t, st.Identity.Profile.ViewingType)
	assert.Equal(t, "+6591234567", st.Identity.Profile.Phone)
}

func TestRouter_Route_SearchRecordsProspect(t *testing.T) {
	h := newHarness(t)
	h.seed(t, identified("s1"))
	h.classifier.result = model.Classification{Intent: model.IntentPropertySearch, TargetTable: model.TableColiving}
	h.extractor.filters = func(string) (model.PartialFilters, error) {
		return model.PartialFilters{TenantGender: model.Ptr("female"), TenantNationality: model.Ptr("Malaysian")}, nil
	}

	h.route(t, "s1", "I'm a Malaysian woman looking for a co-living room")

	p, err := h.store.GetProspect(context.Background(), "alex@example.com")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "female", p.Gender)
	assert.Equal(t, "Malaysian", p.Nationality)
	assert.Equal(t, "s1", p.LastSessionID)
}

func TestRouter_Route_LeadCompletionNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	st := identified("s1")
	st.ActiveFlow = model.FlowAwaitingLeadDetails
	st.Lead = model.LeadDraft{
		FlowID:     "flow-1",
		Fields:     model.LeadFields{Name: "Alex", Nationality: "Singaporean", PassType: "Citizen", Phone: "+6591234567"},
		Pending:    []model.LeadField{model.LeadFieldLeaseMonths},
		PropertyID: "p-bugis-1",
	}
	h.seed(t, st)
	h.extractor.lead = func(string) (model.PartialLead, error) {
		return model.PartialLead{LeaseMonths: model.Ptr(12)}, nil
	}

	h.sessions.failNext = 1
	res := h.route(t, "s1", "12 months")
	assert.True(t, res.Failed)
	assert.Equal(t, nodes.FallbackReply, res.Reply)
	assert.Equal(t, "flow-1", h.load(t, "s1").Lead.FlowID)

	res = h.route(t, "s1", "12 months")
	assert.False(t, res.Failed)
	assert.Contains(t, res.Reply, "Thank you, Alex!")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.registry.Shutdown(ctx))
	assert.Len(t, h.notifier.Sent(), 1)
}

func TestRouter_Route_NotificationDoesNotBlockReply(t *testing.T) {
	h := newHarness(t)
	h.notifier.started = make(chan struct{})
	h.notifier.release = make(chan struct{})

	st := identified("s1")
	st.ActiveFlow = model.FlowAwaitingLeadDetails
	st.Lead = model.LeadDraft{
		FlowID:  "flow-2",
		Fields:  model.LeadFields{Name: "Alex", Nationality: "Singaporean", PassType: "Citizen", Phone: "+6591234567"},
		Pending: []model.LeadField{model.LeadFieldLeaseMonths},
	}
	h.seed(t, st)
	h.extractor.lead = func(string) (model.PartialLead, error) {
		return model.PartialLead{LeaseMonths: model.Ptr(12)}, nil
	}

	res := h.route(t, "s1", "12 months")
	assert.Contains(t, res.Reply, "Thank you, Alex!")
	assert.Empty(t, h.notifier.Sent())

	select {
	case <-h.notifier.started:
	case <-time.After(2 * time.Second):
		t.Fatal("notification never started")
	}
	close(h.notifier.release)
	require.Eventually(t, func() bool { return len(h.notifier.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_Route_LeadCancel(t *testing.T) {
	h := newHarness(t)
	st := identified("s1")
	st.ActiveFlow = model.FlowAwaitingLeadDetails
	st.Lead = model.LeadDraft{FlowID: "flow-3", Pending: model.RequiredLeadFields}
	h.seed(t, st)

	res := h.route(t, "s1", "never mind, cancel")

	assert.Contains(t, res.Reply, "cancelled the viewing request")
	st = h.load(t, "s1")
	assert.Equal(t, model.FlowNone, st.ActiveFlow)
	assert.False(t, st.Lead.Started())
}

func TestRouter_Route_ResetKeepsIdentity(t *testing.T) {
	h := newHarness(t)
	st := identified("s1")
	st.Identity.Name = "Alex"
	st.TargetTable = model.TableResidentialRent
	st.Filters.Location = model.Ptr("Bugis")
	st.SearchResults = []string{"p-bugis-1"}
	st.ShownCount = 1
	st.LastShown = []string{"p-bugis-1"}
	h.seed(t, st)
	h.classifier.result = model.Classification{Intent: model.IntentReset}

	res := h.route(t, "s1", "start over")

	assert.Contains(t, res.Reply, "I've cleared your search")
	st = h.load(t, "s1")
	assert.Equal(t, "alex@example.com", st.Identity.Email)
	assert.Equal(t, "Alex", st.Identity.Name)
	assert.True(t, st.Filters.IsEmpty())
	assert.Empty(t, st.SearchResults)
	assert.Empty(t, st.LastShown)
	assert.Equal(t, model.ListingTable(""), st.TargetTable)
}

func TestRouter_Route_SwitchSearchKeepsTenantDetails(t *testing.T) {
	h := newHarness(t)
	st := identified("s1")
	st.TargetTable = model.TableColiving
	st.Filters.Location = model.Ptr("City Hall")
	st.Filters.TenantGender = model.Ptr("female")
	h.seed(t, st)
	h.classifier.result = model.Classification{Intent: model.IntentSwitchSearch}
	h.extractor.filters = bugisCondo

	res := h.route(t, "s1", "actually, show me condos in Bugis instead")

	assert.Contains(t, res.Steps, nodes.NodeClearMemory)
	assert.Contains(t, res.Reply, "Great news! I found 2 properties.")
	st = h.load(t, "s1")
	assert.Equal(t, model.TableResidentialRent, st.TargetTable)
	require.NotNil(t, st.Filters.TenantGender)
	assert.Equal(t, "female", *st.Filters.TenantGender)
}

func TestRouter_Route_FailureKeepsPriorState(t *testing.T) {
	h := newHarness(t)
	st := identified("s1")
	st.ActiveFlow = model.FlowAwaitingSearchFields
	st.TargetTable = model.TableResidentialRent
	prior := h.seed(t, st)
	h.extractor.filters = func(string) (model.PartialFilters, error) {
		return model.PartialFilters{}, errors.New("model unavailable")
	}

	res := h.route(t, "s1", "Bugis")

	assert.True(t, res.Failed)
	assert.Equal(t, nodes.FallbackReply, res.Reply)
	assert.Equal(t, prior, res.State)
	assert.Equal(t, prior, h.load(t, "s1"))
}

func TestRouter_Route_SearchFailureKeepsPriorState(t *testing.T) {
	h := newHarness(t)
	st := identified("s1")
	st.ActiveFlow = model.FlowAwaitingSearchFields
	st.TargetTable = model.TableResidentialRent
	st.Filters.PropertyType = model.Ptr("condo")
	prior := h.seed(t, st)
	h.extractor.filters = bugisCondo
	h.query.err = context.DeadlineExceeded

	res := h.route(t, "s1", "Bugis")

	assert.Equal(t, 1, h.query.Searches())
	assert.True(t, res.Failed)
	assert.Equal(t, nodes.FallbackReply, res.Reply)
	assert.Empty(t, res.Properties)
	assert.Equal(t, prior, res.State)
	assert.Equal(t, prior, h.load(t, "s1"))
}

func TestRouter_Route_StaleSaveKeepsPriorState(t *testing.T) {
	h := newHarness(t)
	prior := h.seed(t, identified("s1"))
	h.classifier.result = model.Classification{Intent: model.IntentPropertySearch}
	h.extractor.filters = bugisCondo
	h.sessions.failNext = 1

	res := h.route(t, "s1", "2-bedroom condo to rent in Bugis")

	assert.True(t, res.Failed)
	assert.Equal(t, nodes.FallbackReply, res.Reply)
	assert.Equal(t, prior, h.load(t, "s1"))
}

func TestRouter_Route_CapabilityDenied(t *testing.T) {
	h := newHarness(t)
	h.agent.EnabledTables = []model.ListingTable{model.TableColiving}
	h.seed(t, identified("s1"))
	h.classifier.result = model.Classification{Intent: model.IntentPropertySearch, TargetTable: model.TableResidentialRent}

	res := h.route(t, "s1", "any condos for rent?")

	assert.Equal(t, "Sorry, I can't help with whole unit rentals here. I can help you with: Co-living Spaces.", res.Reply)
	assert.Empty(t, h.extractor.FilterCalls())
	assert.Empty(t, res.Properties)
	assert.Zero(t, h.query.Searches())
}

func TestRouter_Route_CapabilityDeniedAfterExtraction(t *testing.T) {
	h := newHarness(t)
	h.agent.EnabledTables = []model.ListingTable{model.TableColiving}
	h.seed(t, identified("s1"))
	h.classifier.result = model.Classification{Intent: model.IntentPropertySearch}
	h.extractor.filters = bugisCondo

	res := h.route(t, "s1", "2-bedroom condo to rent in Bugis")

	assert.Contains(t, res.Steps, nodes.NodeSearch)
	assert.NotContains(t, res.Steps, nodes.NodeDisplay)
	assert.Contains(t, res.Reply, "Sorry, I can't help with whole unit rentals here.")
	assert.Empty(t, res.Properties)
	assert.Zero(t, h.query.Searches())
}

func TestRouter_Route_CapabilityQuestion(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = model.Classification{Intent: model.IntentCapabilityQuestion}

	res := h.route(t, "s1", "what can you do?")

	assert.Equal(t, "I can help you with: Co-living Spaces, Whole Unit Rentals. What are you looking for?", res.Reply)
}

func TestRouter_Route_ClassifierErrorFallsBackToChat(t *testing.T) {
	h := newHarness(t)
	h.classifier.err = errors.New("timeout")

	res := h.route(t, "s1", "how are viewings arranged?")

	assert.False(t, res.Failed)
	assert.Equal(t, "Happy to help with that.", res.Reply)
	assert.Equal(t, []string{nodes.NodeDispatch, nodes.NodeChat, nodes.NodeFinalize}, res.Steps)
}

func TestRouter_Route_Clarify(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = model.Classification{Intent: model.IntentClarification, Clarification: "Are you looking to rent or buy?"}

	res := h.route(t, "s1", "a place")

	assert.Equal(t, "Are you looking to rent or buy?", res.Reply)
}

func TestRouter_Route_RejectsEmptyInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.router.Route(context.Background(), model.RouteInput{SessionID: "", Message: "hi"})
	assert.ErrorIs(t, err, errx.ErrValidation)

	_, err = h.router.Route(context.Background(), model.RouteInput{SessionID: "s1", Message: "   "})
	assert.ErrorIs(t, err, errx.ErrValidation)
}

func TestRouter_Route_QueuedTurnHonoursDeadline(t *testing.T) {
	h := newHarness(t)
	prior := h.seed(t, identified("s1"))

	unlock, err := h.router.locks.Lock(context.Background(), "s1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	res, err := h.router.Route(ctx, model.RouteInput{SessionID: "s1", Message: "hi", Agent: h.agent})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, res.Failed)
	assert.Equal(t, nodes.FallbackReply, res.Reply)
	assert.Zero(t, h.classifier.Calls())
	assert.Equal(t, prior, h.load(t, "s1"))
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		u, err := k.Lock(context.Background(), "a")
		if err == nil {
			u()
		}
	}()

	select {
	case <-done:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_LockGivesUpWithContext(t *testing.T) {
	k := newKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Equal(t, 0, k.size())

	again, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	again()
}
