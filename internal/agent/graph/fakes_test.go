package graph

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/chative-realty/leadbot/internal/agent/graph/conversations"
	"github.com/chative-realty/leadbot/internal/agent/graph/nodes"
	"github.com/chative-realty/leadbot/internal/agent/model"
	"github.com/chative-realty/leadbot/internal/agent/repo"
	errx "github.com/chative-realty/leadbot/internal/core/error"
	"github.com/chative-realty/leadbot/pkg/background"
	pkgsqlite "github.com/chative-realty/leadbot/pkg/sqlite"
)

type fakeClassifier struct {
	mu     sync.Mutex
	calls  int
	result model.Classification
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, message string, state model.SessionState, history []*schema.Message) (model.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

func (f *fakeClassifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExtractor struct {
	mu         sync.Mutex
	filterMsgs []string
	leadMsgs   []string
	filters    func(message string) (model.PartialFilters, error)
	lead       func(message string) (model.PartialLead, error)
}

func (f *fakeExtractor) ExtractFilters(ctx context.Context, message string, known model.Filters) (model.PartialFilters, error) {
	f.mu.Lock()
	f.filterMsgs = append(f.filterMsgs, message)
	f.mu.Unlock()
	if f.filters == nil {
		return model.PartialFilters{}, nil
	}
	return f.filters(message)
}

func (f *fakeExtractor) ExtractLeadFields(ctx context.Context, message string, known model.LeadFields) (model.PartialLead, error) {
	f.mu.Lock()
	f.leadMsgs = append(f.leadMsgs, message)
	f.mu.Unlock()
	if f.lead == nil {
		return model.PartialLead{}, nil
	}
	return f.lead(message)
}

func (f *fakeExtractor) FilterCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.filterMsgs...)
}

type fakeResponder struct{}

func (fakeResponder) AskForFields(ctx context.Context, req model.ElicitRequest) (string, error) {
	return "", context.DeadlineExceeded
}

func (fakeResponder) Chat(ctx context.Context, req model.ChatRequest) (string, error) {
	return "Happy to help with that.", nil
}

func (fakeResponder) SummarizeLead(ctx context.Context, req model.SummaryRequest) (string, error) {
	return "**" + req.Lead.Name + "** wants to view " + req.Lead.PropertyName + ".", nil
}

type sentEmail struct {
	to   string
	lead model.LeadRecord
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentEmail
	started chan struct{}
	release chan struct{}
}

func (f *fakeNotifier) SendLeadEmail(ctx context.Context, agentEmail string, lead model.LeadRecord, summary string) error {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{to: agentEmail, lead: lead})
	return nil
}

func (f *fakeNotifier) Sent() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

// flakySessionStore fails the next n saves as if another writer got there first.
type flakySessionStore struct {
	model.SessionStore
	mu       sync.Mutex
	failNext int
}

func (s *flakySessionStore) Save(ctx context.Context, state model.SessionState, expected int64) (model.SessionState, error) {
	s.mu.Lock()
	fail := s.failNext > 0
	if fail {
		s.failNext--
	}
	s.mu.Unlock()
	if fail {
		return model.SessionState{}, errx.ErrStaleState
	}
	return s.SessionStore.Save(ctx, state, expected)
}

// countingQuery wraps the real store, counts searches and can fail them.
type countingQuery struct {
	model.QueryService
	mu       sync.Mutex
	searches int
	err      error
}

func (q *countingQuery) Search(ctx context.Context, table model.ListingTable, filters model.Filters, limit int) ([]model.Property, error) {
	q.mu.Lock()
	q.searches++
	err := q.err
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return q.QueryService.Search(ctx, table, filters, limit)
}

func (q *countingQuery) Searches() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.searches
}

type harness struct {
	router     *Router
	store      *repo.SQLStore
	query      *countingQuery
	sessions   *flakySessionStore
	classifier *fakeClassifier
	extractor  *fakeExtractor
	notifier   *fakeNotifier
	registry   *background.Registry
	agent      model.AgentConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	cfg := pkgsqlite.Config{Path: filepath.Join(t.TempDir(), "leadbot.db"), MaxOpenConns: 2, BusyTimeout: 5000}
	db, err := cfg.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := repo.NewSQLStore(ctx, db)
	require.NoError(t, err)
	f, err := os.Open("../repo/testdata/fixtures.yaml")
	require.NoError(t, err)
	defer f.Close()
	fx, err := repo.LoadFixtures(f)
	require.NoError(t, err)
	require.NoError(t, store.Seed(ctx, fx))

	agent, err := store.GetAgent(ctx, "agent-tan")
	require.NoError(t, err)

	h := &harness{
		store:      store,
		query:      &countingQuery{QueryService: store},
		sessions:   &flakySessionStore{SessionStore: repo.NewMemorySessionStore()},
		classifier: &fakeClassifier{result: model.Classification{Intent: model.IntentGeneralChat}},
		extractor:  &fakeExtractor{},
		notifier:   &fakeNotifier{},
		registry:   background.New(background.Config{MaxConcurrent: 2, TaskTimeout: 5}),
		agent:      *agent,
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.registry.Shutdown(ctx)
	})

	h.router, err = NewRouter(ctx, &GraphConfig{
		Deps: &nodes.Deps{
			Classifier: h.classifier,
			Extractor:  h.extractor,
			Responder:  fakeResponder{},
			Query:      h.query,
			KB:         store,
			Leads:      store,
			Prospects:  store,
			Notifier:   h.notifier,
			Background: h.registry,
			Prompt:     model.ResponsePromptConfig{Currency: "SGD", Timezone: "Asia/Singapore"},
			Now:        func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
		},
		Sessions:    h.sessions,
		Messages:    conversations.NewMessagesManager(repo.NewMemoryConversationRepository(), model.ConversationConfig{}),
		TurnTimeout: 10 * time.Second,
	})
	require.NoError(t, err)
	return h
}

// seed stores st as the session's current state.
func (h *harness) seed(t *testing.T, st model.SessionState) model.SessionState {
	t.Helper()
	saved, err := h.sessions.Save(context.Background(), st, 0)
	require.NoError(t, err)
	return saved
}

func (h *harness) route(t *testing.T, sessionID, message string) *model.RouteResult {
	t.Helper()
	res, err := h.router.Route(context.Background(), model.RouteInput{
		SessionID: sessionID,
		Message:   message,
		Agent:     h.agent,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) load(t *testing.T, sessionID string) model.SessionState {
	t.Helper()
	st, err := h.sessions.Load(context.Background(), sessionID)
	require.NoError(t, err)
	return st
}

func identified(sessionID string) model.SessionState {
	st := model.NewSessionState(sessionID)
	st.Identity.Email = "alex@example.com"
	return st
}

func bugisCondo(string) (model.PartialFilters, error) {
	rent := model.TransactionRent
	return model.PartialFilters{
		PropertyType: model.Ptr("condo"),
		Bedrooms:     model.Ptr(2),
		Location:     model.Ptr("Bugis"),
		Transaction:  &rent,
	}, nil
}
