package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chative-realty/leadbot/internal/agent/model"
	errx "github.com/chative-realty/leadbot/internal/core/error"
	"github.com/cloudwego/eino/schema"
)

// MemorySessionStore is a process-local SessionStore for the terminal chat and tests.
type MemorySessionStore struct {
	mu     sync.RWMutex
	states map[string]model.SessionState
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{states: make(map[string]model.SessionState)}
}

func (m *MemorySessionStore) Load(_ context.Context, sessionID string) (model.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.states[sessionID]; ok {
		return st.Clone(), nil
	}
	return model.NewSessionState(sessionID), nil
}

func (m *MemorySessionStore) Save(_ context.Context, state model.SessionState, expected int64) (model.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.states[state.SessionID].Version
	if current != expected {
		return model.SessionState{}, fmt.Errorf("session %s at version %d, expected %d: %w", state.SessionID, current, expected, errx.ErrStaleState)
	}
	next := state.Clone()
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()
	m.states[state.SessionID] = next
	return next.Clone(), nil
}

var _ model.SessionStore = (*MemorySessionStore)(nil)

// MemoryConversationRepository keeps transcripts in process memory.
type MemoryConversationRepository struct {
	mu       sync.RWMutex
	messages map[string][]*schema.Message
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{messages: make(map[string][]*schema.Message)}
}

func (m *MemoryConversationRepository) AddMessage(_ context.Context, sessionID string, message *schema.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *message
	m.messages[sessionID] = append(m.messages[sessionID], &cp)
	return nil
}

func (m *MemoryConversationRepository) LoadHistory(_ context.Context, sessionID string, limit int) (*model.ConversationHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.messages[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]*schema.Message, 0, len(all))
	for _, msg := range all {
		cp := *msg
		out = append(out, &cp)
	}
	return &model.ConversationHistory{SessionID: sessionID, Messages: out}, nil
}

func (m *MemoryConversationRepository) ClearHistory(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, sessionID)
	return nil
}

func (m *MemoryConversationRepository) GetMessageCount(_ context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[sessionID]), nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)

// MemorySessionIndex is the in-process SessionIndex.
type MemorySessionIndex struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]indexEntry
}

type indexEntry struct {
	sessionID string
	expires   time.Time
}

func NewMemorySessionIndex(window time.Duration) *MemorySessionIndex {
	if window <= 0 {
		window = DefaultResumeWindow
	}
	return &MemorySessionIndex{window: window, now: time.Now, entries: make(map[string]indexEntry)}
}

func (m *MemorySessionIndex) ActiveSession(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		return "", nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, userID)
		return "", nil
	}
	return e.sessionID, nil
}

func (m *MemorySessionIndex) TouchSession(_ context.Context, userID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = indexEntry{sessionID: sessionID, expires: m.now().Add(m.window)}
	return nil
}

var _ model.SessionIndex = (*MemorySessionIndex)(nil)
