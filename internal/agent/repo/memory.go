package repo

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/chat-food/server/internal/agent/model"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryConversationRepository keeps windows in a bounded LRU with per-entry TTL.
// Useful for local runs and tests; state is lost on restart.
type MemoryConversationRepository struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, model.Window]
}

func NewMemoryConversationRepository(maxSessions int, ttl time.Duration) *MemoryConversationRepository {
	if maxSessions <= 0 {
		maxSessions = 10000
	}
	return &MemoryConversationRepository{
		cache: expirable.NewLRU[string, model.Window](maxSessions, nil, ttl),
	}
}

func (m *MemoryConversationRepository) LoadWindow(_ context.Context, sessionID string) (*model.Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.get(sessionID)
	return &w, nil
}

func (m *MemoryConversationRepository) UpdateWindow(_ context.Context, sessionID string, fn func(model.Window) model.Window) (*model.Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := fn(m.get(sessionID))
	updated.SessionID = sessionID
	if len(updated.Turns) == 0 {
		m.cache.Remove(sessionID)
	} else {
		m.cache.Add(sessionID, clone(updated))
	}
	return &updated, nil
}

func (m *MemoryConversationRepository) SetLastReply(ctx context.Context, sessionID string, reply string) error {
	_, err := m.UpdateWindow(ctx, sessionID, func(w model.Window) model.Window {
		if n := len(w.Turns); n > 0 {
			w.Turns[n-1].Assistant = reply
		}
		return w
	})
	return err
}

func (m *MemoryConversationRepository) ClearHistory(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Remove(sessionID)
	return nil
}

// get returns a copy so callers never alias the cached slices.
func (m *MemoryConversationRepository) get(sessionID string) model.Window {
	w, ok := m.cache.Get(sessionID)
	if !ok {
		return model.Window{SessionID: sessionID}
	}
	return clone(w)
}

func clone(w model.Window) model.Window {
	return model.Window{
		SessionID: w.SessionID,
		Labels:    slices.Clone(w.Labels),
		Turns:     slices.Clone(w.Turns),
	}
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
