package feedback

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Query selects feedback from a store. Zero fields match everything;
// Limit <= 0 means no limit. Results are newest first.
type Query struct {
	AgentName string
	TaskID    string
	Category  Category
	Limit     int
}

func (q Query) matches(f *Feedback) bool {
	return (q.AgentName == "" || f.AgentName == q.AgentName) &&
		(q.TaskID == "" || f.TaskID == q.TaskID) &&
		(q.Category == "" || f.Category == q.Category)
}

// Store persists feedback.
type Store interface {
	Save(ctx context.Context, f *Feedback) error
	Get(ctx context.Context, id string) (*Feedback, error)
	List(ctx context.Context, q Query) ([]Feedback, error)
	Close() error
}

// MemoryStore keeps feedback in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items []*Feedback
	byID  map[string]*Feedback
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Feedback)}
}

func (m *MemoryStore) Save(_ context.Context, f *Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[f.ID]; exists {
		return fmt.Errorf("feedback %s already stored", f.ID)
	}
	cp := *f
	m.items = append(m.items, &cp)
	m.byID[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, q Query) ([]Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Feedback
	for i := len(m.items) - 1; i >= 0; i-- {
		if f := m.items[i]; q.matches(f) {
			out = append(out, *f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
