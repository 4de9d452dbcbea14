package feedback

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lastagent/lastagent/internal/config"
)

// DefaultRecentLimit caps Recent when the caller passes no limit.
const DefaultRecentLimit = 100

// Collector validates, stores and aggregates feedback.
type Collector struct {
	store Store
}

// NewCollector creates a collector over store. A nil store means a fresh
// MemoryStore.
func NewCollector(store Store) *Collector {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Collector{store: store}
}

// NewCollectorFromConfig picks the store named by the feedback config.
func NewCollectorFromConfig(cfg config.FeedbackConfig) (*Collector, error) {
	switch cfg.Store {
	case "", "memory":
		return NewCollector(NewMemoryStore()), nil
	case "sqlite":
		store, err := NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open feedback store: %w", err)
		}
		return NewCollector(store), nil
	default:
		return nil, fmt.Errorf("unknown feedback store %q", cfg.Store)
	}
}

// Close releases the underlying store.
func (c *Collector) Close() error {
	return c.store.Close()
}

// Submit validates and stores feedback, returning its id.
func (c *Collector) Submit(ctx context.Context, s Submission) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	category, _ := ParseCategory(string(s.Category))

	f := &Feedback{
		ID:          uuid.New().String(),
		TaskID:      s.TaskID,
		SessionID:   s.SessionID,
		AgentName:   s.AgentName,
		Rating:      s.Rating,
		Category:    category,
		Comment:     s.Comment,
		Suggestions: s.Suggestions,
		Metadata:    s.Metadata,
		CreatedAt:   time.Now(),
	}
	if err := c.store.Save(ctx, f); err != nil {
		return "", err
	}
	return f.ID, nil
}

// Get returns one feedback entry.
func (c *Collector) Get(ctx context.Context, id string) (*Feedback, error) {
	return c.store.Get(ctx, id)
}

// ForTask returns feedback for a task, newest first.
func (c *Collector) ForTask(ctx context.Context, taskID string) ([]Feedback, error) {
	return c.store.List(ctx, Query{TaskID: taskID})
}

// ForAgent returns feedback for an agent, newest first.
func (c *Collector) ForAgent(ctx context.Context, agentName string) ([]Feedback, error) {
	return c.store.List(ctx, Query{AgentName: agentName})
}

// Recent returns the newest feedback. limit <= 0 means DefaultRecentLimit.
func (c *Collector) Recent(ctx context.Context, limit int) ([]Feedback, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return c.store.List(ctx, Query{Limit: limit})
}

// Summary aggregates feedback, optionally narrowed to one agent and/or one
// category. The overall average is rounded to 2 decimals.
func (c *Collector) Summary(ctx context.Context, agentName string, category Category) (Summary, error) {
	items, err := c.store.List(ctx, Query{AgentName: agentName, Category: category})
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		TotalCount:   len(items),
		Distribution: emptyDistribution(),
		ByCategory:   make(map[string]float64),
		ByAgent:      make(map[string]float64),
	}
	if len(items) == 0 {
		return summary, nil
	}

	var total int
	catSum := make(map[string]int)
	catN := make(map[string]int)
	agentSum := make(map[string]int)
	agentN := make(map[string]int)
	for _, f := range items {
		total += f.Rating
		summary.Distribution[f.Rating]++
		catSum[string(f.Category)] += f.Rating
		catN[string(f.Category)]++
		agentSum[f.AgentName] += f.Rating
		agentN[f.AgentName]++
	}

	summary.AverageRating = round2(float64(total) / float64(len(items)))
	for k, n := range catN {
		summary.ByCategory[k] = float64(catSum[k]) / float64(n)
	}
	for k, n := range agentN {
		summary.ByAgent[k] = float64(agentSum[k]) / float64(n)
	}
	return summary, nil
}

// BestPerformingAgent returns the agent with the highest average rating.
// Ties go to the name that sorts first. ok is false when there is no feedback.
func (c *Collector) BestPerformingAgent(ctx context.Context) (string, bool, error) {
	summary, err := c.Summary(ctx, "", "")
	if err != nil {
		return "", false, err
	}
	if len(summary.ByAgent) == 0 {
		return "", false, nil
	}

	names := make([]string, 0, len(summary.ByAgent))
	for name := range summary.ByAgent {
		names = append(names, name)
	}
	sort.Strings(names)

	best := names[0]
	for _, name := range names[1:] {
		if summary.ByAgent[name] > summary.ByAgent[best] {
			best = name
		}
	}
	return best, true, nil
}

// ImprovementSuggestions returns the suggestions left with ratings of 3 or
// lower for an agent, newest first.
func (c *Collector) ImprovementSuggestions(ctx context.Context, agentName string) ([]string, error) {
	items, err := c.ForAgent(ctx, agentName)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range items {
		if f.Suggestions != "" && f.Rating <= 3 {
			out = append(out, f.Suggestions)
		}
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
