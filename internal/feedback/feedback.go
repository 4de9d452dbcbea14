// Package feedback collects user ratings of agent responses and aggregates
// them per agent and per category.
package feedback

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned for unknown feedback ids.
	ErrNotFound = errors.New("feedback not found")

	// ErrInvalidCategory is returned by ParseCategory.
	ErrInvalidCategory = errors.New("invalid feedback category")

	// ErrInvalidRating is returned for ratings outside 1-5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Category is what the feedback is about.
type Category string

const (
	CategoryResponseQuality Category = "response_quality"
	CategoryAgentSelection  Category = "agent_selection"
	CategorySpeed           Category = "speed"
	CategoryAccuracy        Category = "accuracy"
	CategoryHelpfulness     Category = "helpfulness"
	CategoryOther           Category = "other"
)

// Categories lists every category.
func Categories() []Category {
	return []Category{
		CategoryResponseQuality, CategoryAgentSelection, CategorySpeed,
		CategoryAccuracy, CategoryHelpfulness, CategoryOther,
	}
}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Feedback is one user rating. Immutable once stored.
type Feedback struct {
	ID          string                 `json:"id"`
	TaskID      string                 `json:"task_id,omitempty"`
	SessionID   string                 `json:"session_id,omitempty"`
	AgentName   string                 `json:"agent_name"`
	Rating      int                    `json:"rating"`
	Category    Category               `json:"category"`
	Comment     string                 `json:"comment,omitempty"`
	Suggestions string                 `json:"suggestions,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Submission is the input to Collector.Submit.
type Submission struct {
	AgentName   string
	Rating      int
	Category    Category
	TaskID      string
	SessionID   string
	Comment     string
	Suggestions string
	Metadata    map[string]interface{}
}

// Validate checks the rating range, the category and the agent name.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.AgentName) == "" {
		return errors.New("agent name is required")
	}
	if s.Rating < MinRating || s.Rating > MaxRating {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, s.Rating)
	}
	if _, err := ParseCategory(string(s.Category)); err != nil {
		return err
	}
	return nil
}

// Summary aggregates ratings. Distribution always has keys 1 through 5.
type Summary struct {
	TotalCount    int                `json:"total_count"`
	AverageRating float64            `json:"average_rating"`
	Distribution  map[int]int        `json:"ratings_distribution"`
	ByCategory    map[string]float64 `json:"by_category"`
	ByAgent       map[string]float64 `json:"by_agent"`
}

func emptyDistribution() map[int]int {
	d := make(map[int]int, MaxRating)
	for r := MinRating; r <= MaxRating; r++ {
		d[r] = 0
	}
	return d
}
