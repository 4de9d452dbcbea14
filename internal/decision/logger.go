package decision

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lastagent/lastagent/internal/filelock"
)

// DefaultPath is where decisions are persisted when no path is configured.
const DefaultPath = ".agents/decisions.jsonl"

// Options configures a Logger.
type Options struct {
	// Agent is recorded as the originator of every decision.
	Agent string
	// Persist mirrors every write to Path.
	Persist bool
	Path    string
}

// Logger records decisions in memory and optionally appends each write to a
// JSONL file. Updates are appended as new lines; on replay the last line for
// an id wins. It is safe for concurrent use.
type Logger struct {
	agent   string
	persist bool
	path    string

	mu        sync.RWMutex
	decisions map[string]*Decision
	order     []string
}

// NewLogger creates a logger. It does not read the file; call Load for that.
func NewLogger(opts Options) *Logger {
	if opts.Agent == "" {
		opts.Agent = "lastagent"
	}
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	return &Logger{
		agent:     opts.Agent,
		persist:   opts.Persist,
		path:      opts.Path,
		decisions: make(map[string]*Decision),
	}
}

// Path returns the JSONL file path.
func (l *Logger) Path() string {
	return l.path
}

// Log records a new pending decision and returns its id.
func (l *Logger) Log(e Entry) (string, error) {
	if e.RiskLevel == "" {
		e.RiskLevel = "low"
	}
	d := &Decision{
		ID:           uuid.New().String(),
		Type:         e.Type,
		Title:        e.Title,
		Reasoning:    e.Reasoning,
		Confidence:   e.Confidence,
		RiskLevel:    e.RiskLevel,
		Agent:        l.agent,
		Status:       StatusPending,
		Alternatives: append([]Alternative{}, e.Alternatives...),
		Context:      e.Context,
		CreatedAt:    time.Now(),
		TaskID:       e.TaskID,
		SessionID:    e.SessionID,
	}

	l.mu.Lock()
	l.decisions[d.ID] = d
	l.order = append(l.order, d.ID)
	snapshot := *d
	l.mu.Unlock()

	if err := l.write(&snapshot); err != nil {
		return d.ID, err
	}
	return d.ID, nil
}

// UpdateOutcome sets the final status and outcome of a decision.
func (l *Logger) UpdateOutcome(id string, status Status, outcomeStatus string, outcomeData map[string]interface{}) error {
	l.mu.Lock()
	d, ok := l.decisions[id]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := time.Now()
	d.Status = status
	d.OutcomeStatus = outcomeStatus
	d.OutcomeData = outcomeData
	d.UpdatedAt = &now
	snapshot := *d
	l.mu.Unlock()

	return l.write(&snapshot)
}

func (l *Logger) write(d *Decision) error {
	if !l.persist {
		return nil
	}
	line, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode decision %s: %w", d.ID, err)
	}
	if err := filelock.AppendLine(l.path, line); err != nil {
		return fmt.Errorf("failed to persist decision %s: %w", d.ID, err)
	}
	return nil
}

// Get returns a copy of one decision.
func (l *Logger) Get(id string) (Decision, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.decisions[id]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *d, nil
}

// List returns matching decisions, newest first.
func (l *Logger) List(f Filter) []Decision {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	out := l.collect(func(d *Decision) bool {
		return (f.Type == "" || d.Type == f.Type) && (f.Status == "" || d.Status == f.Status)
	})
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ForTask returns the decisions correlated with a task, oldest first.
func (l *Logger) ForTask(taskID string) []Decision {
	return l.collect(func(d *Decision) bool { return d.TaskID == taskID })
}

// ForSession returns the decisions correlated with a mesh session, oldest first.
func (l *Logger) ForSession(sessionID string) []Decision {
	return l.collect(func(d *Decision) bool { return d.SessionID == sessionID })
}

func (l *Logger) collect(match func(*Decision) bool) []Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Decision
	for _, id := range l.order {
		if d := l.decisions[id]; match(d) {
			out = append(out, *d)
		}
	}
	return out
}

// Stats aggregates every decision. Success rate counts decisions with status
// executed and outcome "success" against all executed decisions.
func (l *Logger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := Stats{
		Total:    len(l.order),
		ByType:   make(map[string]int),
		ByStatus: make(map[string]int),
	}
	if stats.Total == 0 {
		return stats
	}

	var confidence float64
	var executed, succeeded int
	for _, id := range l.order {
		d := l.decisions[id]
		stats.ByType[string(d.Type)]++
		stats.ByStatus[string(d.Status)]++
		confidence += d.Confidence
		if d.Status == StatusExecuted {
			executed++
			if d.OutcomeStatus == OutcomeSuccess {
				succeeded++
			}
		}
	}

	stats.AverageConfidence = round3(confidence / float64(stats.Total))
	if executed > 0 {
		stats.SuccessRate = round3(float64(succeeded) / float64(executed))
	}
	return stats
}

// Load replays the JSONL file into memory. Decisions read from the file
// replace in-memory copies with the same id. It returns the number of
// distinct decisions read; malformed lines are skipped and counted in the
// error.
func (l *Logger) Load() (int, error) {
	data, err := filelock.ReadLocked(l.path)
	if err != nil {
		return 0, err
	}

	latest, order, bad, err := replay(data)
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", l.path, err)
	}

	l.mu.Lock()
	for _, id := range order {
		if _, exists := l.decisions[id]; !exists {
			l.order = append(l.order, id)
		}
		l.decisions[id] = latest[id]
	}
	l.mu.Unlock()

	if bad > 0 {
		return len(order), fmt.Errorf("skipped %d malformed lines in %s", bad, l.path)
	}
	return len(order), nil
}

// Compact rewrites the JSONL file with one line per decision, keeping the
// last line written for each id. It works from the file, not from memory,
// and holds the file lock from read to rename so concurrent appends are
// never dropped. A file with malformed lines is left untouched and an error
// is returned. A missing file is a no-op.
func (l *Logger) Compact() error {
	return filelock.Rewrite(l.path, func(data []byte) ([]byte, error) {
		latest, order, bad, err := replay(data)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", l.path, err)
		}
		if bad > 0 {
			return nil, fmt.Errorf("%w: %d malformed lines in %s", ErrUnreadableLog, bad, l.path)
		}

		var buf bytes.Buffer
		for _, id := range order {
			line, err := json.Marshal(latest[id])
			if err != nil {
				return nil, fmt.Errorf("failed to encode decision %s: %w", id, err)
			}
			buf.Write(line)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	})
}

// replay parses JSONL decision lines. Later lines for an id replace earlier
// ones; order keeps first-seen order. bad counts lines that did not parse.
func replay(data []byte) (latest map[string]*Decision, order []string, bad int, err error) {
	latest = make(map[string]*Decision)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var d Decision
		if err := json.Unmarshal(line, &d); err != nil || d.ID == "" {
			bad++
			continue
		}
		if _, seen := latest[d.ID]; !seen {
			order = append(order, d.ID)
		}
		latest[d.ID] = &d
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, 0, err
	}
	return latest, order, bad, nil
}
