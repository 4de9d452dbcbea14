package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial feedback table",
		SQL: `
CREATE TABLE IF NOT EXISTS feedback (
    id TEXT PRIMARY KEY,
    task_id TEXT,
    session_id TEXT,
    agent_name TEXT NOT NULL,
    rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
    category TEXT NOT NULL,
    comment TEXT,
    suggestions TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_agent ON feedback(agent_name);
CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at DESC);
`,
	},
	{
		Version:     2,
		Description: "Add metadata column and task index",
		SQL: `
ALTER TABLE feedback ADD COLUMN metadata TEXT NOT NULL DEFAULT '{}';
CREATE INDEX IF NOT EXISTS idx_feedback_task ON feedback(task_id);
`,
	},
}

// SQLiteStore persists feedback in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens or creates the database and applies pending
// migrations. dbPath may be ":memory:".
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every new connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return s, nil
}

func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// ApplyMigrations runs pending migrations in one transaction.
func (s *SQLiteStore) ApplyMigrations(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin exclusive transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := tx.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return fmt.Errorf("query schema versions: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, m.Version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// LatestVersion returns the highest applied migration version.
func (s *SQLiteStore) LatestVersion() (int, error) {
	var version int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("query latest version: %w", err)
	}
	return version, nil
}

func (s *SQLiteStore) Save(ctx context.Context, f *Feedback) error {
	metadata := "{}"
	if len(f.Metadata) > 0 {
		data, err := json.Marshal(f.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = string(data)
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO feedback
		(id, task_id, session_id, agent_name, rating, category, comment, suggestions, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.TaskID, f.SessionID, f.AgentName, f.Rating, string(f.Category),
		f.Comment, f.Suggestions, metadata, f.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, task_id, session_id, agent_name, rating, category, comment, suggestions, metadata, created_at FROM feedback`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Feedback, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	f, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SQLiteStore) List(ctx context.Context, q Query) ([]Feedback, error) {
	var where []string
	var args []interface{}
	if q.AgentName != "" {
		where = append(where, "agent_name = ?")
		args = append(args, q.AgentName)
	}
	if q.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, q.TaskID)
	}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(q.Category))
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFeedback(row scanner) (*Feedback, error) {
	var f Feedback
	var taskID, sessionID, comment, suggestions sql.NullString
	var category, metadata string
	var created int64

	err := row.Scan(&f.ID, &taskID, &sessionID, &f.AgentName, &f.Rating, &category,
		&comment, &suggestions, &metadata, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan feedback: %w", err)
	}

	f.TaskID = taskID.String
	f.SessionID = sessionID.String
	f.Comment = comment.String
	f.Suggestions = suggestions.String
	f.Category = Category(category)
	f.CreatedAt = time.Unix(0, created)
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &f.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", f.ID, err)
		}
	}
	return &f, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
