package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"astra/internal/logging"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps session records in a user_sessions table.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLiteStore")
	defer timer.Stop()

	logging.Store("Initializing SQLiteStore at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Database schema initialized successfully")
	return s, nil
}

// initialize creates the required tables.
func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_sessions (
		user_id TEXT PRIMARY KEY,
		memory TEXT,
		tasks TEXT,
		chat_history TEXT,
		sandbox_config TEXT,
		terminal_logs TEXT,
		custom_css TEXT,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create user_sessions table: %w", err)
	}
	return nil
}

// LoadSession reads the record of userID.
func (s *SQLiteStore) LoadSession(ctx context.Context, userID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT memory, tasks, chat_history, sandbox_config, terminal_logs, custom_css, updated_at
		 FROM user_sessions WHERE user_id = ?`, userID)

	var vals [6]sql.NullString
	var updated string
	err := row.Scan(&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logging.StoreError("Failed to load session %s: %v", userID, err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	rec := &Record{}
	names := []string{ColMemory, ColTasks, ColChatHistory, ColSandboxConfig, ColTerminalLogs, ColCustomCSS}
	for i, v := range vals {
		if !v.Valid {
			continue
		}
		if err := rec.setColumn(names[i], v.String); err != nil {
			logging.StoreWarn("Skipping corrupt column for %s: %v", userID, err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		rec.UpdatedAt = t
	}
	logging.StoreDebug("Loaded session for %s", userID)
	return rec, nil
}

// UpsertSession writes the set fields of p. Columns absent from p keep
// their stored value.
func (s *SQLiteStore) UpsertSession(ctx context.Context, userID string, p Patch) error {
	cols, err := p.columns()
	if err != nil {
		return err
	}

	names := []string{"user_id", ColUpdatedAt}
	args := []interface{}{userID, time.Now().UTC().Format(time.RFC3339Nano)}
	updates := []string{ColUpdatedAt + " = excluded." + ColUpdatedAt}
	for _, c := range cols {
		names = append(names, c.name)
		args = append(args, c.value)
		updates = append(updates, c.name+" = excluded."+c.name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")

	query := fmt.Sprintf(
		"INSERT INTO user_sessions (%s) VALUES (%s) ON CONFLICT(user_id) DO UPDATE SET %s",
		strings.Join(names, ", "), placeholders, strings.Join(updates, ", "),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		logging.StoreError("Failed to upsert session %s: %v", userID, err)
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	logging.StoreDebug("Upserted %d columns for %s", len(cols), userID)
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
