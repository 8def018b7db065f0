package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/finpal/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// AppendChatMessages stores a batch of committed chat turns in order.
// Messages without an id get a fresh UUID.
func (s *SQLiteStore) AppendChatMessages(ctx context.Context, msgs []model.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.GetContext(ctx, &seq, "SELECT COALESCE(MAX(seq), 0) FROM chat_messages"); err != nil {
		return fmt.Errorf("reading chat sequence: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR REPLACE INTO chat_messages (id, agent_id, role, content, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chat insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		seq++
		if _, err := stmt.ExecContext(ctx,
			m.ID, string(m.AgentID), string(m.Role), m.Content, seq, m.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("inserting chat message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chat messages: %w", err)
	}
	return nil
}

// GetChatHistory returns the most recent limit messages exchanged with
// agent, oldest first. A non-positive limit returns everything.
func (s *SQLiteStore) GetChatHistory(
	ctx context.Context,
	agent model.AgentID,
	limit int,
) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = -1
	}

	var msgs []model.ChatMessage
	err := s.db.SelectContext(ctx, &msgs, `
		SELECT id, agent_id, role, content, created_at FROM (
			SELECT id, agent_id, role, content, created_at, seq
			FROM chat_messages
			WHERE agent_id = ?
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC`,
		string(agent), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chat history for %s: %w", agent, err)
	}
	return msgs, nil
}

// ClearChatHistory deletes every message exchanged with agent.
func (s *SQLiteStore) ClearChatHistory(ctx context.Context, agent model.AgentID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chat_messages WHERE agent_id = ?", string(agent))
	if err != nil {
		return fmt.Errorf("clearing chat history for %s: %w", agent, err)
	}
	return nil
}

// SaveProfile replaces the stored quiz answers.
func (s *SQLiteStore) SaveProfile(ctx context.Context, p model.StoredProfile) error {
	answers, err := json.Marshal(p.Answers)
	if err != nil {
		return fmt.Errorf("marshaling quiz answers: %w", err)
	}
	if p.CompletedAt.IsZero() {
		p.CompletedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO profile (id, answers, completed_at)
		VALUES (1, ?, ?)`,
		string(answers), p.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// GetProfile returns the stored quiz, or nil when the quiz was never
// completed.
func (s *SQLiteStore) GetProfile(ctx context.Context) (*model.StoredProfile, error) {
	var (
		answers     string
		completedAt time.Time
	)
	err := s.db.QueryRowxContext(ctx,
		"SELECT answers, completed_at FROM profile WHERE id = 1",
	).Scan(&answers, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	p := &model.StoredProfile{CompletedAt: completedAt}
	if err := json.Unmarshal([]byte(answers), &p.Answers); err != nil {
		return nil, fmt.Errorf("unmarshaling quiz answers: %w", err)
	}
	return p, nil
}

// ClearProfile removes the stored quiz so onboarding runs again.
func (s *SQLiteStore) ClearProfile(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM profile"); err != nil {
		return fmt.Errorf("clearing profile: %w", err)
	}
	return nil
}
