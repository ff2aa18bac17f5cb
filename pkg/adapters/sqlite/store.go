// Package sqlite keeps chat transcripts and their working state in a SQLite
// database, one row set per chat.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	chat    TEXT    NOT NULL,
	idx     INTEGER NOT NULL,
	is_user INTEGER NOT NULL,
	body    TEXT    NOT NULL,
	PRIMARY KEY (chat, idx)
);
CREATE TABLE IF NOT EXISTS states (
	chat       TEXT    PRIMARY KEY,
	body       TEXT    NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store implements ports.Transcript, ports.RoundCounter and
// ports.VariableStore for one chat.
type Store struct {
	db   *sql.DB
	chat string
}

// Open opens (and creates if needed) the database at path, scoped to chat.
func Open(path, chat string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if chat == "" {
		return nil, fmt.Errorf("chat name is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, chat: chat}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Message(ctx context.Context, index int) (domain.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT is_user, body FROM messages WHERE chat = ? AND idx = ?`, s.chat, index)

	var isUser int64
	var msg domain.Message
	if err := row.Scan(&isUser, &msg.Text); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Message{}, domain.ErrMessageNotFound
		}
		return domain.Message{}, fmt.Errorf("get message: %w", err)
	}
	msg.IsUser = isUser != 0
	return msg, nil
}

func (s *Store) SetMessage(ctx context.Context, index int, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET body = ? WHERE chat = ? AND idx = ?`, text, s.chat, index)
	if err != nil {
		return fmt.Errorf("set message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set message: %w", err)
	}
	if n == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE chat = ?`, s.chat).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *Store) Append(ctx context.Context, msg domain.Message) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(idx) + 1, 0) FROM messages WHERE chat = ?`, s.chat).Scan(&next); err != nil {
		return 0, fmt.Errorf("next message index: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (chat, idx, is_user, body) VALUES (?, ?, ?, ?)`,
		s.chat, next, boolToInt(msg.IsUser), msg.Text); err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return next, nil
}

// CurrentRound is the message count minus one.
func (s *Store) CurrentRound(ctx context.Context) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}

// State loads the stored state. A chat without one yields the Initial State.
func (s *Store) State(ctx context.Context) (*domain.State, error) {
	return s.state(ctx, s.db)
}

func (s *Store) ReplaceState(ctx context.Context, state *domain.State) error {
	return s.replace(ctx, s.db, state)
}

// MergeState reads, merges and writes in one transaction.
func (s *Store) MergeState(ctx context.Context, partial *domain.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := s.state(ctx, tx)
	if err != nil {
		return err
	}
	current.Merge(partial)
	if err := s.replace(ctx, tx, current); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) state(ctx context.Context, q querier) (*domain.State, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM states WHERE chat = ?`, s.chat).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

func (s *Store) replace(ctx context.Context, q querier, state *domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO states (chat, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(chat) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		s.chat, string(data), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("put state: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
