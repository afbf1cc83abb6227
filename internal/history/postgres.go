package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend keeps transcripts in the chat_turns table.
type PostgresBackend struct {
	Pool *pgxpool.Pool
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

// NewPostgresBackend creates the schema if needed.
func NewPostgresBackend(ctx context.Context, pool *pgxpool.Pool) (*PostgresBackend, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_turns (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			parts TEXT[] NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (session_id, seq)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_turns table: %w", err)
	}
	return &PostgresBackend{Pool: pool}, nil
}

func (b *PostgresBackend) Open(sessionID string) Store {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	return &PostgresStore{pool: b.Pool, session: sessionID}
}

func (b *PostgresBackend) Purge(ctx context.Context) error {
	if _, err := b.Pool.Exec(ctx, `DELETE FROM chat_turns`); err != nil {
		return fmt.Errorf("failed to purge chat_turns: %w", err)
	}
	return nil
}

// PostgresStore is the transcript of one session in chat_turns.
type PostgresStore struct {
	pool    *pgxpool.Pool
	session string
}

func (s *PostgresStore) Load(ctx context.Context) (Transcript, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT role, parts FROM chat_turns
		WHERE session_id = $1
		ORDER BY seq
	`, s.session)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	t := Transcript{}
	for rows.Next() {
		var role string
		var parts []string
		if err := rows.Scan(&role, &parts); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t = append(t, Turn{Role: normalizeRole(Role(role)), Parts: parts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}
	return t, nil
}

// Save replaces the session's rows in one transaction.
func (s *PostgresStore) Save(ctx context.Context, t Transcript) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM chat_turns WHERE session_id = $1`, s.session); err != nil {
			return fmt.Errorf("failed to clear turns: %w", err)
		}

		batch := &pgx.Batch{}
		for i, turn := range t {
			parts := turn.Parts
			if parts == nil {
				parts = []string{}
			}
			batch.Queue(`
				INSERT INTO chat_turns (session_id, seq, role, parts)
				VALUES ($1, $2, $3, $4)
			`, s.session, i, string(turn.Role), parts)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert turns: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM chat_turns WHERE session_id = $1`, s.session); err != nil {
		return fmt.Errorf("failed to reset turns: %w", err)
	}
	return nil
}
