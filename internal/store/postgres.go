package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// EnsureSchema creates the sessions and results tables if they are
// missing. Safe to run on every startup.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY,
			status TEXT NOT NULL,
			error_detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS results (
			session_id UUID PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
			recommendations JSONB NOT NULL,
			enriched BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at) WHERE expires_at IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) CreateSession(ctx context.Context, s Session) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (id, status, error_detail, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Status, s.ErrorDetail, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (p *Postgres) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	var s Session
	var expires *time.Time
	err := p.pool.QueryRow(ctx, `
		SELECT id, status, error_detail, created_at, updated_at, expires_at
		FROM sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.Status, &s.ErrorDetail, &s.CreatedAt, &s.UpdatedAt, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	if expires != nil {
		s.ExpiresAt = *expires
	}
	return s, nil
}

func (p *Postgres) UpdateStatus(ctx context.Context, id uuid.UUID, status, errorDetail string, expiresAt time.Time) error {
	var expires *time.Time
	if !expiresAt.IsZero() {
		expires = &expiresAt
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE sessions SET status = $1, error_detail = $2, updated_at = now(),
			expires_at = COALESCE($3, expires_at)
		WHERE id = $4`,
		status, errorDetail, expires, id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (p *Postgres) SaveResult(ctx context.Context, r Result) error {
	recs, err := json.Marshal(r.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO results (session_id, recommendations, enriched, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE
			SET recommendations = EXCLUDED.recommendations,
			    enriched = EXCLUDED.enriched,
			    created_at = EXCLUDED.created_at`,
		r.SessionID, recs, r.Enriched, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (p *Postgres) GetResult(ctx context.Context, id uuid.UUID) (Result, error) {
	var r Result
	var recs []byte
	err := p.pool.QueryRow(ctx, `
		SELECT session_id, recommendations, enriched, created_at
		FROM results WHERE session_id = $1`, id,
	).Scan(&r.SessionID, &recs, &r.Enriched, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Result{}, ErrResultNotFound
	}
	if err != nil {
		return Result{}, fmt.Errorf("get result: %w", err)
	}
	if err := json.Unmarshal(recs, &r.Recommendations); err != nil {
		return Result{}, fmt.Errorf("unmarshal recommendations: %w", err)
	}
	return r, nil
}

// DeleteExpired removes terminal sessions whose retention window has
// passed. Results go with them via the foreign key cascade.
func (p *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM sessions
		WHERE expires_at IS NOT NULL AND expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
