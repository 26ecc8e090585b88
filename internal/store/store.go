// Package store persists extraction sessions and their results.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/maven/internal/dedup"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrResultNotFound  = errors.New("result not found")
)

// Session tracks one uploaded archive through its lifecycle. ExpiresAt
// stays zero until the session reaches a terminal status.
type Session struct {
	ID          uuid.UUID
	Status      string
	ErrorDetail string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// Result holds the recommendations produced for a completed session.
type Result struct {
	SessionID       uuid.UUID
	Recommendations []dedup.Recommendation
	Enriched        bool
	CreatedAt       time.Time
}

// SessionStore is implemented by the Postgres store and the in-memory
// store used when no database is configured.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id uuid.UUID) (Session, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status, errorDetail string, expiresAt time.Time) error
	SaveResult(ctx context.Context, r Result) error
	GetResult(ctx context.Context, id uuid.UUID) (Result, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Close()
}
