package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/maven/internal/events"
	"github.com/MikeSquared-Agency/maven/internal/pipeline"
	"github.com/MikeSquared-Agency/maven/internal/store"
)

// Runner processes one archive. Satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, data []byte) (*pipeline.Output, error)
}

// Manager runs submitted archives in background goroutines and drives
// each session through its lifecycle. Status reads go straight to the
// store and never wait on processing.
type Manager struct {
	store     store.SessionStore
	runner    Runner
	publisher *events.Publisher
	timeout   time.Duration
	retention time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// New builds a manager. publisher may be nil when NATS is not
// configured.
func New(st store.SessionStore, runner Runner, publisher *events.Publisher, timeout, retention time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		store:     st,
		runner:    runner,
		publisher: publisher,
		timeout:   timeout,
		retention: retention,
		logger:    logger,
	}
}

// Submit registers a new session and starts processing in the
// background. The returned ID is immediately pollable.
func (m *Manager) Submit(ctx context.Context, data []byte) (uuid.UUID, error) {
	id := uuid.New()
	now := time.Now().UTC()
	err := m.store.CreateSession(ctx, store.Session{
		ID:        id,
		Status:    string(StateQueued),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("create session: %w", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(id, data)
	}()

	m.logger.Info("session submitted", "session_id", id, "bytes", len(data))
	return id, nil
}

// Wait blocks until all in-flight sessions finish. Used on shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(id uuid.UUID, data []byte) {
	if err := m.transition(id, StateQueued, StateProcessing, ""); err != nil {
		m.logger.Error("session start failed", "session_id", id, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	out, err := m.runner.Run(ctx, data)
	switch {
	case err == nil:
		m.complete(id, out)
	case errors.Is(err, context.DeadlineExceeded):
		m.logger.Warn("session timed out", "session_id", id, "timeout", m.timeout)
		m.fail(id, StateTimeout, fmt.Sprintf("processing exceeded %s", m.timeout))
	default:
		m.logger.Error("session failed", "session_id", id, "error", err)
		m.fail(id, StateError, err.Error())
	}
}

func (m *Manager) complete(id uuid.UUID, out *pipeline.Output) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := m.store.SaveResult(ctx, store.Result{
		SessionID:       id,
		Recommendations: out.Recommendations,
		Enriched:        out.Enriched,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		m.logger.Error("save result failed", "session_id", id, "error", err)
		m.fail(id, StateError, fmt.Sprintf("persist result: %s", err))
		return
	}

	if err := m.transition(id, StateProcessing, StateCompleted, ""); err != nil {
		m.logger.Error("session completion failed", "session_id", id, "error", err)
		return
	}

	m.logger.Info("session completed",
		"session_id", id,
		"recommendations", len(out.Recommendations),
		"enriched", out.Enriched,
	)
	m.publish(events.SubjectCompleted, events.SessionEvent{
		SessionID:       id.String(),
		Status:          string(StateCompleted),
		Recommendations: len(out.Recommendations),
		Enriched:        out.Enriched,
	})
}

func (m *Manager) fail(id uuid.UUID, terminal State, detail string) {
	if err := m.transition(id, StateProcessing, terminal, detail); err != nil {
		m.logger.Error("session failure update failed", "session_id", id, "error", err)
		return
	}
	m.publish(events.SubjectFailed, events.SessionEvent{
		SessionID:   id.String(),
		Status:      string(terminal),
		ErrorDetail: detail,
	})
}

// transition validates and persists a state change. The retention clock
// starts when a session goes terminal.
func (m *Manager) transition(id uuid.UUID, from, to State, detail string) error {
	if err := Transition(from, to); err != nil {
		return err
	}
	var expires time.Time
	if to.Terminal() {
		expires = time.Now().UTC().Add(m.retention)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return m.store.UpdateStatus(ctx, id, string(to), detail, expires)
}

func (m *Manager) publish(subject string, event events.SessionEvent) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(subject, event); err != nil {
		m.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}
