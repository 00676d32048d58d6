// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager resolves the active session and owns the per-session directories
// under {root}/{id}.
//
// # Thread Safety
//
// Safe for concurrent use if the store is. Callers must not run two cycles
// on the same session concurrently.
type Manager struct {
	store  Store
	root   string
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a Manager. root is the sessions directory, usually
// .modeler/sessions.
func NewManager(store Store, root string, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		root:   root,
		now:    time.Now,
		logger: slog.Default().With(slog.String("component", "session")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Dir returns the directory of session id.
func (m *Manager) Dir(id string) string {
	return filepath.Join(m.root, id)
}

// GeneratedDir returns the staging directory of session id.
func (m *Manager) GeneratedDir(id string) string {
	return filepath.Join(m.Dir(id), "generated")
}

// Active returns the active session, creating and saving a new one when
// there is none or when the current one should be replaced.
//
// # Outputs
//
//   - *Session: The active session.
//   - bool: True when a new session was created.
//   - error: Store failures other than a missing session.
func (m *Manager) Active(ctx context.Context) (*Session, bool, error) {
	now := m.now()

	id, err := m.store.ActiveID(ctx)
	switch {
	case errors.Is(err, ErrNoActiveSession):
	case err != nil:
		return nil, false, fmt.Errorf("reading active session: %w", err)
	default:
		s, err := m.store.Load(ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
			m.logger.Warn("active session missing, starting a new one", slog.String("session_id", id))
		case err != nil:
			return nil, false, fmt.Errorf("loading session %s: %w", id, err)
		case !s.ShouldBeReplaced(now):
			return s, false, nil
		default:
			m.logger.Info("replacing session",
				slog.String("session_id", s.ID),
				slog.Bool("compacted", s.Compacted()),
				slog.Duration("age", now.Sub(s.CreatedAt)))
		}
	}

	s := New(now)
	if err := m.Save(ctx, s); err != nil {
		return nil, false, err
	}
	m.logger.Info("session started", slog.String("session_id", s.ID))
	return s, true, nil
}

// Save persists s and makes it active.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if err := os.MkdirAll(m.Dir(s.ID), 0o750); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	return m.store.Save(ctx, s)
}

// Clear empties the history of s and saves it.
func (m *Manager) Clear(ctx context.Context, s *Session) error {
	s.Clear()
	s.UpdatedAt = m.now().UTC()
	return m.Save(ctx, s)
}

// Delete removes session id and its directory.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if err := os.RemoveAll(m.Dir(id)); err != nil {
		return fmt.Errorf("removing session directory: %w", err)
	}
	return nil
}

// Compact summarizes the history of s with summarizer and saves the
// result. It reports false when there was nothing to summarize.
func (m *Manager) Compact(ctx context.Context, s *Session, summarizer Summarizer) (string, bool, error) {
	summary, err := summarizer.Summarize(ctx, s.History)
	if errors.Is(err, ErrNothingToSummarize) {
		return NothingToSummarize, false, nil
	}
	if err != nil {
		return "", false, err
	}
	s.ApplyCompaction(summary, m.now())
	if err := m.Save(ctx, s); err != nil {
		return "", false, err
	}
	m.logger.Info("session compacted", slog.String("session_id", s.ID), slog.Int("summary_chars", len(summary)))
	return summary, true, nil
}
