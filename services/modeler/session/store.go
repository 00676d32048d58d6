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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"

	modelerbadger "github.com/AleutianAI/AleutianModeler/services/modeler/storage/badger"
)

// Store persists sessions and remembers the active one.
type Store interface {
	// Load returns the session with id, or ErrNotFound.
	Load(ctx context.Context, id string) (*Session, error)

	// Save writes s and makes it the active session.
	Save(ctx context.Context, s *Session) error

	// Delete removes the session. Deleting the active session clears the
	// active pointer. Unknown ids are not an error.
	Delete(ctx context.Context, id string) error

	// List returns every session, newest first.
	List(ctx context.Context) ([]*Session, error)

	// ActiveID returns the id of the active session, or ErrNoActiveSession.
	ActiveID(ctx context.Context) (string, error)
}

func sortNewestFirst(sessions []*Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}

// clone deep-copies s through its JSON form.
func clone(s *Session) (*Session, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MemoryStore keeps sessions in a map.
//
// # Thread Safety
//
// Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	active   string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(s)
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.ID == "" {
		return ErrInvalidID
	}
	c, err := clone(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = c
	m.active = s.ID
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	if m.active == id {
		m.active = ""
	}
	return nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context) ([]*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		c, err := clone(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sortNewestFirst(out)
	return out, nil
}

// ActiveID implements Store.
func (m *MemoryStore) ActiveID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == "" {
		return "", ErrNoActiveSession
	}
	return m.active, nil
}

const (
	sessionPrefix = "session/"
	activeKey     = "active"
)

func sessionKey(id string) []byte {
	return []byte(sessionPrefix + id)
}

// BadgerStore keeps sessions in BadgerDB as JSON under "session/{id}".
//
// # Thread Safety
//
// Safe for concurrent use.
type BadgerStore struct {
	db     *modelerbadger.DB
	logger *slog.Logger
}

// NewBadgerStore wraps an open database. The caller owns db.
func NewBadgerStore(db *modelerbadger.DB, logger *slog.Logger) *BadgerStore {
	if logger == nil {
		logger = slog.Default().With(slog.String("component", "session.BadgerStore"))
	}
	return &BadgerStore{db: db, logger: logger}
}

// Load implements Store.
func (b *BadgerStore) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	var s Session
	err := b.db.View(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Save implements Store.
func (b *BadgerStore) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidID
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", s.ID, err)
	}
	err = b.db.Update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(sessionKey(s.ID), data); err != nil {
			return err
		}
		return txn.Set([]byte(activeKey), []byte(s.ID))
	})
	if err != nil {
		return fmt.Errorf("saving session %s: %w", s.ID, err)
	}
	b.logger.Debug("session saved", slog.String("session_id", s.ID), slog.Int("messages", len(s.History)))
	return nil
}

// Delete implements Store.
func (b *BadgerStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	return b.db.Update(ctx, func(txn *badger.Txn) error {
		if err := txn.Delete(sessionKey(id)); err != nil {
			return err
		}
		item, err := txn.Get([]byte(activeKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		active, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(active) == id {
			return txn.Delete([]byte(activeKey))
		}
		return nil
	})
}

// List implements Store.
func (b *BadgerStore) List(ctx context.Context) ([]*Session, error) {
	var out []*Session
	err := b.db.View(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var s Session
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			})
			if err != nil {
				b.logger.Warn("skipping undecodable session",
					slog.String("key", string(it.Item().Key())),
					slog.String("error", err.Error()))
				continue
			}
			out = append(out, &s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

// ActiveID implements Store.
func (b *BadgerStore) ActiveID(ctx context.Context) (string, error) {
	var id string
	err := b.db.View(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(activeKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoActiveSession
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		id = string(val)
		return err
	})
	return id, err
}
