// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
)

// Status is the lifecycle state of a Transaction.
type Status string

const (
	StatusActive     Status = "active"
	StatusCommitting Status = "committing"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
	StatusFailed     Status = "failed"
)

// fileOps is the file system surface used by a commit.
type fileOps interface {
	WriteFile(name string, data []byte, perm fs.FileMode) error
	Rename(oldpath, newpath string) error
	Remove(name string) error
	RemoveAll(path string) error
	MkdirAll(path string, perm fs.FileMode) error
	Lstat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
}

type osOps struct{}

func (osOps) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}
func (osOps) Rename(oldpath, newpath string) error        { return os.Rename(oldpath, newpath) }
func (osOps) Remove(name string) error                    { return os.Remove(name) }
func (osOps) RemoveAll(path string) error                 { return os.RemoveAll(path) }
func (osOps) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }
func (osOps) Lstat(name string) (fs.FileInfo, error)      { return os.Lstat(name) }
func (osOps) ReadFile(name string) ([]byte, error)        { return os.ReadFile(name) }

// CommitterOption configures a Committer.
type CommitterOption func(*Committer)

// WithCommitterLogger sets the committer logger.
func WithCommitterLogger(logger *slog.Logger) CommitterOption {
	return func(c *Committer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracing enables or disables commit spans.
func WithTracing(enabled bool) CommitterOption {
	return func(c *Committer) {
		c.tracingEnabled = enabled
	}
}

// withOps replaces the file system surface.
func withOps(ops fileOps) CommitterOption {
	return func(c *Committer) {
		c.ops = ops
	}
}

// Committer applies staged files and deletions to a project.
//
// # Description
//
// Only one transaction may be active at a time. Backups of every file a
// transaction overwrites or deletes are kept under
// {backupRoot}/{txID}/ so that a rollback restores the exact prior bytes.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Committer struct {
	projectRoot    string
	backupRoot     string
	ops            fileOps
	logger         *slog.Logger
	tracer         *Tracer
	tracingEnabled bool

	mu     sync.Mutex
	active *Transaction
}

// NewCommitter creates a Committer for projectRoot that keeps backups
// under backupRoot.
func NewCommitter(projectRoot, backupRoot string, opts ...CommitterOption) *Committer {
	c := &Committer{
		projectRoot:    projectRoot,
		backupRoot:     backupRoot,
		ops:            osOps{},
		logger:         slog.Default().With(slog.String("component", "staging.Committer")),
		tracingEnabled: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tracer = NewTracer(c.logger, c.tracingEnabled)
	return c
}

// write is one staged file to move into place.
type write struct {
	rel     string
	content string
}

// removal is one delete step.
type removal struct {
	rel string
	dir bool
}

// applied records one completed change for rollback.
type applied struct {
	rel     string
	target  string
	backup  string
	created bool
}

// Transaction is one pending apply.
type Transaction struct {
	ID        string
	SessionID string
	StartedAt time.Time
	Status    Status

	writes    []write
	removals  []removal
	backupDir string
	applied   []applied
	temps     []string
	committer *Committer
}

// Result summarizes a finished transaction.
type Result struct {
	TxID     string
	Written  []string
	Deleted  []string
	Duration time.Duration
}

// Duration returns the time since the transaction started.
func (tx *Transaction) Duration() time.Duration {
	return time.Since(tx.StartedAt)
}

// FileCount returns the number of paths the transaction touches.
func (tx *Transaction) FileCount() int {
	return len(tx.writes) + len(tx.removals)
}

// Begin reads the staged set and records deletions for a new transaction.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - sessionID: Owning session, for logs and spans.
//   - staged: Files to write, keyed by project-relative path.
//   - deletes: DeleteFile and DeleteDirectory steps. Other step types are
//     ignored.
//
// # Outputs
//
//   - *Transaction: The active transaction.
//   - error: ErrTransactionActive, ErrInvalidPath, or a read error.
func (c *Committer) Begin(ctx context.Context, sessionID string, staged StagedSet, deletes []plan.Step) (tx *Transaction, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := c.tracer.StartBegin(ctx, sessionID)
	defer func() { c.tracer.EndBegin(span, tx, err) }()
	defer func() {
		recordBegin(ctx, err == nil)
		if err == nil {
			incActive(ctx)
		}
	}()

	if c.active != nil {
		return nil, ErrTransactionActive
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx = &Transaction{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		StartedAt: time.Now(),
		Status:    StatusActive,
		committer: c,
	}
	tx.backupDir = filepath.Join(c.backupRoot, tx.ID)

	if staged != nil {
		paths, err := staged.Paths()
		if err != nil {
			return nil, err
		}
		for _, rel := range paths {
			if _, err := localPath(c.projectRoot, rel); err != nil {
				return nil, err
			}
			content, err := staged.Read(rel)
			if err != nil {
				return nil, err
			}
			tx.writes = append(tx.writes, write{rel: rel, content: content})
		}
	}

	for _, step := range deletes {
		var r removal
		switch s := step.(type) {
		case plan.DeleteFile:
			r = removal{rel: s.Path()}
		case plan.DeleteDirectory:
			r = removal{rel: s.Path(), dir: true}
		default:
			continue
		}
		if _, err := localPath(c.projectRoot, r.rel); err != nil {
			return nil, err
		}
		tx.removals = append(tx.removals, r)
	}

	c.active = tx
	LoggerWithTrace(ctx, c.logger).Info("transaction started",
		slog.String("tx_id", tx.ID),
		slog.String("session_id", sessionID),
		slog.Int("writes", len(tx.writes)),
		slog.Int("deletes", len(tx.removals)))
	return tx, nil
}

func (c *Committer) release(tx *Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == tx {
		c.active = nil
	}
}

// Commit applies every staged write and deletion.
//
// # Description
//
// Each staged file is first written to {target}.modeler-tmp. Existing
// targets are then backed up and the temps renamed into place. Deletions
// move their targets into the backup directory. Any failure, or a panic,
// rolls back everything applied so far.
//
// # Outputs
//
//   - *Result: Written and deleted paths on success.
//   - error: *CommitError on failure. It matches ErrPartialApply when the
//     rollback could not restore every path.
func (tx *Transaction) Commit(ctx context.Context) (result *Result, err error) {
	c := tx.committer
	if tx.Status != StatusActive {
		return nil, ErrTransactionDone
	}
	defer c.release(tx)

	ctx, span := c.tracer.StartCommit(ctx, tx)
	defer func() { c.tracer.EndCommit(span, result, err) }()
	logger := LoggerWithTrace(ctx, c.logger)

	defer func() {
		if result != nil {
			recordCommit(ctx, result.Duration, tx.FileCount(), true)
		} else {
			recordCommit(ctx, tx.Duration(), tx.FileCount(), false)
		}
		decActive(ctx)
	}()

	// A panic mid-apply must not leave the project half written.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in commit", slog.Any("panic", r), slog.String("tx_id", tx.ID))
			result = nil
			err = tx.abort(ctx, "commit", "", fmt.Errorf("panic: %v", r))
		}
	}()

	c.tracer.RecordStateTransition(ctx, tx.ID, tx.Status, StatusCommitting)
	tx.Status = StatusCommitting

	for _, w := range tx.writes {
		if err := ctx.Err(); err != nil {
			return nil, tx.abort(ctx, "prepare", w.rel, err)
		}
		target := filepath.Join(c.projectRoot, filepath.FromSlash(w.rel))
		if err := c.ops.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, tx.abort(ctx, "prepare", w.rel, err)
		}
		tmp := target + tempSuffix
		tx.temps = append(tx.temps, tmp)
		if err := c.ops.WriteFile(tmp, []byte(w.content), 0o644); err != nil {
			return nil, tx.abort(ctx, "prepare", w.rel, err)
		}
	}

	res := &Result{TxID: tx.ID}
	for i, w := range tx.writes {
		target := filepath.Join(c.projectRoot, filepath.FromSlash(w.rel))
		rec := applied{rel: w.rel, target: target}
		if _, err := c.ops.Lstat(target); err == nil {
			backup := filepath.Join(tx.backupDir, filepath.FromSlash(w.rel))
			if err := tx.copyFile(target, backup); err != nil {
				return nil, tx.abort(ctx, "backup", w.rel, err)
			}
			rec.backup = backup
		} else {
			rec.created = true
		}
		if err := c.ops.Rename(tx.temps[i], target); err != nil {
			return nil, tx.abort(ctx, "write", w.rel, err)
		}
		tx.applied = append(tx.applied, rec)
		res.Written = append(res.Written, w.rel)
	}

	for _, r := range tx.removals {
		target := filepath.Join(c.projectRoot, filepath.FromSlash(r.rel))
		if _, err := c.ops.Lstat(target); errors.Is(err, fs.ErrNotExist) {
			logger.Warn("delete target already gone", slog.String("path", r.rel))
			continue
		}
		backup := filepath.Join(tx.backupDir, filepath.FromSlash(r.rel))
		if err := c.ops.MkdirAll(filepath.Dir(backup), 0o755); err != nil {
			return nil, tx.abort(ctx, "delete", r.rel, err)
		}
		if err := c.ops.Rename(target, backup); err != nil {
			return nil, tx.abort(ctx, "delete", r.rel, err)
		}
		tx.applied = append(tx.applied, applied{rel: r.rel, target: target, backup: backup})
		res.Deleted = append(res.Deleted, r.rel)
	}

	c.tracer.RecordStateTransition(ctx, tx.ID, tx.Status, StatusCommitted)
	tx.Status = StatusCommitted
	res.Duration = tx.Duration()

	logger.Info("transaction committed",
		slog.String("tx_id", tx.ID),
		slog.Int("written", len(res.Written)),
		slog.Int("deleted", len(res.Deleted)),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// Rollback undoes an active transaction that has not been committed.
func (tx *Transaction) Rollback(ctx context.Context, reason string) error {
	if tx.Status != StatusActive {
		return ErrTransactionDone
	}
	defer tx.committer.release(tx)
	defer decActive(ctx)

	unrestored := tx.restore(ctx, reason)
	if len(unrestored) > 0 {
		tx.Status = StatusFailed
		return &CommitError{TxID: tx.ID, Op: "rollback", Err: errors.New(reason), Unrestored: unrestored}
	}
	tx.Status = StatusRolledBack
	return nil
}

// abort rolls back after a failed step and builds the CommitError.
func (tx *Transaction) abort(ctx context.Context, op, rel string, cause error) error {
	reason := fmt.Sprintf("%s %s: %v", op, rel, cause)
	unrestored := tx.restore(ctx, reason)

	status := StatusRolledBack
	if len(unrestored) > 0 {
		status = StatusFailed
	}
	tx.committer.tracer.RecordStateTransition(ctx, tx.ID, tx.Status, status)
	tx.Status = status

	return &CommitError{TxID: tx.ID, Op: op, Path: rel, Err: cause, Unrestored: unrestored}
}

// restore reverts applied changes in reverse order and removes temps. It
// returns the paths it could not restore.
func (tx *Transaction) restore(ctx context.Context, reason string) []string {
	c := tx.committer
	ctx, span := c.tracer.StartRollback(ctx, tx, reason)
	logger := LoggerWithTrace(ctx, c.logger)

	var unrestored []string
	for i := len(tx.applied) - 1; i >= 0; i-- {
		a := tx.applied[i]
		var err error
		switch {
		case a.created:
			err = c.ops.Remove(a.target)
			if errors.Is(err, fs.ErrNotExist) {
				err = nil
			}
		default:
			if err = c.ops.MkdirAll(filepath.Dir(a.target), 0o755); err == nil {
				_ = c.ops.RemoveAll(a.target)
				err = c.ops.Rename(a.backup, a.target)
			}
		}
		if err != nil {
			logger.Error("restore failed",
				slog.String("tx_id", tx.ID),
				slog.String("path", a.rel),
				slog.String("error", err.Error()))
			unrestored = append(unrestored, a.rel)
		}
	}
	for _, tmp := range tx.temps {
		if err := c.ops.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("temp file not removed", slog.String("path", tmp))
		}
	}
	tx.applied = nil

	recordRollback(ctx, tx.Duration(), tx.FileCount(), reason)
	c.tracer.EndRollback(span, unrestored)
	logger.Warn("transaction rolled back",
		slog.String("tx_id", tx.ID),
		slog.String("reason", reason),
		slog.Int("unrestored", len(unrestored)))
	return unrestored
}

func (tx *Transaction) copyFile(src, dst string) error {
	ops := tx.committer.ops
	data, err := ops.ReadFile(src)
	if err != nil {
		return err
	}
	if err := ops.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return ops.WriteFile(dst, data, 0o644)
}
