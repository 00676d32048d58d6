// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session keeps the conversation across workflow cycles.
//
// A Session holds the message history, an optional compaction summary and
// the outcome of the last completed cycle. Cycle state itself is never
// stored: every user turn starts a fresh cycle.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Expiry is the age after which a session is replaced.
const Expiry = 6 * time.Hour

// RecentMessages is how many messages are shown to the intent source.
const RecentMessages = 4

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// History is the ordered message log.
type History []Message

// Latest returns the last message.
func (h History) Latest() (Message, bool) {
	if len(h) == 0 {
		return Message{}, false
	}
	return h[len(h)-1], true
}

// Recent returns up to the last n messages.
func (h History) Recent(n int) History {
	if n <= 0 {
		return nil
	}
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// CycleSummary is what a session remembers of a finished cycle.
type CycleSummary struct {
	CycleID     string    `json:"cycle_id"`
	UserInput   string    `json:"user_input"`
	Outcome     string    `json:"outcome"`
	FinalOutput string    `json:"final_output"`
	Files       []string  `json:"files,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Session is one conversation with the modeler.
//
// # Thread Safety
//
// Not safe for concurrent mutation. One cycle runs per session at a time.
type Session struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	History   History       `json:"history"`
	Summary   string        `json:"summary,omitempty"`
	LastCycle *CycleSummary `json:"last_cycle,omitempty"`
}

// New creates an empty session.
func New(now time.Time) *Session {
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) append(role, content string, now time.Time) {
	s.History = append(s.History, Message{Role: role, Content: content, Timestamp: now.UTC()})
	s.UpdatedAt = now.UTC()
}

// AppendUser records a user message.
func (s *Session) AppendUser(content string, now time.Time) {
	s.append(RoleUser, content, now)
}

// AppendAssistant records an assistant message.
func (s *Session) AppendAssistant(content string, now time.Time) {
	s.append(RoleAssistant, content, now)
}

// RecordCycle stores the outcome of a finished cycle and appends its
// exchange to the history.
func (s *Session) RecordCycle(c CycleSummary) {
	s.AppendUser(c.UserInput, c.CompletedAt)
	if c.FinalOutput != "" {
		s.AppendAssistant(c.FinalOutput, c.CompletedAt)
	}
	s.LastCycle = &c
}

// Clear drops the history, the summary and the last cycle.
func (s *Session) Clear() {
	s.History = nil
	s.Summary = ""
	s.LastCycle = nil
}

// ClearHistory drops only the history.
func (s *Session) ClearHistory() {
	s.History = nil
}

// ApplyCompaction replaces the history with summary.
func (s *Session) ApplyCompaction(summary string, now time.Time) {
	s.Summary = summary
	s.History = nil
	s.LastCycle = nil
	s.UpdatedAt = now.UTC()
}

// Compacted reports whether the session carries a summary.
func (s *Session) Compacted() bool {
	return s.Summary != ""
}

// ShouldBeReplaced reports whether a fresh session should be started: the
// session is older than Expiry, or it was compacted and nothing was said
// since.
func (s *Session) ShouldBeReplaced(now time.Time) bool {
	if now.Sub(s.CreatedAt) > Expiry {
		return true
	}
	return s.Compacted() && len(s.History) == 0
}
