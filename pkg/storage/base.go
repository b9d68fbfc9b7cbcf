// Package storage provides the backend interface and shared types for memory storage.
//
// It defines the Backend interface that both the embedded (SQLite) and the remote
// (PostgreSQL, OceanBase, Redis) implementations satisfy, so the engine can run the
// same query semantics against any of them.
package storage

import (
	"context"
	"time"
)

// Field limits every backend can hold, in runes.
const (
	MaxAgentIDLength     = 255
	MaxContentTypeLength = 64
)

// Memory represents a memory record as persisted by a backend.
//
// This type is defined in the storage package to avoid circular dependencies
// with the core package. It mirrors the core.Memory structure.
type Memory struct {
	// ID is the unique identifier of the memory.
	ID int64

	// AgentID identifies the agent owning this memory.
	AgentID string

	// Content is the normalized text content.
	Content string

	// ContentType is the category tag (insight, preference, error, ...).
	ContentType string

	// Importance is the 1-10 importance value.
	Importance int

	// Source is the optional provenance tag.
	Source string

	// Keywords are the terms extracted at write time.
	Keywords []string

	// Version is the record format version.
	Version string

	// CreatedAt is when the engine created the memory.
	CreatedAt time.Time
}

// Backend defines the interface for durable memory storage.
//
// Implementations must return memories in insertion order (created_at ascending,
// ties broken by ID ascending) and must be safe for concurrent use.
type Backend interface {
	// Insert persists a memory and returns its ID.
	//
	// The write is atomic: either the whole record is stored or nothing is.
	Insert(ctx context.Context, memory *Memory) (int64, error)

	// SelectByFilter returns the memories of an agent created at or after
	// opts.Since whose importance is at least opts.MinImportance.
	SelectByFilter(ctx context.Context, opts *FilterOptions) ([]*Memory, error)

	// SelectByTimeRange returns the memories of an agent created in [opts.Start, opts.End).
	SelectByTimeRange(ctx context.Context, opts *TimeRangeOptions) ([]*Memory, error)

	// Close closes the backend and releases resources.
	Close() error
}

// FilterOptions contains the predicate for SelectByFilter.
type FilterOptions struct {
	// AgentID restricts results to a single agent.
	AgentID string

	// Since is the creation-time lower bound (inclusive). Zero means no bound.
	Since time.Time

	// MinImportance is the minimum importance (inclusive).
	MinImportance int
}

// TimeRangeOptions contains the predicate for SelectByTimeRange.
type TimeRangeOptions struct {
	// AgentID restricts results to a single agent.
	AgentID string

	// Start is the inclusive lower bound.
	Start time.Time

	// End is the exclusive upper bound. Zero means no upper bound.
	End time.Time
}

// Matches reports whether m satisfies the filter.
//
// Backends that cannot push every condition down to the store use it for the
// remaining in-memory pass.
func (o *FilterOptions) Matches(m *Memory) bool {
	if o.AgentID != "" && m.AgentID != o.AgentID {
		return false
	}
	if !o.Since.IsZero() && m.CreatedAt.Before(o.Since) {
		return false
	}
	return m.Importance >= o.MinImportance
}

// Contains reports whether t falls inside the range.
func (o *TimeRangeOptions) Contains(t time.Time) bool {
	if t.Before(o.Start) {
		return false
	}
	return o.End.IsZero() || t.Before(o.End)
}
