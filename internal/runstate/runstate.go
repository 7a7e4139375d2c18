// Package runstate tracks per-lecture cancellation requests and run ownership.
package runstate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry records cancellation flags and which lectures currently have a pipeline running.
type Registry interface {
	// Cancel marks the lecture as cancelled.
	Cancel(ctx context.Context, id uuid.UUID) error
	// Cancelled reports whether a cancellation was requested.
	Cancelled(ctx context.Context, id uuid.UUID) (bool, error)
	// Clear drops the cancellation flag.
	Clear(ctx context.Context, id uuid.UUID) error
	// Claim takes the run lock for the lecture. It returns false when another run holds it.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	// Release gives up the run lock.
	Release(ctx context.Context, id uuid.UUID) error
}

// Memory is a process-local Registry.
type Memory struct {
	mu        sync.Mutex
	cancelled map[uuid.UUID]struct{}
	running   map[uuid.UUID]struct{}
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		cancelled: make(map[uuid.UUID]struct{}),
		running:   make(map[uuid.UUID]struct{}),
	}
}

func (m *Memory) Cancel(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.cancelled[id] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Cancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	_, ok := m.cancelled[id]
	m.mu.Unlock()
	return ok, nil
}

func (m *Memory) Clear(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	delete(m.cancelled, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.running[id]; ok {
		return false, nil
	}
	m.running[id] = struct{}{}
	return true, nil
}

func (m *Memory) Release(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	delete(m.running, id)
	m.mu.Unlock()
	return nil
}

const (
	// DefaultCancelTTL bounds how long a stop request stays visible.
	DefaultCancelTTL = 24 * time.Hour
	// DefaultRunTTL bounds a run lock left behind by a crashed worker.
	DefaultRunTTL = 2 * time.Hour
)
