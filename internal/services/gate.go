package services

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ConcurrencyGate bounds how many certificate workflows run at once.
// Callers beyond capacity wait without limit until a slot frees or their
// context ends.
type ConcurrencyGate struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
	waiting  atomic.Int64
}

// NewConcurrencyGate creates a gate with the given number of slots (minimum 1)
func NewConcurrencyGate(capacity int) *ConcurrencyGate {
	if capacity < 1 {
		capacity = 1
	}
	return &ConcurrencyGate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks until a slot is free
func (g *ConcurrencyGate) Acquire(ctx context.Context) error {
	g.waiting.Add(1)
	err := g.sem.Acquire(ctx, 1)
	g.waiting.Add(-1)
	if err != nil {
		return err
	}
	g.inUse.Add(1)
	return nil
}

// Release frees a slot taken by Acquire
func (g *ConcurrencyGate) Release() {
	g.inUse.Add(-1)
	g.sem.Release(1)
}

// Stats returns capacity, slots in use and callers waiting
func (g *ConcurrencyGate) Stats() GateStats {
	return GateStats{
		Capacity: g.capacity,
		InUse:    g.inUse.Load(),
		Waiting:  g.waiting.Load(),
	}
}

// GateStats is a snapshot of gate occupancy
type GateStats struct {
	Capacity int64 `json:"capacity"`
	InUse    int64 `json:"in_use"`
	Waiting  int64 `json:"waiting"`
}

// Health reports the gate as degraded while callers are queued
func (g *ConcurrencyGate) Health() map[string]interface{} {
	stats := g.Stats()
	status := "healthy"
	if stats.Waiting > 0 {
		status = "degraded"
	}
	return map[string]interface{}{
		"status":   status,
		"capacity": stats.Capacity,
		"in_use":   stats.InUse,
		"waiting":  stats.Waiting,
	}
}
