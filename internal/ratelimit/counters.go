package ratelimit

import (
	"context"
	"sync"
)

// CounterStore holds per-identity usage counters keyed by period bucket
// ("day:2026-08-29", "week:2026-W35").
type CounterStore interface {
	Get(ctx context.Context, identity, bucket string) (int, error)
	Incr(ctx context.Context, identity, bucket string) (int, error)
	// Sweep drops every bucket of identity for which keep returns false.
	// Backends with native expiry may treat this as a no-op.
	Sweep(ctx context.Context, identity string, keep func(bucket string) bool) error
}

// MemoryCounters is the default in-process backend.
type MemoryCounters struct {
	mu sync.Mutex
	m  map[string]map[string]int
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{m: make(map[string]map[string]int)}
}

func (mc *MemoryCounters) Get(_ context.Context, identity, bucket string) (int, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.m[identity][bucket], nil
}

func (mc *MemoryCounters) Incr(_ context.Context, identity, bucket string) (int, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	buckets, ok := mc.m[identity]
	if !ok {
		buckets = make(map[string]int)
		mc.m[identity] = buckets
	}
	buckets[bucket]++
	return buckets[bucket], nil
}

func (mc *MemoryCounters) Sweep(_ context.Context, identity string, keep func(bucket string) bool) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for bucket := range mc.m[identity] {
		if !keep(bucket) {
			delete(mc.m[identity], bucket)
		}
	}
	return nil
}
