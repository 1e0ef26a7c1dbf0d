package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Limiter enforces calendar-based daily and weekly application quotas per
// identity. The day rolls over at local midnight and the week on Monday; a
// denied user gets fresh quota at the boundary, not a sliding window later.
type Limiter struct {
	mu       sync.Mutex
	counters CounterStore
	daily    int
	weekly   int
	clock    func() time.Time
}

type Decision struct {
	Allowed     bool   `json:"allowed"`
	Message     string `json:"message"`
	DailyUsed   int    `json:"dailyUsed"`
	WeeklyUsed  int    `json:"weeklyUsed"`
	DailyLimit  int    `json:"dailyLimit"`
	WeeklyLimit int    `json:"weeklyLimit"`
}

func New(counters CounterStore, daily, weekly int) *Limiter {
	return &Limiter{
		counters: counters,
		daily:    daily,
		weekly:   weekly,
		clock:    time.Now,
	}
}

func dayBucket(t time.Time) string {
	return "day:" + t.Format("2006-01-02")
}

func weekBucket(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("week:%04d-W%02d", year, week)
}

// Check reports whether identity may apply right now. Stale buckets are
// swept on the way through, so idle identities cost nothing to keep.
func (l *Limiter) Check(ctx context.Context, identity string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(ctx, identity)
}

// Increment records one application against both windows.
func (l *Limiter) Increment(ctx context.Context, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.incrementLocked(ctx, identity)
}

/// Reserve is check-and-increment under one lock: callers racing on the same
// identity cannot both squeeze through the last quota slot.
func (l *Limiter) Reserve(ctx context.Context, identity string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, err := l.checkLocked(ctx, identity)
	if err != nil || !d.Allowed {
		return d, err
	}
	if err := l.incrementLocked(ctx, identity); err != nil {
		return d, err
	}
	d.DailyUsed++
	d.WeeklyUsed++
	return d, nil
}

func (l *Limiter) checkLocked(ctx context.Context, identity string) (Decision, error) {
	now := l.clock()

	if err := l.counters.Sweep(ctx, identity, func(bucket string) bool {
		return keepBucket(bucket, now)
	}); err != nil {
		return Decision{}, err
	}

	dailyUsed, err := l.counters.Get(ctx, identity, dayBucket(now))
	if err != nil {
		return Decision{}, err
	}
	weeklyUsed, err := l.counters.Get(ctx, identity, weekBucket(now))
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		DailyUsed:   dailyUsed,
		WeeklyUsed:  weeklyUsed,
		DailyLimit:  l.daily,
		WeeklyLimit: l.weekly,
	}
	switch {
	case dailyUsed >= l.daily:
		d.Message = fmt.Sprintf("Daily application limit of %d exceeded. Try again tomorrow.", l.daily)
	case weeklyUsed >= l.weekly:
		d.Message = fmt.Sprintf("Weekly application limit of %d exceeded. Try again next week.", l.weekly)
	default:
		d.Allowed = true
		d.Message = "Application allowed"
	}
	return d, nil
}

func (l *Limiter) incrementLocked(ctx context.Context, identity string) error {
	now := l.clock()
	if _, err := l.counters.Incr(ctx, identity, dayBucket(now)); err != nil {
		return err
	}
	_, err := l.counters.Incr(ctx, identity, weekBucket(now))
	return err
}

// keepBucket keeps day buckets for 2 days and week buckets for 8 days past
// their start, so a bucket is never dropped while it could still be counted.
func keepBucket(bucket string, now time.Time) bool {
	switch {
	case strings.HasPrefix(bucket, "day:"):
		t, err := time.Parse("2006-01-02", strings.TrimPrefix(bucket, "day:"))
		if err != nil {
			return false
		}
		return now.Sub(t) < 48*time.Hour
	case strings.HasPrefix(bucket, "week:"):
		// Compare against the current and previous ISO week labels; anything
		// else is at least a week stale.
		cur := weekBucket(now)
		prev := weekBucket(now.AddDate(0, 0, -7))
		return bucket == cur || bucket == prev
	default:
		return false
	}
}
