package discovery

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"autoapply-engine/internal/domain"
	"autoapply-engine/internal/events"
	"autoapply-engine/internal/metrics"
	"autoapply-engine/internal/source"

	"github.com/robfig/cron/v3"
)

// PostingStore is the slice of the postings repository the engine needs.
type PostingStore interface {
	GetAll(ctx context.Context) (map[string]domain.Posting, error)
	ExistingIDs(ctx context.Context) (map[string]bool, error)
	PutAll(ctx context.Context, postings []domain.Posting) error
	ReplaceAll(ctx context.Context, postings map[string]domain.Posting) error
}

type Options struct {
	Source source.JobSource
	Store  PostingStore
	Hub    *events.Hub
	Sink   metrics.Sink

	FullSpec     string
	PrioritySpec string
	CleanupSpec  string

	Retention      time.Duration
	TitlesPerCycle int
	Titles         []string
	Locations      []string
	PriorityTitles []string
	HubLocations   []string

	Weights          map[string]float64
	HiringNowTerms   []string
	EmailDenyDomains []string
}

// Engine runs the periodic discovery cycles and owns the postings table.
type Engine struct {
	src   source.JobSource
	store PostingStore
	hub   *events.Hub
	sink  metrics.Sink

	opts   Options
	enrich *enricher

	mu           sync.Mutex
	cron         *cron.Cron
	running      bool
	fullOffset   int
	prioOffset   int
	cancelCycles context.CancelFunc

	clock func() time.Time
}

func New(opts Options) *Engine {
	if opts.Sink == nil {
		opts.Sink = metrics.Noop{}
	}
	if opts.TitlesPerCycle <= 0 {
		opts.TitlesPerCycle = 10
	}
	if opts.Retention <= 0 {
		opts.Retention = 72 * time.Hour
	}
	e := &Engine{
		src:   opts.Source,
		store: opts.Store,
		hub:   opts.Hub,
		sink:  opts.Sink,
		opts:  opts,
		clock: time.Now,
	}
	e.enrich = &enricher{
		weights:     opts.Weights,
		hiringTerms: opts.HiringNowTerms,
		denyTerms:   opts.EmailDenyDomains,
		fetchDesc:   opts.Source.FetchDescription,
		clock:       func() time.Time { return e.clock() },
	}
	return e
}

// Start registers the three timers and kicks off an immediate full cycle.
// Calling Start while running is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New()

	if _, err := c.AddFunc(e.opts.FullSpec, func() { e.runFull(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("discovery full spec %q: %w", e.opts.FullSpec, err)
	}
	if _, err := c.AddFunc(e.opts.PrioritySpec, func() { e.runPriority(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("discovery priority spec %q: %w", e.opts.PrioritySpec, err)
	}
	if _, err := c.AddFunc(e.opts.CleanupSpec, func() { e.runCleanup(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("discovery cleanup spec %q: %w", e.opts.CleanupSpec, err)
	}

	e.cron = c
	e.cancelCycles = cancel
	e.running = true
	c.Start()

	// run immediately; waiting a full interval for the first batch is useless
	go e.runFull(ctx)

	log.Printf("[discovery] started (full=%s priority=%s cleanup=%s)",
		e.opts.FullSpec, e.opts.PrioritySpec, e.opts.CleanupSpec)
	return nil
}

// Stop halts the timers and interrupts any in-flight cycle.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.cron.Stop()
	e.cancelCycles()
	e.cron = nil
	e.running = false
	log.Printf("[discovery] stopped")
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) runFull(ctx context.Context) {
	titles := e.rotate(e.opts.Titles, e.opts.TitlesPerCycle, &e.fullOffset)
	added, found, err := e.cycle(ctx, titles, e.opts.Locations)
	if err != nil {
		log.Printf("[discovery] full cycle: %v", err)
		return
	}
	e.sink.DiscoveryCycle("full", found, added)
	log.Printf("[discovery] full cycle done: found=%d new=%d", found, added)
}

func (e *Engine) runPriority(ctx context.Context) {
	titles := e.rotate(e.opts.PriorityTitles, 3, &e.prioOffset)
	added, found, err := e.cycle(ctx, titles, e.opts.HubLocations)
	if err != nil {
		log.Printf("[discovery] priority cycle: %v", err)
		return
	}
	e.sink.DiscoveryCycle("priority", found, added)
	log.Printf("[discovery] priority cycle done: found=%d new=%d", found, added)
}

func (e *Engine) runCleanup(ctx context.Context) {
	kept, removed, err := e.Cleanup(ctx)
	if err != nil {
		log.Printf("[discovery] cleanup: %v", err)
		return
	}
	e.sink.CleanupRun(kept, removed)
	log.Printf("[discovery] cleanup done: kept=%d removed=%d", kept, removed)
}

// rotate hands out the next n entries of xs, wrapping around so successive
// cycles walk the whole catalog instead of hammering the same head.
func (e *Engine) rotate(xs []string, n int, offset *int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(xs) == 0 {
		return nil
	}
	if n > len(xs) {
		n = len(xs)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, xs[(*offset+i)%len(xs)])
	}
	*offset = (*offset + n) % len(xs)
	return out
}

// cycle searches every (title, location) pair, enriches, and persists what is
// new. A failing pair is logged and skipped; the cycle always finishes.
func (e *Engine) cycle(ctx context.Context, titles, locations []string) (added, found int, err error) {
	candidates := make(map[string]domain.Posting)

	for _, title := range titles {
		for _, location := range locations {
			if ctx.Err() != nil {
				return 0, 0, ctx.Err()
			}

			drafts, err := e.src.Search(ctx, title, location)
			if err != nil {
				log.Printf("[discovery] search %q/%q: %v", title, location, err)
				continue
			}
			found += len(drafts)

			for _, d := range drafts {
				if d.Title == "" || d.Company == "" {
					continue
				}
				p := e.enrich.enrich(ctx, d, title, location)
				if _, ok := candidates[p.ID]; !ok {
					candidates[p.ID] = p
				}
			}
		}
	}

	if len(candidates) == 0 {
		return 0, found, nil
	}

	existing, err := e.store.ExistingIDs(ctx)
	if err != nil {
		return 0, found, fmt.Errorf("existing ids: %w", err)
	}

	var fresh []domain.Posting
	for id, p := range candidates {
		if !existing[id] {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		return 0, found, nil
	}

	if err := e.store.PutAll(ctx, fresh); err != nil {
		return 0, found, fmt.Errorf("store postings: %w", err)
	}

	if e.hub != nil {
		e.hub.Publish(events.MakeEvent("", events.TypePostingDiscovered, 1, map[string]any{
			"count": len(fresh),
		}))
	}
	return len(fresh), found, nil
}

// SearchCustom is the synchronous, caller-driven variant of a cycle. Results
// are returned and persisted.
func (e *Engine) SearchCustom(ctx context.Context, titles, locations []string) ([]domain.Posting, error) {
	if len(titles) == 0 || len(locations) == 0 {
		return nil, fmt.Errorf("custom search needs at least one title and one location")
	}

	candidates := make(map[string]domain.Posting)
	for _, title := range titles {
		for _, location := range locations {
			drafts, err := e.src.Search(ctx, title, location)
			if err != nil {
				log.Printf("[discovery] custom search %q/%q: %v", title, location, err)
				continue
			}
			for _, d := range drafts {
				if d.Title == "" || d.Company == "" {
					continue
				}
				p := e.enrich.enrich(ctx, d, title, location)
				if _, ok := candidates[p.ID]; !ok {
					candidates[p.ID] = p
				}
			}
		}
	}

	existing, err := e.store.ExistingIDs(ctx)
	if err != nil {
		return nil, err
	}
	var fresh []domain.Posting
	out := make([]domain.Posting, 0, len(candidates))
	for id, p := range candidates {
		out = append(out, p)
		if !existing[id] {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) > 0 {
		if err := e.store.PutAll(ctx, fresh); err != nil {
			return nil, err
		}
	}
	return out, nil
}
