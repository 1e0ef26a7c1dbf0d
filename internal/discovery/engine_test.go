package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"autoapply-engine/internal/domain"
	"autoapply-engine/internal/metrics"
)

type fakeStore struct {
	mu       sync.Mutex
	postings map[string]domain.Posting
	replaces int
}

func newFakeStore() *fakeStore {
	return &fakeStore{postings: make(map[string]domain.Posting)}
}

func (f *fakeStore) GetAll(context.Context) (map[string]domain.Posting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.Posting, len(f.postings))
	for id, p := range f.postings {
		out[id] = p
	}
	return out, nil
}

func (f *fakeStore) ExistingIDs(context.Context) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.postings))
	for id := range f.postings {
		out[id] = true
	}
	return out, nil
}

func (f *fakeStore) PutAll(_ context.Context, postings []domain.Posting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range postings {
		f.postings[p.ID] = p
	}
	return nil
}

func (f *fakeStore) ReplaceAll(_ context.Context, postings map[string]domain.Posting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaces++
	f.postings = make(map[string]domain.Posting, len(postings))
	for id, p := range postings {
		f.postings[id] = p
	}
	return nil
}

type fakeSource struct {
	mu      sync.Mutex
	drafts  []domain.Draft
	queries [][2]string
	desc    string
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Search(_ context.Context, title, location string) ([]domain.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, [2]string{title, location})
	return f.drafts, nil
}

func (f *fakeSource) FetchDescription(context.Context, string) (string, error) {
	return f.desc, nil
}

func testEngine(src *fakeSource, st *fakeStore) *Engine {
	e := New(Options{
		Source:         src,
		Store:          st,
		Sink:           metrics.Noop{},
		FullSpec:       "@every 1h",
		PrioritySpec:   "@every 30m",
		CleanupSpec:    "@every 6h",
		Retention:      72 * time.Hour,
		TitlesPerCycle: 2,
		Titles:         []string{"a", "b", "c"},
		Locations:      []string{"remote"},
		PriorityTitles: []string{"a"},
		HubLocations:   []string{"remote"},
		Weights:        map[string]float64{"fake": 0.9},
		HiringNowTerms: []string{"hiring now"},
		EmailDenyDomains: []string{
			"example.com", "test.com", "noreply",
		},
	})
	return e
}

func TestCycleStoresOnlyNewPostings(t *testing.T) {
	src := &fakeSource{drafts: []domain.Draft{
		{Title: "Go Dev", Company: "Acme", URL: "u1", Source: "fake", Description: longDesc("plain role")},
		{Title: "Go Dev", Company: "Acme", URL: "u1-dup", Source: "fake", Description: longDesc("same identity, other url")},
	}}
	st := newFakeStore()
	e := testEngine(src, st)

	added, found, err := e.cycle(context.Background(), []string{"go"}, []string{"remote"})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if found != 2 || added != 1 {
		t.Fatalf("want found=2 added=1, got found=%d added=%d", found, added)
	}

	// Second cycle finds the same listings; nothing new is persisted.
	added, _, err = e.cycle(context.Background(), []string{"go"}, []string{"remote"})
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if added != 0 {
		t.Errorf("want no new postings on repeat, got %d", added)
	}
	if len(st.postings) != 1 {
		t.Errorf("want 1 stored posting, got %d", len(st.postings))
	}
}

func TestCycleSkipsDraftsMissingIdentity(t *testing.T) {
	src := &fakeSource{drafts: []domain.Draft{
		{Title: "", Company: "Acme", URL: "u", Source: "fake"},
		{Title: "Dev", Company: "", URL: "u", Source: "fake"},
	}}
	st := newFakeStore()
	e := testEngine(src, st)

	added, _, err := e.cycle(context.Background(), []string{"go"}, []string{"remote"})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if added != 0 {
		t.Errorf("want no postings from identity-less drafts, got %d", added)
	}
}

func TestRotateWalksCatalog(t *testing.T) {
	e := testEngine(&fakeSource{}, newFakeStore())

	first := e.rotate(e.opts.Titles, 2, &e.fullOffset)
	second := e.rotate(e.opts.Titles, 2, &e.fullOffset)
	if first[0] != "a" || first[1] != "b" {
		t.Errorf("first window: %v", first)
	}
	if second[0] != "c" || second[1] != "a" {
		t.Errorf("second window should wrap: %v", second)
	}
}

func TestCleanupKeepsFreshAndUnparseable(t *testing.T) {
	st := newFakeStore()
	e := testEngine(&fakeSource{}, st)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	e.clock = func() time.Time { return now }

	st.postings = map[string]domain.Posting{
		"fresh":  {ID: "fresh", DiscoveredAt: now.Add(-1 * time.Hour).Format(time.RFC3339)},
		"stale":  {ID: "stale", DiscoveredAt: now.Add(-80 * time.Hour).Format(time.RFC3339)},
		"broken": {ID: "broken", DiscoveredAt: "not-a-timestamp"},
		"empty":  {ID: "empty"},
	}

	kept, removed, err := e.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if kept != 3 || removed != 1 {
		t.Fatalf("want kept=3 removed=1, got kept=%d removed=%d", kept, removed)
	}
	if _, ok := st.postings["stale"]; ok {
		t.Error("stale posting survived")
	}
	if _, ok := st.postings["broken"]; !ok {
		t.Error("unparseable timestamp must be kept")
	}
}

func TestCleanupSkipsRewriteWhenNothingExpired(t *testing.T) {
	st := newFakeStore()
	e := testEngine(&fakeSource{}, st)
	now := time.Now()

	st.postings = map[string]domain.Posting{
		"fresh": {ID: "fresh", DiscoveredAt: now.Format(time.RFC3339)},
	}

	if _, _, err := e.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if st.replaces != 0 {
		t.Errorf("want no rewrite when nothing expired, got %d", st.replaces)
	}
}

func TestStatsCountsSourcesAndWindow(t *testing.T) {
	st := newFakeStore()
	e := testEngine(&fakeSource{}, st)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	e.clock = func() time.Time { return now }

	st.postings = map[string]domain.Posting{
		"1": {ID: "1", Source: "indeed", SearchTitle: "go", DiscoveredAt: now.Add(-1 * time.Hour).Format(time.RFC3339)},
		"2": {ID: "2", Source: "indeed", SearchTitle: "go", DiscoveredAt: now.Add(-30 * time.Hour).Format(time.RFC3339)},
		"3": {ID: "3", Source: "linkedin", DiscoveredAt: "garbage"},
	}

	stats, err := e.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Last24h != 1 {
		t.Errorf("want total=3 last24h=1, got %+v", stats)
	}
	if stats.BySource["indeed"] != 2 || stats.BySearchTitle["go"] != 2 {
		t.Errorf("bad breakdowns: %+v", stats)
	}
}

func TestSearchCustomPersistsResults(t *testing.T) {
	src := &fakeSource{drafts: []domain.Draft{
		{Title: "SRE", Company: "Umbrella", URL: "u", Source: "fake", Description: longDesc("role")},
	}}
	st := newFakeStore()
	e := testEngine(src, st)

	out, err := e.SearchCustom(context.Background(), []string{"sre"}, []string{"austin"})
	if err != nil {
		t.Fatalf("custom search: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("want 1 result, got %d", len(out))
	}
	if out[0].SearchTitle != "sre" || out[0].SearchLocation != "austin" {
		t.Errorf("search context not recorded: %+v", out[0])
	}
	if len(st.postings) != 1 {
		t.Errorf("custom search must persist, store has %d", len(st.postings))
	}
}

func TestSearchCustomRejectsEmptyInput(t *testing.T) {
	e := testEngine(&fakeSource{}, newFakeStore())
	if _, err := e.SearchCustom(context.Background(), nil, []string{"x"}); err == nil {
		t.Fatal("want error for empty titles")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	e := testEngine(&fakeSource{}, newFakeStore())

	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !e.Running() {
		t.Fatal("want running after start")
	}
	e.Stop()
	e.Stop()
	if e.Running() {
		t.Fatal("want stopped after stop")
	}
}

func longDesc(s string) string {
	for len(s) < 120 {
		s += " with plenty of detail about the position and the team"
	}
	return s
}
