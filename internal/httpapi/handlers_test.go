package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"autoapply-engine/internal/apply"
	"autoapply-engine/internal/config"
	"autoapply-engine/internal/discovery"
	"autoapply-engine/internal/domain"
	"autoapply-engine/internal/events"
	"autoapply-engine/internal/ratelimit"
	"autoapply-engine/internal/schedule"
	"autoapply-engine/internal/store"
)

type nopRunner struct{}

func (nopRunner) Run(context.Context, apply.RunRequest) (apply.RunSummary, error) {
	return apply.RunSummary{Succeeded: 1}, nil
}

type nopSource struct{}

func (nopSource) Name() string { return "stub" }
func (nopSource) Search(context.Context, string, string) ([]domain.Draft, error) {
	return nil, nil
}
func (nopSource) FetchDescription(context.Context, string) (string, error) { return "", nil }

func testDeps(t *testing.T) Deps {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	kv, err := store.NewKV(db)
	if err != nil {
		t.Fatal(err)
	}

	postings := store.NewPostings(kv)
	history := store.NewHistory(kv)
	sched := schedule.New(schedule.Options{
		Store:  store.NewSchedules(kv),
		Runner: nopRunner{},
		Poll:   time.Hour,
	})
	engine := discovery.New(discovery.Options{
		Source: nopSource{},
		Store:  postings,
		Titles: []string{"go developer"}, Locations: []string{"remote"},
		FullSpec: "@every 1h", PrioritySpec: "@every 30m", CleanupSpec: "@every 6h",
	})

	var cfgVal atomic.Value
	cfgVal.Store(config.Default())

	return Deps{
		Hub:       events.NewHub(),
		CfgVal:    &cfgVal,
		Scheduler: sched,
		Discovery: engine,
		Postings:  postings,
		History:   history,
		Limiter:   ratelimit.New(ratelimit.NewMemoryCounters(), 2, 10),
	}
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func TestScheduleCreateListCancel(t *testing.T) {
	mux := NewMux(testDeps(t))

	w := doJSON(t, mux, http.MethodPost, "/schedule", `{
		"userId":"alice","userName":"Alice","userEmail":"alice@x.io",
		"jobTitle":"Go Developer","location":"Berlin","cvPath":"/tmp/cv.txt",
		"scheduleType":"once","maxApplicationsPerRun":5}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", w.Code, w.Body.String())
	}
	var created domain.Schedule
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.JobID == "" || created.Status != domain.StatusScheduled {
		t.Fatalf("created = %+v", created)
	}

	w = doJSON(t, mux, http.MethodGet, "/schedule/jobs?user=alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listed []domain.Schedule
	json.Unmarshal(w.Body.Bytes(), &listed)
	if len(listed) != 1 {
		t.Fatalf("listed %d schedules", len(listed))
	}

	w = doJSON(t, mux, http.MethodPost, "/schedule/jobs/"+created.JobID+"/cancel", "")
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d body=%s", w.Code, w.Body.String())
	}
	var cancelled domain.Schedule
	json.Unmarshal(w.Body.Bytes(), &cancelled)
	if cancelled.Status != domain.StatusCancelled {
		t.Errorf("status = %s", cancelled.Status)
	}

	w = doJSON(t, mux, http.MethodDelete, "/schedule/jobs/"+created.JobID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, mux, http.MethodGet, "/schedule/jobs/"+created.JobID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestScheduleCreateRejectsBadBody(t *testing.T) {
	mux := NewMux(testDeps(t))

	w := doJSON(t, mux, http.MethodPost, "/schedule", `{"userId":"alice"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "jobTitle") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCancelUnknownScheduleIs404(t *testing.T) {
	mux := NewMux(testDeps(t))
	w := doJSON(t, mux, http.MethodPost, "/schedule/jobs/nope/cancel", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRateLimitEndpoints(t *testing.T) {
	mux := NewMux(testDeps(t))

	w := doJSON(t, mux, http.MethodGet, "/ratelimit?identity=alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("check status = %d", w.Code)
	}
	var dec ratelimit.Decision
	json.Unmarshal(w.Body.Bytes(), &dec)
	if !dec.Allowed || dec.DailyLimit != 2 {
		t.Errorf("decision = %+v", dec)
	}

	// burn the daily budget of 2
	for i := 0; i < 2; i++ {
		w = doJSON(t, mux, http.MethodPost, "/ratelimit/increment", `{"identity":"alice"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("increment status = %d", w.Code)
		}
	}
	json.Unmarshal(w.Body.Bytes(), &dec)
	if dec.Allowed {
		t.Errorf("decision after limit = %+v", dec)
	}
	if !strings.Contains(dec.Message, "Daily application limit") {
		t.Errorf("message = %q", dec.Message)
	}

	w = doJSON(t, mux, http.MethodGet, "/ratelimit", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing identity status = %d", w.Code)
	}
}

func TestApplicationsSummary(t *testing.T) {
	deps := testDeps(t)
	mux := NewMux(deps)

	ctx := context.Background()
	for i, src := range []string{"indeed", "indeed", "linkedin"} {
		app := domain.Application{
			PostingID: domain.PostingID("acme", "dev", src) + string(rune('a'+i)),
			Title:     "Go Developer", Company: "Acme", Source: src,
			Success:   true,
			AppliedAt: time.Date(2026, 8, 20+i, 0, 0, 0, 0, time.UTC),
		}
		if i == 0 {
			app.ResponseReceived = true
		}
		if err := deps.History.Append(ctx, "alice", app); err != nil {
			t.Fatal(err)
		}
	}

	w := doJSON(t, mux, http.MethodGet, "/applications/summary?user=alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var sum applicationsSummary
	json.Unmarshal(w.Body.Bytes(), &sum)
	if sum.Total != 3 || sum.Succeeded != 3 || sum.Responses != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.BySource["indeed"] != 2 || sum.BySource["linkedin"] != 1 {
		t.Errorf("bySource = %v", sum.BySource)
	}
	if len(sum.Recent) != 3 || !sum.Recent[0].AppliedAt.After(sum.Recent[1].AppliedAt) {
		t.Errorf("recent not newest first: %+v", sum.Recent)
	}
}

func TestDiscoveryStartStop(t *testing.T) {
	mux := NewMux(testDeps(t))

	w := doJSON(t, mux, http.MethodPost, "/discovery/start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d", w.Code)
	}
	w = doJSON(t, mux, http.MethodPost, "/discovery/start", "")
	if w.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", w.Code)
	}
	w = doJSON(t, mux, http.MethodPost, "/discovery/stop", "")
	if w.Code != http.StatusOK {
		t.Errorf("stop status = %d", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := NewMux(testDeps(t))
	w := doJSON(t, mux, http.MethodDelete, "/schedule", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
