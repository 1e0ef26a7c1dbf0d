package schedule

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"autoapply-engine/internal/apply"
	"autoapply-engine/internal/domain"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string]domain.Schedule
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]domain.Schedule)}
}

func (m *memStore) GetAll(context.Context) (map[string]domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.Schedule, len(m.rows))
	for k, v := range m.rows {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, id string) (domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return domain.Schedule{}, errors.New("schedule not found")
	}
	return s, nil
}

func (m *memStore) Put(_ context.Context, s domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.JobID] = s
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type stubRunner struct {
	mu      sync.Mutex
	calls   int
	summary apply.RunSummary
	err     error
	block   chan struct{} // when set, Run waits for close or ctx
}

func (r *stubRunner) Run(ctx context.Context, _ apply.RunRequest) (apply.RunSummary, error) {
	r.mu.Lock()
	r.calls++
	block := r.block
	r.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return apply.RunSummary{}, ctx.Err()
		}
	}
	return r.summary, r.err
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type noticeLog struct {
	mu    sync.Mutex
	sent  int
	email string
}

func (n *noticeLog) SendScheduleNotice(_ context.Context, email string, _ domain.Schedule) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	n.email = email
	return nil
}

func testScheduler(runner Runner) (*Scheduler, *memStore) {
	st := newMemStore()
	s := New(Options{Store: st, Runner: runner, Poll: time.Hour})
	return s, st
}

func createReq() CreateRequest {
	return CreateRequest{
		UserID:       "alice",
		UserName:     "Alice",
		UserEmail:    "alice@x.io",
		JobTitle:     "Go Developer",
		Location:     "Berlin",
		CVPath:       "/tmp/cv.txt",
		ScheduleType: domain.ScheduleOnce,
		MaxPerRun:    5,
	}
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never held")
}

func TestCreateIsDueImmediately(t *testing.T) {
	s, _ := testScheduler(&stubRunner{})
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	sched, err := s.Create(context.Background(), createReq())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sched.Status != domain.StatusScheduled {
		t.Errorf("status = %s", sched.Status)
	}
	if sched.NextRun == nil || !sched.NextRun.Equal(now) {
		t.Errorf("nextRun = %v, want %v", sched.NextRun, now)
	}
	if sched.JobID == "" {
		t.Error("want generated jobId")
	}
}

func TestCreateValidation(t *testing.T) {
	s, _ := testScheduler(&stubRunner{})

	bad := createReq()
	bad.JobTitle = ""
	bad.CVPath = ""
	if _, err := s.Create(context.Background(), bad); err == nil ||
		!strings.Contains(err.Error(), "jobTitle") || !strings.Contains(err.Error(), "cvPath") {
		t.Errorf("want missing-fields error, got %v", err)
	}

	rec := createReq()
	rec.ScheduleType = domain.ScheduleRecurring
	if _, err := s.Create(context.Background(), rec); err == nil ||
		!strings.Contains(err.Error(), "frequencyDays") {
		t.Errorf("want frequencyDays error, got %v", err)
	}
}

func TestCreateSendsNotice(t *testing.T) {
	notices := &noticeLog{}
	st := newMemStore()
	s := New(Options{Store: st, Runner: &stubRunner{}, Noticer: notices, Poll: time.Hour})

	if _, err := s.Create(context.Background(), createReq()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if notices.sent != 1 || notices.email != "alice@x.io" {
		t.Errorf("notice = %+v", notices)
	}
}

func TestPollRunsDueJobOnce(t *testing.T) {
	runner := &stubRunner{summary: apply.RunSummary{Succeeded: 2}}
	s, st := testScheduler(runner)

	sched, _ := s.Create(context.Background(), createReq())

	s.pollOnce(context.Background())
	s.pollOnce(context.Background()) // running now, must not double-fire
	s.wg.Wait()

	if runner.callCount() != 1 {
		t.Fatalf("runner called %d times, want 1", runner.callCount())
	}

	got, _ := st.Get(context.Background(), sched.JobID)
	if got.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.LastResult == nil || !got.LastResult.Success || got.LastResult.Applications != 2 {
		t.Errorf("lastResult = %+v", got.LastResult)
	}
	if got.NextRun != nil {
		t.Error("completed job must not have nextRun")
	}
}

func TestZeroApplicationsIsRecordedAsFailure(t *testing.T) {
	runner := &stubRunner{summary: apply.RunSummary{Succeeded: 0}}
	s, st := testScheduler(runner)

	sched, _ := s.Create(context.Background(), createReq())
	s.pollOnce(context.Background())
	s.wg.Wait()

	got, _ := st.Get(context.Background(), sched.JobID)
	if got.Status != domain.StatusCompleted {
		t.Errorf("status = %s", got.Status)
	}
	if got.LastResult == nil || got.LastResult.Success || got.LastResult.Error != "no applications submitted" {
		t.Errorf("lastResult = %+v", got.LastResult)
	}
}

func TestRunErrorFlipsToErrorStatus(t *testing.T) {
	runner := &stubRunner{err: errors.New("cv unreadable")}
	s, st := testScheduler(runner)

	sched, _ := s.Create(context.Background(), createReq())
	s.pollOnce(context.Background())
	s.wg.Wait()

	got, _ := st.Get(context.Background(), sched.JobID)
	if got.Status != domain.StatusError {
		t.Errorf("status = %s, want error", got.Status)
	}
	if got.LastError != "cv unreadable" {
		t.Errorf("lastError = %q", got.LastError)
	}
}

func TestRecurringReschedulesByFrequency(t *testing.T) {
	runner := &stubRunner{summary: apply.RunSummary{Succeeded: 1}}
	s, st := testScheduler(runner)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	req := createReq()
	req.ScheduleType = domain.ScheduleRecurring
	req.FrequencyDays = 3
	req.TotalRuns = 2
	sched, _ := s.Create(context.Background(), req)

	s.pollOnce(context.Background())
	s.wg.Wait()

	got, _ := st.Get(context.Background(), sched.JobID)
	if got.Status != domain.StatusScheduled {
		t.Fatalf("status = %s, want scheduled again", got.Status)
	}
	want := now.AddDate(0, 0, 3)
	if got.NextRun == nil || !got.NextRun.Equal(want) {
		t.Errorf("nextRun = %v, want %v", got.NextRun, want)
	}

	// second (final) run exhausts totalRuns
	now = want
	s.pollOnce(context.Background())
	s.wg.Wait()

	got, _ = st.Get(context.Background(), sched.JobID)
	if got.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed after totalRuns", got.Status)
	}
	if got.RunsCompleted != 2 {
		t.Errorf("runsCompleted = %d", got.RunsCompleted)
	}
}

func TestCancelScheduledJob(t *testing.T) {
	s, st := testScheduler(&stubRunner{})
	sched, _ := s.Create(context.Background(), createReq())

	got, err := s.Cancel(context.Background(), sched.JobID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Errorf("status = %s", got.Status)
	}

	// cancelling again is a no-op
	again, err := s.Cancel(context.Background(), sched.JobID)
	if err != nil || again.Status != domain.StatusCancelled {
		t.Errorf("second cancel: %v %s", err, again.Status)
	}

	stored, _ := st.Get(context.Background(), sched.JobID)
	if stored.NextRun != nil {
		t.Error("cancelled job must not have nextRun")
	}
}

func TestCancelInterruptsRunningJob(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{})}
	s, st := testScheduler(runner)

	sched, _ := s.Create(context.Background(), createReq())
	s.pollOnce(context.Background())

	waitFor(t, func() bool { return runner.callCount() == 1 })

	if _, err := s.Cancel(context.Background(), sched.JobID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	s.wg.Wait()

	got, _ := st.Get(context.Background(), sched.JobID)
	if got.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want cancelled to stick after run returns", got.Status)
	}
	if got.LastResult == nil {
		t.Error("interrupted run should still record a result")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	s, _ := testScheduler(&stubRunner{})
	if _, err := s.Cancel(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	s, st := testScheduler(&stubRunner{})
	sched, _ := s.Create(context.Background(), createReq())

	if err := s.Delete(context.Background(), sched.JobID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Get(context.Background(), sched.JobID); err == nil {
		t.Error("record should be gone")
	}
	if err := s.Delete(context.Background(), sched.JobID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListFiltersByUser(t *testing.T) {
	s, _ := testScheduler(&stubRunner{})
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	i := 0
	s.clock = func() time.Time { i++; return base.Add(time.Duration(i) * time.Minute) }

	a := createReq()
	s.Create(context.Background(), a)
	b := createReq()
	b.UserID = "bob"
	s.Create(context.Background(), b)
	c := createReq()
	s.Create(context.Background(), c)

	mine, err := s.List(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("got %d schedules, want 2", len(mine))
	}
	if mine[0].CreatedAt.Before(mine[1].CreatedAt) {
		t.Error("want newest first")
	}

	all, _ := s.List(context.Background(), "")
	if len(all) != 3 {
		t.Errorf("got %d schedules, want 3", len(all))
	}
}

func TestFutureJobIsNotRun(t *testing.T) {
	runner := &stubRunner{}
	s, st := testScheduler(runner)
	sched, _ := s.Create(context.Background(), createReq())

	// push the job into the future
	row, _ := st.Get(context.Background(), sched.JobID)
	future := time.Now().Add(time.Hour)
	row.NextRun = &future
	st.Put(context.Background(), row)

	s.pollOnce(context.Background())
	s.wg.Wait()
	if runner.callCount() != 0 {
		t.Errorf("runner called %d times, want 0", runner.callCount())
	}
}
