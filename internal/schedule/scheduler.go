// Package schedule owns the scheduled-jobs table and its poll loop.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"autoapply-engine/internal/apply"
	"autoapply-engine/internal/domain"
	"autoapply-engine/internal/events"
	"autoapply-engine/internal/metrics"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("schedule not found")

// Runner executes one application round for a schedule's criteria.
type Runner interface {
	Run(ctx context.Context, req apply.RunRequest) (apply.RunSummary, error)
}

// Store is the persistence slice the scheduler needs.
type Store interface {
	GetAll(ctx context.Context) (map[string]domain.Schedule, error)
	Get(ctx context.Context, jobID string) (domain.Schedule, error)
	Put(ctx context.Context, sched domain.Schedule) error
	Delete(ctx context.Context, jobID string) error
}

// Noticer sends the creation notice; a nil Noticer disables it.
type Noticer interface {
	SendScheduleNotice(ctx context.Context, userEmail string, sched domain.Schedule) error
}

type CreateRequest struct {
	UserID        string              `json:"userId"`
	UserName      string              `json:"userName"`
	UserEmail     string              `json:"userEmail"`
	JobTitle      string              `json:"jobTitle"`
	Location      string              `json:"location"`
	CVPath        string              `json:"cvPath"`
	ScheduleType  domain.ScheduleType `json:"scheduleType"`
	MaxPerRun     int                 `json:"maxApplicationsPerRun"`
	FrequencyDays int                 `json:"frequencyDays"`
	TotalRuns     int                 `json:"totalRuns"`
}

// Scheduler persists schedules and drives due ones through the Runner. All
// table mutations funnel through its mutex: loads and stores of individual
// rows never interleave with another mutation's read-modify-write.
type Scheduler struct {
	store   Store
	runner  Runner
	noticer Noticer
	hub     *events.Hub
	sink    metrics.Sink
	poll    time.Duration
	clock   func() time.Time

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

type Options struct {
	Store   Store
	Runner  Runner
	Noticer Noticer
	Hub     *events.Hub
	Sink    metrics.Sink
	Poll    time.Duration
}

func New(opts Options) *Scheduler {
	if opts.Poll <= 0 {
		opts.Poll = 60 * time.Second
	}
	if opts.Sink == nil {
		opts.Sink = metrics.Noop{}
	}
	return &Scheduler{
		store:   opts.Store,
		runner:  opts.Runner,
		noticer: opts.Noticer,
		hub:     opts.Hub,
		sink:    opts.Sink,
		poll:    opts.Poll,
		clock:   time.Now,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Create validates, persists and announces a new schedule. The first run is
// due immediately.
func (s *Scheduler) Create(ctx context.Context, req CreateRequest) (domain.Schedule, error) {
	if err := validate(req); err != nil {
		return domain.Schedule{}, err
	}

	now := s.clock().UTC()
	next := now
	sched := domain.Schedule{
		JobID:         uuid.NewString(),
		UserID:        req.UserID,
		UserName:      req.UserName,
		UserEmail:     req.UserEmail,
		JobTitle:      req.JobTitle,
		Location:      req.Location,
		CVPath:        req.CVPath,
		ScheduleType:  req.ScheduleType,
		MaxPerRun:     req.MaxPerRun,
		FrequencyDays: req.FrequencyDays,
		TotalRuns:     req.TotalRuns,
		Status:        domain.StatusScheduled,
		CreatedAt:     now,
		NextRun:       &next,
	}

	s.mu.Lock()
	err := s.store.Put(ctx, sched)
	s.mu.Unlock()
	if err != nil {
		return domain.Schedule{}, err
	}

	if s.noticer != nil {
		if err := s.noticer.SendScheduleNotice(ctx, sched.UserEmail, sched); err != nil {
			log.Printf("[scheduler] schedule notice %s: %v", sched.JobID, err)
		}
	}
	s.publish(sched)
	log.Printf("[scheduler] created %s job %s for user %s (%q/%q)",
		sched.ScheduleType, sched.JobID, sched.UserID, sched.JobTitle, sched.Location)
	return sched, nil
}

func validate(req CreateRequest) error {
	var missing []string
	if strings.TrimSpace(req.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(req.JobTitle) == "" {
		missing = append(missing, "jobTitle")
	}
	if strings.TrimSpace(req.CVPath) == "" {
		missing = append(missing, "cvPath")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	switch req.ScheduleType {
	case domain.ScheduleOnce:
	case domain.ScheduleRecurring:
		if req.FrequencyDays <= 0 {
			return errors.New("recurring schedule needs frequencyDays > 0")
		}
	default:
		return fmt.Errorf("unknown scheduleType %q", req.ScheduleType)
	}
	if req.MaxPerRun <= 0 {
		return errors.New("maxApplicationsPerRun must be > 0")
	}
	return nil
}

// List returns schedules, newest first, optionally filtered by user.
func (s *Scheduler) List(ctx context.Context, userID string) ([]domain.Schedule, error) {
	all, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Schedule, 0, len(all))
	for _, sched := range all {
		if userID != "" && sched.UserID != userID {
			continue
		}
		out = append(out, sched)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Scheduler) Get(ctx context.Context, jobID string) (domain.Schedule, error) {
	sched, err := s.store.Get(ctx, jobID)
	if err != nil {
		return domain.Schedule{}, mapNotFound(err)
	}
	return sched, nil
}

// Cancel is idempotent: it flips any non-terminal job to cancelled and
// interrupts the run if one is in flight. Cancelling a terminal job is a
// no-op, not an error.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) (domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := s.store.Get(ctx, jobID)
	if err != nil {
		return domain.Schedule{}, mapNotFound(err)
	}

	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
	}

	if sched.Status.Terminal() {
		return sched, nil
	}

	sched.Status = domain.StatusCancelled
	sched.NextRun = nil
	if err := s.store.Put(ctx, sched); err != nil {
		return domain.Schedule{}, err
	}
	s.publish(sched)
	log.Printf("[scheduler] cancelled job %s", jobID)
	return sched, nil
}

// Delete removes the record entirely, interrupting any in-flight run first.
func (s *Scheduler) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(ctx, jobID); err != nil {
		return mapNotFound(err)
	}
	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
	}
	return s.store.Delete(ctx, jobID)
}

// Start runs the poll loop until ctx is cancelled. The first poll happens
// immediately; restarts therefore pick up work persisted by a previous
// process without waiting out a tick.
func (s *Scheduler) Start(ctx context.Context) {
	t := time.NewTicker(s.poll)
	defer t.Stop()

	log.Printf("[scheduler] poll loop started (every %s)", s.poll)
	s.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-t.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *Scheduler) pollOnce(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.GetAll(ctx)
	if err != nil {
		log.Printf("[scheduler] poll: %v", err)
		return
	}

	now := s.clock()
	for _, sched := range all {
		if sched.Status != domain.StatusScheduled || sched.NextRun == nil || sched.NextRun.After(now) {
			continue
		}

		// Claim before dispatch: flip to running and clear nextRun while
		// still holding the table lock so the next tick can't double-fire.
		sched.Status = domain.StatusRunning
		sched.NextRun = nil
		if err := s.store.Put(ctx, sched); err != nil {
			log.Printf("[scheduler] claim %s: %v", sched.JobID, err)
			continue
		}

		runCtx, cancel := context.WithCancel(ctx)
		s.cancels[sched.JobID] = cancel
		s.publish(sched)

		s.wg.Add(1)
		go s.execute(runCtx, sched)
	}
}

func (s *Scheduler) execute(ctx context.Context, sched domain.Schedule) {
	defer s.wg.Done()
	log.Printf("[scheduler] running job %s (%q/%q)", sched.JobID, sched.JobTitle, sched.Location)

	summary, runErr := s.runner.Run(ctx, apply.RunRequest{
		UserID:          sched.UserID,
		UserName:        sched.UserName,
		UserEmail:       sched.UserEmail,
		JobTitle:        sched.JobTitle,
		Location:        sched.Location,
		CVPath:          sched.CVPath,
		MaxApplications: sched.MaxPerRun,
	})
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, sched.JobID)

	// Reload: Cancel or Delete may have won while the run was in flight.
	current, err := s.store.Get(context.Background(), sched.JobID)
	if err != nil {
		log.Printf("[scheduler] job %s finished but record is gone: %v", sched.JobID, err)
		return
	}

	now := s.clock().UTC()
	current.LastRun = &now
	current.RunsCompleted++

	result := domain.RunResult{
		Success:      runErr == nil && summary.Succeeded > 0,
		Applications: summary.Succeeded,
		RanAt:        now,
	}
	switch {
	case runErr != nil:
		result.Error = runErr.Error()
	case summary.Succeeded == 0:
		result.Error = "no applications submitted"
	}
	current.LastResult = &result

	switch {
	case current.Status == domain.StatusCancelled:
		// keep the user's cancellation; just record what happened
	case runErr != nil:
		current.Status = domain.StatusError
		current.LastError = runErr.Error()
		current.NextRun = nil
		log.Printf("[scheduler] job %s failed: %v", sched.JobID, runErr)
	case current.ScheduleType == domain.ScheduleOnce:
		current.Status = domain.StatusCompleted
		current.NextRun = nil
	case current.TotalRuns > 0 && current.RunsCompleted >= current.TotalRuns:
		current.Status = domain.StatusCompleted
		current.NextRun = nil
	default:
		next := now.AddDate(0, 0, current.FrequencyDays)
		current.Status = domain.StatusScheduled
		current.NextRun = &next
	}

	if err := s.store.Put(context.Background(), current); err != nil {
		log.Printf("[scheduler] persist result %s: %v", sched.JobID, err)
		return
	}

	s.sink.ScheduleRun(result.Success)
	s.publish(current)
	log.Printf("[scheduler] job %s -> %s (applications=%d)", sched.JobID, current.Status, summary.Succeeded)
}

func (s *Scheduler) publish(sched domain.Schedule) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(events.MakeEvent("", events.TypeScheduleUpdated, 1, map[string]any{
		"jobId":  sched.JobID,
		"status": string(sched.Status),
	}))
}

func mapNotFound(err error) error {
	if err != nil && strings.Contains(err.Error(), "not found") {
		return ErrNotFound
	}
	return err
}
