package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"autoapply-engine/internal/domain"
)

const schedulesCollection = "schedules"

var ErrNotFound = errors.New("not found")

// Schedules is the scheduled-jobs repository.
type Schedules struct {
	kv *KV
}

func NewSchedules(kv *KV) *Schedules {
	return &Schedules{kv: kv}
}

func (s *Schedules) GetAll(ctx context.Context) (map[string]domain.Schedule, error) {
	raw, err := s.kv.GetAll(ctx, schedulesCollection)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Schedule, len(raw))
	for id, body := range raw {
		var sched domain.Schedule
		if err := json.Unmarshal(body, &sched); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", id, err)
		}
		out[id] = sched
	}
	return out, nil
}

func (s *Schedules) Get(ctx context.Context, jobID string) (domain.Schedule, error) {
	body, ok, err := s.kv.Get(ctx, schedulesCollection, jobID)
	if err != nil {
		return domain.Schedule{}, err
	}
	if !ok {
		return domain.Schedule{}, fmt.Errorf("schedule %s: %w", jobID, ErrNotFound)
	}
	var sched domain.Schedule
	if err := json.Unmarshal(body, &sched); err != nil {
		return domain.Schedule{}, fmt.Errorf("schedule %s: %w", jobID, err)
	}
	return sched, nil
}

func (s *Schedules) Put(ctx context.Context, sched domain.Schedule) error {
	b, err := json.Marshal(sched)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, schedulesCollection, sched.JobID, b)
}

func (s *Schedules) Delete(ctx context.Context, jobID string) error {
	return s.kv.Delete(ctx, schedulesCollection, jobID)
}

// UserIDs returns the distinct users that own at least one schedule.
func (s *Schedules) UserIDs(ctx context.Context) ([]string, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(all))
	var out []string
	for _, sched := range all {
		if sched.UserID == "" || seen[sched.UserID] {
			continue
		}
		seen[sched.UserID] = true
		out = append(out, sched.UserID)
	}
	return out, nil
}
