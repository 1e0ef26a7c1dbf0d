package domain

import "time"

type ScheduleType string

const (
	ScheduleOnce      ScheduleType = "once"
	ScheduleRecurring ScheduleType = "recurring"
)

type JobStatus string

const (
	StatusScheduled JobStatus = "scheduled"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusCancelled JobStatus = "cancelled"
	StatusError     JobStatus = "error"
)

// Terminal reports whether a job can never run again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusError
}

// RunResult is the outcome of the most recent run of a scheduled job.
type RunResult struct {
	Success      bool      `json:"success"`
	Applications int       `json:"applications"`
	Error        string    `json:"error,omitempty"`
	RanAt        time.Time `json:"ranAt"`
}

// Schedule is a persisted application job. NextRun is non-nil exactly when
// Status is scheduled; the scheduler clears it before dispatch and restores
// it (or not) on completion.
type Schedule struct {
	JobID         string       `json:"jobId"`
	UserID        string       `json:"userId"`
	UserName      string       `json:"userName"`
	UserEmail     string       `json:"userEmail"`
	JobTitle      string       `json:"jobTitle"`
	Location      string       `json:"location"`
	CVPath        string       `json:"cvPath"`
	ScheduleType  ScheduleType `json:"scheduleType"`
	MaxPerRun     int          `json:"maxApplicationsPerRun"`
	FrequencyDays int          `json:"frequencyDays,omitempty"`
	TotalRuns     int          `json:"totalRuns,omitempty"`
	RunsCompleted int          `json:"runsCompleted"`
	Status        JobStatus    `json:"status"`
	CreatedAt     time.Time    `json:"createdAt"`
	NextRun       *time.Time   `json:"nextRun,omitempty"`
	LastRun       *time.Time   `json:"lastRun,omitempty"`
	LastError     string       `json:"lastError,omitempty"`
	LastResult    *RunResult   `json:"lastResult,omitempty"`
}
