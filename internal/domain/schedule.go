package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSchedule is returned for non-positive pacing parameters.
var ErrInvalidSchedule = errors.New("invalid schedule parameters")

// JobRef identifies one job to pace in a planned batch.
type JobRef struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Company string `json:"company"`
}

// ScheduledApplication is one slot in a planned schedule.
type ScheduledApplication struct {
	JobID   string    `json:"job_id"`
	Title   string    `json:"title"`
	Company string    `json:"company"`
	ApplyAt time.Time `json:"apply_at"`
}

// ScheduleOptions control application pacing.
type ScheduleOptions struct {
	Start              time.Time
	MinIntervalMinutes int
	BreakEvery         int
	BreakDuration      time.Duration
}

// PlanSchedule assigns each job, in input order, a strictly increasing apply
// time: MinIntervalMinutes after every job, plus BreakDuration after every
// BreakEvery-th job. Fails fast on non-positive parameters, before producing
// anything.
func PlanSchedule(jobs []JobRef, opts ScheduleOptions) ([]ScheduledApplication, error) {
	if opts.MinIntervalMinutes <= 0 {
		return nil, fmt.Errorf("%w: min interval must be positive", ErrInvalidSchedule)
	}
	if opts.BreakEvery <= 0 {
		return nil, fmt.Errorf("%w: break cadence must be positive", ErrInvalidSchedule)
	}

	schedule := make([]ScheduledApplication, 0, len(jobs))
	current := opts.Start
	interval := time.Duration(opts.MinIntervalMinutes) * time.Minute

	for i, job := range jobs {
		schedule = append(schedule, ScheduledApplication{
			JobID:   job.ID,
			Title:   job.Title,
			Company: job.Company,
			ApplyAt: current,
		})
		current = current.Add(interval)
		if (i+1)%opts.BreakEvery == 0 {
			current = current.Add(opts.BreakDuration)
		}
	}
	return schedule, nil
}
