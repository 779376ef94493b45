/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package app

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron            *cron.Cron
	jobs            *Jobs
	refreshSchedule string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, refreshSchedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(log.Default())
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:            c,
		jobs:            jobs,
		refreshSchedule: refreshSchedule,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.refreshSchedule, s.jobs.RefreshFundingAggregates); err != nil {
		log.Printf("level=error component=scheduler msg=\"failed to schedule funding refresh job\" schedule=%q err=%v", s.refreshSchedule, err)
	} else {
		log.Printf("level=info component=scheduler msg=\"scheduled funding refresh job\" schedule=%q", s.refreshSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
