/**
 * @description
 * Scheduled job implementations. The funding refresh is a safety net behind
 * the per-confirmation recomputation: it re-derives every bounty's confirmed
 * totals and the fundable ranking, repairing any drift left by a failed
 * refresh after a confirmation.
 */
package app

import (
	"context"
	"log"
	"time"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	service *Service
}

// NewJobs creates a new Jobs runner over the service.
func NewJobs(service *Service) *Jobs {
	return &Jobs{service: service}
}

// RefreshFundingAggregates recomputes funding totals for every drifted bounty
// and rebuilds the ranking. Both writes are idempotent.
func (j *Jobs) RefreshFundingAggregates() {
	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	corrected, err := j.service.repo.RefreshAllBountyAggregates(ctx)
	if err != nil {
		log.Printf("level=warn component=jobs job=funding_refresh msg=\"aggregate refresh failed\" err=%v", err)
		return
	}

	if err := j.service.repo.RecomputeBountyRankings(ctx); err != nil {
		log.Printf("level=warn component=jobs job=funding_refresh msg=\"ranking recomputation failed\" err=%v", err)
		return
	}

	log.Printf("level=info component=jobs job=funding_refresh msg=\"finished\" corrected_rows=%d elapsed=%s", corrected, time.Since(started))
}
