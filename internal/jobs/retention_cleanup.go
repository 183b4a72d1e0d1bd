package jobs

import (
	"context"
	"log"
	"time"

	"birdwatch/internal/store"
)

// RetentionCycle deletes old rejected items. Rejected items are retained so
// the scoring threshold can be audited against real traffic, but they serve
// no purpose after a few weeks and would otherwise grow without bound.
// Eligible, replied and summarized items are never purged.
type RetentionCycle struct {
	store         *store.Store
	retentionDays int

	now func() time.Time // test seam
}

// NewRetentionCycle wires the retention cycle. retentionDays must be
// positive; callers disable retention by not registering the cycle.
func NewRetentionCycle(st *store.Store, retentionDays int) *RetentionCycle {
	return &RetentionCycle{store: st, retentionDays: retentionDays, now: time.Now}
}

func (c *RetentionCycle) Name() string { return "retention" }

func (c *RetentionCycle) Run(ctx context.Context) error {
	cutoff := c.now().UTC().AddDate(0, 0, -c.retentionDays)

	startTime := time.Now()
	purged := c.store.PurgeRejected(cutoff)
	if purged > 0 {
		log.Printf("[RETENTION] Purged %d rejected items older than %s in %v",
			purged, cutoff.Format(time.RFC3339), time.Since(startTime))
	}
	return nil
}
