package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"birdwatch/internal/metrics"
	"birdwatch/internal/models"
	"birdwatch/internal/store"
)

// maxRefreshPerRun caps lookups per tick so a backlog of due records cannot
// monopolize the read budget.
const maxRefreshPerRun = 10

// RefreshCycle performs the one-time engagement check on records 24h after
// posting: how did the reply or summary actually do. A record whose lookup
// fails transiently stays due and is picked up on a later tick; a record
// whose target no longer exists is closed out with zero metrics.
type RefreshCycle struct {
	store  *store.Store
	source Source

	now func() time.Time // test seam
}

// NewRefreshCycle wires the engagement refresh cycle.
func NewRefreshCycle(st *store.Store, source Source) *RefreshCycle {
	return &RefreshCycle{store: st, source: source, now: time.Now}
}

func (c *RefreshCycle) Name() string { return "refresh" }

func (c *RefreshCycle) Run(ctx context.Context) error {
	due := c.store.DueForRefresh(c.now())
	if len(due) == 0 {
		return nil
	}
	if len(due) > maxRefreshPerRun {
		due = due[:maxRefreshPerRun]
	}

	refreshed := 0
	for _, rec := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Replies and posts get their own ids when posted; fall back to the
		// original item for records from before id capture worked.
		targetID := rec.PostedID
		if targetID == "" {
			targetID = rec.ItemID
		}

		raw, err := c.source.FetchOne(ctx, targetID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				c.store.ApplyRefresh(rec.ItemID, rec.Action, models.Metrics{})
				log.Printf("[REFRESH] Target %s gone, record closed", targetID)
				continue
			}
			if models.IsFatal(err) {
				return err
			}
			metrics.ItemErrors.WithLabelValues(c.Name()).Inc()
			log.Printf("[REFRESH] Lookup failed for %s, will retry next tick: %v", targetID, err)
			continue
		}

		c.store.ApplyRefresh(rec.ItemID, rec.Action, raw.Metrics)
		refreshed++
	}

	log.Printf("[REFRESH] Refreshed %d of %d due records", refreshed, len(due))
	return nil
}
