package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"birdwatch/internal/metrics"
	"birdwatch/internal/models"
	"birdwatch/internal/store"
)

// maxSummaryItems caps how many items feed a single summary post.
const maxSummaryItems = 5

// SummarizeCycle aggregates the window's best items into one posted
// observation. The window is half-open, [now-window, now), so an item
// observed exactly at a boundary lands in exactly one window. Items are
// marked summarized only after the post succeeds, and the mark is idempotent,
// so overlapping windows can never cover an item twice.
type SummarizeCycle struct {
	store     *store.Store
	generator Generator
	executor  Executor
	window    time.Duration

	now func() time.Time // test seam
}

// NewSummarizeCycle wires the summarize cycle with the given lookback window.
func NewSummarizeCycle(st *store.Store, gen Generator, exec Executor, window time.Duration) *SummarizeCycle {
	return &SummarizeCycle{
		store:     st,
		generator: gen,
		executor:  exec,
		window:    window,
		now:       time.Now,
	}
}

func (c *SummarizeCycle) Name() string { return "summarize" }

func (c *SummarizeCycle) Run(ctx context.Context) error {
	end := c.now()
	start := end.Add(-c.window)

	items := c.store.SelectForSummary(start, end)
	if len(items) == 0 {
		log.Println("[SUMMARIZE] Nothing to summarize in window")
		return nil
	}
	if len(items) > maxSummaryItems {
		items = items[:maxSummaryItems]
	}

	text, err := c.generator.GenerateSummary(ctx, items)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	result, err := c.executor.Post(ctx, text)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	rec := models.EngagementRecord{
		Action:        models.ActionPost,
		GeneratedText: text,
		PostedID:      result.PostedID,
		PostedAt:      end,
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	c.store.PersistSummaryPost(rec, ids)

	for _, item := range items {
		if _, err := c.store.MarkSummarized(item.ID, models.EngagementRecord{
			GeneratedText: text,
			PostedID:      result.PostedID,
			PostedAt:      end,
		}); err != nil {
			log.Printf("[SUMMARIZE] Mark failed for %s: %v", item.ID, err)
			continue
		}
		metrics.ItemsSummarized.Inc()
	}

	log.Printf("[SUMMARIZE] Posted summary covering %d items", len(items))
	return nil
}
