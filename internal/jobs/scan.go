package jobs

import (
	"context"
	"fmt"
	"log"

	"birdwatch/internal/dedup"
	"birdwatch/internal/metrics"
	"birdwatch/internal/models"
	"birdwatch/internal/store"
)

// Source yields observed content. Implemented by the browser scraper.
type Source interface {
	FetchRecent(ctx context.Context, limit int) ([]models.RawItem, error)
	FetchOne(ctx context.Context, id string) (models.RawItem, error)
}

// Scorer rates item text on the agent's insight scale.
type Scorer interface {
	Score(ctx context.Context, text string) float64
}

// Enricher tags item text with topics and token mentions. Optional: a nil
// Enricher skips tagging.
type Enricher interface {
	Topics(ctx context.Context, text string) ([]string, error)
	Tokens(ctx context.Context, text string) ([]string, error)
}

// ScanCycle pulls recent items from the source, drops duplicates, scores the
// survivors and hands them to the store. Scoring happens strictly after the
// dedup gate so duplicate items never cost an LLM call.
type ScanCycle struct {
	source   Source
	scorer   Scorer
	enricher Enricher
	tracker  *dedup.Tracker
	store    *store.Store
	maxItems int
}

// NewScanCycle wires the scan cycle. enricher may be nil.
func NewScanCycle(source Source, scorer Scorer, enricher Enricher, tracker *dedup.Tracker, st *store.Store, maxItems int) *ScanCycle {
	return &ScanCycle{
		source:   source,
		scorer:   scorer,
		enricher: enricher,
		tracker:  tracker,
		store:    st,
		maxItems: maxItems,
	}
}

func (c *ScanCycle) Name() string { return "scan" }

func (c *ScanCycle) Run(ctx context.Context) error {
	raw, err := c.source.FetchRecent(ctx, c.maxItems)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	ingested, duplicates := 0, 0
	for _, r := range raw {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.ID == "" {
			continue
		}
		if !c.tracker.Admit(r.ID) {
			duplicates++
			continue
		}

		item := models.Item{
			ID:         r.ID,
			Text:       r.Text,
			Author:     r.Author,
			Metrics:    r.Metrics,
			ObservedAt: r.CreatedAt,
			Score:      c.scorer.Score(ctx, r.Text),
		}
		c.enrich(ctx, &item)

		status := c.store.Ingest(item)
		ingested++
		metrics.ItemsScanned.Inc()
		log.Printf("[SCAN] Item %s scored %.0f -> %s", item.ID, item.Score, status)
	}

	log.Printf("[SCAN] Fetched %d, ingested %d, dropped %d duplicates", len(raw), ingested, duplicates)
	return nil
}

// enrich tags the item with topics and token mentions. Best effort: tagging
// failures are contained, the item still flows through untagged.
func (c *ScanCycle) enrich(ctx context.Context, item *models.Item) {
	if c.enricher == nil {
		return
	}

	topics, err := c.enricher.Topics(ctx, item.Text)
	if err != nil {
		metrics.ItemErrors.WithLabelValues(c.Name()).Inc()
		log.Printf("[SCAN] Topic tagging failed for %s: %v", item.ID, err)
	} else {
		item.Topics = topics
	}

	tokens, err := c.enricher.Tokens(ctx, item.Text)
	if err != nil {
		metrics.ItemErrors.WithLabelValues(c.Name()).Inc()
		log.Printf("[SCAN] Token tagging failed for %s: %v", item.ID, err)
	} else {
		item.Tokens = tokens
	}
}
