package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"birdwatch/internal/metrics"
	"birdwatch/internal/models"
	"birdwatch/internal/store"
)

// Generator produces the text we post. Implemented by the LLM client.
type Generator interface {
	GenerateReply(ctx context.Context, item models.Item, related []models.Item) (string, error)
	GenerateSummary(ctx context.Context, items []models.Item) (string, error)
}

// Executor performs the side-effecting actions. Implemented by the browser.
type Executor interface {
	Reply(ctx context.Context, itemID, text string) (models.ActionResult, error)
	Post(ctx context.Context, text string) (models.ActionResult, error)
}

// ReplyCycle selects the highest-scoring eligible items, generates a reply
// for each and posts it. Item-level failures are contained: one bad item
// never aborts the batch. A rate limit from either the generator or the
// executor stops the batch early; the unprocessed items stay eligible and
// roll over to the next tick.
type ReplyCycle struct {
	store      *store.Store
	generator  Generator
	executor   Executor
	maxReplies int

	// related-item lookups repeat across ticks for items that roll over, so
	// the retrieval results are cached briefly.
	retrieval *cache.Cache
}

// NewReplyCycle wires the reply cycle.
func NewReplyCycle(st *store.Store, gen Generator, exec Executor, maxReplies int) *ReplyCycle {
	return &ReplyCycle{
		store:      st,
		generator:  gen,
		executor:   exec,
		maxReplies: maxReplies,
		retrieval:  cache.New(10*time.Minute, 30*time.Minute),
	}
}

func (c *ReplyCycle) Name() string { return "reply" }

func (c *ReplyCycle) Run(ctx context.Context) error {
	candidates := c.store.SelectForReply(c.maxReplies)
	if len(candidates) == 0 {
		log.Println("[REPLY] No eligible items")
		return nil
	}

	replied := 0
	for _, item := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		text, err := c.generator.GenerateReply(ctx, item, c.related(item))
		if err != nil {
			if errors.Is(err, models.ErrRateLimited) {
				log.Printf("[REPLY] Rate limited after %d replies, rolling over %s and later", replied, item.ID)
				return fmt.Errorf("reply: %w", err)
			}
			if errors.Is(err, models.ErrContentFiltered) {
				// The generated content was refused; skip the item, it stays
				// eligible for a later attempt.
				metrics.ItemErrors.WithLabelValues(c.Name()).Inc()
				log.Printf("[REPLY] Content filtered for %s, skipping", item.ID)
				continue
			}
			metrics.ItemErrors.WithLabelValues(c.Name()).Inc()
			log.Printf("[REPLY] Generation failed for %s: %v", item.ID, err)
			continue
		}

		result, err := c.executor.Reply(ctx, item.ID, text)
		if err != nil {
			if errors.Is(err, models.ErrRateLimited) {
				log.Printf("[REPLY] Rate limited after %d replies, rolling over %s and later", replied, item.ID)
				return fmt.Errorf("reply: %w", err)
			}
			if models.IsFatal(err) {
				return fmt.Errorf("reply: %w", err)
			}
			if errors.Is(err, models.ErrNotFound) {
				// Tweet deleted between scan and reply.
				metrics.ItemErrors.WithLabelValues(c.Name()).Inc()
				log.Printf("[REPLY] Item %s no longer exists, skipping", item.ID)
				continue
			}
			metrics.ItemErrors.WithLabelValues(c.Name()).Inc()
			log.Printf("[REPLY] Posting failed for %s: %v", item.ID, err)
			continue
		}

		// Posting succeeded: the mark must happen even if anything after this
		// point fails, so the item can never be replied to twice.
		if _, err := c.store.MarkReplied(item.ID, models.EngagementRecord{
			GeneratedText: text,
			PostedID:      result.PostedID,
		}); err != nil {
			log.Printf("[REPLY] Mark failed for %s: %v", item.ID, err)
			continue
		}

		replied++
		metrics.ItemsReplied.Inc()
		log.Printf("[REPLY] Replied to %s (score %.0f)", item.ID, item.Score)
	}

	log.Printf("[REPLY] Replied to %d of %d candidates", replied, len(candidates))
	return nil
}

// related fetches context items for reply generation, cached per item id.
func (c *ReplyCycle) related(item models.Item) []models.Item {
	if cached, ok := c.retrieval.Get(item.ID); ok {
		return cached.([]models.Item)
	}

	words := append([]string{}, item.Tokens...)
	words = append(words, item.Topics...)
	if len(words) == 0 {
		for _, w := range strings.Fields(item.Text) {
			if len(w) > 4 {
				words = append(words, w)
			}
			if len(words) == 5 {
				break
			}
		}
	}

	related := c.store.RelatedItems(words, 3)

	// Drop the item itself from its own context.
	filtered := related[:0]
	for _, r := range related {
		if r.ID != item.ID {
			filtered = append(filtered, r)
		}
	}

	c.retrieval.Set(item.ID, filtered, cache.DefaultExpiration)
	return filtered
}
