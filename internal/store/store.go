package store

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"birdwatch/internal/models"
)

// refreshDelay is how long after posting we look at an action's engagement
// once. One refresh per record, ever.
const refreshDelay = 24 * time.Hour

// Store owns Item and EngagementRecord lifetimes. All operations run under a
// single coarse mutex: they are short in-memory transitions, so the cycles'
// slow network calls never hold the lock.
//
// Persistence is write-through to an optional SQLite database; a nil DB means
// memory only.
type Store struct {
	mu       sync.Mutex
	items    map[string]*models.Item
	records  map[string]map[models.Action]*models.EngagementRecord
	minScore float64
	db       *DB
}

// New creates a store accepting items scoring at least minScore. db may be
// nil.
func New(minScore float64, db *DB) *Store {
	return &Store{
		items:    make(map[string]*models.Item),
		records:  make(map[string]map[models.Action]*models.EngagementRecord),
		minScore: minScore,
		db:       db,
	}
}

// Reload populates the store from the database and returns the ids of all
// loaded items so the caller can re-seed the dedup tracker. No-op without a
// database.
func (s *Store) Reload() ([]string, error) {
	if s.db == nil {
		return nil, nil
	}

	items, err := s.db.LoadTweets()
	if err != nil {
		return nil, fmt.Errorf("failed to reload items: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(items))
	for i := range items {
		item := items[i]
		s.items[item.ID] = &item
		ids = append(ids, item.ID)
	}

	log.Printf("[STORE] Reloaded %d items from database", len(items))
	return ids, nil
}

// Ingest admits a freshly scored item, transitioning it to Eligible when its
// score meets the threshold and Rejected otherwise. Rejected items are kept
// for audit but never selected again. Re-ingesting a known id is a no-op
// returning the current status: the dedup tracker should have gated the call,
// and re-processing must never corrupt state.
func (s *Store) Ingest(item models.Item) models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[item.ID]; ok {
		return existing.Status
	}

	if item.Score >= s.minScore {
		item.Status = models.StatusEligible
	} else {
		item.Status = models.StatusRejected
	}

	s.items[item.ID] = &item
	s.persistItem(&item)
	return item.Status
}

// SelectForReply returns up to limit Eligible items ordered by descending
// score, ties broken by earliest observation time. The ordering is stable and
// deterministic.
func (s *Store) SelectForReply(limit int) []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	var selected []models.Item
	for _, item := range s.items {
		if item.Status == models.StatusEligible {
			selected = append(selected, *item)
		}
	}
	sortByScore(selected)

	if limit >= 0 && len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}

// SelectForSummary returns Eligible and Replied items observed within the
// half-open window [start, end), ordered by descending score.
func (s *Store) SelectForSummary(start, end time.Time) []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	var selected []models.Item
	for _, item := range s.items {
		if item.Status != models.StatusEligible && item.Status != models.StatusReplied {
			continue
		}
		if item.ObservedAt.Before(start) || !item.ObservedAt.Before(end) {
			continue
		}
		selected = append(selected, *item)
	}
	sortByScore(selected)
	return selected
}

// MarkReplied records a successful reply. Idempotent: if a reply record
// already exists for the item, the original record is returned unchanged and
// nothing is persisted.
func (s *Store) MarkReplied(itemID string, rec models.EngagementRecord) (models.EngagementRecord, error) {
	return s.mark(itemID, models.ActionReply, models.StatusReplied, rec)
}

// MarkSummarized records an item's inclusion in a posted summary. Idempotent
// the same way MarkReplied is, so an item is never summarized twice even when
// consecutive summary windows overlap.
func (s *Store) MarkSummarized(itemID string, rec models.EngagementRecord) (models.EngagementRecord, error) {
	return s.mark(itemID, models.ActionPost, models.StatusSummarized, rec)
}

func (s *Store) mark(itemID string, action models.Action, status models.Status, rec models.EngagementRecord) (models.EngagementRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return models.EngagementRecord{}, fmt.Errorf("mark %s for unknown item %s: %w", action, itemID, models.ErrInvariant)
	}

	if existing, ok := s.records[itemID][action]; ok {
		return *existing, nil
	}

	rec.ItemID = itemID
	rec.Action = action
	if rec.PostedAt.IsZero() {
		rec.PostedAt = time.Now()
	}
	rec.RefreshDue = rec.PostedAt.Add(refreshDelay)

	if s.records[itemID] == nil {
		s.records[itemID] = make(map[models.Action]*models.EngagementRecord)
	}
	s.records[itemID][action] = &rec
	item.Status = status

	s.persistStatus(item)
	if action == models.ActionReply {
		s.persistReply(&rec)
	}

	return rec, nil
}

// PersistSummaryPost writes the aggregate summary post once, with the ids of
// the items it covered. Called by the summarize cycle before the per-item
// MarkSummarized calls.
func (s *Store) PersistSummaryPost(rec models.EngagementRecord, sourceIDs []string) {
	if s.db == nil {
		return
	}
	if err := s.db.SavePost(rec, sourceIDs); err != nil {
		log.Printf("[STORE] Failed to persist summary post: %v", err)
	}
}

// DueForRefresh returns records whose one-time engagement refresh is due.
func (s *Store) DueForRefresh(now time.Time) []models.EngagementRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.EngagementRecord
	for _, actions := range s.records {
		for _, rec := range actions {
			if !rec.Refreshed && !rec.RefreshDue.IsZero() && !rec.RefreshDue.After(now) {
				due = append(due, *rec)
			}
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RefreshDue.Before(due[j].RefreshDue) })
	return due
}

// ApplyRefresh stores the refreshed metrics on a record. At most one refresh
// is ever applied; later calls are no-ops.
func (s *Store) ApplyRefresh(itemID string, action models.Action, metrics models.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[itemID][action]
	if !ok || rec.Refreshed {
		return
	}
	rec.ResultingMetrics = &metrics
	rec.Refreshed = true
}

// RelatedItems returns up to limit non-rejected items whose text shares a
// word with any of words, most recent first. This is the retrieval step
// behind reply context: simple keyword/recency match, nothing fancier.
func (s *Store) RelatedItems(words []string, limit int) []models.Item {
	wanted := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			wanted[w] = struct{}{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Item
	for _, item := range s.items {
		if item.Status == models.StatusRejected {
			continue
		}
		for _, w := range strings.Fields(strings.ToLower(item.Text)) {
			if _, ok := wanted[strings.Trim(w, ".,!?#@")]; ok {
				matched = append(matched, *item)
				break
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ObservedAt.After(matched[j].ObservedAt)
	})
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// PurgeRejected drops rejected items observed before cutoff and returns how
// many were removed. Rejected items are kept for audit, not forever.
func (s *Store) PurgeRejected(cutoff time.Time) int {
	s.mu.Lock()
	purged := 0
	for id, item := range s.items {
		if item.Status == models.StatusRejected && item.ObservedAt.Before(cutoff) {
			delete(s.items, id)
			purged++
		}
	}
	s.mu.Unlock()

	if s.db != nil {
		if _, err := s.db.DeleteRejectedBefore(cutoff); err != nil {
			log.Printf("[STORE] Failed to purge rejected rows: %v", err)
		}
	}
	return purged
}

// Stats returns item counts by status, for the status endpoint.
func (s *Store) Stats() map[models.Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[models.Status]int)
	for _, item := range s.items {
		stats[item.Status]++
	}
	return stats
}

// sortByScore orders items by descending score, ties by earliest ObservedAt,
// final tie by id so the order is fully deterministic.
func sortByScore(items []models.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if !items[i].ObservedAt.Equal(items[j].ObservedAt) {
			return items[i].ObservedAt.Before(items[j].ObservedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func (s *Store) persistItem(item *models.Item) {
	if s.db == nil {
		return
	}
	if err := s.db.SaveTweet(*item); err != nil {
		log.Printf("[STORE] Failed to persist item %s: %v", item.ID, err)
	}
}

func (s *Store) persistStatus(item *models.Item) {
	if s.db == nil {
		return
	}
	if err := s.db.UpdateTweetStatus(item.ID, item.Status); err != nil {
		log.Printf("[STORE] Failed to persist status of %s: %v", item.ID, err)
	}
}

func (s *Store) persistReply(rec *models.EngagementRecord) {
	if s.db == nil {
		return
	}
	if err := s.db.SaveReply(*rec); err != nil {
		log.Printf("[STORE] Failed to persist reply for %s: %v", rec.ItemID, err)
	}
}
