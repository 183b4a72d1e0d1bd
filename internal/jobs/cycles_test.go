package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"birdwatch/internal/dedup"
	"birdwatch/internal/models"
	"birdwatch/internal/store"
)

type fakeSource struct {
	items    []models.RawItem
	fetchErr error
	oneErr   error
	metrics  models.Metrics
	fetches  int
}

func (f *fakeSource) FetchRecent(ctx context.Context, limit int) ([]models.RawItem, error) {
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if limit >= 0 && len(f.items) > limit {
		return f.items[:limit], nil
	}
	return f.items, nil
}

func (f *fakeSource) FetchOne(ctx context.Context, id string) (models.RawItem, error) {
	if f.oneErr != nil {
		return models.RawItem{}, f.oneErr
	}
	return models.RawItem{ID: id, Text: "refreshed", Metrics: f.metrics}, nil
}

type fakeScorer struct {
	scores map[string]float64
	calls  int
}

func (f *fakeScorer) Score(ctx context.Context, text string) float64 {
	f.calls++
	if score, ok := f.scores[text]; ok {
		return score
	}
	return 75
}

type fakeGenerator struct {
	errAfter int // fail once this many generations have succeeded, -1 never
	err      error
	calls    int
}

func (f *fakeGenerator) GenerateReply(ctx context.Context, item models.Item, related []models.Item) (string, error) {
	f.calls++
	if f.errAfter >= 0 && f.calls > f.errAfter {
		return "", f.err
	}
	return "reply to " + item.ID, nil
}

func (f *fakeGenerator) GenerateSummary(ctx context.Context, items []models.Item) (string, error) {
	f.calls++
	if f.errAfter >= 0 && f.calls > f.errAfter {
		return "", f.err
	}
	return fmt.Sprintf("summary of %d items", len(items)), nil
}

type fakeExecutor struct {
	replyErr error
	postErr  error
	replies  []string
	posts    []string
}

func (f *fakeExecutor) Reply(ctx context.Context, itemID, text string) (models.ActionResult, error) {
	if f.replyErr != nil {
		return models.ActionResult{}, f.replyErr
	}
	f.replies = append(f.replies, itemID)
	return models.ActionResult{Success: true, PostedID: "r-" + itemID}, nil
}

func (f *fakeExecutor) Post(ctx context.Context, text string) (models.ActionResult, error) {
	if f.postErr != nil {
		return models.ActionResult{}, f.postErr
	}
	f.posts = append(f.posts, text)
	return models.ActionResult{Success: true, PostedID: fmt.Sprintf("p-%d", len(f.posts))}, nil
}

func rawItems(n int) []models.RawItem {
	items := make([]models.RawItem, n)
	for i := range items {
		items[i] = models.RawItem{
			ID:        fmt.Sprintf("t%02d", i),
			Text:      fmt.Sprintf("tweet number %d", i),
			Author:    "@someone",
			CreatedAt: time.Now(),
		}
	}
	return items
}

func TestScanSkipsDuplicatesBeforeScoring(t *testing.T) {
	source := &fakeSource{items: rawItems(10)}
	scorer := &fakeScorer{}
	tracker := dedup.NewTracker(100)
	st := store.New(50, nil)

	// Three of the fetched ids are already known.
	tracker.Admit("t01")
	tracker.Admit("t04")
	tracker.Admit("t07")

	cycle := NewScanCycle(source, scorer, nil, tracker, st, 10)
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if scorer.calls != 7 {
		t.Errorf("Expected 7 scorer calls (duplicates never scored), got %d", scorer.calls)
	}
	stats := st.Stats()
	if stats[models.StatusEligible] != 7 {
		t.Errorf("Expected 7 ingested items, got %d", stats[models.StatusEligible])
	}
}

func TestScanPropagatesFetchFailure(t *testing.T) {
	source := &fakeSource{fetchErr: fmt.Errorf("timeline gone: %w", models.ErrTransient)}
	cycle := NewScanCycle(source, &fakeScorer{}, nil, dedup.NewTracker(10), store.New(50, nil), 10)

	err := cycle.Run(context.Background())
	if !models.IsRetryable(err) {
		t.Errorf("Expected retryable error from failed fetch, got %v", err)
	}
}

func TestScanBelowThresholdRejected(t *testing.T) {
	source := &fakeSource{items: []models.RawItem{
		{ID: "good", Text: "good"},
		{ID: "bad", Text: "bad"},
	}}
	scorer := &fakeScorer{scores: map[string]float64{"good": 80, "bad": 20}}
	st := store.New(50, nil)

	cycle := NewScanCycle(source, scorer, nil, dedup.NewTracker(10), st, 10)
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stats := st.Stats()
	if stats[models.StatusEligible] != 1 || stats[models.StatusRejected] != 1 {
		t.Errorf("Expected 1 eligible / 1 rejected, got %v", stats)
	}
}

func seedEligible(t *testing.T, st *store.Store, n int) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		status := st.Ingest(models.Item{
			ID:         fmt.Sprintf("t%02d", i),
			Text:       fmt.Sprintf("tweet number %d", i),
			ObservedAt: base.Add(time.Duration(i) * time.Minute),
			Score:      float64(90 - i), // t00 highest
		})
		if status != models.StatusEligible {
			t.Fatalf("Seed item %d not eligible: %s", i, status)
		}
	}
}

func TestReplyMarksEachSuccess(t *testing.T) {
	st := store.New(50, nil)
	seedEligible(t, st, 3)
	exec := &fakeExecutor{}

	cycle := NewReplyCycle(st, &fakeGenerator{errAfter: -1}, exec, 5)
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(exec.replies) != 3 {
		t.Fatalf("Expected 3 replies, got %d", len(exec.replies))
	}
	stats := st.Stats()
	if stats[models.StatusReplied] != 3 {
		t.Errorf("Expected 3 replied items, got %v", stats)
	}
}

func TestReplyRateLimitRollsOver(t *testing.T) {
	st := store.New(50, nil)
	seedEligible(t, st, 5)

	// Generation succeeds twice, then the API rate limits.
	gen := &fakeGenerator{errAfter: 2, err: fmt.Errorf("429: %w", models.ErrRateLimited)}
	exec := &fakeExecutor{}

	cycle := NewReplyCycle(st, gen, exec, 5)
	err := cycle.Run(context.Background())
	if !errors.Is(err, models.ErrRateLimited) {
		t.Fatalf("Expected the rate limit to surface, got %v", err)
	}

	if len(exec.replies) != 2 {
		t.Fatalf("Expected 2 replies before the limit, got %d", len(exec.replies))
	}
	stats := st.Stats()
	if stats[models.StatusReplied] != 2 {
		t.Errorf("Expected 2 replied, got %v", stats)
	}
	if stats[models.StatusEligible] != 3 {
		t.Errorf("Expected 3 items rolled over as eligible, got %v", stats)
	}

	// Next tick picks up the remaining three.
	gen.errAfter = -1
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if st.Stats()[models.StatusReplied] != 5 {
		t.Errorf("Expected all 5 replied after second tick, got %v", st.Stats())
	}
}

func TestReplySkipsFilteredContent(t *testing.T) {
	st := store.New(50, nil)
	seedEligible(t, st, 2)

	gen := &fakeGenerator{errAfter: 1, err: fmt.Errorf("refused: %w", models.ErrContentFiltered)}
	exec := &fakeExecutor{}

	cycle := NewReplyCycle(st, gen, exec, 5)
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(exec.replies) != 1 {
		t.Errorf("Expected 1 reply, got %d", len(exec.replies))
	}
	if st.Stats()[models.StatusEligible] != 1 {
		t.Errorf("Filtered item should stay eligible, got %v", st.Stats())
	}
}

func TestSummarizeMarksWindowItemsOnce(t *testing.T) {
	st := store.New(50, nil)
	seedEligible(t, st, 4)
	exec := &fakeExecutor{}

	cycle := NewSummarizeCycle(st, &fakeGenerator{errAfter: -1}, exec, 2*time.Hour)
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(exec.posts) != 1 {
		t.Fatalf("Expected 1 summary post, got %d", len(exec.posts))
	}
	if st.Stats()[models.StatusSummarized] != 4 {
		t.Errorf("Expected 4 summarized, got %v", st.Stats())
	}

	// A second overlapping run finds nothing new to cover.
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if len(exec.posts) != 1 {
		t.Errorf("Overlapping window posted again: %d posts", len(exec.posts))
	}
}

func TestSummarizeEmptyWindowPostsNothing(t *testing.T) {
	exec := &fakeExecutor{}
	cycle := NewSummarizeCycle(store.New(50, nil), &fakeGenerator{errAfter: -1}, exec, time.Hour)

	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(exec.posts) != 0 {
		t.Errorf("Expected no post for an empty window, got %d", len(exec.posts))
	}
}

func TestSummarizeCapsItems(t *testing.T) {
	st := store.New(50, nil)
	seedEligible(t, st, 8)
	exec := &fakeExecutor{}

	cycle := NewSummarizeCycle(st, &fakeGenerator{errAfter: -1}, exec, 2*time.Hour)
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stats := st.Stats()
	if stats[models.StatusSummarized] != maxSummaryItems {
		t.Errorf("Expected %d summarized, got %v", maxSummaryItems, stats)
	}
	if stats[models.StatusEligible] != 8-maxSummaryItems {
		t.Errorf("Expected %d left eligible, got %v", 8-maxSummaryItems, stats)
	}
}

func TestRefreshAppliesMetricsOnce(t *testing.T) {
	st := store.New(50, nil)
	st.Ingest(models.Item{ID: "t1", Text: "x", Score: 80, ObservedAt: time.Now().Add(-48 * time.Hour)})
	if _, err := st.MarkReplied("t1", models.EngagementRecord{
		GeneratedText: "hi",
		PostedID:      "r1",
		PostedAt:      time.Now().Add(-25 * time.Hour),
	}); err != nil {
		t.Fatalf("MarkReplied failed: %v", err)
	}

	source := &fakeSource{metrics: models.Metrics{Likes: 12, Retweets: 3}}
	cycle := NewRefreshCycle(st, source)

	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if due := st.DueForRefresh(time.Now()); len(due) != 0 {
		t.Errorf("Expected no records still due, got %d", len(due))
	}

	// A later tick has nothing left to do.
	fetchesBefore := source.fetches
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if source.fetches != fetchesBefore {
		t.Error("Refresh fetched again for an already-refreshed record")
	}
}

func TestRetentionPurgesOnlyOldRejected(t *testing.T) {
	st := store.New(50, nil)
	st.Ingest(models.Item{ID: "old-bad", Text: "x", Score: 10, ObservedAt: time.Now().AddDate(0, 0, -40)})
	st.Ingest(models.Item{ID: "new-bad", Text: "x", Score: 10, ObservedAt: time.Now().AddDate(0, 0, -5)})
	st.Ingest(models.Item{ID: "old-good", Text: "x", Score: 90, ObservedAt: time.Now().AddDate(0, 0, -40)})

	cycle := NewRetentionCycle(st, 30)
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stats := st.Stats()
	if stats[models.StatusRejected] != 1 {
		t.Errorf("Expected only the recent rejected item kept, got %v", stats)
	}
	if stats[models.StatusEligible] != 1 {
		t.Errorf("Eligible items must never be purged, got %v", stats)
	}
}

func TestRefreshClosesDeletedTargets(t *testing.T) {
	st := store.New(50, nil)
	st.Ingest(models.Item{ID: "t1", Text: "x", Score: 80, ObservedAt: time.Now().Add(-48 * time.Hour)})
	if _, err := st.MarkReplied("t1", models.EngagementRecord{
		PostedID: "r1",
		PostedAt: time.Now().Add(-25 * time.Hour),
	}); err != nil {
		t.Fatalf("MarkReplied failed: %v", err)
	}

	source := &fakeSource{oneErr: fmt.Errorf("gone: %w", models.ErrNotFound)}
	cycle := NewRefreshCycle(st, source)

	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if due := st.DueForRefresh(time.Now()); len(due) != 0 {
		t.Errorf("Deleted target should close the record, still due: %d", len(due))
	}
}
