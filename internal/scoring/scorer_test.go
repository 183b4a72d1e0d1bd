package scoring

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"birdwatch/internal/models"
)

// stubSubScorer returns fixed ratings per criterion, or an error for
// criteria listed in fail.
type stubSubScorer struct {
	ratings map[Criterion]float64
	fail    map[Criterion]error
	calls   int
}

func (s *stubSubScorer) Rate(ctx context.Context, criterion Criterion, text string) (float64, error) {
	s.calls++
	if err, ok := s.fail[criterion]; ok {
		return 0, err
	}
	return s.ratings[criterion], nil
}

func allOnes() map[Criterion]float64 {
	return map[Criterion]float64{
		CriterionOriginality:  1,
		CriterionDepth:        1,
		CriterionCallToAction: 1,
		CriterionHumor:        1,
	}
}

func TestScoreIsDeterministicAndBounded(t *testing.T) {
	stub := &stubSubScorer{ratings: map[Criterion]float64{
		CriterionOriginality:  0.8,
		CriterionDepth:        0.5,
		CriterionCallToAction: 0.2,
		CriterionHumor:        0.4,
	}}
	scorer := NewScorer(stub, NewKeywordList())

	text := "thinking about $ETH and BTC lately"
	first := scorer.Score(context.Background(), text)
	second := scorer.Score(context.Background(), text)

	if first != second {
		t.Errorf("Expected deterministic score, got %.4f then %.4f", first, second)
	}
	if first < 0 || first > 100 {
		t.Errorf("Score out of bounds: %.4f", first)
	}

	// 0.25*0.8 + 0.20*0.5 + 0.10*0.2 + 0.20*0.4 + 0.25*1.0 (two keywords)
	expected := 100 * (0.25*0.8 + 0.20*0.5 + 0.10*0.2 + 0.20*0.4 + 0.25*1.0)
	if math.Abs(first-expected) > 0.001 {
		t.Errorf("Expected score %.2f, got %.2f", expected, first)
	}
}

func TestScoreMaxIs100(t *testing.T) {
	scorer := NewScorer(&stubSubScorer{ratings: allOnes()}, NewKeywordList())
	score := scorer.Score(context.Background(), "BTC and ETH to the moon")
	if math.Abs(score-100) > 0.001 {
		t.Errorf("Expected 100, got %.4f", score)
	}
}

func TestEmptyTextScoresZeroWithoutCalls(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace only", text: "   \n\t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubSubScorer{ratings: allOnes()}
			scorer := NewScorer(stub, NewKeywordList())

			if score := scorer.Score(context.Background(), tt.text); score != 0 {
				t.Errorf("Expected 0, got %.4f", score)
			}
			if stub.calls != 0 {
				t.Errorf("Expected no sub-scorer calls, got %d", stub.calls)
			}
		})
	}
}

func TestFailedSubScoreContributesZero(t *testing.T) {
	stub := &stubSubScorer{
		ratings: allOnes(),
		fail:    map[Criterion]error{CriterionHumor: models.ErrRateLimited},
	}
	scorer := NewScorer(stub, NewKeywordList())

	score := scorer.Score(context.Background(), "no tracked tokens here")

	// originality + depth + cta succeed at 1.0; humor fails (0); keywords 0.
	expected := 100 * (0.25 + 0.20 + 0.10)
	if math.Abs(score-expected) > 0.001 {
		t.Errorf("Expected %.2f, got %.2f", expected, score)
	}
}

func TestSubScoreClampedToUnitInterval(t *testing.T) {
	stub := &stubSubScorer{ratings: map[Criterion]float64{
		CriterionOriginality:  7.5, // misbehaving classifier
		CriterionDepth:        -2,
		CriterionCallToAction: 0,
		CriterionHumor:        0,
	}}
	scorer := NewScorer(stub, NewKeywordList())

	score := scorer.Score(context.Background(), "some text")
	expected := 100 * 0.25 // originality clamps to 1, depth clamps to 0
	if math.Abs(score-expected) > 0.001 {
		t.Errorf("Expected %.2f, got %.2f", expected, score)
	}
}

func TestKeywordMatch(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{name: "no keywords", text: "nice weather today", expected: 0},
		{name: "one keyword", text: "watching btc charts", expected: 0.5},
		{name: "dollar prefix", text: "bought some $eth today", expected: 0.5},
		{name: "two keywords", text: "rotating from BTC into SOL", expected: 1},
		{name: "repeated keyword counts once", text: "BTC BTC BTC", expected: 0.5},
		{name: "substring does not match", text: "bitcoins are not a word match", expected: 0},
	}

	kl := NewKeywordList()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := kl.Match(tt.text); got != tt.expected {
				t.Errorf("Match(%q) = %.2f, expected %.2f", tt.text, got, tt.expected)
			}
		})
	}
}

func TestKeywordFileLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.txt")
	content := "# tracked tokens\nWIF\n$bonk\n\nRNDR\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	kl := NewKeywordList()
	if err := kl.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if kl.Len() != 3 {
		t.Errorf("Expected 3 keywords, got %d", kl.Len())
	}
	if got := kl.Match("bonk looking strong"); got != 0.5 {
		t.Errorf("Expected 0.5 for loaded keyword, got %.2f", got)
	}
	if got := kl.Match("watching btc"); got != 0 {
		t.Errorf("Expected defaults replaced after load, got %.2f", got)
	}
}
