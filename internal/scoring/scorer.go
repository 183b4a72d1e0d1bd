package scoring

import (
	"context"
	"log"
	"strings"

	"birdwatch/internal/retry"
)

// Criterion is one of the weighted sub-scores that make up an insight score.
type Criterion string

const (
	CriterionOriginality  Criterion = "originality"
	CriterionDepth        Criterion = "depth"
	CriterionCallToAction Criterion = "call_to_action"
	CriterionHumor        Criterion = "humor"
	CriterionKeywords     Criterion = "keywords"
)

// criterionWeights are the fixed weights of the insight score. They sum to 1.
// Ordered so the floating-point sum is identical run to run.
var criterionWeights = []struct {
	criterion Criterion
	weight    float64
}{
	{CriterionOriginality, 0.25},
	{CriterionDepth, 0.20},
	{CriterionCallToAction, 0.10},
	{CriterionHumor, 0.20},
	{CriterionKeywords, 0.25},
}

// SubScorer rates a text against a single criterion, returning a value in
// [0,1]. Implemented by the LLM client in production.
type SubScorer interface {
	Rate(ctx context.Context, criterion Criterion, text string) (float64, error)
}

// Scorer computes the composite insight score of a tweet. Deterministic given
// identical sub-scores; performs no I/O of its own.
type Scorer struct {
	subScorer SubScorer
	keywords  *KeywordList
	policy    retry.Policy
}

// NewScorer creates a scorer backed by the given sub-scorer and keyword list.
func NewScorer(subScorer SubScorer, keywords *KeywordList) *Scorer {
	return &Scorer{
		subScorer: subScorer,
		keywords:  keywords,
		policy:    retry.DefaultPolicy(),
	}
}

// Score returns the insight score of text in [0,100].
//
// Each LLM-rated criterion is retried independently; a criterion whose rating
// ultimately fails contributes 0 rather than aborting the whole score. The
// keyword criterion is rated locally against the tracked keyword list. Empty
// or whitespace-only text scores 0 without invoking any sub-scorer.
func (s *Scorer) Score(ctx context.Context, text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	total := 0.0
	for _, cw := range criterionWeights {
		total += cw.weight * s.rate(ctx, cw.criterion, text)
	}

	return clamp(total*100, 0, 100)
}

func (s *Scorer) rate(ctx context.Context, criterion Criterion, text string) float64 {
	if criterion == CriterionKeywords {
		return s.keywords.Match(text)
	}

	var value float64
	err := retry.Do(ctx, "subscore/"+string(criterion), s.policy, func(ctx context.Context) error {
		v, err := s.subScorer.Rate(ctx, criterion, text)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		log.Printf("[SCORER] Sub-score %s failed, contributing 0: %v", criterion, err)
		return 0
	}

	return clamp(value, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
