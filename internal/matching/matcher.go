// Package matching scores a supplier item's name against candidate product
// names and decides whether it is an automatic match, a review candidate,
// or unmatched.
//
// Scoring is hand-rolled against the standard library (strings, sort)
// rather than a vendored fuzzy-match package: no repo in the reference
// corpus imports a Go string-similarity library, and the exact
// tie-breaking behavior this package is held to (score boundaries at
// 94.999/95.0 and 69.999/70.0) needs to be directly inspectable. See
// DESIGN.md.
package matching

import (
	"sort"
	"strings"
)

// Status is the outcome of a Match call.
type Status string

const (
	StatusMatched       Status = "matched"
	StatusPotential     Status = "potential"
	StatusNoMatch       Status = "no_match"
	StatusNeedsCategory Status = "needs_category"
)

// Candidate is one product eligible to match against, narrowed by category
// blocking before it ever reaches the matcher.
type Candidate struct {
	ProductID string
	Name      string
}

// ScoredCandidate is a Candidate annotated with its similarity score.
type ScoredCandidate struct {
	ProductID string
	Name      string
	Score     float64
}

// MatchResult is the matcher's decision plus its scored candidate list,
// descending by score and tie-broken by ascending ProductID, truncated to
// MaxCandidates; for a potential match only candidates scoring >= 70 are kept.
type MatchResult struct {
	Status     Status
	BestScore  float64
	Candidates []ScoredCandidate
}

const (
	autoLinkThreshold = 95.0
	reviewThreshold   = 70.0
)

// Options configures a single Match call.
type Options struct {
	// MaxCandidates bounds the returned candidate list after scoring and
	// sorting. Zero means the package default (5).
	MaxCandidates int
}

const defaultMaxCandidates = 5

// Matcher is stateless and deterministic: calling Match twice with the same
// arguments produces the same MatchResult.
type Matcher struct{}

// NewMatcher builds a Matcher.
func NewMatcher() *Matcher { return &Matcher{} }

// Match scores query against candidates and classifies the result per
// spec.md §4.3's thresholds. hasCategory must be false only when the
// supplier item carries no category_id at all, in which case Match returns
// StatusNeedsCategory without scoring.
func (m *Matcher) Match(query string, candidates []Candidate, hasCategory bool, opts Options) MatchResult {
	if !hasCategory {
		return MatchResult{Status: StatusNeedsCategory}
	}

	max := opts.MaxCandidates
	if max <= 0 {
		max = defaultMaxCandidates
	}

	normalizedQuery := normalize(query)
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		score := similarity(normalizedQuery, normalize(c.Name))
		scored = append(scored, ScoredCandidate{ProductID: c.ProductID, Name: c.Name, Score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ProductID < scored[j].ProductID
	})

	if len(scored) > max {
		scored = scored[:max]
	}

	var best float64
	if len(scored) > 0 {
		best = scored[0].Score
	}

	status := classify(best)
	result := MatchResult{Status: status, BestScore: best, Candidates: scored}

	if status == StatusPotential {
		kept := result.Candidates[:0]
		for _, c := range result.Candidates {
			if c.Score >= reviewThreshold {
				kept = append(kept, c)
			}
		}
		result.Candidates = kept
	}

	return result
}

func classify(best float64) Status {
	switch {
	case best >= autoLinkThreshold:
		return StatusMatched
	case best >= reviewThreshold:
		return StatusPotential
	default:
		return StatusNoMatch
	}
}

// normalize lower-cases and collapses whitespace so tokenization isn't
// thrown off by casing or incidental spacing.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
