package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchNeedsCategoryWithoutScoring(t *testing.T) {
	m := NewMatcher()
	result := m.Match("Acme Widget", []Candidate{{ProductID: "p1", Name: "Acme Widget"}}, false, Options{})
	assert.Equal(t, StatusNeedsCategory, result.Status)
	assert.Empty(t, result.Candidates)
}

func TestMatchExactNameIsAutoMatched(t *testing.T) {
	m := NewMatcher()
	result := m.Match("Acme Widget 12V", []Candidate{
		{ProductID: "p1", Name: "Acme Widget 12V"},
		{ProductID: "p2", Name: "Completely Different Item"},
	}, true, Options{})
	require.Equal(t, StatusMatched, result.Status)
	assert.Equal(t, "p1", result.Candidates[0].ProductID)
	assert.Equal(t, 100.0, result.BestScore)
}

func TestMatchBelowReviewThresholdIsNoMatch(t *testing.T) {
	m := NewMatcher()
	result := m.Match("Zzz Totally Unrelated Name Q1", []Candidate{
		{ProductID: "p1", Name: "Acme Widget 12V"},
	}, true, Options{})
	assert.Equal(t, StatusNoMatch, result.Status)
}

func TestMatchTiesBrokenByAscendingProductID(t *testing.T) {
	m := NewMatcher()
	result := m.Match("Acme Widget", []Candidate{
		{ProductID: "p2", Name: "Acme Widget"},
		{ProductID: "p1", Name: "Acme Widget"},
	}, true, Options{})
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "p1", result.Candidates[0].ProductID)
	assert.Equal(t, "p2", result.Candidates[1].ProductID)
}

func TestMatchTruncatesToMaxCandidates(t *testing.T) {
	m := NewMatcher()
	candidates := []Candidate{
		{ProductID: "p1", Name: "Acme Widget"},
		{ProductID: "p2", Name: "Acme Widget"},
		{ProductID: "p3", Name: "Acme Widget"},
	}
	result := m.Match("Acme Widget", candidates, true, Options{MaxCandidates: 2})
	assert.Len(t, result.Candidates, 2)
}

func TestClassifyBoundaries(t *testing.T) {
	assert.Equal(t, StatusMatched, classify(95.0))
	assert.Equal(t, StatusPotential, classify(94.999))
	assert.Equal(t, StatusPotential, classify(70.0))
	assert.Equal(t, StatusNoMatch, classify(69.999))
}

func TestSimilarityIsDeterministic(t *testing.T) {
	a := similarity("Acme Widget 12V", "Widget Acme 12V")
	b := similarity("Acme Widget 12V", "Widget Acme 12V")
	assert.Equal(t, a, b)
	assert.Greater(t, a, 90.0)
}
