package matching

import "context"

// CandidateSource resolves the bounded candidate list a supplier item's
// category subtree narrows the matcher down to. Implemented by
// internal/catalog/postgres.
type CandidateSource interface {
	CandidatesForCategory(ctx context.Context, categoryID string, limit int) ([]Candidate, error)
}
