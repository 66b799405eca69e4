package postgres

import (
	"context"

	"github.com/supplycatalog/ingestion/internal/matching"
)

// CandidateSource adapts CategoryRepository + ProductRepository into
// matching.CandidateSource: resolve the category's subtree, then fetch
// non-archived products across that subtree.
type CandidateSource struct {
	categories *CategoryRepository
	products   *ProductRepository
}

// NewCandidateSource builds a CandidateSource over the given repositories.
func NewCandidateSource(categories *CategoryRepository, products *ProductRepository) *CandidateSource {
	return &CandidateSource{categories: categories, products: products}
}

// CandidatesForCategory resolves categoryID's subtree and returns every
// non-archived product within it, up to limit, implementing
// matching.CandidateSource.
func (s *CandidateSource) CandidatesForCategory(ctx context.Context, categoryID string, limit int) ([]matching.Candidate, error) {
	ids, err := s.categories.Descendants(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	products, err := s.products.CandidatesInCategories(ctx, ids, limit)
	if err != nil {
		return nil, err
	}
	out := make([]matching.Candidate, 0, len(products))
	for _, p := range products {
		out = append(out, matching.Candidate{ProductID: p.ID, Name: p.Name})
	}
	return out, nil
}
