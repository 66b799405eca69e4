package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// CategoryRepository persists catalog.Category rows and enforces the
// self-referential tree's acyclicity at insertion time (spec.md §9: "SQL
// alone cannot forbid cycles").
type CategoryRepository struct {
	db *Database
}

// NewCategoryRepository builds a CategoryRepository over db.
func NewCategoryRepository(db *Database) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create inserts a category after walking ancestors to reject a cycle and
// checking parent_id != id.
func (r *CategoryRepository) Create(ctx context.Context, c *catalog.Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ParentID != nil && *c.ParentID == c.ID {
		return apperrors.Validation("category cannot be its own parent").WithCode("E_CATEGORY_SELF_PARENT")
	}
	if c.ParentID != nil {
		isAncestor, err := r.isAncestor(ctx, c.ID, *c.ParentID)
		if err != nil {
			return err
		}
		if isAncestor {
			return apperrors.Validation("category tree cycle detected").WithCode("E_CATEGORY_CYCLE")
		}
	}

	const query = `
		INSERT INTO categories (id, name, parent_id, needs_review, is_active, supplier_id)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.GetDB().ExecContext(ctx, query, c.ID, c.Name, c.ParentID, c.NeedsReview, c.IsActive, c.SupplierID); err != nil {
		return apperrors.Database("create category").Wrap(err)
	}
	return nil
}

// isAncestor walks up from candidateParent looking for nodeID, which would
// make inserting nodeID with parent candidateParent a cycle.
func (r *CategoryRepository) isAncestor(ctx context.Context, nodeID, candidateParent string) (bool, error) {
	current := candidateParent
	for depth := 0; depth < 1000; depth++ {
		if current == nodeID {
			return true, nil
		}
		var parentID sql.NullString
		const query = `SELECT parent_id FROM categories WHERE id = $1`
		err := r.db.GetDB().GetContext(ctx, &parentID, query, current)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, apperrors.Database("walk category ancestors").Wrap(err)
		}
		if !parentID.Valid {
			return false, nil
		}
		current = parentID.String
	}
	return false, apperrors.Validation("category ancestor walk exceeded max depth").WithCode("E_CATEGORY_TOO_DEEP")
}

// GetByID fetches a category by id.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*catalog.Category, error) {
	const query = `SELECT * FROM categories WHERE id = $1`
	var c catalog.Category
	if err := r.db.GetDB().GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("category %s not found", id))
		}
		return nil, apperrors.Database("get category by id").Wrap(err)
	}
	return &c, nil
}

// GetByNameAndParent looks up a category by its unique (name, parent_id)
// pair, used by the classifier before inferring a new category.
func (r *CategoryRepository) GetByNameAndParent(ctx context.Context, name string, parentID *string) (*catalog.Category, error) {
	var (
		c   catalog.Category
		err error
	)
	if parentID == nil {
		err = r.db.GetDB().GetContext(ctx, &c, `SELECT * FROM categories WHERE name = $1 AND parent_id IS NULL`, name)
	} else {
		err = r.db.GetDB().GetContext(ctx, &c, `SELECT * FROM categories WHERE name = $1 AND parent_id = $2`, name, *parentID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Database("get category by name and parent").Wrap(err)
	}
	return &c, nil
}

// Descendants returns every category id in the subtree rooted at id,
// including id itself, for category-blocked candidate lookup in matching.
func (r *CategoryRepository) Descendants(ctx context.Context, id string) ([]string, error) {
	const query = `
		WITH RECURSIVE subtree AS (
			SELECT id FROM categories WHERE id = $1
			UNION ALL
			SELECT c.id FROM categories c JOIN subtree s ON c.parent_id = s.id
		)
		SELECT id FROM subtree`
	var ids []string
	if err := r.db.GetDB().SelectContext(ctx, &ids, query, id); err != nil {
		return nil, apperrors.Database("category descendants").Wrap(err)
	}
	return ids, nil
}
