// Package catalog defines the ingestion platform's persistent entities —
// Supplier, Category, Product, SupplierItem, MatchReviewQueue, ParsingLog —
// and their Postgres repositories (internal/catalog/postgres).
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceType is the format a Supplier's price list arrives in.
type SourceType string

const (
	SourceGoogleSheets SourceType = "google_sheets"
	SourceCSV          SourceType = "csv"
	SourceExcel        SourceType = "excel"
)

// Supplier is a price-list source reconciled by master-sync.
type Supplier struct {
	ID             string         `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	SourceType     SourceType     `db:"source_type" json:"source_type"`
	Meta           JSONMap        `db:"meta" json:"meta"`
	IsActive       bool           `db:"is_active" json:"is_active"`
	UseSemanticETL bool           `db:"use_semantic_etl" json:"use_semantic_etl"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Category is a node in the self-referential product category tree.
// The tree's acyclicity is enforced at insertion time
// (internal/catalog/postgres.CategoryRepository walks ancestors before
// insert), since a DB check constraint can only
// forbid the single-hop case parent_id = id.
type Category struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	ParentID    *string `db:"parent_id" json:"parent_id,omitempty"`
	NeedsReview bool    `db:"needs_review" json:"needs_review"`
	IsActive    bool    `db:"is_active" json:"is_active"`
	SupplierID  *string `db:"supplier_id" json:"supplier_id,omitempty"`
}

// ProductStatus is the lifecycle state of a catalog Product.
type ProductStatus string

const (
	ProductDraft    ProductStatus = "draft"
	ProductActive   ProductStatus = "active"
	ProductArchived ProductStatus = "archived"
)

// Product is a canonical catalog entry one or more SupplierItems may link to.
type Product struct {
	ID             string          `db:"id" json:"id"`
	InternalSKU    string          `db:"internal_sku" json:"internal_sku"`
	Name           string          `db:"name" json:"name"`
	CategoryID     *string         `db:"category_id" json:"category_id,omitempty"`
	Status         ProductStatus   `db:"status" json:"status"`
	MinPrice       *decimal.Decimal `db:"min_price" json:"min_price,omitempty"`
	Availability   bool            `db:"availability" json:"availability"`
	RetailPrice    *decimal.Decimal `db:"retail_price" json:"retail_price,omitempty"`
	WholesalePrice *decimal.Decimal `db:"wholesale_price" json:"wholesale_price,omitempty"`
	CurrencyCode   *string         `db:"currency_code" json:"currency_code,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// MatchStatus is the per-item label driving the matching pipeline state
// machine (spec.md §4.6).
type MatchStatus string

const (
	StatusUnmatched     MatchStatus = "unmatched"
	StatusPotential     MatchStatus = "potential"
	StatusMatched       MatchStatus = "matched"
	StatusNeedsCategory MatchStatus = "needs_category"
)

// CanTransitionTo reports whether moving from s to next is a legal
// state-machine edge, grounded on the teacher's OrderStatus.CanTransitionTo
// (internal/order/domain/order.go) switch-table pattern.
func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	switch s {
	case StatusUnmatched:
		return next == StatusMatched || next == StatusPotential || next == StatusNeedsCategory
	case StatusPotential:
		return next == StatusMatched || next == StatusUnmatched
	case StatusNeedsCategory:
		return next == StatusUnmatched
	case StatusMatched:
		return false
	default:
		return false
	}
}

// SupplierItem is the persisted raw row from a supplier, uniquely
// identified by (supplier_id, supplier_sku).
type SupplierItem struct {
	ID             string          `db:"id" json:"id"`
	SupplierID     string          `db:"supplier_id" json:"supplier_id"`
	SupplierSKU    string          `db:"supplier_sku" json:"supplier_sku"`
	Name           string          `db:"name" json:"name"`
	CurrentPrice   decimal.Decimal `db:"current_price" json:"current_price"`
	Characteristics JSONMap        `db:"characteristics" json:"characteristics"`
	ProductID      *string         `db:"product_id" json:"product_id,omitempty"`
	MatchStatus    MatchStatus     `db:"match_status" json:"match_status"`
	CategoryID     *string         `db:"category_id" json:"category_id,omitempty"`
	PriceOpt       *decimal.Decimal `db:"price_opt" json:"price_opt,omitempty"`
	PriceRRC       *decimal.Decimal `db:"price_rrc" json:"price_rrc,omitempty"`
	InStock        bool            `db:"in_stock" json:"in_stock"`
	LastIngestedAt time.Time       `db:"last_ingested_at" json:"last_ingested_at"`
}

// ReviewStatus is the lifecycle of a MatchReviewQueue row.
type ReviewStatus string

const (
	ReviewPending       ReviewStatus = "pending"
	ReviewApproved      ReviewStatus = "approved"
	ReviewRejected      ReviewStatus = "rejected"
	ReviewExpired       ReviewStatus = "expired"
	ReviewNeedsCategory ReviewStatus = "needs_category"
)

// Candidate is one scored entry in a MatchReviewQueue's candidate_products
// column, mirroring the matcher's MatchResult.Candidates.
type Candidate struct {
	ProductID string  `json:"product_id"`
	Score     float64 `json:"score"`
	Name      string  `json:"name"`
}

// MatchReviewQueue is the human-review row inserted when the matcher
// returns a "potential" decision.
type MatchReviewQueue struct {
	ID                string       `db:"id" json:"id"`
	SupplierItemID    string       `db:"supplier_item_id" json:"supplier_item_id"`
	CandidateProducts []Candidate  `db:"-" json:"candidate_products"`
	Status            ReviewStatus `db:"status" json:"status"`
	ReviewedBy        *string      `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	ExpiresAt         time.Time    `db:"expires_at" json:"expires_at"`
}

// ParsingLog is an append-only diagnostic row for a dropped parse row or
// task-level failure.
type ParsingLog struct {
	ID              string    `db:"id" json:"id"`
	TaskID          string    `db:"task_id" json:"task_id"`
	SupplierID      *string   `db:"supplier_id" json:"supplier_id,omitempty"`
	ErrorType       string    `db:"error_type" json:"error_type"`
	ErrorMessage    string    `db:"error_message" json:"error_message"`
	RowNumber       *int      `db:"row_number" json:"row_number,omitempty"`
	RowData         JSONMap   `db:"row_data" json:"row_data,omitempty"`
	ChunkID         *string   `db:"chunk_id" json:"chunk_id,omitempty"`
	ExtractionPhase *string   `db:"extraction_phase" json:"extraction_phase,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
