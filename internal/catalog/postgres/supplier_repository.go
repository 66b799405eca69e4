package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// SupplierRepository persists catalog.Supplier rows.
type SupplierRepository struct {
	db *Database
}

// NewSupplierRepository builds a SupplierRepository over db.
func NewSupplierRepository(db *Database) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// Create inserts a new supplier, generating its id.
func (r *SupplierRepository) Create(ctx context.Context, s *catalog.Supplier) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO suppliers (id, name, source_type, meta, is_active, use_semantic_etl, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING created_at, updated_at`

	row := r.db.GetDB().QueryRowxContext(ctx, query, s.ID, s.Name, s.SourceType, s.Meta, s.IsActive, s.UseSemanticETL)
	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return apperrors.Database("create supplier").Wrap(err)
	}
	return nil
}

// GetByID fetches a supplier by id.
func (r *SupplierRepository) GetByID(ctx context.Context, id string) (*catalog.Supplier, error) {
	const query = `SELECT * FROM suppliers WHERE id = $1`
	var s catalog.Supplier
	if err := r.db.GetDB().GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("supplier %s not found", id))
		}
		return nil, apperrors.Database("get supplier by id").Wrap(err)
	}
	return &s, nil
}

// GetByName fetches a supplier by its unique name, used by master-sync to
// decide insert vs. update.
func (r *SupplierRepository) GetByName(ctx context.Context, name string) (*catalog.Supplier, error) {
	const query = `SELECT * FROM suppliers WHERE name = $1`
	var s catalog.Supplier
	if err := r.db.GetDB().GetContext(ctx, &s, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.Database("get supplier by name").Wrap(err)
	}
	return &s, nil
}

// Update persists changes to source_type, meta, notes (carried in Meta)
// and is_active; master-sync never hard-deletes a supplier.
func (r *SupplierRepository) Update(ctx context.Context, s *catalog.Supplier) error {
	const query = `
		UPDATE suppliers
		SET source_type = $2, meta = $3, is_active = $4, use_semantic_etl = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`
	row := r.db.GetDB().QueryRowxContext(ctx, query, s.ID, s.SourceType, s.Meta, s.IsActive, s.UseSemanticETL)
	if err := row.Scan(&s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFound(fmt.Sprintf("supplier %s not found", s.ID))
		}
		return apperrors.Database("update supplier").Wrap(err)
	}
	return nil
}

// Deactivate sets is_active = false without deleting the row, per the
// "soft-deactivated, never hard-deleted" lifecycle in spec.md §3.
func (r *SupplierRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE suppliers SET is_active = false, updated_at = now() WHERE id = $1`
	res, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Database("deactivate supplier").Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Database("deactivate supplier: rows affected").Wrap(err)
	}
	if n == 0 {
		return apperrors.NotFound(fmt.Sprintf("supplier %s not found", id))
	}
	return nil
}

// ListActive returns every supplier with is_active = true, the set
// master-sync fans parse_task dispatch out to.
func (r *SupplierRepository) ListActive(ctx context.Context) ([]catalog.Supplier, error) {
	const query = `SELECT * FROM suppliers WHERE is_active = true ORDER BY name`
	var out []catalog.Supplier
	if err := r.db.GetDB().SelectContext(ctx, &out, query); err != nil {
		return nil, apperrors.Database("list active suppliers").Wrap(err)
	}
	return out, nil
}

// WithTx returns a repository bound to an existing transaction, for
// callers composing multi-statement operations (e.g. master-sync upsert).
func (r *SupplierRepository) WithTx(tx *sqlx.Tx) *SupplierTxRepository {
	return &SupplierTxRepository{tx: tx}
}

// SupplierTxRepository mirrors SupplierRepository's mutating methods but
// runs inside a caller-managed transaction.
type SupplierTxRepository struct {
	tx *sqlx.Tx
}

// Create inserts a supplier within the transaction.
func (r *SupplierTxRepository) Create(ctx context.Context, s *catalog.Supplier) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO suppliers (id, name, source_type, meta, is_active, use_semantic_etl, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING created_at, updated_at`
	row := r.tx.QueryRowxContext(ctx, query, s.ID, s.Name, s.SourceType, s.Meta, s.IsActive, s.UseSemanticETL)
	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return apperrors.Database("tx: create supplier").Wrap(err)
	}
	return nil
}

// Update persists changes within the transaction.
func (r *SupplierTxRepository) Update(ctx context.Context, s *catalog.Supplier) error {
	const query = `
		UPDATE suppliers
		SET source_type = $2, meta = $3, is_active = $4, use_semantic_etl = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`
	row := r.tx.QueryRowxContext(ctx, query, s.ID, s.SourceType, s.Meta, s.IsActive, s.UseSemanticETL)
	if err := row.Scan(&s.UpdatedAt); err != nil {
		return apperrors.Database("tx: update supplier").Wrap(err)
	}
	return nil
}
