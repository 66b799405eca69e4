package worker

import (
	"context"
	"encoding/json"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/internal/extract"
	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// EnrichItemStore is the subset of catalog/postgres.SupplierItemRepository
// the enrichment handler needs.
type EnrichItemStore interface {
	GetByID(ctx context.Context, id string) (*catalog.SupplierItem, error)
	UpdateCharacteristics(ctx context.Context, id string, characteristics catalog.JSONMap) error
}

// EnrichHandler runs the feature-extraction pipeline over a supplier item's
// name and merges the result into its characteristics without overwriting
// any key already present, per spec.md §4.4. This is the handler the
// enrich_item task (enqueued on every successful link or create) is
// dispatched to.
type EnrichHandler struct {
	items    EnrichItemStore
	pipeline *extract.Pipeline
}

// NewEnrichHandler builds an EnrichHandler.
func NewEnrichHandler(items EnrichItemStore, pipeline *extract.Pipeline) *EnrichHandler {
	return &EnrichHandler{items: items, pipeline: pipeline}
}

type enrichItemPayload struct {
	SupplierItemID string `json:"supplier_item_id"`
}

// Handle decodes msg.Payload, extracts characteristics from the item's
// name, and persists the merged result.
func (h *EnrichHandler) Handle(ctx context.Context, payload json.RawMessage) error {
	var p enrichItemPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return apperrors.Validation("decode enrich_item payload").Wrap(err)
	}

	item, err := h.items.GetByID(ctx, p.SupplierItemID)
	if err != nil {
		return err
	}

	extracted := h.pipeline.Run(item.Name)
	merged := extract.MergeInto(item.Characteristics, extracted)
	return h.items.UpdateCharacteristics(ctx, item.ID, catalog.JSONMap(merged))
}
