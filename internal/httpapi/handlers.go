package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/internal/catalog/postgres"
	"github.com/supplycatalog/ingestion/pkg/apperrors"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

// handlers holds the collaborators the route methods below call into; a
// thin HTTP adapter over the domain packages, the shape the teacher's
// crypto_trading_handlers.go struct follows.
type handlers struct {
	deps Deps
	log  *logger.Logger
}

// getStatus reports the master-sync orchestrator's current phase
// (spec.md §6's read-only job status view).
func (h *handlers) getStatus(c *gin.Context) {
	status, err := h.deps.SyncStatus.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// getQueue reports one named queue's depth/in-progress/DLQ-depth snapshot.
func (h *handlers) getQueue(c *gin.Context) {
	name := c.Param("name")
	snap, err := h.deps.Monitor.Snapshot(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// listReviews lists match_review_queue rows matching the query filters
// spec.md §6 names.
func (h *handlers) listReviews(c *gin.Context) {
	var f postgres.ListFilters

	if s := c.Query("status"); s != "" {
		status := catalog.ReviewStatus(s)
		f.Status = &status
	}
	if s := c.Query("supplier_id"); s != "" {
		f.SupplierID = &s
	}
	if s := c.Query("category_id"); s != "" {
		f.CategoryID = &s
	}
	if v, ok := parseFloatQuery(c, "min_score"); ok {
		f.MinScore = &v
	}
	if v, ok := parseFloatQuery(c, "max_score"); ok {
		f.MaxScore = &v
	}
	if t, ok := parseTimeQuery(c, "created_after"); ok {
		f.CreatedAfter = &t
	}
	if t, ok := parseTimeQuery(c, "created_before"); ok {
		f.CreatedBefore = &t
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		f.Limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil {
		f.Offset = v
	}

	rows, err := h.deps.Reviews.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": rows})
}

// ReviewAction is the POST /reviews/{id}/action request body (spec.md §6).
type ReviewAction struct {
	Action         string  `json:"action" binding:"required,oneof=approve reject create_new"`
	ProductID      *string `json:"product_id"`
	NewProductName *string `json:"new_product_name"`
	ReviewedBy     string  `json:"reviewed_by"`
}

// reviewAction dispatches an operator decision on a review row to the
// matching worker's Approve/Reject path. reject and create_new share the
// same create-new-product path (internal/worker's applyCreateNewNamed);
// create_new requires an explicit name, reject falls back to the item's own
// name when none is given.
func (h *handlers) reviewAction(c *gin.Context) {
	reviewID := c.Param("id")

	var req ReviewAction
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reviewedBy := req.ReviewedBy
	if reviewedBy == "" {
		reviewedBy = "api"
	}

	ctx := c.Request.Context()
	switch req.Action {
	case "approve":
		if req.ProductID == nil || *req.ProductID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required for action=approve"})
			return
		}
		if err := h.deps.Worker.Approve(ctx, reviewID, *req.ProductID, reviewedBy); err != nil {
			writeError(c, err)
			return
		}
	case "create_new":
		if req.NewProductName == nil || *req.NewProductName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "new_product_name is required for action=create_new"})
			return
		}
		if err := h.deps.Worker.Reject(ctx, reviewID, reviewedBy, *req.NewProductName); err != nil {
			writeError(c, err)
			return
		}
	case "reject":
		name := ""
		if req.NewProductName != nil {
			name = *req.NewProductName
		}
		if err := h.deps.Worker.Reject(ctx, reviewID, reviewedBy, name); err != nil {
			writeError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError translates a domain apperrors.AppError (or any other error)
// into an HTTP status, following the teacher's api server's AppError
// type-switch convention.
func writeError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		switch appErr.Type {
		case apperrors.NotFoundErrorType:
			c.JSON(http.StatusNotFound, gin.H{"error": appErr.Error()})
		case apperrors.ValidationErrorType:
			c.JSON(http.StatusBadRequest, gin.H{"error": appErr.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": appErr.Error()})
		}
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func parseFloatQuery(c *gin.Context, key string) (float64, bool) {
	s := c.Query(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseTimeQuery(c *gin.Context, key string) (time.Time, bool) {
	s := c.Query(key)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
