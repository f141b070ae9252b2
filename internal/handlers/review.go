package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"claimsync/internal/models"
	"claimsync/internal/review"
)

// ReviewStore reads the review queue.
type ReviewStore interface {
	ListPendingReviewByClaim(ctx context.Context, claimID string) ([]models.ReviewQueueItem, error)
}

// Resolver applies review decisions.
type Resolver interface {
	Resolve(ctx context.Context, itemID, decision, reviewerID string) (models.ReviewQueueItem, error)
}

// ResolveReviewRequest represents a review decision
type ResolveReviewRequest struct {
	Decision   string `json:"decision" example:"APPROVED"` // APPROVED or REJECTED
	ReviewerID string `json:"reviewer_id"`
}

// ReviewQueueHandler lists a claim's pending review items
// @Summary List review queue
// @Description Returns the claim's undecided review items, oldest first
// @Tags review
// @Produce json
// @Param claimID path string true "Claim ID"
// @Success 200 {array} models.ReviewQueueItem
// @Failure 500 {object} map[string]string
// @Router /api/claims/{claimID}/review-queue [get]
func ReviewQueueHandler(store ReviewStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		claimID := c.Param("claimID")

		items, err := store.ListPendingReviewByClaim(c.Request().Context(), claimID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list review queue"})
		}
		if items == nil {
			items = []models.ReviewQueueItem{}
		}
		return c.JSON(http.StatusOK, items)
	}
}

// ResolveReviewHandler applies a reviewer's decision to a queue item
// @Summary Resolve review item
// @Description Approves or rejects a review queue item. Approval materializes the withheld timeline event and evidence; repeating the same decision is a no-op, a conflicting decision is a 409.
// @Tags review
// @Accept json
// @Produce json
// @Param itemID path string true "Review item ID"
// @Param request body ResolveReviewRequest true "Decision"
// @Success 200 {object} models.ReviewQueueItem
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/review-queue/{itemID}/resolve [post]
func ResolveReviewHandler(resolver Resolver) echo.HandlerFunc {
	return func(c echo.Context) error {
		itemID := c.Param("itemID")

		var req ResolveReviewRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}
		if req.ReviewerID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "reviewer_id is required"})
		}

		item, err := resolver.Resolve(c.Request().Context(), itemID, req.Decision, req.ReviewerID)
		if err != nil {
			switch {
			case errors.Is(err, review.ErrInvalidDecision):
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			case errors.Is(err, review.ErrNotFound):
				return c.JSON(http.StatusNotFound, map[string]string{"error": "review item not found"})
			case errors.Is(err, review.ErrConflict):
				return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
			default:
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to resolve review item"})
			}
		}

		return c.JSON(http.StatusOK, item)
	}
}
