package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"claimsync/internal/models"
)

// TimelineStore reads the claim timeline and its evidence.
type TimelineStore interface {
	ListTimeline(ctx context.Context, claimID string) ([]models.ClaimEvent, error)
	ListEvidenceByClaim(ctx context.Context, claimID string) ([]models.EvidenceItem, error)
}

// TimelineHandler returns a claim's event timeline
// @Summary Get claim timeline
// @Description Returns the claim's events in canonical order: occurrence time, then event-type rank, then source ID
// @Tags timeline
// @Produce json
// @Param claimID path string true "Claim ID"
// @Success 200 {array} models.ClaimEvent
// @Failure 500 {object} map[string]string
// @Router /api/claims/{claimID}/timeline [get]
func TimelineHandler(store TimelineStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		claimID := c.Param("claimID")

		events, err := store.ListTimeline(c.Request().Context(), claimID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load timeline"})
		}
		if events == nil {
			events = []models.ClaimEvent{}
		}
		return c.JSON(http.StatusOK, events)
	}
}

// EvidenceHandler returns a claim's evidence items
// @Summary List claim evidence
// @Description Returns all evidence items ingested for a claim
// @Tags timeline
// @Produce json
// @Param claimID path string true "Claim ID"
// @Success 200 {array} models.EvidenceItem
// @Failure 500 {object} map[string]string
// @Router /api/claims/{claimID}/evidence [get]
func EvidenceHandler(store TimelineStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		claimID := c.Param("claimID")

		items, err := store.ListEvidenceByClaim(c.Request().Context(), claimID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load evidence"})
		}
		if items == nil {
			items = []models.EvidenceItem{}
		}
		return c.JSON(http.StatusOK, items)
	}
}
