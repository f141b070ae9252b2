package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"claimsync/internal/ingest"
	"claimsync/internal/models"
)

// RunService starts ingestion runs.
type RunService interface {
	IngestClaim(ctx context.Context, p ingest.RunParams) (models.IngestionRun, error)
}

// RunStore reads recorded runs.
type RunStore interface {
	ListRunsByClaim(ctx context.Context, claimID string, limit int) ([]models.IngestionRun, error)
}

// TriggerRunRequest represents a manual ingestion run request
type TriggerRunRequest struct {
	IdempotencyKey string     `json:"idempotency_key"` // Optional: re-submitting the same key replays the run
	ActorID        string     `json:"actor_id"`
	WindowStart    *time.Time `json:"window_start"` // Optional: defaults to 24h before window_end
	WindowEnd      *time.Time `json:"window_end"`   // Optional: defaults to now
}

// TriggerIngestionRunHandler starts a manual ingestion run for a claim
// @Summary Trigger ingestion run
// @Description Scans the claim's evidence sources over a time window and ingests relevant candidates. Re-submitting the same idempotency key returns the recorded run.
// @Tags ingestion
// @Accept json
// @Produce json
// @Param claimID path string true "Claim ID"
// @Param request body TriggerRunRequest false "Run parameters"
// @Success 200 {object} models.IngestionRun
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/claims/{claimID}/ingestion-runs [post]
func TriggerIngestionRunHandler(runs RunService) echo.HandlerFunc {
	return func(c echo.Context) error {
		claimID := c.Param("claimID")
		if claimID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "claim ID is required"})
		}

		var req TriggerRunRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}

		windowEnd := time.Now().UTC()
		if req.WindowEnd != nil {
			windowEnd = req.WindowEnd.UTC()
		}
		windowStart := windowEnd.Add(-24 * time.Hour)
		if req.WindowStart != nil {
			windowStart = req.WindowStart.UTC()
		}
		if !windowStart.Before(windowEnd) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "window_start must be before window_end"})
		}

		key := req.IdempotencyKey
		if key == "" {
			key = "manual:" + claimID + ":" + uuid.NewString()
		}

		run, err := runs.IngestClaim(c.Request().Context(), ingest.RunParams{
			ClaimID:        claimID,
			Mode:           models.RunModeManual,
			IdempotencyKey: key,
			ActorID:        req.ActorID,
			WindowStart:    windowStart,
			WindowEnd:      windowEnd,
		})
		if err != nil {
			// A failed run is still a recorded run; report it rather than
			// hiding the run ID the caller needs to investigate.
			if run.ID != "" {
				return c.JSON(http.StatusBadGateway, run)
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}

		return c.JSON(http.StatusOK, run)
	}
}

// ListIngestionRunsHandler lists a claim's ingestion runs
// @Summary List ingestion runs
// @Description Returns a claim's ingestion runs, newest first
// @Tags ingestion
// @Produce json
// @Param claimID path string true "Claim ID"
// @Param limit query int false "Maximum runs to return" default(50)
// @Success 200 {array} models.IngestionRun
// @Failure 500 {object} map[string]string
// @Router /api/claims/{claimID}/ingestion-runs [get]
func ListIngestionRunsHandler(store RunStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		claimID := c.Param("claimID")

		limit := 50
		if raw := c.QueryParam("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			}
			limit = parsed
		}

		runs, err := store.ListRunsByClaim(c.Request().Context(), claimID, limit)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
		}
		if runs == nil {
			runs = []models.IngestionRun{}
		}
		return c.JSON(http.StatusOK, runs)
	}
}
