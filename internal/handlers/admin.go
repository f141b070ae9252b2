package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"claimsync/internal/auth"
	"claimsync/internal/k8s"
	"claimsync/internal/models"
	"claimsync/internal/nightly"
)

// TriggerSyncResponse represents the response from triggering a nightly sync
type TriggerSyncResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JobStatus represents the status of a Kubernetes job
type JobStatus struct {
	JobName        string  `json:"job_name"`
	Status         string  `json:"status"`
	Active         int32   `json:"active"`
	Succeeded      int32   `json:"succeeded"`
	Failed         int32   `json:"failed"`
	StartTime      *string `json:"start_time,omitempty"`
	CompletionTime *string `json:"completion_time,omitempty"`
}

// AdminLoginHandler handles admin authentication
// @Summary Admin login
// @Description Authenticate admin user and receive auth token
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.AdminAuthRequest true "Login credentials"
// @Success 200 {object} models.AdminAuthResponse
// @Failure 401 {object} models.AdminAuthResponse
// @Router /api/admin/login [post]
func AdminLoginHandler(authManager *auth.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.AdminAuthRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.AdminAuthResponse{
				Success: false,
				Error:   fmt.Sprintf("Invalid request body: %v", err),
			})
		}

		token, err := authManager.Authenticate(req.Username, req.Password)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, models.AdminAuthResponse{
				Success: false,
				Error:   "Invalid username or password",
			})
		}

		return c.JSON(http.StatusOK, models.AdminAuthResponse{
			Success: true,
			Token:   token,
		})
	}
}

// TriggerNightlySyncHandler fires a nightly evidence sweep out of schedule
// @Summary Trigger nightly sync
// @Description Fires the nightly evidence sweep immediately. The sweep is idempotent per claim per day, so re-firing replays recorded runs.
// @Tags admin
// @Produce json
// @Success 200 {object} TriggerSyncResponse
// @Failure 500 {object} TriggerSyncResponse
// @Router /api/admin/trigger-nightly-sync [post]
func TriggerNightlySyncHandler(trigger nightly.Trigger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := trigger.Fire(c.Request().Context()); err != nil {
			return c.JSON(http.StatusInternalServerError, TriggerSyncResponse{
				Success: false,
				Error:   fmt.Sprintf("Failed to trigger nightly sync: %v", err),
			})
		}

		return c.JSON(http.StatusOK, TriggerSyncResponse{
			Success: true,
			Message: "Nightly sync triggered",
		})
	}
}

// NightlySyncJobStatusHandler gets the status of a fired sync job
// @Summary Get sync job status
// @Description Gets the current status of a nightly sync Kubernetes job
// @Tags admin
// @Produce json
// @Param jobName path string true "Job name"
// @Success 200 {object} JobStatus
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/admin/sync-status/{jobName} [get]
func NightlySyncJobStatusHandler(namespace string) echo.HandlerFunc {
	return func(c echo.Context) error {
		jobName := c.Param("jobName")

		k8sClient, err := k8s.NewClient(namespace)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": fmt.Sprintf("Failed to create Kubernetes client: %v", err),
			})
		}

		job, err := k8sClient.GetJobStatus(c.Request().Context(), jobName)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": fmt.Sprintf("Job not found: %v", err),
			})
		}

		status := "pending"
		if job.Status.Active > 0 {
			status = "running"
		} else if job.Status.Succeeded > 0 {
			status = "completed"
		} else if job.Status.Failed > 0 {
			status = "failed"
		}

		var startTime, completionTime *string
		if job.Status.StartTime != nil {
			st := job.Status.StartTime.Format(time.RFC3339)
			startTime = &st
		}
		if job.Status.CompletionTime != nil {
			ct := job.Status.CompletionTime.Format(time.RFC3339)
			completionTime = &ct
		}

		return c.JSON(http.StatusOK, JobStatus{
			JobName:        jobName,
			Status:         status,
			Active:         job.Status.Active,
			Succeeded:      job.Status.Succeeded,
			Failed:         job.Status.Failed,
			StartTime:      startTime,
			CompletionTime: completionTime,
		})
	}
}
