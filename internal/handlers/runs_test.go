package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimsync/internal/ingest"
	"claimsync/internal/models"
)

type fakeRunService struct {
	params ingest.RunParams
	run    models.IngestionRun
	err    error
}

func (f *fakeRunService) IngestClaim(ctx context.Context, p ingest.RunParams) (models.IngestionRun, error) {
	f.params = p
	if f.err != nil {
		return f.run, f.err
	}
	f.run.ClaimID = p.ClaimID
	f.run.IdempotencyKey = p.IdempotencyKey
	return f.run, nil
}

type fakeRunStore struct {
	runs  []models.IngestionRun
	err   error
	limit int
}

func (f *fakeRunStore) ListRunsByClaim(ctx context.Context, claimID string, limit int) ([]models.IngestionRun, error) {
	f.limit = limit
	return f.runs, f.err
}

func triggerRequest(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/claims/claim-1/ingestion-runs", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/claims/:claimID/ingestion-runs")
	c.SetParamNames("claimID")
	c.SetParamValues("claim-1")
	return c, rec
}

func TestTriggerIngestionRunHandler_Defaults(t *testing.T) {
	service := &fakeRunService{run: models.IngestionRun{ID: "run-1", Status: models.RunStatusSucceeded}}
	c, rec := triggerRequest(t, `{"actor_id":"user-1"}`)

	err := TriggerIngestionRunHandler(service)(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "claim-1", service.params.ClaimID)
	assert.Equal(t, models.RunModeManual, service.params.Mode)
	assert.Equal(t, "user-1", service.params.ActorID)
	// Generated key, 24h default window.
	assert.True(t, strings.HasPrefix(service.params.IdempotencyKey, "manual:claim-1:"))
	assert.Equal(t, 24*time.Hour, service.params.WindowEnd.Sub(service.params.WindowStart))

	var run models.IngestionRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "run-1", run.ID)
}

func TestTriggerIngestionRunHandler_ExplicitKeyAndWindow(t *testing.T) {
	service := &fakeRunService{run: models.IngestionRun{ID: "run-1"}}
	c, rec := triggerRequest(t, `{
		"idempotency_key": "manual:claim-1:retry-7",
		"actor_id": "user-1",
		"window_start": "2025-03-01T00:00:00Z",
		"window_end": "2025-03-02T00:00:00Z"
	}`)

	require.NoError(t, TriggerIngestionRunHandler(service)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "manual:claim-1:retry-7", service.params.IdempotencyKey)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), service.params.WindowStart)
}

func TestTriggerIngestionRunHandler_InvalidWindow(t *testing.T) {
	service := &fakeRunService{}
	c, rec := triggerRequest(t, `{
		"window_start": "2025-03-02T00:00:00Z",
		"window_end": "2025-03-01T00:00:00Z"
	}`)

	require.NoError(t, TriggerIngestionRunHandler(service)(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, service.params.ClaimID)
}

func TestTriggerIngestionRunHandler_FailedRunIsReported(t *testing.T) {
	service := &fakeRunService{
		run: models.IngestionRun{ID: "run-1", Status: models.RunStatusFailed},
		err: errors.New("mailbox unreachable"),
	}
	c, rec := triggerRequest(t, `{}`)

	require.NoError(t, TriggerIngestionRunHandler(service)(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var run models.IngestionRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, models.RunStatusFailed, run.Status)
}

func TestListIngestionRunsHandler(t *testing.T) {
	store := &fakeRunStore{runs: []models.IngestionRun{
		{ID: "run-2", Status: models.RunStatusSucceeded},
		{ID: "run-1", Status: models.RunStatusPartial},
	}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/claims/claim-1/ingestion-runs?limit=10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("claimID")
	c.SetParamValues("claim-1")

	require.NoError(t, ListIngestionRunsHandler(store)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, store.limit)

	var runs []models.IngestionRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)
}

func TestListIngestionRunsHandler_EmptyIsArray(t *testing.T) {
	store := &fakeRunStore{}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/claims/claim-1/ingestion-runs", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("claimID")
	c.SetParamValues("claim-1")

	require.NoError(t, ListIngestionRunsHandler(store)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}
