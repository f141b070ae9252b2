// Package e2e provides end-to-end API tests against a deployed
// instance. They run only when E2E_BASE_URL is set, so the unit suite
// stays hermetic.
package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

func baseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("E2E_BASE_URL")
	if url == "" {
		t.Skip("E2E_BASE_URL not set, skipping end-to-end tests")
	}
	return url
}

func client() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

func TestHealthEndpoint(t *testing.T) {
	resp, err := client().Get(baseURL(t) + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("expected healthy status, got %q", body.Status)
	}
}

func TestDatabaseHealthEndpoint(t *testing.T) {
	resp, err := client().Get(baseURL(t) + "/healthz/db")
	if err != nil {
		t.Fatalf("db health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestTimelineEndpointShape(t *testing.T) {
	claimID := os.Getenv("E2E_CLAIM_ID")
	if claimID == "" {
		t.Skip("E2E_CLAIM_ID not set, skipping timeline test")
	}

	resp, err := client().Get(fmt.Sprintf("%s/api/claims/%s/timeline", baseURL(t), claimID))
	if err != nil {
		t.Fatalf("timeline request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var events []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("timeline did not decode as an array: %v", err)
	}

	// The canonical order is part of the contract: occurrence time
	// ascending, ties broken deterministically.
	var prev time.Time
	for i, event := range events {
		raw, ok := event["occurred_at"].(string)
		if !ok {
			t.Fatalf("event %d missing occurred_at", i)
		}
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			t.Fatalf("event %d has unparseable occurred_at: %v", i, err)
		}
		if at.Before(prev) {
			t.Errorf("timeline out of order at index %d", i)
		}
		prev = at
	}
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	resp, err := client().Post(baseURL(t)+"/api/admin/trigger-nightly-sync", "application/json", nil)
	if err != nil {
		t.Fatalf("trigger request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
}
