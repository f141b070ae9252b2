package k8s

import (
	"context"
	"fmt"
	"time"
)

// Trigger fires nightly sweeps as Kubernetes Jobs, keeping long sweeps
// off the API pods.
type Trigger struct {
	client *Client
	image  string
}

// NewTrigger creates a trigger launching jobs from the given image.
func NewTrigger(client *Client, image string) *Trigger {
	return &Trigger{client: client, image: image}
}

// Fire creates a uniquely named sync job. The sweep itself is idempotent
// per claim per day, so an accidental double-fire costs a pod, not data.
func (t *Trigger) Fire(ctx context.Context) error {
	jobName := fmt.Sprintf("nightly-sync-manual-%d", time.Now().Unix())
	if err := t.client.CreateNightlySyncJob(ctx, jobName, t.image); err != nil {
		return fmt.Errorf("failed to fire nightly sync job: %w", err)
	}
	return nil
}
