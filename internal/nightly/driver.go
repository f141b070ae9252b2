// Package nightly sweeps every active claim through an ingestion run
// once a day.
package nightly

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"claimsync/internal/ingest"
	"claimsync/internal/models"
	"claimsync/internal/storage"
)

const window = 24 * time.Hour

// Summary aggregates one nightly batch.
type Summary struct {
	Processed   int       `json:"processed"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// ClaimLister supplies the batch of claims to sweep.
type ClaimLister interface {
	ListActiveClaims(ctx context.Context, limit int) ([]models.Claim, error)
}

// Ingester runs one ingestion run for one claim.
type Ingester interface {
	IngestClaim(ctx context.Context, p ingest.RunParams) (models.IngestionRun, error)
}

// Notifier delivers the batch summary to the operations team.
type Notifier interface {
	SendNightlySummary(ctx context.Context, summary Summary) error
}

// Driver executes the nightly sweep.
type Driver struct {
	claims ClaimLister
	runner Ingester
	blobs  storage.BlobStore
	logger zerolog.Logger

	maxClaims int
	workers   int
	now       func() time.Time
}

// NewDriver creates a driver. workers below 1 is treated as 1.
func NewDriver(claims ClaimLister, runner Ingester, blobs storage.BlobStore, logger zerolog.Logger, maxClaims, workers int) *Driver {
	if workers < 1 {
		workers = 1
	}
	return &Driver{
		claims:    claims,
		runner:    runner,
		blobs:     blobs,
		logger:    logger,
		maxClaims: maxClaims,
		workers:   workers,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps the active claims over the trailing 24-hour window. One
// claim's failure never stops the batch; the summary carries the damage
// report. When the evidence archive is not configured the sweep does not
// start at all, since ingested mail would lose its raw copies.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	windowEnd := d.now()
	summary := Summary{
		WindowStart: windowEnd.Add(-window),
		WindowEnd:   windowEnd,
	}

	if d.blobs == nil || !d.blobs.Configured() {
		d.logger.Warn().Msg("Evidence archive not configured, skipping nightly sweep")
		return summary, nil
	}

	claims, err := d.claims.ListActiveClaims(ctx, d.maxClaims)
	if err != nil {
		return summary, fmt.Errorf("failed to list active claims: %w", err)
	}

	d.logger.Info().
		Int("claims", len(claims)).
		Int("workers", d.workers).
		Time("window_start", summary.WindowStart).
		Time("window_end", summary.WindowEnd).
		Msg("Nightly sweep started")

	var mu sync.Mutex
	var wg sync.WaitGroup
	work := make(chan models.Claim)

	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for claim := range work {
				outcome := d.sweepClaim(ctx, claim, summary.WindowStart, summary.WindowEnd)
				mu.Lock()
				switch outcome {
				case sweptOK:
					summary.Processed++
				case sweptSkipped:
					summary.Skipped++
				case sweptFailed:
					summary.Failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, claim := range claims {
		select {
		case work <- claim:
		case <-ctx.Done():
			// Remaining claims are left for the next night.
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(work)
	wg.Wait()

	d.logger.Info().
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Nightly sweep finished")

	return summary, ctx.Err()
}

type sweepOutcome int

const (
	sweptOK sweepOutcome = iota
	sweptSkipped
	sweptFailed
)

func (d *Driver) sweepClaim(ctx context.Context, claim models.Claim, windowStart, windowEnd time.Time) (outcome sweepOutcome) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("claim_id", claim.ID).
				Interface("panic", r).
				Msg("Sweep panicked")
			outcome = sweptFailed
		}
	}()

	owner := claim.OwnerID()
	if owner == "" {
		d.logger.Warn().Str("claim_id", claim.ID).Msg("Claim has no resolvable owner, skipping")
		return sweptSkipped
	}

	_, err := d.runner.IngestClaim(ctx, ingest.RunParams{
		ClaimID:        claim.ID,
		Mode:           models.RunModeScheduled,
		IdempotencyKey: IdempotencyKey(claim.ID, windowEnd),
		ActorID:        owner,
		WindowStart:    windowStart,
		WindowEnd:      windowEnd,
	})
	if err != nil {
		d.logger.Error().Err(err).Str("claim_id", claim.ID).Msg("Nightly run failed")
		return sweptFailed
	}
	return sweptOK
}

// IdempotencyKey names one claim's slot in one night's batch, keyed by
// the sweep date. Re-firing the batch the same day replays recorded
// runs instead of rescanning.
func IdempotencyKey(claimID string, windowEnd time.Time) string {
	return fmt.Sprintf("nightly:%s:%s", claimID, windowEnd.UTC().Format("2006-01-02"))
}
