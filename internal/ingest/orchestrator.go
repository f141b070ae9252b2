// Package ingest runs the evidence ingestion pipeline for one claim at a
// time: list candidates from the source, score each against the claim's
// identity profile, and fan the results out to the timeline, the review
// queue, or the reject counter.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"claimsync/internal/connector"
	"claimsync/internal/dedupe"
	"claimsync/internal/models"
	"claimsync/internal/profile"
	"claimsync/internal/scoring"
	"claimsync/internal/storage"
	"claimsync/internal/store"
)

// Store is the slice of persistence the orchestrator needs.
type Store interface {
	CreateRun(ctx context.Context, run *models.IngestionRun) (models.IngestionRun, bool, error)
	GetRun(ctx context.Context, runID string) (models.IngestionRun, error)
	MarkRunRunning(ctx context.Context, runID string, startedAt time.Time) (bool, error)
	CompleteRun(ctx context.Context, runID, status string, counts models.RunCounts, completedAt time.Time) error
	GetEventByDedupeKey(ctx context.Context, claimID, dedupeKey string) (models.ClaimEvent, error)
	InsertClaimEvent(ctx context.Context, event *models.ClaimEvent) (bool, error)
	InsertEvidenceItem(ctx context.Context, item *models.EvidenceItem) (bool, error)
	GetEvidenceByDedupeKey(ctx context.Context, claimID, kind, dedupeKey string) (models.EvidenceItem, error)
	InsertEvidenceLink(ctx context.Context, link *models.EvidenceLink) (bool, error)
	InsertReviewItem(ctx context.Context, item *models.ReviewQueueItem) error
}

// Orchestrator coordinates one ingestion run end to end.
type Orchestrator struct {
	store    Store
	source   connector.Source
	profiles profile.Provider
	blobs    storage.BlobStore
	scorer   *scoring.Scorer
	logger   zerolog.Logger

	runTimeout time.Duration
	now        func() time.Time
}

// New creates an orchestrator. A zero runTimeout disables the per-run
// deadline.
func New(st Store, source connector.Source, profiles profile.Provider, blobs storage.BlobStore, scorer *scoring.Scorer, logger zerolog.Logger, runTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		store:      st,
		source:     source,
		profiles:   profiles,
		blobs:      blobs,
		scorer:     scorer,
		logger:     logger,
		runTimeout: runTimeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RunParams identifies one requested ingestion run.
type RunParams struct {
	ClaimID        string
	Mode           string
	IdempotencyKey string
	ActorID        string
	WindowStart    time.Time
	WindowEnd      time.Time
}

type outcome int

const (
	outcomeDuplicate outcome = iota
	outcomeAutoIngested
	outcomeQueued
	outcomeRejected
)

// IngestClaim executes one run. Re-submitting the same (claim, key)
// returns the recorded run without touching the source again: a
// terminal run replays its result, an in-flight run is reported as-is.
func (o *Orchestrator) IngestClaim(ctx context.Context, p RunParams) (models.IngestionRun, error) {
	run := models.IngestionRun{
		ClaimID:        p.ClaimID,
		Mode:           p.Mode,
		IdempotencyKey: p.IdempotencyKey,
		ActorID:        p.ActorID,
		WindowStart:    p.WindowStart.UTC(),
		WindowEnd:      p.WindowEnd.UTC(),
	}

	created, isNew, err := o.store.CreateRun(ctx, &run)
	if err != nil {
		return models.IngestionRun{}, fmt.Errorf("failed to create run: %w", err)
	}
	if !isNew {
		return created, nil
	}

	claimed, err := o.store.MarkRunRunning(ctx, run.ID, o.now())
	if err != nil {
		return models.IngestionRun{}, fmt.Errorf("failed to start run: %w", err)
	}
	if !claimed {
		// Another replica won the PENDING row between insert and claim.
		return o.store.GetRun(ctx, run.ID)
	}

	if o.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.runTimeout)
		defer cancel()
	}

	logger := o.logger.With().
		Str("claim_id", p.ClaimID).
		Str("run_id", run.ID).
		Str("mode", p.Mode).
		Logger()

	counts, runErr := o.execute(ctx, logger, run)

	status := statusFor(counts, runErr)
	completedAt := o.now()
	if err := o.store.CompleteRun(ctx, run.ID, status, counts, completedAt); err != nil {
		return models.IngestionRun{}, fmt.Errorf("failed to complete run: %w", err)
	}

	logger.Info().
		Str("status", status).
		Int("scanned", counts.Scanned).
		Int("auto_ingested", counts.AutoIngested).
		Int("queued_for_review", counts.QueuedForReview).
		Int("rejected", counts.Rejected).
		Int("errors", counts.Errors).
		Msg("Ingestion run finished")

	run.Status = status
	run.RunCounts = counts
	run.CompletedAt = &completedAt
	if runErr != nil {
		return run, fmt.Errorf("ingestion run failed: %w", runErr)
	}
	return run, nil
}

// execute performs the scan and returns the per-candidate counters. A
// non-nil error means the run failed before or outside the per-candidate
// loop; candidate-level failures only increment Errors.
func (o *Orchestrator) execute(ctx context.Context, logger zerolog.Logger, run models.IngestionRun) (models.RunCounts, error) {
	var counts models.RunCounts

	identity, err := o.profiles.Get(ctx, run.ClaimID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return counts, fmt.Errorf("failed to load identity profile: %w", err)
	}
	if identity.Empty() {
		// Nothing to match against: every candidate would reject anyway,
		// but say so once instead of once per message.
		logger.Warn().Msg("Claim has no identity profile, all candidates will be rejected")
	}

	candidates, err := o.source.ListCandidates(ctx, run.ClaimID, run.WindowStart, run.WindowEnd)
	if err != nil {
		return counts, fmt.Errorf("failed to list candidates: %w", err)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return counts, fmt.Errorf("run deadline exceeded after %d candidates: %w", counts.Scanned, err)
		}

		counts.Scanned++

		key := dedupe.Key(candidate.MessageID, candidate.Checksum, candidate.ThreadID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		result, err := o.processCandidate(ctx, run, identity, candidate, key)
		if err != nil {
			counts.Errors++
			logger.Warn().Err(err).Str("message_id", candidate.MessageID).Msg("Candidate failed")
			continue
		}

		switch result {
		case outcomeAutoIngested:
			counts.AutoIngested++
		case outcomeQueued:
			counts.QueuedForReview++
		case outcomeRejected:
			counts.Rejected++
		}
	}

	return counts, nil
}

func (o *Orchestrator) processCandidate(ctx context.Context, run models.IngestionRun, identity models.IdentityProfile, candidate models.RawCandidate, key string) (outcome, error) {
	// A key already on the timeline means a prior run ingested this
	// message; rescoring it could only disagree with history.
	if _, err := o.store.GetEventByDedupeKey(ctx, run.ClaimID, key); err == nil {
		return outcomeDuplicate, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	result := o.scorer.Score(identity, candidate)

	switch o.scorer.Decide(result) {
	case scoring.DecisionAutoIngest:
		return o.autoIngest(ctx, run, candidate, key, result)
	case scoring.DecisionReview:
		return o.queueForReview(ctx, run, candidate, key, result)
	default:
		return outcomeRejected, nil
	}
}

// autoIngest materializes the candidate as a timeline event plus linked
// evidence. Every insert tolerates an existing row, so a crashed run can
// be replayed under a fresh idempotency key without double-writing.
func (o *Orchestrator) autoIngest(ctx context.Context, run models.IngestionRun, candidate models.RawCandidate, key string, result scoring.Result) (outcome, error) {
	blobRef, err := o.archiveRaw(ctx, run.ClaimID, key, candidate)
	if err != nil {
		return 0, err
	}

	event := models.ClaimEvent{
		ClaimID:    run.ClaimID,
		EventType:  models.EventEmailReceived,
		OccurredAt: candidate.OccurredAt.UTC(),
		SourceID:   candidate.MessageID,
		ThreadID:   candidate.ThreadID,
		DedupeKey:  key,
	}
	eventCreated, err := o.store.InsertClaimEvent(ctx, &event)
	if err != nil {
		return 0, err
	}
	if !eventCreated {
		existing, err := o.store.GetEventByDedupeKey(ctx, run.ClaimID, key)
		if err != nil {
			return 0, err
		}
		event = existing
	}

	item := models.EvidenceItem{
		ClaimID:          run.ClaimID,
		Kind:             models.EvidenceKindEmail,
		SourceSystem:     candidate.SourceSystem,
		SourceID:         candidate.MessageID,
		Checksum:         candidate.Checksum,
		OccurredAt:       candidate.OccurredAt.UTC(),
		Title:            candidate.Subject,
		RelevanceScore:   result.Score,
		RelevanceHard:    result.Breakdown.Hard,
		RelevanceSoft:    result.Breakdown.Soft,
		RelevanceReasons: result.Reasons,
		DedupeKey:        key,
		RawBlobRef:       blobRef,
	}
	itemCreated, err := o.store.InsertEvidenceItem(ctx, &item)
	if err != nil {
		return 0, err
	}
	if !itemCreated {
		existing, err := o.store.GetEvidenceByDedupeKey(ctx, run.ClaimID, models.EvidenceKindEmail, key)
		if err != nil {
			return 0, err
		}
		item = existing
	}

	link := models.EvidenceLink{
		EventID:        event.ID,
		EvidenceItemID: item.ID,
		LinkType:       models.LinkTypeSource,
	}
	if _, err := o.store.InsertEvidenceLink(ctx, &link); err != nil {
		return 0, err
	}

	for _, attachment := range candidate.Attachments {
		if err := o.ingestAttachment(ctx, run, candidate, event.ID, attachment, result); err != nil {
			return 0, err
		}
	}

	if eventCreated {
		return outcomeAutoIngested, nil
	}
	return outcomeDuplicate, nil
}

func (o *Orchestrator) ingestAttachment(ctx context.Context, run models.IngestionRun, candidate models.RawCandidate, eventID string, attachment models.CandidateAttachment, result scoring.Result) error {
	if attachment.Filename == "" {
		return nil
	}

	key := dedupe.Key(candidate.MessageID+"/"+attachment.Filename, candidate.Checksum, candidate.ThreadID)

	item := models.EvidenceItem{
		ClaimID:          run.ClaimID,
		Kind:             models.EvidenceKindAttachment,
		SourceSystem:     candidate.SourceSystem,
		SourceID:         candidate.MessageID,
		Checksum:         candidate.Checksum,
		OccurredAt:       candidate.OccurredAt.UTC(),
		Title:            attachment.Filename,
		RelevanceScore:   result.Score,
		RelevanceHard:    result.Breakdown.Hard,
		RelevanceSoft:    result.Breakdown.Soft,
		RelevanceReasons: result.Reasons,
		DedupeKey:        key,
	}
	created, err := o.store.InsertEvidenceItem(ctx, &item)
	if err != nil {
		return err
	}
	if !created {
		existing, err := o.store.GetEvidenceByDedupeKey(ctx, run.ClaimID, models.EvidenceKindAttachment, key)
		if err != nil {
			return err
		}
		item = existing
	}

	link := models.EvidenceLink{
		EventID:        eventID,
		EvidenceItemID: item.ID,
		LinkType:       models.LinkTypeAttachment,
	}
	_, err = o.store.InsertEvidenceLink(ctx, &link)
	return err
}

// queueForReview snapshots the candidate into the review queue. The raw
// message is archived up front so the approval path never needs the
// source again.
func (o *Orchestrator) queueForReview(ctx context.Context, run models.IngestionRun, candidate models.RawCandidate, key string, result scoring.Result) (outcome, error) {
	blobRef, err := o.archiveRaw(ctx, run.ClaimID, key, candidate)
	if err != nil {
		return 0, err
	}

	item := models.ReviewQueueItem{
		ClaimID:      run.ClaimID,
		RunID:        run.ID,
		Score:        result.Score,
		HardScore:    result.Breakdown.Hard,
		SoftScore:    result.Breakdown.Soft,
		Reasons:      result.Reasons,
		Subject:      candidate.Subject,
		Sender:       candidate.Headers.From,
		SourceSystem: candidate.SourceSystem,
		MessageID:    candidate.MessageID,
		ThreadID:     candidate.ThreadID,
		Checksum:     candidate.Checksum,
		OccurredAt:   candidate.OccurredAt.UTC(),
		RawBlobRef:   blobRef,
	}
	if err := o.store.InsertReviewItem(ctx, &item); err != nil {
		return 0, err
	}
	return outcomeQueued, nil
}

func (o *Orchestrator) archiveRaw(ctx context.Context, claimID, key string, candidate models.RawCandidate) (string, error) {
	if o.blobs == nil || !o.blobs.Configured() || len(candidate.Raw) == 0 {
		return "", nil
	}
	ref, err := o.blobs.Put(ctx, storage.EvidenceKey(claimID, key), candidate.Raw, storage.ContentTypeEmail)
	if err != nil {
		return "", fmt.Errorf("failed to archive raw message: %w", err)
	}
	return ref, nil
}

func statusFor(counts models.RunCounts, runErr error) string {
	if runErr != nil {
		return models.RunStatusFailed
	}
	if counts.Errors == 0 {
		return models.RunStatusSucceeded
	}
	if counts.Errors >= counts.Scanned {
		return models.RunStatusFailed
	}
	return models.RunStatusPartial
}
