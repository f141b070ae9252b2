package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimsync/internal/models"
	"claimsync/internal/scoring"
	"claimsync/internal/storage"
	"claimsync/internal/store"
)

// fakeStore is an in-memory Store honoring the same uniqueness rules as
// the database.
type fakeStore struct {
	mu          sync.Mutex
	runs        map[string]*models.IngestionRun // by id
	runsByKey   map[string]string               // claim|key -> id
	events      map[string]*models.ClaimEvent   // claim|dedupe -> event
	evidence    map[string]*models.EvidenceItem // claim|kind|dedupe -> item
	links       map[string]*models.EvidenceLink // event|item|type -> link
	reviewItems []*models.ReviewQueueItem

	failEventInsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:      make(map[string]*models.IngestionRun),
		runsByKey: make(map[string]string),
		events:    make(map[string]*models.ClaimEvent),
		evidence:  make(map[string]*models.EvidenceItem),
		links:     make(map[string]*models.EvidenceLink),
	}
}

func (f *fakeStore) CreateRun(ctx context.Context, run *models.IngestionRun) (models.IngestionRun, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := run.ClaimID + "|" + run.IdempotencyKey
	if id, ok := f.runsByKey[key]; ok {
		return *f.runs[id], false, nil
	}
	run.ID = uuid.NewString()
	run.Status = models.RunStatusPending
	run.CreatedAt = time.Now().UTC()
	stored := *run
	f.runs[run.ID] = &stored
	f.runsByKey[key] = run.ID
	return stored, true, nil
}

func (f *fakeStore) GetRun(ctx context.Context, runID string) (models.IngestionRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return models.IngestionRun{}, store.ErrNotFound
	}
	return *run, nil
}

func (f *fakeStore) MarkRunRunning(ctx context.Context, runID string, startedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok || run.Status != models.RunStatusPending {
		return false, nil
	}
	run.Status = models.RunStatusRunning
	run.StartedAt = &startedAt
	return true, nil
}

func (f *fakeStore) CompleteRun(ctx context.Context, runID, status string, counts models.RunCounts, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	run.Status = status
	run.RunCounts = counts
	run.CompletedAt = &completedAt
	return nil
}

func (f *fakeStore) GetEventByDedupeKey(ctx context.Context, claimID, dedupeKey string) (models.ClaimEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[claimID+"|"+dedupeKey]
	if !ok {
		return models.ClaimEvent{}, store.ErrNotFound
	}
	return *event, nil
}

func (f *fakeStore) InsertClaimEvent(ctx context.Context, event *models.ClaimEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEventInsert {
		return false, errors.New("simulated insert failure")
	}
	key := event.ClaimID + "|" + event.DedupeKey
	if _, ok := f.events[key]; ok {
		return false, nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	stored := *event
	f.events[key] = &stored
	return true, nil
}

func (f *fakeStore) InsertEvidenceItem(ctx context.Context, item *models.EvidenceItem) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := item.ClaimID + "|" + item.Kind + "|" + item.DedupeKey
	if _, ok := f.evidence[key]; ok {
		return false, nil
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	stored := *item
	f.evidence[key] = &stored
	return true, nil
}

func (f *fakeStore) GetEvidenceByDedupeKey(ctx context.Context, claimID, kind, dedupeKey string) (models.EvidenceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.evidence[claimID+"|"+kind+"|"+dedupeKey]
	if !ok {
		return models.EvidenceItem{}, store.ErrNotFound
	}
	return *item, nil
}

func (f *fakeStore) InsertEvidenceLink(ctx context.Context, link *models.EvidenceLink) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := link.EventID + "|" + link.EvidenceItemID + "|" + link.LinkType
	if _, ok := f.links[key]; ok {
		return false, nil
	}
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	stored := *link
	f.links[key] = &stored
	return true, nil
}

func (f *fakeStore) InsertReviewItem(ctx context.Context, item *models.ReviewQueueItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	stored := *item
	f.reviewItems = append(f.reviewItems, &stored)
	return nil
}

type fakeSource struct {
	candidates []models.RawCandidate
	err        error
	calls      int
}

func (f *fakeSource) ListCandidates(ctx context.Context, claimID string, windowStart, windowEnd time.Time) ([]models.RawCandidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type fakeProfiles struct {
	profile models.IdentityProfile
	err     error
}

func (f *fakeProfiles) Get(ctx context.Context, claimID string) (models.IdentityProfile, error) {
	if f.err != nil {
		return models.IdentityProfile{}, f.err
	}
	return f.profile, nil
}

func testIdentity() models.IdentityProfile {
	return models.IdentityProfile{
		ClaimID:           "claim-1",
		PolicyholderNames: []string{"Maria Alvarez"},
		Addresses:         []string{"1420 Maple Ave, Springfield"},
		PolicyNumbers:     []string{"POL-99-4471"},
		ClaimNumbers:      []string{"CLM-2024-118"},
		CarrierNames:      []string{"Acme Insurance"},
		AdjusterEmails:    []string{"j.reed@acme-claims.com"},
		SubjectPatterns:   []string{"water damage claim"},
	}
}

func strongCandidate(messageID string) models.RawCandidate {
	return models.RawCandidate{
		SourceSystem: "mailbox",
		MessageID:    messageID,
		ThreadID:     messageID,
		Checksum:     "sum-" + messageID,
		OccurredAt:   time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
		Subject:      "Re: Claim CLM-2024-118 inspection report",
		Snippet:      "Inspection scheduled at 1420 Maple Ave",
		BodyText:     "Policy POL-99-4471, claim CLM-2024-118. Inspection at 1420 Maple Ave.",
		Headers: models.CandidateHeaders{
			From:    "Jordan Reed <j.reed@acme-claims.com>",
			Subject: "Re: Claim CLM-2024-118 inspection report",
		},
		Raw: []byte("raw message " + messageID),
	}
}

func fuzzyCandidate(messageID string) models.RawCandidate {
	return models.RawCandidate{
		SourceSystem: "mailbox",
		MessageID:    messageID,
		ThreadID:     messageID,
		Checksum:     "sum-" + messageID,
		OccurredAt:   time.Date(2025, 3, 2, 11, 0, 0, 0, time.UTC),
		Subject:      "Quick question",
		BodyText:     "Hi, this is about the Alvarez property on Maple.",
		Headers: models.CandidateHeaders{
			From: "neighbor@example.com",
		},
		Raw: []byte("raw fuzzy " + messageID),
	}
}

func junkCandidate(messageID string) models.RawCandidate {
	return models.RawCandidate{
		SourceSystem: "mailbox",
		MessageID:    messageID,
		ThreadID:     messageID,
		Checksum:     "sum-" + messageID,
		OccurredAt:   time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC),
		Subject:      "50% off everything this weekend",
		BodyText:     "Huge savings on garden furniture.",
		Headers: models.CandidateHeaders{
			From: "deals@retailer.example.com",
		},
		Raw: []byte("raw junk " + messageID),
	}
}

func newTestOrchestrator(st Store, source *fakeSource, blobs storage.BlobStore) *Orchestrator {
	profiles := &fakeProfiles{profile: testIdentity()}
	scorer := scoring.New(scoring.DefaultConfig())
	return New(st, source, profiles, blobs, scorer, zerolog.Nop(), 0)
}

func manualParams(key string) RunParams {
	return RunParams{
		ClaimID:        "claim-1",
		Mode:           models.RunModeManual,
		IdempotencyKey: key,
		ActorID:        "user-1",
		WindowStart:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:      time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
	}
}

func TestIngestClaim_FansOutByDecision(t *testing.T) {
	st := newFakeStore()
	source := &fakeSource{candidates: []models.RawCandidate{
		strongCandidate("msg-1"),
		fuzzyCandidate("msg-2"),
		junkCandidate("msg-3"),
	}}
	blobs := storage.NewMemoryStore()

	orch := newTestOrchestrator(st, source, blobs)

	run, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:a"))
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	assert.Equal(t, 3, run.Scanned)
	assert.Equal(t, 1, run.AutoIngested)
	assert.Equal(t, 1, run.QueuedForReview)
	assert.Equal(t, 1, run.Rejected)
	assert.Equal(t, 0, run.Errors)

	// The strong candidate produced an event, evidence and a link.
	assert.Len(t, st.events, 1)
	assert.Len(t, st.evidence, 1)
	assert.Len(t, st.links, 1)

	// The fuzzy candidate landed in the review queue with its snapshot.
	require.Len(t, st.reviewItems, 1)
	item := st.reviewItems[0]
	assert.Equal(t, run.ID, item.RunID)
	assert.Zero(t, item.HardScore)
	assert.Positive(t, item.SoftScore)
	assert.NotEmpty(t, item.RawBlobRef)

	// The junk candidate left no trace beyond the counter.
	// Raw messages were archived for the ingested and queued candidates.
	assert.Equal(t, 2, blobs.Len())
}

func TestIngestClaim_IdempotentReplay(t *testing.T) {
	st := newFakeStore()
	source := &fakeSource{candidates: []models.RawCandidate{strongCandidate("msg-1")}}
	orch := newTestOrchestrator(st, source, storage.NewMemoryStore())

	first, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:a"))
	require.NoError(t, err)
	require.Equal(t, models.RunStatusSucceeded, first.Status)

	second, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:a"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.RunCounts, second.RunCounts)
	// The source was not consulted again.
	assert.Equal(t, 1, source.calls)
}

func TestIngestClaim_FreshKeyDoesNotDoubleIngest(t *testing.T) {
	st := newFakeStore()
	source := &fakeSource{candidates: []models.RawCandidate{strongCandidate("msg-1")}}
	orch := newTestOrchestrator(st, source, storage.NewMemoryStore())

	first, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:a"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.AutoIngested)

	// Same message scanned again under a new run key: it is counted as
	// scanned but the timeline gains nothing.
	second, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:b"))
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, second.Status)
	assert.Equal(t, 1, second.Scanned)
	assert.Equal(t, 0, second.AutoIngested)
	assert.Len(t, st.events, 1)
	assert.Len(t, st.evidence, 1)
}

func TestIngestClaim_DuplicatesWithinBatch(t *testing.T) {
	st := newFakeStore()
	// Same message listed twice, e.g. present in two mailbox folders.
	source := &fakeSource{candidates: []models.RawCandidate{
		strongCandidate("msg-1"),
		strongCandidate("msg-1"),
	}}
	orch := newTestOrchestrator(st, source, storage.NewMemoryStore())

	run, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:a"))
	require.NoError(t, err)

	assert.Equal(t, 2, run.Scanned)
	assert.Equal(t, 1, run.AutoIngested)
	assert.Len(t, st.events, 1)
}

func TestIngestClaim_AttachmentsBecomeLinkedEvidence(t *testing.T) {
	st := newFakeStore()
	candidate := strongCandidate("msg-1")
	candidate.Attachments = []models.CandidateAttachment{
		{Filename: "estimate-CLM-2024-118.pdf"},
		{Filename: "photos.zip"},
	}
	source := &fakeSource{candidates: []models.RawCandidate{candidate}}
	orch := newTestOrchestrator(st, source, storage.NewMemoryStore())

	run, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:a"))
	require.NoError(t, err)

	assert.Equal(t, 1, run.AutoIngested)
	// One email item plus one item per attachment, all linked to the event.
	assert.Len(t, st.evidence, 3)
	assert.Len(t, st.links, 3)
}

func TestIngestClaim_SourceFailureFailsRun(t *testing.T) {
	st := newFakeStore()
	source := &fakeSource{err: errors.New("mailbox unreachable")}
	orch := newTestOrchestrator(st, source, storage.NewMemoryStore())

	run, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:a"))
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)

	// The failure is recorded, so the same key replays it cheaply.
	replay, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:a"))
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, replay.Status)
	assert.Equal(t, 1, source.calls)
}

func TestIngestClaim_CandidateErrorYieldsPartial(t *testing.T) {
	st := newFakeStore()
	st.failEventInsert = true
	source := &fakeSource{candidates: []models.RawCandidate{
		strongCandidate("msg-1"),
		junkCandidate("msg-2"),
	}}
	orch := newTestOrchestrator(st, source, storage.NewMemoryStore())

	run, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:a"))
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusPartial, run.Status)
	assert.Equal(t, 2, run.Scanned)
	assert.Equal(t, 1, run.Errors)
	assert.Equal(t, 1, run.Rejected)
}

func TestIngestClaim_UnconfiguredStorageSkipsArchiving(t *testing.T) {
	st := newFakeStore()
	source := &fakeSource{candidates: []models.RawCandidate{strongCandidate("msg-1")}}
	blobs := storage.NewUnconfiguredMemoryStore()
	orch := newTestOrchestrator(st, source, blobs)

	run, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:a"))
	require.NoError(t, err)

	assert.Equal(t, 1, run.AutoIngested)
	assert.Equal(t, 0, blobs.Len())
	for _, item := range st.evidence {
		assert.Empty(t, item.RawBlobRef)
	}
}

func TestIngestClaim_EmptyProfileRejectsEverything(t *testing.T) {
	st := newFakeStore()
	source := &fakeSource{candidates: []models.RawCandidate{
		strongCandidate("msg-1"),
		fuzzyCandidate("msg-2"),
	}}
	scorer := scoring.New(scoring.DefaultConfig())
	orch := New(st, source, &fakeProfiles{}, storage.NewMemoryStore(), scorer, zerolog.Nop(), 0)

	run, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:a"))
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	assert.Equal(t, 2, run.Rejected)
	assert.Empty(t, st.events)
	assert.Empty(t, st.reviewItems)
}

func TestIngestClaim_ProfileLookupFailureFailsRun(t *testing.T) {
	st := newFakeStore()
	source := &fakeSource{candidates: []models.RawCandidate{strongCandidate("msg-1")}}
	scorer := scoring.New(scoring.DefaultConfig())
	profiles := &fakeProfiles{err: fmt.Errorf("profiles table unavailable")}
	orch := New(st, source, profiles, storage.NewMemoryStore(), scorer, zerolog.Nop(), 0)

	run, err := orch.IngestClaim(context.Background(), manualParams("manual:claim-1:a"))
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, 0, source.calls)
}
