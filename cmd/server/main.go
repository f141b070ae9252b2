package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"claimsync/internal/config"
	"claimsync/internal/connector"
	"claimsync/internal/database"
	"claimsync/internal/ingest"
	"claimsync/internal/k8s"
	"claimsync/internal/nightly"
	"claimsync/internal/notify"
	"claimsync/internal/profile"
	"claimsync/internal/review"
	"claimsync/internal/scoring"
	"claimsync/internal/server"
	"claimsync/internal/storage"
	"claimsync/internal/store"
)

const profileCacheTTL = 5 * time.Minute

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := cfg.SetupLogger()

	ctx := context.Background()

	// Initialize database connection
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	logger.Info().Msg("Database connection established successfully")

	st := store.New(db, logger)
	if err := st.CreateTables(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create tables")
	}

	// Evidence archive. An empty bucket leaves the store unconfigured;
	// manual runs still work, raw archiving is just skipped.
	blobs, err := storage.NewS3Store(ctx, cfg.EvidenceBucket, cfg.AWSRegion)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize evidence archive")
	}
	if !blobs.Configured() {
		logger.Warn().Msg("EVIDENCE_BUCKET not set, raw message archiving disabled")
	}

	source := connector.NewMailboxSource(cfg.MailboxArchivePath, logger)
	profiles := profile.NewCachedProvider(profile.NewSQLProvider(db), profileCacheTTL)
	scorer := scoring.New(scoring.Config{
		AutoIngestScoreMin: cfg.AutoIngestScoreMin,
		AutoIngestHardMin:  cfg.AutoIngestHardMin,
		ReviewSoftMin:      cfg.ReviewSoftMin,
	})

	runner := ingest.New(st, source, profiles, blobs, scorer, logger,
		time.Duration(cfg.ClaimRunTimeoutSeconds)*time.Second)
	router := review.NewRouter(st, logger)

	// Create and initialize server
	srv := server.New(cfg, db, st, runner, router, buildTrigger(cfg, st, runner, blobs, logger), logger)
	srv.Initialize()

	// Start server
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed to start")
	}
}

// buildTrigger picks how on-demand sweeps run: as Kubernetes Jobs when a
// job image is configured, in-process otherwise.
func buildTrigger(cfg *config.Config, st *store.Store, runner *ingest.Orchestrator, blobs storage.BlobStore, logger zerolog.Logger) nightly.Trigger {
	if cfg.SyncJobImage != "" {
		client, err := k8s.NewClient(cfg.KubernetesNamespace)
		if err == nil {
			logger.Info().Str("image", cfg.SyncJobImage).Msg("On-demand sync will run as Kubernetes Jobs")
			return k8s.NewTrigger(client, cfg.SyncJobImage)
		}
		logger.Warn().Err(err).Msg("Kubernetes unavailable, on-demand sync will run in process")
	}

	driver := nightly.NewDriver(st, runner, blobs, logger, cfg.NightlyMaxClaims, cfg.NightlyWorkers)
	notifier := notify.NewService(cfg.SendGridAPIKey, cfg.OpsEmail)
	return nightly.NewLocalTrigger(driver, notifier, logger)
}
