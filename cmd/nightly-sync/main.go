// The nightly-sync binary runs one evidence sweep over all active
// claims and exits. In production it runs as a Kubernetes CronJob, and
// on demand as a Job fired from the admin API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"claimsync/internal/config"
	"claimsync/internal/connector"
	"claimsync/internal/database"
	"claimsync/internal/ingest"
	"claimsync/internal/nightly"
	"claimsync/internal/notify"
	"claimsync/internal/profile"
	"claimsync/internal/scoring"
	"claimsync/internal/storage"
	"claimsync/internal/store"
)

const profileCacheTTL = 5 * time.Minute

func main() {
	cfg := config.Load()
	logger := cfg.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	st := store.New(db, logger)
	if err := st.CreateTables(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create tables")
	}

	blobs, err := storage.NewS3Store(ctx, cfg.EvidenceBucket, cfg.AWSRegion)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize evidence archive")
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
	driver := nightly.NewDriver(st, runner, blobs, logger, cfg.NightlyMaxClaims, cfg.NightlyWorkers)

	summary, err := driver.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Nightly sweep failed")
	}

	notifier := notify.NewService(cfg.SendGridAPIKey, cfg.OpsEmail)
	if notifier.Configured() {
		if sendErr := notifier.SendNightlySummary(context.Background(), summary); sendErr != nil {
			logger.Warn().Err(sendErr).Msg("Failed to send nightly summary")
		}
	}

	if err != nil {
		os.Exit(1)
	}
}
