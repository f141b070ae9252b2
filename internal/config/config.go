package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	Port                   string
	DatabaseURL            string // Claims database (claims, runs, evidence, review queue)
	Version                string
	LogLevel               string
	EvidenceBucket         string // S3 bucket for raw evidence blobs; empty disables the nightly sync
	AWSRegion              string
	MailboxArchivePath     string // Directory where the mailbox connector finds synced .eml files
	NightlyMaxClaims       int    // Cap on claims processed per nightly invocation
	NightlyWorkers         int    // Bounded concurrency for the nightly sync (1 = sequential)
	ClaimRunTimeoutSeconds int    // Per-claim ingestion budget in seconds
	AutoIngestScoreMin     int    // Minimum total score for auto-ingestion
	AutoIngestHardMin      int    // Minimum hard score for auto-ingestion
	ReviewSoftMin          int    // Minimum soft score to route a candidate to review
	SendGridAPIKey         string // SendGrid API key for nightly summary notifications
	OpsEmail               string // Ops address receiving nightly summaries
	SyncJobImage           string // Container image for the on-demand nightly-sync Kubernetes Job
	KubernetesNamespace    string
	AdminUsername          string
	AdminPassword          string
}

// Load initializes and returns application configuration
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:                   getEnv("PORT", "8080"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		Version:                getEnv("VERSION", "1.0.0"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		EvidenceBucket:         os.Getenv("EVIDENCE_BUCKET"),
		AWSRegion:              getEnv("AWS_REGION", "us-east-1"),
		MailboxArchivePath:     getEnv("MAILBOX_ARCHIVE_PATH", "/mailboxes"),
		NightlyMaxClaims:       getEnvInt("NIGHTLY_MAX_CLAIMS", 200),
		NightlyWorkers:         getEnvInt("NIGHTLY_WORKERS", 1),
		ClaimRunTimeoutSeconds: getEnvInt("CLAIM_RUN_TIMEOUT_SECONDS", 120),
		AutoIngestScoreMin:     getEnvInt("AUTO_INGEST_SCORE_THRESHOLD", 70),
		AutoIngestHardMin:      getEnvInt("AUTO_INGEST_HARD_THRESHOLD", 40),
		ReviewSoftMin:          getEnvInt("REVIEW_SOFT_THRESHOLD", 1),
		SendGridAPIKey:         os.Getenv("SENDGRID_API_KEY"),
		OpsEmail:               os.Getenv("OPS_EMAIL"),
		SyncJobImage:           os.Getenv("SYNC_JOB_IMAGE"),
		KubernetesNamespace:    getEnv("KUBERNETES_NAMESPACE", "claimsync"),
		AdminUsername:          os.Getenv("ADMIN_USERNAME"),
		AdminPassword:          os.Getenv("ADMIN_PASSWORD"),
	}

	return config
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// SetupLogger configures zerolog with JSON output and single-line format
func (c *Config) SetupLogger() zerolog.Logger {
	// Configure zerolog to output JSON without newlines
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Create logger with JSON output to stdout
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "claimsync").
		Str("version", c.Version).
		Logger()

	// Set log level based on configuration
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	return logger
}
