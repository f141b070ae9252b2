// Package profile supplies the per-claim identity facts the scorer
// matches candidates against. Profiles are owned and rebuilt by the
// claim subsystem; this package only reads them.
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"claimsync/internal/cache"
	"claimsync/internal/models"
)

// ErrNotFound is returned when a claim has no identity profile.
var ErrNotFound = errors.New("identity profile not found")

// Provider resolves the identity profile for a claim.
type Provider interface {
	Get(ctx context.Context, claimID string) (models.IdentityProfile, error)
}

// SQLProvider reads profiles from the claim_identity_profiles table,
// where the claim subsystem materializes each profile as a JSON document.
type SQLProvider struct {
	db *sqlx.DB
}

// NewSQLProvider creates a provider over an open database connection.
func NewSQLProvider(db *sqlx.DB) *SQLProvider {
	return &SQLProvider{db: db}
}

// Get fetches and decodes the profile for a claim.
func (p *SQLProvider) Get(ctx context.Context, claimID string) (models.IdentityProfile, error) {
	var raw []byte
	query := p.db.Rebind(`SELECT profile FROM claim_identity_profiles WHERE claim_id = ?`)

	if err := p.db.GetContext(ctx, &raw, query, claimID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.IdentityProfile{}, ErrNotFound
		}
		return models.IdentityProfile{}, fmt.Errorf("failed to get identity profile: %w", err)
	}

	var profile models.IdentityProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return models.IdentityProfile{}, fmt.Errorf("failed to decode identity profile: %w", err)
	}
	profile.ClaimID = claimID

	return profile, nil
}

// CachedProvider wraps a Provider with a TTL cache. A profile changes
// only when a human edits the claim, so a short TTL keeps nightly
// batches from hammering the profiles table without serving stale facts
// for long.
type CachedProvider struct {
	inner Provider
	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedProvider wraps inner with a cache holding entries for ttl.
func NewCachedProvider(inner Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		cache: cache.New(),
		ttl:   ttl,
	}
}

// Get returns the cached profile when present, falling through to the
// inner provider on a miss. Lookup failures are not cached.
func (p *CachedProvider) Get(ctx context.Context, claimID string) (models.IdentityProfile, error) {
	if cached, ok := p.cache.Get(claimID); ok {
		if profile, ok := cached.(models.IdentityProfile); ok {
			return profile, nil
		}
	}

	profile, err := p.inner.Get(ctx, claimID)
	if err != nil {
		return models.IdentityProfile{}, err
	}

	p.cache.Set(claimID, profile, p.ttl)
	return profile, nil
}

// Invalidate drops the cached profile for a claim.
func (p *CachedProvider) Invalidate(claimID string) {
	p.cache.Delete(claimID)
}
