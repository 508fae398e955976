// Package auth maps presented API keys to requester identities.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pricofy/csv-translation/internal/domain"
)

// KeyStore looks up API key records by credential.
type KeyStore interface {
	FindByAPIKey(ctx context.Context, apiKey string) ([]domain.APIKeyRecord, error)
}

// Resolver resolves credentials against a KeyStore. It fails closed: every
// lookup problem is reported as domain.ErrNotFound.
type Resolver struct {
	store  KeyStore
	logger *slog.Logger
	now    func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(store KeyStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger, now: time.Now}
}

// Resolve returns the identity owning apiKey.
func (r *Resolver) Resolve(ctx context.Context, apiKey string) (domain.Identity, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return domain.Identity{}, fmt.Errorf("%w: empty api key", domain.ErrNotFound)
	}

	records, err := r.store.FindByAPIKey(ctx, apiKey)
	if err != nil {
		r.logger.ErrorContext(ctx, "api key lookup failed", "error", err)
		return domain.Identity{}, fmt.Errorf("%w: api key lookup failed", domain.ErrNotFound)
	}

	switch len(records) {
	case 0:
		return domain.Identity{}, fmt.Errorf("%w: unknown api key", domain.ErrNotFound)
	case 1:
	default:
		r.logger.WarnContext(ctx, "api key matches more than one record", "matches", len(records))
		return domain.Identity{}, fmt.Errorf("%w: ambiguous api key", domain.ErrNotFound)
	}

	rec := records[0]
	if !rec.Usable(r.now()) {
		r.logger.InfoContext(ctx, "api key not usable", "user_id", rec.UserID)
		return domain.Identity{}, fmt.Errorf("%w: api key inactive or expired", domain.ErrNotFound)
	}
	return rec.Identity(), nil
}
