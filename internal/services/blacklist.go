package services

import (
	"context"
	"time"

	"taskdesk/backend/internal/logger"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/monitoring"
	"taskdesk/backend/internal/repositories"
)

const blacklistKeyPrefix = "blacklist:"

// RevocationCache mirrors blacklisted jtis for fast lookups.
type RevocationCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// TokenBlacklist tracks issued refresh tokens and revokes them. The database
// is authoritative. The cache, when present, only short-circuits positive
// lookups and its failures are logged and ignored.
type TokenBlacklist struct {
	tokens repositories.TokenRepository
	cache  RevocationCache
	now    func() time.Time
}

func NewTokenBlacklist(tokens repositories.TokenRepository, cache RevocationCache) *TokenBlacklist {
	return &TokenBlacklist{tokens: tokens, cache: cache, now: time.Now}
}

func (b *TokenBlacklist) Track(ctx context.Context, claims *Claims) error {
	return b.tokens.RecordOutstanding(ctx, &models.OutstandingToken{
		UserID:    claims.UserUUID(),
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAtTime(),
	})
}

func (b *TokenBlacklist) Revoke(ctx context.Context, claims *Claims) error {
	now := b.now().UTC()
	err := b.tokens.Blacklist(ctx, &models.BlacklistedToken{
		JTI:           claims.ID,
		UserID:        claims.UserUUID(),
		ExpiresAt:     claims.ExpiresAtTime(),
		BlacklistedAt: now,
	})
	if err != nil {
		return err
	}

	if b.cache == nil {
		return nil
	}
	ttl := claims.ExpiresAtTime().Sub(now)
	if ttl <= 0 {
		return nil
	}
	if err := b.cache.Set(ctx, blacklistKeyPrefix+claims.ID, claims.UserID, ttl); err != nil {
		log := logger.Get()
		log.Warn().Err(err).Str("jti", claims.ID).Msg("failed to mirror blacklisted token to cache")
	}
	return nil
}

func (b *TokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if b.cache != nil {
		hit, err := b.cache.Exists(ctx, blacklistKeyPrefix+jti)
		switch {
		case err != nil:
			monitoring.RecordBlacklistLookup("cache", "error")
			log := logger.Get()
			log.Warn().Err(err).Msg("blacklist cache lookup failed, falling back to database")
		case hit:
			monitoring.RecordBlacklistLookup("cache", "hit")
			return true, nil
		default:
			monitoring.RecordBlacklistLookup("cache", "miss")
		}
	}

	revoked, err := b.tokens.IsBlacklisted(ctx, jti)
	if err != nil {
		monitoring.RecordBlacklistLookup("database", "error")
		return false, err
	}
	if revoked {
		monitoring.RecordBlacklistLookup("database", "hit")
	} else {
		monitoring.RecordBlacklistLookup("database", "miss")
	}
	return revoked, nil
}

func (b *TokenBlacklist) FlushExpired(ctx context.Context, now time.Time) (int64, error) {
	return b.tokens.DeleteExpired(ctx, now.UTC())
}
