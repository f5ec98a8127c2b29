package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-identity-sync/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const userCacheKeyPrefix = "go-identity-sync::user::v1"

// CachedUserReader serves GetByExternalID through a go-repository-cache
// service.
type CachedUserReader struct {
	base  core.UserReader
	cache repositorycache.CacheService
}

func NewCachedUserReader(base core.UserReader, cacheService repositorycache.CacheService) (*CachedUserReader, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base user reader is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: user cache service is required")
	}
	return &CachedUserReader{base: base, cache: cacheService}, nil
}

// UserCacheKey returns go-identity-sync::user::v1::<external_id> with the id
// URL-path escaped.
func UserCacheKey(externalID string) (string, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return "", core.BadInput("sqlstore: external id is required", nil)
	}
	return userCacheKeyPrefix + "::" + url.PathEscape(externalID), nil
}

func (r *CachedUserReader) GetByExternalID(ctx context.Context, externalID string) (core.User, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.User{}, fmt.Errorf("sqlstore: cached user reader is not configured")
	}
	cacheKey, err := UserCacheKey(externalID)
	if err != nil {
		return core.User{}, err
	}
	externalID = strings.TrimSpace(externalID)
	return repositorycache.GetOrFetch(ctx, r.cache, cacheKey, func(ctx context.Context) (core.User, error) {
		return r.base.GetByExternalID(ctx, externalID)
	})
}

// Invalidate drops the cached entry for externalID.
func (r *CachedUserReader) Invalidate(ctx context.Context, externalID string) error {
	if r == nil || r.cache == nil {
		return nil
	}
	cacheKey, err := UserCacheKey(externalID)
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, cacheKey)
}
