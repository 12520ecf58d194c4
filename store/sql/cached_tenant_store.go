package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-relay/core"
)

const tenantCacheKeyPrefix = "go-relay::tenant::v1"

// CachedTenantStore reads tenants through a cache. Writes go to the base
// store first and then drop the cached entry.
type CachedTenantStore struct {
	base  core.TenantStore
	cache repositorycache.CacheService
}

func NewCachedTenantStore(base core.TenantStore, cacheService repositorycache.CacheService) (*CachedTenantStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base tenant store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: tenant cache service is required")
	}
	return &CachedTenantStore{base: base, cache: cacheService}, nil
}

// NewTenantCacheService builds the default cache used for tenant lookups.
func NewTenantCacheService(ttl time.Duration) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if ttl > 0 {
		config.TTL = ttl
	}
	return repositorycache.NewCacheService(config)
}

// TenantCacheKey is go-relay::tenant::v1::<escaped id>.
func TenantCacheKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("sqlstore: tenant id is required")
	}
	return tenantCacheKeyPrefix + "::" + url.PathEscape(id), nil
}

func (s *CachedTenantStore) Create(ctx context.Context, in core.CreateTenantInput) (core.Tenant, error) {
	if s == nil || s.base == nil {
		return core.Tenant{}, fmt.Errorf("sqlstore: cached tenant store is not configured")
	}
	return s.base.Create(ctx, in)
}

func (s *CachedTenantStore) Get(ctx context.Context, id string) (core.Tenant, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Tenant{}, fmt.Errorf("sqlstore: cached tenant store is not configured")
	}
	key, err := TenantCacheKey(id)
	if err != nil {
		return core.Tenant{}, err
	}
	id = strings.TrimSpace(id)
	return repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (core.Tenant, error) {
		return s.base.Get(ctx, id)
	})
}

func (s *CachedTenantStore) List(ctx context.Context) ([]core.Tenant, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached tenant store is not configured")
	}
	return s.base.List(ctx)
}

func (s *CachedTenantStore) UpdateCallback(ctx context.Context, id string, callbackURL string) (core.Tenant, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Tenant{}, fmt.Errorf("sqlstore: cached tenant store is not configured")
	}
	updated, err := s.base.UpdateCallback(ctx, id, callbackURL)
	if err != nil {
		return core.Tenant{}, err
	}
	key, err := TenantCacheKey(updated.ID)
	if err != nil {
		return core.Tenant{}, err
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		return core.Tenant{}, err
	}
	return updated, nil
}

var _ core.TenantStore = (*CachedTenantStore)(nil)
