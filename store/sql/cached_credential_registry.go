package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/dstevens79/eve-corp-auth/core"
)

const orgCredentialCacheKeyPrefix = "eve-corp-auth::org_credential::v1"

// CachedCredentialRegistry caches the read path the callback flow hits
// on every login. Writes go straight to the base registry and drop the
// cached entry so IsConfigured never serves a stale verdict.
type CachedCredentialRegistry struct {
	base  core.CredentialRegistry
	cache repositorycache.CacheService
}

func NewCachedCredentialRegistry(
	base core.CredentialRegistry,
	cacheService repositorycache.CacheService,
) (*CachedCredentialRegistry, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential registry is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: credential cache service is required")
	}
	return &CachedCredentialRegistry{base: base, cache: cacheService}, nil
}

// OrgCredentialCacheKey returns the deterministic cache key for one
// organization's credential record.
func OrgCredentialCacheKey(organizationID int64) string {
	return strings.Join(
		[]string{orgCredentialCacheKeyPrefix, strconv.FormatInt(organizationID, 10)},
		"::",
	)
}

type cachedOrgCredential struct {
	Record core.OrgCredential
	Found  bool
}

func (r *CachedCredentialRegistry) Register(ctx context.Context, in core.RegisterOrgInput) (core.OrgCredential, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.OrgCredential{}, fmt.Errorf("sqlstore: cached credential registry is not configured")
	}
	record, err := r.base.Register(ctx, in)
	if err != nil {
		return core.OrgCredential{}, err
	}
	if err := r.cache.Delete(ctx, OrgCredentialCacheKey(in.OrganizationID)); err != nil {
		return core.OrgCredential{}, err
	}
	return record, nil
}

func (r *CachedCredentialRegistry) Get(ctx context.Context, organizationID int64) (core.OrgCredential, bool, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.OrgCredential{}, false, fmt.Errorf("sqlstore: cached credential registry is not configured")
	}
	cached, err := repositorycache.GetOrFetch(ctx, r.cache, OrgCredentialCacheKey(organizationID),
		func(ctx context.Context) (cachedOrgCredential, error) {
			record, found, fetchErr := r.base.Get(ctx, organizationID)
			if fetchErr != nil {
				return cachedOrgCredential{}, fetchErr
			}
			return cachedOrgCredential{Record: record, Found: found}, nil
		})
	if err != nil {
		return core.OrgCredential{}, false, err
	}
	return cached.Record, cached.Found, nil
}

// ListActive bypasses the cache; scheduled refresh is the only caller
// and it wants the authoritative record set.
func (r *CachedCredentialRegistry) ListActive(ctx context.Context) ([]core.OrgCredential, error) {
	if r == nil || r.base == nil {
		return nil, fmt.Errorf("sqlstore: cached credential registry is not configured")
	}
	return r.base.ListActive(ctx)
}

func (r *CachedCredentialRegistry) SetActive(ctx context.Context, organizationID int64, active bool) error {
	if r == nil || r.base == nil || r.cache == nil {
		return fmt.Errorf("sqlstore: cached credential registry is not configured")
	}
	if err := r.base.SetActive(ctx, organizationID, active); err != nil {
		return err
	}
	return r.cache.Delete(ctx, OrgCredentialCacheKey(organizationID))
}

func (r *CachedCredentialRegistry) Remove(ctx context.Context, organizationID int64) error {
	if r == nil || r.base == nil || r.cache == nil {
		return fmt.Errorf("sqlstore: cached credential registry is not configured")
	}
	if err := r.base.Remove(ctx, organizationID); err != nil {
		return err
	}
	return r.cache.Delete(ctx, OrgCredentialCacheKey(organizationID))
}

func (r *CachedCredentialRegistry) IsConfigured(ctx context.Context, organizationID int64) (bool, error) {
	record, found, err := r.Get(ctx, organizationID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return record.Configured(), nil
}

func (r *CachedCredentialRegistry) RecordRefresh(ctx context.Context, in core.RefreshOrgInput) error {
	if r == nil || r.base == nil || r.cache == nil {
		return fmt.Errorf("sqlstore: cached credential registry is not configured")
	}
	if err := r.base.RecordRefresh(ctx, in); err != nil {
		return err
	}
	return r.cache.Delete(ctx, OrgCredentialCacheKey(in.OrganizationID))
}
