package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-provisioning/core"
)

const memberGroupsCacheKeyPrefix = "go-provisioning::member_groups::v1"

// CachedMemberGroups caches the "which groups contain this member key"
// lookup, the hottest read on the group side: every user read derives its
// groups attribute from it. Writers must call Invalidate for each member key
// whose group set they touch.
type CachedMemberGroups struct {
	sessions   core.StoreSessionFactory
	cache      repositorycache.CacheService
	collection string
}

func NewCachedMemberGroups(
	sessions core.StoreSessionFactory,
	cacheService repositorycache.CacheService,
	groupsCollection string,
) (*CachedMemberGroups, error) {
	if sessions == nil {
		return nil, fmt.Errorf("sqlstore: session factory is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: cache service is required")
	}
	if strings.TrimSpace(groupsCollection) == "" {
		return nil, fmt.Errorf("sqlstore: groups collection is required")
	}
	return &CachedMemberGroups{
		sessions:   sessions,
		cache:      cacheService,
		collection: strings.TrimSpace(groupsCollection),
	}, nil
}

// MemberGroupsCacheKey returns the deterministic cache key contract:
// go-provisioning::member_groups::v1::<member_key> with the key segment
// URL-path escaped.
func MemberGroupsCacheKey(memberKey string) (string, error) {
	trimmed := strings.TrimSpace(memberKey)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: member key is required")
	}
	return memberGroupsCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (c *CachedMemberGroups) GroupsForMember(ctx context.Context, memberKey string) ([]map[string]any, error) {
	if c == nil || c.sessions == nil || c.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached member groups is not configured")
	}
	cacheKey, err := MemberGroupsCacheKey(memberKey)
	if err != nil {
		return nil, err
	}

	groups, err := repositorycache.GetOrFetch(ctx, c.cache, cacheKey, func(ctx context.Context) ([]map[string]any, error) {
		session, acquireErr := c.sessions.Acquire(ctx)
		if acquireErr != nil {
			return nil, acquireErr
		}
		defer func() { _ = session.Release() }()
		return session.FindMany(ctx, c.collection, core.MemberContainsFilter(memberKey))
	})
	if err != nil {
		return nil, err
	}
	// Cached entries are shared between callers; hand out copies.
	out := make([]map[string]any, 0, len(groups))
	for _, group := range groups {
		out = append(out, cloneDocument(group))
	}
	return out, nil
}

func (c *CachedMemberGroups) Invalidate(ctx context.Context, memberKey string) error {
	if c == nil || c.cache == nil {
		return fmt.Errorf("sqlstore: cached member groups is not configured")
	}
	cacheKey, err := MemberGroupsCacheKey(memberKey)
	if err != nil {
		return err
	}
	if err := c.cache.Delete(ctx, cacheKey); err != nil {
		return fmt.Errorf("sqlstore: invalidate member groups cache: %w", err)
	}
	return nil
}
