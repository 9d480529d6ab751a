package sqlstore

import (
	"context"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-provisioning/core"
)

// DirectoryStore owns the user and group repositories and hands out scoped
// sessions. One store is shared across the connector; sessions are cheap and
// per-operation. With a cache service configured, member-containment reads go
// through CachedMemberGroups and group writes invalidate the touched keys.
type DirectoryStore struct {
	db     *bun.DB
	users  repository.Repository[*userRecord]
	groups repository.Repository[*groupRecord]

	usersCollection  string
	groupsCollection string

	cacheService repositorycache.CacheService
	memberGroups *CachedMemberGroups
}

type StoreOption func(*DirectoryStore)

// WithCollections sets the collection aliases the connector addresses the
// store by. The underlying tables do not change.
func WithCollections(users string, groups string) StoreOption {
	return func(s *DirectoryStore) {
		if trimmed := strings.TrimSpace(users); trimmed != "" {
			s.usersCollection = trimmed
		}
		if trimmed := strings.TrimSpace(groups); trimmed != "" {
			s.groupsCollection = trimmed
		}
	}
}

// WithMemberGroupsCache caches the member-containment lookup behind the given
// cache service.
func WithMemberGroupsCache(cacheService repositorycache.CacheService) StoreOption {
	return func(s *DirectoryStore) {
		s.cacheService = cacheService
	}
}

func NewDirectoryStore(db *bun.DB, options ...StoreOption) (*DirectoryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}

	usersRepo := repository.NewRepository[*userRecord](db, userHandlers())
	if validator, ok := usersRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid user repository wiring: %w", err)
		}
	}
	groupsRepo := repository.NewRepository[*groupRecord](db, groupHandlers())
	if validator, ok := groupsRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid group repository wiring: %w", err)
		}
	}

	store := &DirectoryStore{
		db:               db,
		users:            usersRepo,
		groups:           groupsRepo,
		usersCollection:  "directory_users",
		groupsCollection: "directory_groups",
	}
	for _, opt := range options {
		if opt != nil {
			opt(store)
		}
	}
	if store.cacheService != nil {
		cached, err := NewCachedMemberGroups(uncachedSessions{store: store}, store.cacheService, store.groupsCollection)
		if err != nil {
			return nil, err
		}
		store.memberGroups = cached
	}
	return store, nil
}

func (s *DirectoryStore) DB() *bun.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *DirectoryStore) Sessions() core.StoreSessionFactory {
	return s
}

func (s *DirectoryStore) Acquire(context.Context) (core.StoreSession, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: directory store is not configured")
	}
	return &Session{store: s}, nil
}

// MemberGroups exposes the cached member-containment reader, nil unless the
// store was built with WithMemberGroupsCache.
func (s *DirectoryStore) MemberGroups() *CachedMemberGroups {
	if s == nil {
		return nil
	}
	return s.memberGroups
}

func (s *DirectoryStore) isUsersCollection(collection string) bool {
	return s != nil && collection == s.usersCollection
}

func (s *DirectoryStore) isGroupsCollection(collection string) bool {
	return s != nil && collection == s.groupsCollection
}

// uncachedSessions hands out sessions that bypass the member-groups cache.
// The cache fetches misses through these so a miss never re-enters itself.
type uncachedSessions struct {
	store *DirectoryStore
}

func (f uncachedSessions) Acquire(context.Context) (core.StoreSession, error) {
	if f.store == nil || f.store.db == nil {
		return nil, fmt.Errorf("sqlstore: directory store is not configured")
	}
	return &Session{store: f.store, bypassCache: true}, nil
}

func (s *DirectoryStore) invalidateMemberGroups(ctx context.Context, keys ...string) error {
	if s == nil || s.memberGroups == nil || len(keys) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		if _, done := seen[trimmed]; done {
			continue
		}
		seen[trimmed] = struct{}{}
		if err := s.memberGroups.Invalidate(ctx, trimmed); err != nil {
			return err
		}
	}
	return nil
}
