package sqlstore

import (
	"context"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-provisioning/core"
)

type countingSessionFactory struct {
	mu      sync.Mutex
	fetches int
	groups  []map[string]any
}

func (f *countingSessionFactory) Acquire(context.Context) (core.StoreSession, error) {
	return &countingSession{factory: f}, nil
}

func (f *countingSessionFactory) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type countingSession struct {
	factory  *countingSessionFactory
	released bool
}

func (s *countingSession) FindMany(_ context.Context, _ string, filter core.StorageFilter) ([]map[string]any, error) {
	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()
	s.factory.fetches++
	var out []map[string]any
	for _, group := range s.factory.groups {
		members, _ := group["members"].([]string)
		for _, member := range members {
			if member == filter.MemberKey {
				out = append(out, group)
				break
			}
		}
	}
	return out, nil
}

func (s *countingSession) FindUnique(ctx context.Context, collection string, filter core.StorageFilter) (map[string]any, bool, error) {
	return nil, false, nil
}

func (s *countingSession) FindFirst(ctx context.Context, collection string, filter core.StorageFilter) (map[string]any, bool, error) {
	return nil, false, nil
}

func (s *countingSession) Create(context.Context, string, map[string]any) (map[string]any, error) {
	return nil, nil
}

func (s *countingSession) Update(context.Context, string, core.StorageFilter, map[string]any) error {
	return nil
}

func (s *countingSession) Delete(context.Context, string, core.StorageFilter) error {
	return nil
}

func (s *countingSession) Release() error {
	s.released = true
	return nil
}

func newTestMemberGroupsCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedMemberGroups_MissFetchThenHit(t *testing.T) {
	factory := &countingSessionFactory{
		groups: []map[string]any{
			{"id": "grp-1", "display_name": "engineering", "members": []string{"rec-1"}},
		},
	}
	cached, err := NewCachedMemberGroups(factory, newTestMemberGroupsCacheService(t), "directory_groups")
	if err != nil {
		t.Fatalf("new cached member groups: %v", err)
	}

	groups, err := cached.GroupsForMember(context.Background(), "rec-1")
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if len(groups) != 1 || groups[0]["display_name"] != "engineering" {
		t.Fatalf("first lookup = %#v", groups)
	}
	if factory.fetchCount() != 1 {
		t.Fatalf("expected one storage fetch, got %d", factory.fetchCount())
	}

	if _, err := cached.GroupsForMember(context.Background(), "rec-1"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if factory.fetchCount() != 1 {
		t.Fatalf("expected cache hit on second lookup, fetches=%d", factory.fetchCount())
	}
}

func TestCachedMemberGroups_InvalidateForcesRefetch(t *testing.T) {
	factory := &countingSessionFactory{
		groups: []map[string]any{
			{"id": "grp-1", "display_name": "engineering", "members": []string{"rec-1"}},
		},
	}
	cached, err := NewCachedMemberGroups(factory, newTestMemberGroupsCacheService(t), "directory_groups")
	if err != nil {
		t.Fatalf("new cached member groups: %v", err)
	}

	ctx := context.Background()
	if _, err := cached.GroupsForMember(ctx, "rec-1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	factory.mu.Lock()
	factory.groups = nil
	factory.mu.Unlock()

	if err := cached.Invalidate(ctx, "rec-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	groups, err := cached.GroupsForMember(ctx, "rec-1")
	if err != nil {
		t.Fatalf("lookup after invalidation: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected refetch after invalidation, got %#v", groups)
	}
	if factory.fetchCount() != 2 {
		t.Fatalf("expected invalidation to force second fetch, got %d", factory.fetchCount())
	}
}

func TestMemberGroupsCacheKey_Contract(t *testing.T) {
	key, err := MemberGroupsCacheKey("users/alice smith")
	if err != nil {
		t.Fatalf("build cache key: %v", err)
	}
	const expected = "go-provisioning::member_groups::v1::users%2Falice%20smith"
	if key != expected {
		t.Fatalf("cache key = %q, want %q", key, expected)
	}

	if _, err := MemberGroupsCacheKey("  "); err == nil {
		t.Fatal("blank member key should be rejected")
	}
}
