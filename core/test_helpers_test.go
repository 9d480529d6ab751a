package core

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeStore is the in-memory storage backend the core tests run against. It
// enforces the same uniqueness contract a real store would and exposes
// failure-injection hooks for the cleanup and rollback paths.
type fakeStore struct {
	mu           sync.Mutex
	collections  map[string][]map[string]any
	uniqueFields map[string][]string
	nextID       int

	failCreate func(collection string) error
	failUpdate func(collection string, filter StorageFilter) error
	failFind   func(collection string) error

	acquired    int
	released    int
	updateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections: map[string][]map[string]any{},
		uniqueFields: map[string][]string{
			"directory_users":  {"user_name"},
			"directory_groups": {"display_name"},
		},
	}
}

func (s *fakeStore) Acquire(context.Context) (StoreSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquired++
	return &fakeSession{store: s}, nil
}

func (s *fakeStore) Sessions() StoreSessionFactory { return s }

func (s *fakeStore) records(collection string) []map[string]any {
	return s.collections[collection]
}

func (s *fakeStore) updateCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCalls
}

func (s *fakeStore) leakedSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired - s.released
}

type fakeSession struct {
	store    *fakeStore
	released bool
}

func (f *fakeSession) FindMany(_ context.Context, collection string, filter StorageFilter) ([]map[string]any, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.released {
		return nil, fmt.Errorf("fake: session used after release")
	}
	if f.store.failFind != nil {
		if err := f.store.failFind(collection); err != nil {
			return nil, err
		}
	}
	var out []map[string]any
	for _, record := range f.store.collections[collection] {
		if matchFilter(record, filter) {
			out = append(out, cloneRecord(record))
		}
	}
	return out, nil
}

func (f *fakeSession) FindUnique(ctx context.Context, collection string, filter StorageFilter) (map[string]any, bool, error) {
	return f.findOne(ctx, collection, filter)
}

func (f *fakeSession) FindFirst(ctx context.Context, collection string, filter StorageFilter) (map[string]any, bool, error) {
	return f.findOne(ctx, collection, filter)
}

func (f *fakeSession) findOne(ctx context.Context, collection string, filter StorageFilter) (map[string]any, bool, error) {
	records, err := f.FindMany(ctx, collection, filter)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[0], true, nil
}

func (f *fakeSession) Create(_ context.Context, collection string, record map[string]any) (map[string]any, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.released {
		return nil, fmt.Errorf("fake: session used after release")
	}
	if f.store.failCreate != nil {
		if err := f.store.failCreate(collection); err != nil {
			return nil, err
		}
	}
	for _, field := range f.store.uniqueFields[collection] {
		value, ok := record[field]
		if !ok {
			continue
		}
		for _, existing := range f.store.collections[collection] {
			if reflect.DeepEqual(existing[field], value) {
				return nil, fmt.Errorf("fake: %s already taken: %w", field, ErrStoreDuplicate)
			}
		}
	}
	f.store.nextID++
	stored := cloneRecord(record)
	stored[recordKeyField] = "rec-" + strconv.Itoa(f.store.nextID)
	f.store.collections[collection] = append(f.store.collections[collection], stored)
	return cloneRecord(stored), nil
}

func (f *fakeSession) Update(_ context.Context, collection string, filter StorageFilter, patch map[string]any) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.released {
		return fmt.Errorf("fake: session used after release")
	}
	f.store.updateCalls++
	if f.store.failUpdate != nil {
		if err := f.store.failUpdate(collection, filter); err != nil {
			return err
		}
	}
	matched := false
	for _, record := range f.store.collections[collection] {
		if !matchFilter(record, filter) {
			continue
		}
		matched = true
		MergePatch(record, patch)
	}
	if !matched {
		return fmt.Errorf("fake: no record matched update: %w", ErrStoreNotFound)
	}
	return nil
}

func (f *fakeSession) Delete(_ context.Context, collection string, filter StorageFilter) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.released {
		return fmt.Errorf("fake: session used after release")
	}
	remaining := f.store.collections[collection][:0]
	deleted := 0
	for _, record := range f.store.collections[collection] {
		if matchFilter(record, filter) {
			deleted++
			continue
		}
		remaining = append(remaining, record)
	}
	f.store.collections[collection] = remaining
	if deleted == 0 {
		return fmt.Errorf("fake: no record matched delete: %w", ErrStoreNotFound)
	}
	return nil
}

func (f *fakeSession) Release() error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.released {
		return fmt.Errorf("fake: session released twice")
	}
	f.released = true
	f.store.released++
	return nil
}

func matchFilter(record map[string]any, filter StorageFilter) bool {
	switch filter.Kind {
	case StorageFilterAll:
		return true
	case StorageFilterEquality:
		value, present := lookupPath(record, filter.Field)
		return present && reflect.DeepEqual(value, filter.Value)
	case StorageFilterMemberContains:
		for _, key := range recordMemberKeys(record) {
			if key == filter.MemberKey {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func newTestConnector(t *testing.T, store *fakeStore) *Connector {
	t.Helper()
	connector, err := New(Config{}, WithSessionFactory(store))
	if err != nil {
		t.Fatalf("build connector: %v", err)
	}
	return connector
}

func mustCreateUser(t *testing.T, connector *Connector, userName string) map[string]any {
	t.Helper()
	created, err := connector.Users().Create(context.Background(), map[string]any{
		AttributeUserName: userName,
	})
	if err != nil {
		t.Fatalf("create user %q: %v", userName, err)
	}
	return created
}

func mustCreateGroup(t *testing.T, connector *Connector, displayName string, members ...string) map[string]any {
	t.Helper()
	ops := make([]MemberOperation, 0, len(members))
	for _, member := range members {
		ops = append(ops, MemberOperation{Op: MemberAdd, Value: member})
	}
	created, err := connector.Groups().Create(context.Background(), map[string]any{
		AttributeDisplayName: displayName,
	}, ops)
	if err != nil {
		t.Fatalf("create group %q: %v", displayName, err)
	}
	return created
}

func memberValues(t *testing.T, resource map[string]any, attribute string) []string {
	t.Helper()
	raw, ok := resource[attribute].([]GroupMember)
	if !ok {
		t.Fatalf("attribute %q is %T, want []GroupMember", attribute, resource[attribute])
	}
	out := make([]string, 0, len(raw))
	for _, member := range raw {
		out = append(out, member.Value)
	}
	return out
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func joinStrings(values []string) string {
	return strings.Join(values, ",")
}
