package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-provisioning/core"
)

// Session is the scoped storage accessor handed to one provisioning
// operation. It is invalidated by Release; any use after that fails.
type Session struct {
	store *DirectoryStore

	// bypassCache marks sessions the member-groups cache uses to fetch
	// misses, so those reads hit storage directly.
	bypassCache bool

	mu       sync.Mutex
	released bool
}

func (s *Session) guard() error {
	if s == nil || s.store == nil {
		return fmt.Errorf("sqlstore: session is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return fmt.Errorf("sqlstore: session used after release")
	}
	return nil
}

func (s *Session) Release() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return fmt.Errorf("sqlstore: session released twice")
	}
	s.released = true
	return nil
}

func (s *Session) FindMany(ctx context.Context, collection string, filter core.StorageFilter) ([]map[string]any, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	switch {
	case s.store.isUsersCollection(collection):
		return s.findUsers(ctx, filter)
	case s.store.isGroupsCollection(collection):
		return s.findGroups(ctx, filter)
	default:
		return nil, fmt.Errorf("sqlstore: unknown collection %q", collection)
	}
}

func (s *Session) FindUnique(ctx context.Context, collection string, filter core.StorageFilter) (map[string]any, bool, error) {
	records, err := s.FindMany(ctx, collection, filter)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	if len(records) > 1 {
		return nil, false, fmt.Errorf("sqlstore: filter matched %d records, expected at most one", len(records))
	}
	return records[0], true, nil
}

func (s *Session) FindFirst(ctx context.Context, collection string, filter core.StorageFilter) (map[string]any, bool, error) {
	records, err := s.FindMany(ctx, collection, filter)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[0], true, nil
}

func (s *Session) Create(ctx context.Context, collection string, record map[string]any) (map[string]any, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	switch {
	case s.store.isUsersCollection(collection):
		row := newUserRecord(record, now)
		row.ID = uuid.NewString()
		created, err := s.store.users.Create(ctx, row)
		if err != nil {
			return nil, translateWriteError(err)
		}
		return created.toStorageMap(), nil
	case s.store.isGroupsCollection(collection):
		row := newGroupRecord(record, now)
		row.ID = uuid.NewString()
		created, err := s.store.groups.Create(ctx, row)
		if err != nil {
			return nil, translateWriteError(err)
		}
		if err := s.store.invalidateMemberGroups(ctx, created.Members...); err != nil {
			return nil, err
		}
		return created.toStorageMap(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unknown collection %q", collection)
	}
}

func (s *Session) Update(ctx context.Context, collection string, filter core.StorageFilter, patch map[string]any) error {
	if err := s.guard(); err != nil {
		return err
	}
	now := time.Now().UTC()
	switch {
	case s.store.isUsersCollection(collection):
		rows, err := s.userRows(ctx, filter)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("sqlstore: no user matched update: %w", core.ErrStoreNotFound)
		}
		for _, row := range rows {
			row.applyPatch(patch, now)
			if _, err := s.store.users.Update(ctx, row, repository.UpdateByID(row.ID)); err != nil {
				return translateWriteError(err)
			}
		}
		return nil
	case s.store.isGroupsCollection(collection):
		rows, err := s.groupRows(ctx, filter)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("sqlstore: no group matched update: %w", core.ErrStoreNotFound)
		}
		// Invalidate both the old and the new member sets: a replacement
		// write changes containment for every key it adds or drops.
		touched := make([]string, 0, len(rows))
		for _, row := range rows {
			touched = append(touched, row.Members...)
			row.applyPatch(patch, now)
			touched = append(touched, row.Members...)
			if _, err := s.store.groups.Update(ctx, row, repository.UpdateByID(row.ID)); err != nil {
				return translateWriteError(err)
			}
		}
		return s.store.invalidateMemberGroups(ctx, touched...)
	default:
		return fmt.Errorf("sqlstore: unknown collection %q", collection)
	}
}

func (s *Session) Delete(ctx context.Context, collection string, filter core.StorageFilter) error {
	if err := s.guard(); err != nil {
		return err
	}
	switch {
	case s.store.isUsersCollection(collection):
		rows, err := s.userRows(ctx, filter)
		if err != nil {
			return err
		}
		return s.deleteByIDs(ctx, (*userRecord)(nil), recordIDs(len(rows), func(i int) string { return rows[i].ID }))
	case s.store.isGroupsCollection(collection):
		rows, err := s.groupRows(ctx, filter)
		if err != nil {
			return err
		}
		touched := make([]string, 0, len(rows))
		for _, row := range rows {
			touched = append(touched, row.Members...)
		}
		if err := s.deleteByIDs(ctx, (*groupRecord)(nil), recordIDs(len(rows), func(i int) string { return rows[i].ID })); err != nil {
			return err
		}
		return s.store.invalidateMemberGroups(ctx, touched...)
	default:
		return fmt.Errorf("sqlstore: unknown collection %q", collection)
	}
}

func (s *Session) deleteByIDs(ctx context.Context, model any, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("sqlstore: no record matched delete: %w", core.ErrStoreNotFound)
	}
	res, err := s.store.db.NewDelete().
		Model(model).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return translateWriteError(err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("sqlstore: delete raced with another writer: %w", core.ErrStoreNotFound)
	}
	return nil
}

func (s *Session) findUsers(ctx context.Context, filter core.StorageFilter) ([]map[string]any, error) {
	rows, err := s.userRows(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toStorageMap())
	}
	return out, nil
}

func (s *Session) findGroups(ctx context.Context, filter core.StorageFilter) ([]map[string]any, error) {
	if filter.Kind == core.StorageFilterMemberContains && s.store.memberGroups != nil && !s.bypassCache {
		return s.store.memberGroups.GroupsForMember(ctx, filter.MemberKey)
	}
	rows, err := s.groupRows(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toStorageMap())
	}
	return out, nil
}

var userColumns = map[string]struct{}{
	columnID:         {},
	columnUserName:   {},
	columnExternalID: {},
}

var groupColumns = map[string]struct{}{
	columnID:          {},
	columnDisplayName: {},
	columnExternalID:  {},
}

func (s *Session) userRows(ctx context.Context, filter core.StorageFilter) ([]*userRecord, error) {
	switch filter.Kind {
	case core.StorageFilterAll:
		rows, _, err := s.store.users.List(ctx, repository.OrderBy("created_at ASC"))
		return rows, translateReadError(err)
	case core.StorageFilterEquality:
		if _, indexed := userColumns[filter.Field]; indexed {
			rows, _, err := s.store.users.List(ctx,
				repository.SelectBy(filter.Field, "=", fmt.Sprint(filter.Value)),
				repository.OrderBy("created_at ASC"),
			)
			return rows, translateReadError(err)
		}
		rows, _, err := s.store.users.List(ctx, repository.OrderBy("created_at ASC"))
		if err != nil {
			return nil, translateReadError(err)
		}
		out := rows[:0]
		for _, row := range rows {
			if documentMatches(row.Document, filter) {
				out = append(out, row)
			}
		}
		return out, nil
	case core.StorageFilterMemberContains:
		return nil, fmt.Errorf("sqlstore: member containment does not apply to users")
	default:
		return nil, fmt.Errorf("sqlstore: unsupported filter kind %q", filter.Kind)
	}
}

func (s *Session) groupRows(ctx context.Context, filter core.StorageFilter) ([]*groupRecord, error) {
	switch filter.Kind {
	case core.StorageFilterAll:
		rows, _, err := s.store.groups.List(ctx, repository.OrderBy("created_at ASC"))
		return rows, translateReadError(err)
	case core.StorageFilterEquality:
		if _, indexed := groupColumns[filter.Field]; indexed {
			rows, _, err := s.store.groups.List(ctx,
				repository.SelectBy(filter.Field, "=", fmt.Sprint(filter.Value)),
				repository.OrderBy("created_at ASC"),
			)
			return rows, translateReadError(err)
		}
		rows, _, err := s.store.groups.List(ctx, repository.OrderBy("created_at ASC"))
		if err != nil {
			return nil, translateReadError(err)
		}
		out := rows[:0]
		for _, row := range rows {
			if documentMatches(row.Document, filter) {
				out = append(out, row)
			}
		}
		return out, nil
	case core.StorageFilterMemberContains:
		// containment matches on the decoded member set so behavior is
		// identical on sqlite and postgres
		rows, _, err := s.store.groups.List(ctx, repository.OrderBy("created_at ASC"))
		if err != nil {
			return nil, translateReadError(err)
		}
		out := rows[:0]
		for _, row := range rows {
			if row.hasMember(filter.MemberKey) {
				out = append(out, row)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported filter kind %q", filter.Kind)
	}
}

func documentMatches(doc map[string]any, filter core.StorageFilter) bool {
	value, ok := documentLookup(doc, filter.Field)
	if !ok {
		return false
	}
	return fmt.Sprint(value) == fmt.Sprint(filter.Value)
}

// documentLookup walks dotted storage paths into nested document objects.
func documentLookup(doc map[string]any, path string) (any, bool) {
	current := any(doc)
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func recordIDs(count int, id func(int) string) []string {
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, id(i))
	}
	return out
}

// translateWriteError folds driver uniqueness violations into the storage
// sentinel the services key on. Both lib/pq and mattn/go-sqlite3 only expose
// the condition through the error text.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("sqlstore: uniqueness violated: %w", core.ErrStoreDuplicate)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlstore: record vanished: %w", core.ErrStoreNotFound)
	}
	return err
}

func translateReadError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlstore: record not found: %w", core.ErrStoreNotFound)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	return strings.Contains(text, "UNIQUE constraint failed") ||
		strings.Contains(text, "duplicate key value violates unique constraint")
}
