package core

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MembershipSynchronizer keeps the denormalized member set on group records
// consistent while users and groups are created, updated and deleted. The
// member set stored on the group is the single source of truth; canonical
// member and group lists are always reconstructed from it on read.
type MembershipSynchronizer struct {
	mapper       *AttributeMapper
	userMapping  FieldMapping
	groupMapping FieldMapping
	users        string
	groups       string
	logger       Logger
}

func NewMembershipSynchronizer(
	mapper *AttributeMapper,
	userMapping FieldMapping,
	groupMapping FieldMapping,
	usersCollection string,
	groupsCollection string,
	logger Logger,
) (*MembershipSynchronizer, error) {
	if mapper == nil {
		return nil, fmt.Errorf("core: attribute mapper is required")
	}
	if usersCollection == "" || groupsCollection == "" {
		return nil, fmt.Errorf("core: users and groups collections are required")
	}
	return &MembershipSynchronizer{
		mapper:       mapper,
		userMapping:  userMapping,
		groupMapping: groupMapping,
		users:        usersCollection,
		groups:       groupsCollection,
		logger:       logger,
	}, nil
}

// DetachUser removes the user's storage key from every group that references
// it. Per-group updates run concurrently; the first failure aborts the whole
// detach and is surfaced as one aggregate cleanup error, because no other
// process reconciles dangling references.
func (s *MembershipSynchronizer) DetachUser(ctx context.Context, session StoreSession, userKey string) error {
	if s == nil || session == nil {
		return fmt.Errorf("core: membership synchronizer session is required")
	}
	if userKey == "" {
		return fmt.Errorf("core: user key is required")
	}

	groups, err := session.FindMany(ctx, s.groups, MemberContainsFilter(userKey))
	if err != nil {
		return NewMembershipCleanupError(err, userKey)
	}
	if len(groups) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, group := range groups {
		groupKey := recordKey(group)
		remaining := withoutMember(recordMemberKeys(group), userKey)
		if groupKey == "" {
			continue
		}
		wg.Add(1)
		go func(groupKey string, remaining []string) {
			defer wg.Done()
			err := session.Update(ctx, s.groups,
				EqualityFilter(recordKeyField, groupKey),
				map[string]any{recordMembersField: remaining},
			)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("core: detach from group %q: %w", groupKey, err)
				}
				mu.Unlock()
			}
		}(groupKey, remaining)
	}
	wg.Wait()

	if firstErr != nil {
		return NewMembershipCleanupError(firstErr, userKey)
	}
	return nil
}

// ResolveMemberOps computes the next member set from a snapshot of the
// current one. Every referenced user must exist before any change is
// accepted; adding a present member is a no-op and deleting an absent one is
// not an error. The caller applies the result as a single replacement write.
func (s *MembershipSynchronizer) ResolveMemberOps(
	ctx context.Context,
	session StoreSession,
	current []string,
	ops []MemberOperation,
) ([]string, error) {
	if s == nil || session == nil {
		return nil, fmt.Errorf("core: membership synchronizer session is required")
	}

	next := slices.Clone(current)
	for _, raw := range ops {
		op := raw.Normalize()
		if err := op.Validate(); err != nil {
			return nil, NewValidationError(err.Error())
		}
		key, found, err := s.MemberKey(ctx, session, op.Value)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, NewMemberNotFoundError(op.Value)
		}
		switch op.Op {
		case MemberAdd:
			if !slices.Contains(next, key) {
				next = append(next, key)
			}
		case MemberDelete:
			next = withoutMember(next, key)
		}
	}
	return next, nil
}

// MemberKey resolves a canonical member id to its storage key.
func (s *MembershipSynchronizer) MemberKey(ctx context.Context, session StoreSession, memberValue string) (string, bool, error) {
	field, value, mapped, err := s.mapper.OutboundFilterValue(s.userMapping, AttributeUserName, memberValue)
	if err != nil {
		return "", false, err
	}
	if !mapped {
		return "", false, NewMappingError("core: userName has no storage mapping")
	}
	record, found, err := session.FindFirst(ctx, s.users, EqualityFilter(field, value))
	if err != nil {
		return "", false, mapStorageReadError(err)
	}
	if !found {
		return "", false, nil
	}
	return recordKey(record), true, nil
}

// ExpandMembers resolves stored member keys into the derived canonical list.
// Keys that no longer resolve to a live user are dropped rather than surfaced,
// so a partially repaired member set still reads cleanly.
func (s *MembershipSynchronizer) ExpandMembers(ctx context.Context, session StoreSession, keys []string) ([]GroupMember, error) {
	members := make([]GroupMember, 0, len(keys))
	for _, key := range keys {
		record, found, err := session.FindUnique(ctx, s.users, EqualityFilter(recordKeyField, key))
		if err != nil {
			return nil, mapStorageReadError(err)
		}
		if !found {
			if s.logger != nil {
				s.logger.Debug("dropping dangling member reference", "member_key", key)
			}
			continue
		}
		canonical, err := s.mapper.MapInbound(record, s.userMapping)
		if err != nil {
			return nil, err
		}
		userName := stringAttribute(canonical, AttributeUserName)
		if userName == "" {
			continue
		}
		members = append(members, GroupMember{Value: userName, Display: userName})
	}
	return members, nil
}

// UserGroups derives the canonical group list of a user from the groups whose
// member set contains the user's storage key.
func (s *MembershipSynchronizer) UserGroups(ctx context.Context, session StoreSession, userKey string) ([]GroupMember, error) {
	groups, err := session.FindMany(ctx, s.groups, MemberContainsFilter(userKey))
	if err != nil {
		return nil, mapStorageReadError(err)
	}
	out := make([]GroupMember, 0, len(groups))
	for _, group := range groups {
		canonical, err := s.mapper.MapInbound(group, s.groupMapping)
		if err != nil {
			return nil, err
		}
		displayName := stringAttribute(canonical, AttributeDisplayName)
		if displayName == "" {
			continue
		}
		out = append(out, GroupMember{Value: displayName, Display: displayName})
	}
	return out, nil
}

func withoutMember(keys []string, key string) []string {
	out := make([]string, 0, len(keys))
	for _, candidate := range keys {
		if candidate == key {
			continue
		}
		out = append(out, candidate)
	}
	return out
}
