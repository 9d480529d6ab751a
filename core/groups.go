package core

import (
	"context"
	"fmt"
	"time"
)

// GroupService implements the group-side provisioning operations. The group's
// canonical id is its displayName; the member set stored on the record is the
// source of truth for membership and is replaced wholesale on every change.
type GroupService struct {
	mapper     *AttributeMapper
	filters    *FilterTranslator
	membership *MembershipSynchronizer
	sessions   StoreSessionFactory
	mapping    FieldMapping
	collection string
	logger     Logger
	observer   *operationObserver
}

func NewGroupService(
	mapper *AttributeMapper,
	filters *FilterTranslator,
	membership *MembershipSynchronizer,
	sessions StoreSessionFactory,
	mapping FieldMapping,
	collection string,
	logger Logger,
	observer *operationObserver,
) (*GroupService, error) {
	if mapper == nil || filters == nil || membership == nil {
		return nil, fmt.Errorf("core: group service requires mapper, filter translator and membership synchronizer")
	}
	if sessions == nil {
		return nil, fmt.Errorf("core: group service requires a store session factory")
	}
	if collection == "" {
		return nil, fmt.Errorf("core: group service requires a collection name")
	}
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	return &GroupService{
		mapper:     mapper,
		filters:    filters,
		membership: membership,
		sessions:   sessions,
		mapping:    mapping,
		collection: collection,
		logger:     logger,
		observer:   observer,
	}, nil
}

// List returns the canonical groups matching the predicate, projected to the
// requested attributes when any are named. A member containment predicate
// referencing an unknown user yields an empty result rather than an error:
// the question "which groups contain X" has a valid empty answer when X does
// not exist.
func (s *GroupService) List(ctx context.Context, predicate QueryPredicate, attributes ...string) (result ListResult, err error) {
	startedAt := time.Now()
	defer func() {
		s.observer.observe(ctx, startedAt, "groups.list", err, map[string]any{
			"count": result.TotalCount,
		})
	}()

	filter, err := s.filters.Translate(EntityGroup, predicate, s.mapping)
	if err != nil {
		return ListResult{}, err
	}

	session, err := s.sessions.Acquire(ctx)
	if err != nil {
		return ListResult{}, mapStorageReadError(err)
	}
	defer releaseSession(s.logger, session)

	if filter.Kind == StorageFilterMemberContains {
		key, found, err := s.membership.MemberKey(ctx, session, filter.MemberKey)
		if err != nil {
			return ListResult{}, err
		}
		if !found {
			return ListResult{Resources: []map[string]any{}, TotalCount: 0}, nil
		}
		filter = MemberContainsFilter(key)
	}

	records, err := session.FindMany(ctx, s.collection, filter)
	if err != nil {
		return ListResult{}, mapStorageReadError(err)
	}

	resources := make([]map[string]any, 0, len(records))
	for _, record := range records {
		resource, err := s.canonicalGroup(ctx, session, record)
		if err != nil {
			return ListResult{}, err
		}
		resources = append(resources, projectResource(resource, attributes))
	}
	return ListResult{Resources: resources, TotalCount: len(resources)}, nil
}

// Get returns one canonical group by id.
func (s *GroupService) Get(ctx context.Context, id string) (resource map[string]any, err error) {
	startedAt := time.Now()
	defer func() {
		s.observer.observe(ctx, startedAt, "groups.get", err, map[string]any{"group": id})
	}()

	session, err := s.sessions.Acquire(ctx)
	if err != nil {
		return nil, mapStorageReadError(err)
	}
	defer releaseSession(s.logger, session)

	record, err := s.lookup(ctx, session, id)
	if err != nil {
		return nil, err
	}
	return s.canonicalGroup(ctx, session, record)
}

// Create provisions a new group. displayName is required and becomes the
// canonical id. An initial member list is resolved up front; one unknown
// member rejects the whole create before anything is written.
func (s *GroupService) Create(ctx context.Context, resource map[string]any, members []MemberOperation) (created map[string]any, err error) {
	displayName := stringAttribute(resource, AttributeDisplayName)
	startedAt := time.Now()
	defer func() {
		s.observer.observe(ctx, startedAt, "groups.create", err, map[string]any{"group": displayName})
	}()

	if displayName == "" {
		return nil, NewValidationError("core: displayName is required")
	}
	if id := stringAttribute(resource, AttributeID); id != "" && id != displayName {
		return nil, NewValidationError("core: group id must equal displayName")
	}

	record, err := s.mapper.MapOutbound(resource, s.mapping)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Acquire(ctx)
	if err != nil {
		return nil, mapStorageReadError(err)
	}
	defer releaseSession(s.logger, session)

	memberKeys, err := s.membership.ResolveMemberOps(ctx, session, nil, members)
	if err != nil {
		return nil, err
	}
	record[recordMembersField] = memberKeys

	stored, err := session.Create(ctx, s.collection, record)
	if err != nil {
		return nil, mapStorageWriteError(err, AttributeDisplayName)
	}
	return s.canonicalGroup(ctx, session, stored)
}

// Update applies a partial canonical patch and a batch of member operations
// to an existing group. Member operations are resolved against a snapshot of
// the current member set before any write happens, so a rejected batch leaves
// the group untouched.
func (s *GroupService) Update(ctx context.Context, id string, patch map[string]any, ops []MemberOperation) (updated map[string]any, err error) {
	startedAt := time.Now()
	defer func() {
		s.observer.observe(ctx, startedAt, "groups.update", err, map[string]any{"group": id})
	}()

	if newID := stringAttribute(patch, AttributeID); newID != "" && newID != id {
		return nil, NewValidationError("core: group id cannot be changed")
	}

	storagePatch, err := s.mapper.MapOutbound(patch, s.mapping)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Acquire(ctx)
	if err != nil {
		return nil, mapStorageReadError(err)
	}
	defer releaseSession(s.logger, session)

	record, err := s.lookup(ctx, session, id)
	if err != nil {
		return nil, err
	}
	key := recordKey(record)
	if key == "" {
		return nil, NewNotFoundError(fmt.Sprintf("core: group %q has no storage key", id))
	}

	if len(ops) > 0 {
		next, err := s.membership.ResolveMemberOps(ctx, session, recordMemberKeys(record), ops)
		if err != nil {
			return nil, err
		}
		storagePatch = cloneRecord(storagePatch)
		storagePatch[recordMembersField] = next
	}

	if len(storagePatch) > 0 {
		if err := session.Update(ctx, s.collection, EqualityFilter(recordKeyField, key), storagePatch); err != nil {
			return nil, mapStorageWriteError(err, AttributeDisplayName)
		}
	}

	refreshed, found, err := session.FindUnique(ctx, s.collection, EqualityFilter(recordKeyField, key))
	if err != nil {
		return nil, mapStorageReadError(err)
	}
	if !found {
		return nil, NewNotFoundError(fmt.Sprintf("core: group %q not found", id))
	}
	return s.canonicalGroup(ctx, session, refreshed)
}

// Delete removes a group. Member references live on the group record itself,
// so no cross-record cleanup is needed.
func (s *GroupService) Delete(ctx context.Context, id string) (err error) {
	startedAt := time.Now()
	defer func() {
		s.observer.observe(ctx, startedAt, "groups.delete", err, map[string]any{"group": id})
	}()

	session, err := s.sessions.Acquire(ctx)
	if err != nil {
		return mapStorageReadError(err)
	}
	defer releaseSession(s.logger, session)

	record, err := s.lookup(ctx, session, id)
	if err != nil {
		return err
	}
	key := recordKey(record)
	if key == "" {
		return NewNotFoundError(fmt.Sprintf("core: group %q has no storage key", id))
	}

	if err := session.Delete(ctx, s.collection, EqualityFilter(recordKeyField, key)); err != nil {
		return mapStorageWriteError(err)
	}
	return nil
}

func (s *GroupService) lookup(ctx context.Context, session StoreSession, id string) (map[string]any, error) {
	field, value, mapped, err := s.mapper.OutboundFilterValue(s.mapping, AttributeDisplayName, id)
	if err != nil {
		return nil, err
	}
	if !mapped {
		return nil, NewMappingError("core: displayName has no storage mapping")
	}
	record, found, err := session.FindUnique(ctx, s.collection, EqualityFilter(field, value))
	if err != nil {
		return nil, mapStorageReadError(err)
	}
	if !found {
		return nil, NewNotFoundError(fmt.Sprintf("core: group %q not found", id))
	}
	return record, nil
}

// canonicalGroup maps a storage record inbound and attaches the derived
// attributes: id mirrors displayName and members expands the stored member
// keys into canonical references.
func (s *GroupService) canonicalGroup(ctx context.Context, session StoreSession, record map[string]any) (map[string]any, error) {
	resource, err := s.mapper.MapInbound(record, s.mapping)
	if err != nil {
		return nil, err
	}
	displayName := stringAttribute(resource, AttributeDisplayName)
	if displayName != "" {
		resource[AttributeID] = displayName
	}

	members, err := s.membership.ExpandMembers(ctx, session, recordMemberKeys(record))
	if err != nil {
		return nil, err
	}
	resource[AttributeMembers] = members
	return resource, nil
}
