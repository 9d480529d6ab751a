package core

import (
	"context"
	"fmt"
	"time"
)

// UserService implements the user-side provisioning operations against the
// configured users collection. The canonical user id is the userName value,
// so id and userName always agree and the storage key never leaves the
// storage layer.
type UserService struct {
	mapper     *AttributeMapper
	filters    *FilterTranslator
	membership *MembershipSynchronizer
	sessions   StoreSessionFactory
	mapping    FieldMapping
	collection string
	logger     Logger
	observer   *operationObserver
}

func NewUserService(
	mapper *AttributeMapper,
	filters *FilterTranslator,
	membership *MembershipSynchronizer,
	sessions StoreSessionFactory,
	mapping FieldMapping,
	collection string,
	logger Logger,
	observer *operationObserver,
) (*UserService, error) {
	if mapper == nil || filters == nil || membership == nil {
		return nil, fmt.Errorf("core: user service requires mapper, filter translator and membership synchronizer")
	}
	if sessions == nil {
		return nil, fmt.Errorf("core: user service requires a store session factory")
	}
	if collection == "" {
		return nil, fmt.Errorf("core: user service requires a collection name")
	}
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	return &UserService{
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

// List returns the canonical users matching the predicate, projected to the
// requested attributes when any are named. An unsupported predicate is
// rejected before any storage access.
func (s *UserService) List(ctx context.Context, predicate QueryPredicate, attributes ...string) (result ListResult, err error) {
	startedAt := time.Now()
	defer func() {
		s.observer.observe(ctx, startedAt, "users.list", err, map[string]any{
			"count": result.TotalCount,
		})
	}()

	filter, err := s.filters.Translate(EntityUser, predicate, s.mapping)
	if err != nil {
		return ListResult{}, err
	}

	session, err := s.sessions.Acquire(ctx)
	if err != nil {
		return ListResult{}, mapStorageReadError(err)
	}
	defer releaseSession(s.logger, session)

	records, err := session.FindMany(ctx, s.collection, filter)
	if err != nil {
		return ListResult{}, mapStorageReadError(err)
	}

	resources := make([]map[string]any, 0, len(records))
	for _, record := range records {
		resource, err := s.canonicalUser(ctx, session, record)
		if err != nil {
			return ListResult{}, err
		}
		resources = append(resources, projectResource(resource, attributes))
	}
	return ListResult{Resources: resources, TotalCount: len(resources)}, nil
}

// Get returns one canonical user by id.
func (s *UserService) Get(ctx context.Context, id string) (resource map[string]any, err error) {
	startedAt := time.Now()
	defer func() {
		s.observer.observe(ctx, startedAt, "users.get", err, map[string]any{"user": id})
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
	return s.canonicalUser(ctx, session, record)
}

// Create provisions a new user. userName is required and becomes the
// canonical id; uniqueness is enforced by storage and surfaced as a
// duplicate-key conflict.
func (s *UserService) Create(ctx context.Context, resource map[string]any) (created map[string]any, err error) {
	userName := stringAttribute(resource, AttributeUserName)
	startedAt := time.Now()
	defer func() {
		s.observer.observe(ctx, startedAt, "users.create", err, map[string]any{"user": userName})
	}()

	if userName == "" {
		return nil, NewValidationError("core: userName is required")
	}
	if id := stringAttribute(resource, AttributeID); id != "" && id != userName {
		return nil, NewValidationError("core: user id must equal userName")
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

	stored, err := session.Create(ctx, s.collection, record)
	if err != nil {
		return nil, mapStorageWriteError(err, AttributeUserName)
	}
	return s.canonicalUser(ctx, session, stored)
}

// Update applies a partial canonical patch to an existing user. Attributes
// absent from the patch are left untouched.
func (s *UserService) Update(ctx context.Context, id string, patch map[string]any) (updated map[string]any, err error) {
	startedAt := time.Now()
	defer func() {
		s.observer.observe(ctx, startedAt, "users.update", err, map[string]any{"user": id})
	}()

	if newID := stringAttribute(patch, AttributeID); newID != "" && newID != id {
		return nil, NewValidationError("core: user id cannot be changed")
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
		return nil, NewNotFoundError(fmt.Sprintf("core: user %q has no storage key", id))
	}

	if len(storagePatch) > 0 {
		if err := session.Update(ctx, s.collection, EqualityFilter(recordKeyField, key), storagePatch); err != nil {
			return nil, mapStorageWriteError(err, AttributeUserName)
		}
	}

	refreshed, found, err := session.FindUnique(ctx, s.collection, EqualityFilter(recordKeyField, key))
	if err != nil {
		return nil, mapStorageReadError(err)
	}
	if !found {
		return nil, NewNotFoundError(fmt.Sprintf("core: user %q not found", id))
	}
	return s.canonicalUser(ctx, session, refreshed)
}

// Delete removes a user. The user's group memberships are detached first and
// a cleanup failure aborts the delete, so a stored user never has dangling
// member references pointing at it.
func (s *UserService) Delete(ctx context.Context, id string) (err error) {
	startedAt := time.Now()
	defer func() {
		s.observer.observe(ctx, startedAt, "users.delete", err, map[string]any{"user": id})
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
		return NewNotFoundError(fmt.Sprintf("core: user %q has no storage key", id))
	}

	if err := s.membership.DetachUser(ctx, session, key); err != nil {
		return err
	}

	if err := session.Delete(ctx, s.collection, EqualityFilter(recordKeyField, key)); err != nil {
		// A concurrent delete winning the race is still a successful outcome
		// for the caller's intent, but the contract reports it as not found.
		return mapStorageWriteError(err)
	}
	return nil
}

func (s *UserService) lookup(ctx context.Context, session StoreSession, id string) (map[string]any, error) {
	field, value, mapped, err := s.mapper.OutboundFilterValue(s.mapping, AttributeUserName, id)
	if err != nil {
		return nil, err
	}
	if !mapped {
		return nil, NewMappingError("core: userName has no storage mapping")
	}
	record, found, err := session.FindUnique(ctx, s.collection, EqualityFilter(field, value))
	if err != nil {
		return nil, mapStorageReadError(err)
	}
	if !found {
		return nil, NewNotFoundError(fmt.Sprintf("core: user %q not found", id))
	}
	return record, nil
}

// canonicalUser maps a storage record inbound and attaches the derived
// attributes: id mirrors userName and groups is reconstructed from the
// groups whose member sets reference this record.
func (s *UserService) canonicalUser(ctx context.Context, session StoreSession, record map[string]any) (map[string]any, error) {
	resource, err := s.mapper.MapInbound(record, s.mapping)
	if err != nil {
		return nil, err
	}
	userName := stringAttribute(resource, AttributeUserName)
	if userName != "" {
		resource[AttributeID] = userName
	}

	key := recordKey(record)
	if key == "" {
		resource[AttributeGroups] = []GroupMember{}
		return resource, nil
	}
	groups, err := s.membership.UserGroups(ctx, session, key)
	if err != nil {
		return nil, err
	}
	resource[AttributeGroups] = groups
	return resource, nil
}
