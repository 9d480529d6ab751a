package query

import (
	"context"

	"github.com/goliatone/go-provisioning/core"
)

// UserReader is the user-side read surface the queries dispatch to.
// *core.UserService satisfies it.
type UserReader interface {
	List(ctx context.Context, predicate core.QueryPredicate, attributes ...string) (core.ListResult, error)
	Get(ctx context.Context, id string) (map[string]any, error)
}

// GroupReader is the group-side read surface. *core.GroupService satisfies it.
type GroupReader interface {
	List(ctx context.Context, predicate core.QueryPredicate, attributes ...string) (core.ListResult, error)
	Get(ctx context.Context, id string) (map[string]any, error)
}

type ListUsersQuery struct {
	reader UserReader
}

func NewListUsersQuery(reader UserReader) *ListUsersQuery {
	return &ListUsersQuery{reader: reader}
}

func (q *ListUsersQuery) Query(ctx context.Context, msg ListUsersMessage) (core.ListResult, error) {
	if q == nil || q.reader == nil {
		return core.ListResult{}, queryDependencyError("query: user reader is required")
	}
	return q.reader.List(ctx, msg.Predicate, msg.Attributes...)
}

type GetUserQuery struct {
	reader UserReader
}

func NewGetUserQuery(reader UserReader) *GetUserQuery {
	return &GetUserQuery{reader: reader}
}

func (q *GetUserQuery) Query(ctx context.Context, msg GetUserMessage) (map[string]any, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: user reader is required")
	}
	return q.reader.Get(ctx, msg.UserID)
}

type ListGroupsQuery struct {
	reader GroupReader
}

func NewListGroupsQuery(reader GroupReader) *ListGroupsQuery {
	return &ListGroupsQuery{reader: reader}
}

func (q *ListGroupsQuery) Query(ctx context.Context, msg ListGroupsMessage) (core.ListResult, error) {
	if q == nil || q.reader == nil {
		return core.ListResult{}, queryDependencyError("query: group reader is required")
	}
	return q.reader.List(ctx, msg.Predicate, msg.Attributes...)
}

type GetGroupQuery struct {
	reader GroupReader
}

func NewGetGroupQuery(reader GroupReader) *GetGroupQuery {
	return &GetGroupQuery{reader: reader}
}

func (q *GetGroupQuery) Query(ctx context.Context, msg GetGroupMessage) (map[string]any, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: group reader is required")
	}
	return q.reader.Get(ctx, msg.GroupID)
}
