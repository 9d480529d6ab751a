package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-provisioning/core"
)

var (
	_ gocmd.Querier[ListUsersMessage, core.ListResult]  = (*ListUsersQuery)(nil)
	_ gocmd.Querier[GetUserMessage, map[string]any]     = (*GetUserQuery)(nil)
	_ gocmd.Querier[ListGroupsMessage, core.ListResult] = (*ListGroupsQuery)(nil)
	_ gocmd.Querier[GetGroupMessage, map[string]any]    = (*GetGroupQuery)(nil)

	_ UserReader  = (*core.UserService)(nil)
	_ GroupReader = (*core.GroupService)(nil)
)
