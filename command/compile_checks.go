package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-provisioning/core"
)

var (
	_ gocmd.Commander[CreateUserMessage]  = (*CreateUserCommand)(nil)
	_ gocmd.Commander[UpdateUserMessage]  = (*UpdateUserCommand)(nil)
	_ gocmd.Commander[DeleteUserMessage]  = (*DeleteUserCommand)(nil)
	_ gocmd.Commander[CreateGroupMessage] = (*CreateGroupCommand)(nil)
	_ gocmd.Commander[UpdateGroupMessage] = (*UpdateGroupCommand)(nil)
	_ gocmd.Commander[DeleteGroupMessage] = (*DeleteGroupCommand)(nil)

	_ UserMutator  = (*core.UserService)(nil)
	_ GroupMutator = (*core.GroupService)(nil)
)
