package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-provisioning/core"
)

// UserMutator is the user-side mutation surface the commands dispatch to.
// *core.UserService satisfies it.
type UserMutator interface {
	Create(ctx context.Context, resource map[string]any) (map[string]any, error)
	Update(ctx context.Context, id string, patch map[string]any) (map[string]any, error)
	Delete(ctx context.Context, id string) error
}

// GroupMutator is the group-side mutation surface. *core.GroupService
// satisfies it.
type GroupMutator interface {
	Create(ctx context.Context, resource map[string]any, members []core.MemberOperation) (map[string]any, error)
	Update(ctx context.Context, id string, patch map[string]any, ops []core.MemberOperation) (map[string]any, error)
	Delete(ctx context.Context, id string) error
}

type CreateUserCommand struct {
	service UserMutator
}

func NewCreateUserCommand(service UserMutator) *CreateUserCommand {
	return &CreateUserCommand{service: service}
}

func (c *CreateUserCommand) Execute(ctx context.Context, msg CreateUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: user service is required")
	}
	out, err := c.service.Create(ctx, msg.Resource)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateUserCommand struct {
	service UserMutator
}

func NewUpdateUserCommand(service UserMutator) *UpdateUserCommand {
	return &UpdateUserCommand{service: service}
}

func (c *UpdateUserCommand) Execute(ctx context.Context, msg UpdateUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: user service is required")
	}
	out, err := c.service.Update(ctx, msg.UserID, msg.Patch)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteUserCommand struct {
	service UserMutator
}

func NewDeleteUserCommand(service UserMutator) *DeleteUserCommand {
	return &DeleteUserCommand{service: service}
}

func (c *DeleteUserCommand) Execute(ctx context.Context, msg DeleteUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: user service is required")
	}
	return c.service.Delete(ctx, msg.UserID)
}

type CreateGroupCommand struct {
	service GroupMutator
}

func NewCreateGroupCommand(service GroupMutator) *CreateGroupCommand {
	return &CreateGroupCommand{service: service}
}

func (c *CreateGroupCommand) Execute(ctx context.Context, msg CreateGroupMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: group service is required")
	}
	out, err := c.service.Create(ctx, msg.Resource, msg.Members)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateGroupCommand struct {
	service GroupMutator
}

func NewUpdateGroupCommand(service GroupMutator) *UpdateGroupCommand {
	return &UpdateGroupCommand{service: service}
}

func (c *UpdateGroupCommand) Execute(ctx context.Context, msg UpdateGroupMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: group service is required")
	}
	out, err := c.service.Update(ctx, msg.GroupID, msg.Patch, msg.MemberOps)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteGroupCommand struct {
	service GroupMutator
}

func NewDeleteGroupCommand(service GroupMutator) *DeleteGroupCommand {
	return &DeleteGroupCommand{service: service}
}

func (c *DeleteGroupCommand) Execute(ctx context.Context, msg DeleteGroupMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: group service is required")
	}
	return c.service.Delete(ctx, msg.GroupID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
