package command

import (
	"strings"

	"github.com/goliatone/go-provisioning/core"
)

const (
	TypeCreateUser  = "provisioning.command.user.create"
	TypeUpdateUser  = "provisioning.command.user.update"
	TypeDeleteUser  = "provisioning.command.user.delete"
	TypeCreateGroup = "provisioning.command.group.create"
	TypeUpdateGroup = "provisioning.command.group.update"
	TypeDeleteGroup = "provisioning.command.group.delete"
)

type CreateUserMessage struct {
	Resource map[string]any
}

func (CreateUserMessage) Type() string { return TypeCreateUser }

func (m CreateUserMessage) Validate() error {
	if len(m.Resource) == 0 {
		return commandValidationError("resource", "user resource is required")
	}
	return nil
}

type UpdateUserMessage struct {
	UserID string
	Patch  map[string]any
}

func (UpdateUserMessage) Type() string { return TypeUpdateUser }

func (m UpdateUserMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

type DeleteUserMessage struct {
	UserID string
}

func (DeleteUserMessage) Type() string { return TypeDeleteUser }

func (m DeleteUserMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

type CreateGroupMessage struct {
	Resource map[string]any
	Members  []core.MemberOperation
}

func (CreateGroupMessage) Type() string { return TypeCreateGroup }

func (m CreateGroupMessage) Validate() error {
	if len(m.Resource) == 0 {
		return commandValidationError("resource", "group resource is required")
	}
	for _, op := range m.Members {
		if err := op.Validate(); err != nil {
			return commandValidationError("members", err.Error())
		}
	}
	return nil
}

type UpdateGroupMessage struct {
	GroupID   string
	Patch     map[string]any
	MemberOps []core.MemberOperation
}

func (UpdateGroupMessage) Type() string { return TypeUpdateGroup }

func (m UpdateGroupMessage) Validate() error {
	if strings.TrimSpace(m.GroupID) == "" {
		return commandValidationError("group_id", "group id is required")
	}
	for _, op := range m.MemberOps {
		if err := op.Validate(); err != nil {
			return commandValidationError("member_ops", err.Error())
		}
	}
	return nil
}

type DeleteGroupMessage struct {
	GroupID string
}

func (DeleteGroupMessage) Type() string { return TypeDeleteGroup }

func (m DeleteGroupMessage) Validate() error {
	if strings.TrimSpace(m.GroupID) == "" {
		return commandValidationError("group_id", "group id is required")
	}
	return nil
}
