package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-provisioning/core"
)

const (
	TypeListUsers  = "provisioning.query.user.list"
	TypeGetUser    = "provisioning.query.user.get"
	TypeListGroups = "provisioning.query.group.list"
	TypeGetGroup   = "provisioning.query.group.get"
)

type ListUsersMessage struct {
	Predicate  core.QueryPredicate
	Attributes []string
}

func (ListUsersMessage) Type() string { return TypeListUsers }

func (m ListUsersMessage) Validate() error {
	return m.Predicate.Normalize().Validate()
}

type GetUserMessage struct {
	UserID string
}

func (GetUserMessage) Type() string { return TypeGetUser }

func (m GetUserMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("query: user id is required")
	}
	return nil
}

type ListGroupsMessage struct {
	Predicate  core.QueryPredicate
	Attributes []string
}

func (ListGroupsMessage) Type() string { return TypeListGroups }

func (m ListGroupsMessage) Validate() error {
	return m.Predicate.Normalize().Validate()
}

type GetGroupMessage struct {
	GroupID string
}

func (GetGroupMessage) Type() string { return TypeGetGroup }

func (m GetGroupMessage) Validate() error {
	if strings.TrimSpace(m.GroupID) == "" {
		return fmt.Errorf("query: group id is required")
	}
	return nil
}
