package provisioning

import (
	"fmt"

	provisioningcommand "github.com/goliatone/go-provisioning/command"
	"github.com/goliatone/go-provisioning/core"
	provisioningquery "github.com/goliatone/go-provisioning/query"
)

// CommandQueryService is the surface the command and query handlers need
// from a connector.
type CommandQueryService interface {
	Users() *core.UserService
	Groups() *core.GroupService
}

type Commands struct {
	CreateUser  *provisioningcommand.CreateUserCommand
	UpdateUser  *provisioningcommand.UpdateUserCommand
	DeleteUser  *provisioningcommand.DeleteUserCommand
	CreateGroup *provisioningcommand.CreateGroupCommand
	UpdateGroup *provisioningcommand.UpdateGroupCommand
	DeleteGroup *provisioningcommand.DeleteGroupCommand
}

type Queries struct {
	ListUsers  *provisioningquery.ListUsersQuery
	GetUser    *provisioningquery.GetUserQuery
	ListGroups *provisioningquery.ListGroupsQuery
	GetGroup   *provisioningquery.GetGroupQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("provisioning: command/query service is required")
	}

	users := service.Users()
	groups := service.Groups()
	if users == nil || groups == nil {
		return nil, fmt.Errorf("provisioning: connector services are not configured")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateUser:  provisioningcommand.NewCreateUserCommand(users),
		UpdateUser:  provisioningcommand.NewUpdateUserCommand(users),
		DeleteUser:  provisioningcommand.NewDeleteUserCommand(users),
		CreateGroup: provisioningcommand.NewCreateGroupCommand(groups),
		UpdateGroup: provisioningcommand.NewUpdateGroupCommand(groups),
		DeleteGroup: provisioningcommand.NewDeleteGroupCommand(groups),
	}
	facade.queries = Queries{
		ListUsers:  provisioningquery.NewListUsersQuery(users),
		GetUser:    provisioningquery.NewGetUserQuery(users),
		ListGroups: provisioningquery.NewListGroupsQuery(groups),
		GetGroup:   provisioningquery.NewGetGroupQuery(groups),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*core.Connector)(nil)
