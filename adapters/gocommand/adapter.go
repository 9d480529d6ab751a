package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	provisioning "github.com/goliatone/go-provisioning"
	provisioningcommand "github.com/goliatone/go-provisioning/command"
	"github.com/goliatone/go-provisioning/core"
	provisioningquery "github.com/goliatone/go-provisioning/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// RegisterFacadeHandlers wires every connector command and query into the
// registry and dispatcher in one call. On any failure the subscriptions made
// so far are torn down.
func RegisterFacadeHandlers(
	adapter *RegistryAdapter,
	facade *provisioning.Facade,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if facade == nil {
		return nil, fmt.Errorf("gocommand: facade is required")
	}

	commands := facade.Commands()
	queries := facade.Queries()

	var subscriptions []commanddispatcher.Subscription
	teardown := func() {
		for _, subscription := range subscriptions {
			if subscription != nil {
				subscription.Unsubscribe()
			}
		}
	}
	record := func(subscription commanddispatcher.Subscription, err error) error {
		if err != nil {
			teardown()
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	}

	if err := record(RegisterAndSubscribe[provisioningcommand.CreateUserMessage](adapter, commands.CreateUser, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := record(RegisterAndSubscribe[provisioningcommand.UpdateUserMessage](adapter, commands.UpdateUser, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := record(RegisterAndSubscribe[provisioningcommand.DeleteUserMessage](adapter, commands.DeleteUser, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := record(RegisterAndSubscribe[provisioningcommand.CreateGroupMessage](adapter, commands.CreateGroup, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := record(RegisterAndSubscribe[provisioningcommand.UpdateGroupMessage](adapter, commands.UpdateGroup, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := record(RegisterAndSubscribe[provisioningcommand.DeleteGroupMessage](adapter, commands.DeleteGroup, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := record(RegisterAndSubscribeQuery[provisioningquery.ListUsersMessage, core.ListResult](adapter, queries.ListUsers, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := record(RegisterAndSubscribeQuery[provisioningquery.GetUserMessage, map[string]any](adapter, queries.GetUser, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := record(RegisterAndSubscribeQuery[provisioningquery.ListGroupsMessage, core.ListResult](adapter, queries.ListGroups, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := record(RegisterAndSubscribeQuery[provisioningquery.GetGroupMessage, map[string]any](adapter, queries.GetGroup, runnerOpts...)); err != nil {
		return nil, err
	}
	return subscriptions, nil
}
