package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	provisioning "github.com/goliatone/go-provisioning"
	"github.com/goliatone/go-provisioning/core"
)

type okMessage struct{}

func (okMessage) Type() string { return "provisioning.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "provisioning.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "provisioning.command.test" }

type queueMessage struct{}

func (queueMessage) Type() string { return "provisioning.command.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("provisioning.command.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

type inertSessionFactory struct{}

func (inertSessionFactory) Acquire(context.Context) (core.StoreSession, error) {
	return inertSession{}, nil
}

type inertSession struct{}

func (inertSession) FindMany(context.Context, string, core.StorageFilter) ([]map[string]any, error) {
	return nil, nil
}

func (inertSession) FindUnique(context.Context, string, core.StorageFilter) (map[string]any, bool, error) {
	return nil, false, nil
}

func (inertSession) FindFirst(context.Context, string, core.StorageFilter) (map[string]any, bool, error) {
	return nil, false, nil
}

func (inertSession) Create(_ context.Context, _ string, record map[string]any) (map[string]any, error) {
	return record, nil
}

func (inertSession) Update(context.Context, string, core.StorageFilter, map[string]any) error {
	return core.ErrStoreNotFound
}

func (inertSession) Delete(context.Context, string, core.StorageFilter) error {
	return core.ErrStoreNotFound
}

func (inertSession) Release() error { return nil }

func TestRegisterFacadeHandlers(t *testing.T) {
	connector, err := provisioning.New(provisioning.Config{},
		provisioning.WithSessionFactory(inertSessionFactory{}))
	if err != nil {
		t.Fatalf("build connector: %v", err)
	}
	facade, err := provisioning.NewFacade(connector)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	adapter := NewRegistryAdapter(command.NewRegistry())
	subscriptions, err := RegisterFacadeHandlers(adapter, facade)
	if err != nil {
		t.Fatalf("register facade handlers: %v", err)
	}
	defer func() {
		for _, subscription := range subscriptions {
			subscription.Unsubscribe()
		}
	}()
	if len(subscriptions) != 10 {
		t.Fatalf("expected 10 subscriptions, got %d", len(subscriptions))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
}
