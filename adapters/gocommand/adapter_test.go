package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
)

type okMessage struct{}

func (okMessage) Type() string { return "identity_sync.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "identity_sync.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "identity_sync.command.adapter_test" }

type lookupMessage struct {
	ID string
}

func (lookupMessage) Type() string { return "identity_sync.query.adapter_test" }

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

	subscription, err := RegisterAndSubscribe(adapter, cmd)
	if err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	defer subscription.Unsubscribe()
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

func TestRegisterAndSubscribeQuery(t *testing.T) {
	adapter := NewRegistryAdapter(nil)
	qry := command.QueryFunc[lookupMessage, string](func(_ context.Context, msg lookupMessage) (string, error) {
		return "user:" + msg.ID, nil
	})

	subscription, err := RegisterAndSubscribeQuery(adapter, qry)
	if err != nil {
		t.Fatalf("register and subscribe query: %v", err)
	}
	defer subscription.Unsubscribe()

	got, err := Query[lookupMessage, string](context.Background(), lookupMessage{ID: "u_1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != "user:u_1" {
		t.Fatalf("unexpected query result %q", got)
	}
}

func TestRegisterAndSubscribe_RequiresRegistryAndHandler(t *testing.T) {
	if _, err := RegisterAndSubscribe[dispatchMessage](nil, nil); err == nil {
		t.Fatalf("expected nil adapter to fail")
	}
	if _, err := RegisterAndSubscribe[dispatchMessage](NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected nil command to fail")
	}
}

func TestDispatch_RejectsMessagesBreakingContract(t *testing.T) {
	if err := Dispatch(context.Background(), invalidMessage{}); err == nil {
		t.Fatalf("expected empty message type to be rejected before dispatch")
	}
	if _, err := Query[failingMessage, string](context.Background(), failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to stop the query")
	}
}
