package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-identity-sync/core"
)

type CreateUserCommand struct {
	store core.UserStore
}

func NewCreateUserCommand(store core.UserStore) *CreateUserCommand {
	return &CreateUserCommand{store: store}
}

// Execute validates the message and performs exactly one CreateUser call.
// The created user is stored in the context result collector when present.
func (c *CreateUserCommand) Execute(ctx context.Context, msg CreateUserMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: user store is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.store.CreateUser(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
