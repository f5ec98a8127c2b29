package command

import (
	"strings"

	"github.com/goliatone/go-identity-sync/core"
)

const (
	TypeCreateUser = "identity_sync.command.user.create"
)

// CreateUserMessage mirrors one provider user into the local store.
type CreateUserMessage struct {
	Input core.CreateUserInput
}

func (CreateUserMessage) Type() string { return TypeCreateUser }

func (m CreateUserMessage) Validate() error {
	if strings.TrimSpace(m.Input.ExternalID) == "" {
		return commandValidationError("external_id", "external id is required")
	}
	if strings.TrimSpace(m.Input.Email) == "" {
		return commandValidationError("email", "email is required")
	}
	return nil
}
