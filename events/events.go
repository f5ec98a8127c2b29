package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
)

const (
	TypeUserCreated = "user.created"
	TypeUserUpdated = "user.updated"
	TypeUserDeleted = "user.deleted"
)

// Event is implemented by UserCreated and Unhandled only.
type Event interface {
	EventType() string
	SubjectID() string
	isEvent()
}

type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type UserCreated struct {
	ID                    string         `json:"id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	ImageURL              string         `json:"image_url"`
}

func (UserCreated) EventType() string { return TypeUserCreated }

func (e UserCreated) SubjectID() string { return e.ID }

func (UserCreated) isEvent() {}

// Email returns the first listed address.
func (e UserCreated) Email() string {
	if len(e.EmailAddresses) == 0 {
		return ""
	}
	return strings.TrimSpace(e.EmailAddresses[0].EmailAddress)
}

// DisplayName joins first and last name and trims the result, so a missing
// part never leaves a dangling space.
func (e UserCreated) DisplayName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

func (e UserCreated) validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return &DecodeError{Type: TypeUserCreated, Field: "data.id", Reason: "is required"}
	}
	if len(e.EmailAddresses) == 0 {
		return &DecodeError{Type: TypeUserCreated, Field: "data.email_addresses", Reason: "must contain at least one entry"}
	}
	if strings.TrimSpace(e.EmailAddresses[0].EmailAddress) == "" {
		return &DecodeError{Type: TypeUserCreated, Field: "data.email_addresses[0].email_address", Reason: "is required"}
	}
	return nil
}

// Unhandled is any event type without a dedicated variant.
type Unhandled struct {
	Type   string
	DataID string
	Data   json.RawMessage
}

func (e Unhandled) EventType() string { return e.Type }

func (e Unhandled) SubjectID() string { return e.DataID }

func (Unhandled) isEvent() {}

type DecodeError struct {
	Type   string
	Field  string
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "events: decode failed"
	}
	msg := "events: "
	if e.Type != "" {
		msg += e.Type + ": "
	}
	if e.Field != "" {
		msg += e.Field + " "
	}
	msg += e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type subject struct {
	ID string `json:"id"`
}

// Decode parses a verified webhook body. Failures carry the
// IDENTITY_SYNC_PAYLOAD_INVALID text code and map to 400.
func Decode(body []byte) (Event, error) {
	event, err := decode(body)
	if err != nil {
		metadata := map[string]any{}
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			if decodeErr.Type != "" {
				metadata["event_type"] = decodeErr.Type
			}
			if decodeErr.Field != "" {
				metadata["field"] = decodeErr.Field
			}
		}
		return nil, core.WrapError(
			err,
			goerrors.CategoryBadInput,
			"events: invalid event payload",
			http.StatusBadRequest,
			core.ErrorPayloadInvalid,
			metadata,
		)
	}
	return event, nil
}

func decode(body []byte) (Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &DecodeError{Reason: "body is empty"}
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &DecodeError{Reason: "malformed envelope", Cause: err}
	}
	eventType := strings.TrimSpace(env.Type)
	if eventType == "" {
		return nil, &DecodeError{Field: "type", Reason: "is required"}
	}
	hasData := len(env.Data) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null"))

	switch eventType {
	case TypeUserCreated:
		if !hasData {
			return nil, &DecodeError{Type: eventType, Field: "data", Reason: "is required"}
		}
		var created UserCreated
		if err := json.Unmarshal(env.Data, &created); err != nil {
			return nil, &DecodeError{Type: eventType, Field: "data", Reason: "malformed", Cause: err}
		}
		created.ID = strings.TrimSpace(created.ID)
		created.ImageURL = strings.TrimSpace(created.ImageURL)
		if err := created.validate(); err != nil {
			return nil, err
		}
		return created, nil
	default:
		var subj subject
		if hasData {
			// Only the id is read from unhandled payloads; a non-object data
			// field leaves it empty.
			if err := json.Unmarshal(env.Data, &subj); err != nil {
				subj = subject{}
			}
		}
		return Unhandled{
			Type:   eventType,
			DataID: strings.TrimSpace(subj.ID),
			Data:   append(json.RawMessage(nil), env.Data...),
		}, nil
	}
}

var (
	_ Event = UserCreated{}
	_ Event = Unhandled{}
)
