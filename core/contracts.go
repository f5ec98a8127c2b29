package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// InboundRequest is a transport-neutral webhook delivery. Body holds the raw
// wire bytes the signature was computed over.
type InboundRequest struct {
	ProviderID string
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// Header returns the trimmed value of key using case-insensitive matching.
func (r InboundRequest) Header(key string) string {
	return HeaderValue(r.Headers, key)
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type User struct {
	ID         string
	Email      string
	ExternalID string
	Name       string
	AvatarURL  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CreateUserInput struct {
	Email      string
	ExternalID string
	Name       string
	AvatarURL  string
}

func (in CreateUserInput) Validate() error {
	if strings.TrimSpace(in.ExternalID) == "" {
		return BadInput("core: external id is required", nil)
	}
	if strings.TrimSpace(in.Email) == "" {
		return BadInput("core: email is required", map[string]any{"external_id": in.ExternalID})
	}
	return nil
}

type UserStore interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
}

type UserReader interface {
	GetByExternalID(ctx context.Context, externalID string) (User, error)
}

// UserRegistered is published after a user has been mirrored.
type UserRegistered struct {
	Event      string    `json:"event"`
	Version    int       `json:"version"`
	UserID     string    `json:"user_id"`
	ExternalID string    `json:"external_id"`
	Email      string    `json:"email"`
	TS         time.Time `json:"ts"`
}

const (
	UserRegisteredEvent   = "user_registered"
	UserRegisteredVersion = 1
)

func NewUserRegistered(user User, now time.Time) UserRegistered {
	return UserRegistered{
		Event:      UserRegisteredEvent,
		Version:    UserRegisteredVersion,
		UserID:     user.ID,
		ExternalID: user.ExternalID,
		Email:      user.Email,
		TS:         now.UTC(),
	}
}

type UserEventPublisher interface {
	PublishUserRegistered(ctx context.Context, event UserRegistered) error
}

type NopUserEventPublisher struct{}

func (NopUserEventPublisher) PublishUserRegistered(context.Context, UserRegistered) error {
	return nil
}

func HeaderValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func TrimAny(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

var _ UserEventPublisher = NopUserEventPublisher{}
