package usersync

import (
	"context"
	"net/http"
	"time"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/command"
	"github.com/goliatone/go-identity-sync/core"
	"github.com/goliatone/go-identity-sync/events"
	"github.com/goliatone/go-identity-sync/query"
	"github.com/goliatone/go-identity-sync/webhooks"
)

// DefaultPublishTimeout bounds the best-effort event publish so a stalled
// broker cannot hold the webhook response past the sender's timeout.
const DefaultPublishTimeout = 2 * time.Second

type Option func(*Handler)

// WithUserReader enables lookups used to classify duplicate deliveries.
func WithUserReader(reader core.UserReader) Option {
	return func(h *Handler) {
		if reader != nil {
			h.lookup = query.NewGetUserByExternalIDQuery(reader)
		}
	}
}

// WithIdempotentDuplicates makes a uniqueness violation on the same external
// id succeed instead of failing with 500. It needs WithUserReader.
func WithIdempotentDuplicates(enabled bool) Option {
	return func(h *Handler) {
		h.idempotentDuplicates = enabled
	}
}

func WithPublisher(publisher core.UserEventPublisher) Option {
	return func(h *Handler) {
		if publisher != nil {
			h.publisher = publisher
		}
	}
}

func WithPublishTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		if timeout > 0 {
			h.publishTimeout = timeout
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(h *Handler) {
		h.observer = core.NewObserver(logger, nil)
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

type Handler struct {
	create               gocmd.Commander[command.CreateUserMessage]
	lookup               gocmd.Querier[query.GetUserByExternalIDMessage, core.User]
	publisher            core.UserEventPublisher
	observer             core.Observer
	idempotentDuplicates bool
	publishTimeout       time.Duration
	now                  func() time.Time
}

func NewHandler(store core.UserStore, opts ...Option) *Handler {
	h := &Handler{
		create:         command.NewCreateUserCommand(store),
		publisher:      core.NopUserEventPublisher{},
		observer:       core.NewObserver(nil, nil),
		publishTimeout: DefaultPublishTimeout,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *Handler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	event, err := events.Decode(req.Body)
	if err != nil {
		return core.InboundResult{StatusCode: http.StatusBadRequest}, err
	}

	created, ok := event.(events.UserCreated)
	if !ok {
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata: map[string]any{
				"event_type": event.EventType(),
				"ignored":    true,
			},
		}, nil
	}
	return h.createUser(ctx, created)
}

func (h *Handler) createUser(ctx context.Context, event events.UserCreated) (core.InboundResult, error) {
	input := Fields(event)
	metadata := map[string]any{
		"event_type":  event.EventType(),
		"external_id": input.ExternalID,
	}

	collector := gocmd.NewResult[core.User]()
	err := h.create.Execute(gocmd.ContextWithResult(ctx, collector), command.CreateUserMessage{Input: input})
	if err != nil {
		if h.isSameIdentity(ctx, err, input) {
			metadata["duplicate"] = true
			h.observer.Info(ctx, "user already mirrored", metadata)
			return core.InboundResult{Accepted: true, StatusCode: http.StatusOK, Metadata: metadata}, nil
		}
		if core.HasTextCode(err, core.ErrorPayloadInvalid) {
			return core.InboundResult{StatusCode: http.StatusBadRequest, Metadata: metadata}, err
		}
		return core.InboundResult{StatusCode: http.StatusInternalServerError, Metadata: metadata}, core.WrapError(
			err,
			goerrors.CategoryInternal,
			"error creating user",
			http.StatusInternalServerError,
			core.ErrorPersistenceFailed,
			metadata,
		)
	}

	user, _ := collector.Load()
	if user.ID != "" {
		metadata["user_id"] = user.ID
	}
	h.publish(ctx, user, input, metadata)
	return core.InboundResult{Accepted: true, StatusCode: http.StatusOK, Metadata: metadata}, nil
}

// isSameIdentity reports whether err is a uniqueness violation caused by the
// same external id being mirrored before. An email held by another identity
// is not.
func (h *Handler) isSameIdentity(ctx context.Context, err error, input core.CreateUserInput) bool {
	if !h.idempotentDuplicates || h.lookup == nil || !core.IsUserExists(err) {
		return false
	}
	existing, lookupErr := h.lookup.Query(ctx, query.GetUserByExternalIDMessage{ExternalID: input.ExternalID})
	if lookupErr != nil {
		return false
	}
	return existing.ExternalID == input.ExternalID
}

func (h *Handler) publish(ctx context.Context, user core.User, input core.CreateUserInput, metadata map[string]any) {
	if user.ExternalID == "" {
		user.ExternalID = input.ExternalID
	}
	if user.Email == "" {
		user.Email = input.Email
	}
	publishCtx, cancel := context.WithTimeout(ctx, h.publishTimeout)
	defer cancel()
	if err := h.publisher.PublishUserRegistered(publishCtx, core.NewUserRegistered(user, h.now())); err != nil {
		fields := make(map[string]any, len(metadata)+1)
		for key, value := range metadata {
			fields[key] = value
		}
		fields["error"] = err.Error()
		h.observer.Warn(ctx, "publish user_registered failed", fields)
	}
}

// Fields derives the store input from a user.created payload.
func Fields(event events.UserCreated) core.CreateUserInput {
	return core.CreateUserInput{
		Email:      event.Email(),
		ExternalID: event.ID,
		Name:       event.DisplayName(),
		AvatarURL:  event.ImageURL,
	}
}

var _ webhooks.Handler = (*Handler)(nil)
