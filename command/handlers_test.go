package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-identity-sync/core"
)

func TestCreateUserCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	store := &stubUserStore{
		createFn: func(_ context.Context, in core.CreateUserInput) (core.User, error) {
			return core.User{ID: "usr_1", Email: in.Email, ExternalID: in.ExternalID, Name: in.Name}, nil
		},
	}
	cmd := NewCreateUserCommand(store)
	collector := gocmd.NewResult[core.User]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, CreateUserMessage{Input: core.CreateUserInput{
		Email:      "a@x.com",
		ExternalID: "u_1",
		Name:       "A B",
		AvatarURL:  "img",
	}})
	if err != nil {
		t.Fatalf("execute create user: %v", err)
	}
	if len(store.calls) != 1 {
		t.Fatalf("expected exactly one create call, got %d", len(store.calls))
	}
	if store.calls[0].AvatarURL != "img" {
		t.Fatalf("unexpected input %#v", store.calls[0])
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.ID != "usr_1" || result.ExternalID != "u_1" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestCreateUserCommand_ExecuteWithoutCollector(t *testing.T) {
	store := &stubUserStore{}
	cmd := NewCreateUserCommand(store)
	err := cmd.Execute(context.Background(), CreateUserMessage{Input: core.CreateUserInput{
		Email:      "a@x.com",
		ExternalID: "u_1",
	}})
	if err != nil {
		t.Fatalf("execute create user: %v", err)
	}
	if len(store.calls) != 1 {
		t.Fatalf("expected one create call, got %d", len(store.calls))
	}
}

func TestCreateUserCommand_PropagatesStoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := &stubUserStore{
		createFn: func(context.Context, core.CreateUserInput) (core.User, error) {
			return core.User{}, storeErr
		},
	}
	cmd := NewCreateUserCommand(store)
	err := cmd.Execute(context.Background(), CreateUserMessage{Input: core.CreateUserInput{
		Email:      "a@x.com",
		ExternalID: "u_1",
	}})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(store.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(store.calls))
	}
}

func TestCreateUserCommand_InvalidMessageSkipsStore(t *testing.T) {
	cases := map[string]core.CreateUserInput{
		"missing external id": {Email: "a@x.com"},
		"missing email":       {ExternalID: "u_1"},
		"blank email":         {ExternalID: "u_1", Email: "  "},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			store := &stubUserStore{}
			err := NewCreateUserCommand(store).Execute(context.Background(), CreateUserMessage{Input: input})
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if len(store.calls) != 0 {
				t.Fatalf("expected no store calls")
			}
		})
	}
}

type stubUserStore struct {
	createFn func(ctx context.Context, in core.CreateUserInput) (core.User, error)
	calls    []core.CreateUserInput
}

func (s *stubUserStore) CreateUser(ctx context.Context, in core.CreateUserInput) (core.User, error) {
	s.calls = append(s.calls, in)
	if s.createFn != nil {
		return s.createFn(ctx, in)
	}
	return core.User{ExternalID: in.ExternalID, Email: in.Email}, nil
}
