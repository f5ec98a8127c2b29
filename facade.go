package identitysync

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-identity-sync/adapters/gocommand"
	identitycommand "github.com/goliatone/go-identity-sync/command"
	"github.com/goliatone/go-identity-sync/core"
	identityquery "github.com/goliatone/go-identity-sync/query"
)

type Commands struct {
	CreateUser *identitycommand.CreateUserCommand
}

type Queries struct {
	GetUserByExternalID *identityquery.GetUserByExternalIDQuery
	GetDelivery         *identityquery.GetDeliveryQuery
}

// Facade exposes the command and query handlers for callers that mirror
// users outside the webhook path, such as backfills.
type Facade struct {
	commands Commands
	queries  Queries
}

// NewFacade requires a store; deliveries may be nil when no ledger is
// configured, in which case GetDelivery reports a dependency error.
func NewFacade(store core.UserStore, reader core.UserReader, deliveries identityquery.DeliveryReader) (*Facade, error) {
	if store == nil {
		return nil, fmt.Errorf("identitysync: user store is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("identitysync: user reader is required")
	}
	return &Facade{
		commands: Commands{
			CreateUser: identitycommand.NewCreateUserCommand(store),
		},
		queries: Queries{
			GetUserByExternalID: identityquery.NewGetUserByExternalIDQuery(reader),
			GetDelivery:         identityquery.NewGetDeliveryQuery(deliveries),
		},
	}, nil
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

// Register adds every handler to the registry and subscribes it on the
// go-command dispatcher. On error the subscriptions made so far are undone.
func (f *Facade) Register(adapter *gocommand.RegistryAdapter) ([]commanddispatcher.Subscription, error) {
	if f == nil {
		return nil, fmt.Errorf("identitysync: facade is nil")
	}
	subscriptions := make([]commanddispatcher.Subscription, 0, 3)
	undo := func() {
		for _, subscription := range subscriptions {
			subscription.Unsubscribe()
		}
	}

	subscription, err := gocommand.RegisterAndSubscribe(adapter, f.commands.CreateUser)
	if err != nil {
		return nil, err
	}
	subscriptions = append(subscriptions, subscription)

	subscription, err = gocommand.RegisterAndSubscribeQuery(adapter, f.queries.GetUserByExternalID)
	if err != nil {
		undo()
		return nil, err
	}
	subscriptions = append(subscriptions, subscription)

	subscription, err = gocommand.RegisterAndSubscribeQuery(adapter, f.queries.GetDelivery)
	if err != nil {
		undo()
		return nil, err
	}
	subscriptions = append(subscriptions, subscription)
	return subscriptions, nil
}
