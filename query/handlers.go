package query

import (
	"context"

	"github.com/goliatone/go-identity-sync/core"
	"github.com/goliatone/go-identity-sync/webhooks"
)

type DeliveryReader interface {
	Get(ctx context.Context, providerID string, deliveryID string) (webhooks.DeliveryRecord, error)
}

type GetUserByExternalIDQuery struct {
	reader core.UserReader
}

func NewGetUserByExternalIDQuery(reader core.UserReader) *GetUserByExternalIDQuery {
	return &GetUserByExternalIDQuery{reader: reader}
}

func (q *GetUserByExternalIDQuery) Query(ctx context.Context, msg GetUserByExternalIDMessage) (core.User, error) {
	if q == nil || q.reader == nil {
		return core.User{}, queryDependencyError("query: user reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.User{}, err
	}
	return q.reader.GetByExternalID(ctx, msg.ExternalID)
}

// GetDeliveryQuery reads a delivery ledger entry, mainly for operators
// checking whether a svix-id was processed.
type GetDeliveryQuery struct {
	reader DeliveryReader
}

func NewGetDeliveryQuery(reader DeliveryReader) *GetDeliveryQuery {
	return &GetDeliveryQuery{reader: reader}
}

func (q *GetDeliveryQuery) Query(ctx context.Context, msg GetDeliveryMessage) (webhooks.DeliveryRecord, error) {
	if q == nil || q.reader == nil {
		return webhooks.DeliveryRecord{}, queryDependencyError("query: delivery reader is required")
	}
	if err := msg.Validate(); err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	return q.reader.Get(ctx, msg.ProviderID, msg.DeliveryID)
}
