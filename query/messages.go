package query

import (
	"strings"
)

const (
	TypeGetUserByExternalID = "identity_sync.query.user.by_external_id"
	TypeGetDelivery         = "identity_sync.query.delivery.get"
)

type GetUserByExternalIDMessage struct {
	ExternalID string
}

func (GetUserByExternalIDMessage) Type() string { return TypeGetUserByExternalID }

func (m GetUserByExternalIDMessage) Validate() error {
	if strings.TrimSpace(m.ExternalID) == "" {
		return queryValidationError("external_id", "external id is required")
	}
	return nil
}

type GetDeliveryMessage struct {
	ProviderID string
	DeliveryID string
}

func (GetDeliveryMessage) Type() string { return TypeGetDelivery }

func (m GetDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.ProviderID) == "" {
		return queryValidationError("provider_id", "provider id is required")
	}
	if strings.TrimSpace(m.DeliveryID) == "" {
		return queryValidationError("delivery_id", "delivery id is required")
	}
	return nil
}
