package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-identity-sync/core"
	"github.com/goliatone/go-identity-sync/webhooks"
)

var (
	_ gocmd.Querier[GetUserByExternalIDMessage, core.User]       = (*GetUserByExternalIDQuery)(nil)
	_ gocmd.Querier[GetDeliveryMessage, webhooks.DeliveryRecord] = (*GetDeliveryQuery)(nil)
	_ DeliveryReader                                             = (*webhooks.MemoryDeliveryLedger)(nil)
)
