package sqlstore

import (
	"github.com/goliatone/go-identity-sync/core"
	"github.com/goliatone/go-identity-sync/webhooks"
)

var (
	_ core.UserStore          = (*UserStore)(nil)
	_ core.UserReader         = (*UserStore)(nil)
	_ core.UserReader         = (*CachedUserReader)(nil)
	_ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
)
