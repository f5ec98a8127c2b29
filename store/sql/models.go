package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         string    `bun:"id,pk"`
	Email      string    `bun:"email,notnull"`
	ExternalID string    `bun:"external_id,notnull"`
	Name       string    `bun:"name,notnull"`
	AvatarURL  *string   `bun:"avatar_url"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:identity_webhook_deliveries,alias:iwd"`

	ID            string     `bun:"id,pk"`
	ProviderID    string     `bun:"provider_id,notnull"`
	DeliveryID    string     `bun:"delivery_id,notnull"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	LastError     string     `bun:"last_error,notnull"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	Payload       []byte     `bun:"payload"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
