package sqlstore

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
	"github.com/goliatone/go-identity-sync/webhooks"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WebhookDeliveryStore is the persistent webhooks.DeliveryLedger. Claims
// are optimistic: a state change only applies while status and attempts
// still match what was read.
type WebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
	now  func() time.Time
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &WebhookDeliveryStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, core.BadInput("sqlstore: provider id and delivery id are required", nil)
	}
	if lease <= 0 {
		lease = webhooks.DefaultClaimLease
	}

	now := s.currentTime()
	next := now.Add(lease)
	record := &webhookDeliveryRecord{
		ID:            uuid.NewString(),
		ProviderID:    providerID,
		DeliveryID:    deliveryID,
		Status:        webhooks.DeliveryStatusProcessing,
		Attempts:      1,
		NextAttemptAt: &next,
		Payload:       append([]byte(nil), payload...),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err == nil {
		return webhookDeliveryToDomain(record), true, nil
	} else if !isUniqueViolation(err) {
		return webhooks.DeliveryRecord{}, false, err
	}

	existing, err := s.find(ctx, providerID, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	switch existing.Status {
	case webhooks.DeliveryStatusProcessed:
		return webhookDeliveryToDomain(existing), false, nil
	case webhooks.DeliveryStatusProcessing, webhooks.DeliveryStatusRetryReady:
		if existing.NextAttemptAt != nil && now.Before(existing.NextAttemptAt.UTC()) {
			return webhookDeliveryToDomain(existing), false, nil
		}
	}

	result, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = ?", existing.Attempts+1).
		Set("next_attempt_at = ?", next).
		Set("updated_at = ?", now).
		Where("id = ?", existing.ID).
		Where("status = ?", existing.Status).
		Where("attempts = ?", existing.Attempts).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if affected, _ := result.RowsAffected(); affected != 1 {
		// Another replica claimed it between the read and the update.
		current, getErr := s.find(ctx, providerID, deliveryID)
		if getErr != nil {
			return webhooks.DeliveryRecord{}, false, getErr
		}
		return webhookDeliveryToDomain(current), false, nil
	}

	existing.Status = webhooks.DeliveryStatusProcessing
	existing.Attempts++
	existing.NextAttemptAt = &next
	existing.UpdatedAt = now
	return webhookDeliveryToDomain(existing), true, nil
}

func (s *WebhookDeliveryStore) Get(
	ctx context.Context,
	providerID string,
	deliveryID string,
) (webhooks.DeliveryRecord, error) {
	if s == nil || s.repo == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record, err := s.find(ctx, strings.TrimSpace(providerID), strings.TrimSpace(deliveryID))
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	return webhookDeliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	providerID, deliveryID, attempt, err := parseClaim(claimID)
	if err != nil {
		return err
	}
	if _, err := s.find(ctx, providerID, deliveryID); err != nil {
		return err
	}
	_, err = s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("next_attempt_at = NULL").
		Set("last_error = ?", "").
		Set("updated_at = ?", s.currentTime()).
		Where("provider_id = ?", providerID).
		Where("delivery_id = ?", deliveryID).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Where("attempts = ?", attempt).
		Exec(ctx)
	return err
}

func (s *WebhookDeliveryStore) Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	providerID, deliveryID, attempt, err := parseClaim(claimID)
	if err != nil {
		return err
	}
	if _, err := s.find(ctx, providerID, deliveryID); err != nil {
		return err
	}
	now := s.currentTime()
	if nextAttemptAt.IsZero() {
		nextAttemptAt = now
	}
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	_, err = s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusRetryReady).
		Set("next_attempt_at = ?", nextAttemptAt.UTC()).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", now).
		Where("provider_id = ?", providerID).
		Where("delivery_id = ?", deliveryID).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Where("attempts = ?", attempt).
		Exec(ctx)
	return err
}

func (s *WebhookDeliveryStore) find(ctx context.Context, providerID string, deliveryID string) (*webhookDeliveryRecord, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("provider_id", "=", providerID),
		repository.SelectBy("delivery_id", "=", deliveryID),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.NewError(
			"sqlstore: webhook delivery not found",
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			core.ErrorDeliveryNotFound,
			map[string]any{"provider_id": providerID, "delivery_id": deliveryID},
		)
	}
	return records[0], nil
}

func (s *WebhookDeliveryStore) currentTime() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func parseClaim(claimID string) (string, string, int, error) {
	key, attempt, err := webhooks.ParseClaimID(claimID)
	if err != nil {
		return "", "", 0, err
	}
	providerID, deliveryID, ok := strings.Cut(key, ":")
	if !ok || providerID == "" || deliveryID == "" {
		return "", "", 0, core.BadInput("sqlstore: invalid claim id", map[string]any{"claim_id": claimID})
	}
	return providerID, deliveryID, attempt, nil
}

func webhookDeliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         record.ID,
		ClaimID:    webhooks.ClaimID(webhooks.LedgerKey(record.ProviderID, record.DeliveryID), record.Attempts),
		ProviderID: record.ProviderID,
		DeliveryID: record.DeliveryID,
		Status:     record.Status,
		Attempts:   record.Attempts,
		LastError:  record.LastError,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		value := record.NextAttemptAt.UTC()
		result.NextAttemptAt = &value
	}
	return result
}
