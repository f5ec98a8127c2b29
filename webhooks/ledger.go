package webhooks

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
)

// MemoryDeliveryLedger is a process-local DeliveryLedger. It does not survive
// restarts and is not shared between replicas.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	records map[string]DeliveryRecord
	Now     func() time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		records: map[string]DeliveryRecord{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return DeliveryRecord{}, false, core.BadInput("webhooks: provider id and delivery id are required", nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.records == nil {
		l.records = map[string]DeliveryRecord{}
	}

	key := LedgerKey(providerID, deliveryID)
	now := l.currentTime()
	if lease <= 0 {
		lease = DefaultClaimLease
	}

	record, ok := l.records[key]
	if !ok {
		record = DeliveryRecord{
			ID:         key,
			ProviderID: providerID,
			DeliveryID: deliveryID,
			CreatedAt:  now,
		}
	}
	switch record.Status {
	case DeliveryStatusProcessed:
		return record, false, nil
	case DeliveryStatusProcessing, DeliveryStatusRetryReady:
		if record.NextAttemptAt != nil && now.Before(record.NextAttemptAt.UTC()) {
			return record, false, nil
		}
	}

	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.ClaimID = ClaimID(key, record.Attempts)
	next := now.Add(lease)
	record.NextAttemptAt = &next
	record.UpdatedAt = now
	l.records[key] = record
	return record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, providerID string, deliveryID string) (DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[LedgerKey(providerID, deliveryID)]
	if !ok {
		return DeliveryRecord{}, errDeliveryNotFound(providerID, deliveryID)
	}
	return cloneRecord(record), nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	key, attempt, err := ParseClaimID(claimID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[key]
	if !ok {
		return errDeliveryNotFound("", key)
	}
	if record.Status != DeliveryStatusProcessing || record.Attempts != attempt {
		return nil
	}
	record.Status = DeliveryStatusProcessed
	record.NextAttemptAt = nil
	record.LastError = ""
	record.UpdatedAt = l.currentTime()
	l.records[key] = record
	return nil
}

func (l *MemoryDeliveryLedger) Fail(_ context.Context, claimID string, cause error, nextAttemptAt time.Time) error {
	key, attempt, err := ParseClaimID(claimID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[key]
	if !ok {
		return errDeliveryNotFound("", key)
	}
	if record.Status != DeliveryStatusProcessing || record.Attempts != attempt {
		return nil
	}
	now := l.currentTime()
	if nextAttemptAt.IsZero() {
		nextAttemptAt = now
	}
	record.Status = DeliveryStatusRetryReady
	record.NextAttemptAt = &nextAttemptAt
	if cause != nil {
		record.LastError = cause.Error()
	}
	record.UpdatedAt = now
	l.records[key] = record
	return nil
}

func (l *MemoryDeliveryLedger) Snapshot() []DeliveryRecord {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]DeliveryRecord, 0, len(l.records))
	for _, record := range l.records {
		out = append(out, cloneRecord(record))
	}
	return out
}

func (l *MemoryDeliveryLedger) currentTime() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func LedgerKey(providerID string, deliveryID string) string {
	return strings.TrimSpace(providerID) + ":" + strings.TrimSpace(deliveryID)
}

// ClaimID encodes the ledger key and attempt number as "<key>:<attempt>".
func ClaimID(key string, attempt int) string {
	return key + ":" + strconv.Itoa(attempt)
}

func ParseClaimID(claimID string) (string, int, error) {
	parts := strings.Split(strings.TrimSpace(claimID), ":")
	if len(parts) < 3 {
		return "", 0, core.BadInput("webhooks: invalid claim id", map[string]any{"claim_id": claimID})
	}
	attempt, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || attempt <= 0 {
		return "", 0, core.BadInput("webhooks: invalid claim id", map[string]any{"claim_id": claimID})
	}
	return strings.Join(parts[:len(parts)-1], ":"), attempt, nil
}

func cloneRecord(record DeliveryRecord) DeliveryRecord {
	if record.NextAttemptAt != nil {
		next := *record.NextAttemptAt
		record.NextAttemptAt = &next
	}
	return record
}

func errDeliveryNotFound(providerID string, deliveryID string) error {
	metadata := map[string]any{"delivery_id": deliveryID}
	if providerID != "" {
		metadata["provider_id"] = providerID
	}
	return core.NewError(
		"webhooks: delivery not found",
		goerrors.CategoryNotFound,
		http.StatusNotFound,
		core.ErrorDeliveryNotFound,
		metadata,
	)
}

var _ DeliveryLedger = (*MemoryDeliveryLedger)(nil)
