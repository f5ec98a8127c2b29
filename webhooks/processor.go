package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
)

const (
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"

	DefaultClaimLease = 30 * time.Second
)

type DeliveryRecord struct {
	ID            string
	ClaimID       string
	ProviderID    string
	DeliveryID    string
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger records which deliveries were already handled. Claim
// returns claimed=false when the delivery is processed or still leased.
type DeliveryLedger interface {
	Claim(
		ctx context.Context,
		providerID string,
		deliveryID string,
		payload []byte,
		lease time.Duration,
	) (DeliveryRecord, bool, error)
	Get(ctx context.Context, providerID string, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time) error
}

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

type DeliveryIDExtractor func(req core.InboundRequest) (string, error)

type Handler interface {
	Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

type HandlerFunc func(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)

func (fn HandlerFunc) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	return fn(ctx, req)
}

// Processor verifies a delivery and hands it to Handler. Ledger is optional;
// without one every verified delivery is dispatched.
type Processor struct {
	Verifier   Verifier
	Ledger     DeliveryLedger
	Handler    Handler
	ExtractID  DeliveryIDExtractor
	ClaimLease time.Duration
	Now        func() time.Time
}

func NewProcessor(verifier Verifier, ledger DeliveryLedger, handler Handler) *Processor {
	return &Processor{
		Verifier:   verifier,
		Ledger:     ledger,
		Handler:    handler,
		ExtractID:  SvixDeliveryIDExtractor,
		ClaimLease: DefaultClaimLease,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Handler == nil {
		return core.InboundResult{}, core.Internal("webhooks: processor requires a handler", nil)
	}
	if p.Verifier == nil {
		return core.InboundResult{}, core.NewError(
			"webhook secret not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			core.ErrorConfigInvalid,
			nil,
		)
	}

	providerID := strings.TrimSpace(req.ProviderID)
	if providerID == "" {
		providerID = core.DefaultProviderID
	}
	req.ProviderID = providerID

	if err := p.Verifier.Verify(ctx, req); err != nil {
		return core.InboundResult{
			Accepted:   false,
			StatusCode: core.StatusCode(err),
			Metadata: map[string]any{
				"provider_id": providerID,
				"rejected":    true,
			},
		}, err
	}

	if p.Ledger == nil {
		return p.dispatch(ctx, req, providerID, "")
	}

	extractor := p.ExtractID
	if extractor == nil {
		extractor = SvixDeliveryIDExtractor
	}
	deliveryID, err := extractor(req)
	if err != nil {
		return core.InboundResult{}, err
	}

	delivery, claimed, err := p.Ledger.Claim(ctx, providerID, deliveryID, req.Body, p.claimLease())
	if err != nil {
		return core.InboundResult{}, err
	}
	if !claimed {
		if delivery.Status == DeliveryStatusProcessed {
			return core.InboundResult{
				Accepted:   true,
				StatusCode: http.StatusOK,
				Metadata: map[string]any{
					"provider_id": providerID,
					"delivery_id": delivery.DeliveryID,
					"status":      delivery.Status,
					"deduped":     true,
				},
			}, nil
		}
		return core.InboundResult{StatusCode: http.StatusConflict}, core.NewError(
			"webhooks: delivery is already being processed",
			goerrors.CategoryConflict,
			http.StatusConflict,
			core.ErrorDeliveryInFlight,
			map[string]any{"provider_id": providerID, "delivery_id": deliveryID},
		)
	}

	result, err := p.dispatch(ctx, req, providerID, deliveryID)
	if err != nil {
		// retry_ready is reclaimable right away; the sender owns the backoff.
		_ = p.Ledger.Fail(ctx, delivery.ClaimID, err, p.now())
		return result, err
	}
	if !result.Accepted || result.StatusCode >= http.StatusInternalServerError {
		retryErr := fmt.Errorf("webhooks: delivery handler returned retryable status %d", result.StatusCode)
		_ = p.Ledger.Fail(ctx, delivery.ClaimID, retryErr, p.now())
		return result, nil
	}

	if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
		return core.InboundResult{}, err
	}
	return result, nil
}

func (p *Processor) dispatch(
	ctx context.Context,
	req core.InboundRequest,
	providerID string,
	deliveryID string,
) (core.InboundResult, error) {
	result, err := p.Handler.Handle(ctx, req)
	if err != nil {
		return result, err
	}
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["provider_id"] = providerID
	if deliveryID != "" {
		result.Metadata["delivery_id"] = deliveryID
	}
	return result, nil
}

// SvixDeliveryIDExtractor uses the svix-id header, falling back to a
// delivery_id metadata entry.
func SvixDeliveryIDExtractor(req core.InboundRequest) (string, error) {
	if value := req.Header(HeaderSvixID); value != "" {
		return value, nil
	}
	if req.Metadata != nil {
		if value := core.TrimAny(req.Metadata["delivery_id"]); value != "" && value != "<nil>" {
			return value, nil
		}
	}
	return "", core.BadInput("webhooks: delivery id is required for dedupe", nil)
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return DefaultClaimLease
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}
