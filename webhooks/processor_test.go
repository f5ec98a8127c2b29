package webhooks

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-identity-sync/core"
)

func TestProcessor_DedupesDeliveries(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	handler := &stubWebhookHandler{
		result: core.InboundResult{Accepted: true, StatusCode: http.StatusOK},
	}
	processor := NewProcessor(stubVerifier{}, ledger, handler)

	req := core.InboundRequest{
		ProviderID: "clerk",
		Headers:    map[string]string{HeaderSvixID: "msg_1"},
	}

	first, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process first webhook: %v", err)
	}
	if !first.Accepted || first.Metadata["delivery_id"] != "msg_1" {
		t.Fatalf("unexpected first result %#v", first)
	}

	second, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process duplicate webhook: %v", err)
	}
	if second.StatusCode != http.StatusOK || second.Metadata["deduped"] != true {
		t.Fatalf("expected deduped 200, got %#v", second)
	}
	if handler.calls != 1 {
		t.Fatalf("expected handler to run once, got %d", handler.calls)
	}
}

func TestProcessor_WithoutLedgerDispatchesEveryDelivery(t *testing.T) {
	handler := &stubWebhookHandler{
		result: core.InboundResult{Accepted: true, StatusCode: http.StatusOK},
	}
	processor := NewProcessor(stubVerifier{}, nil, handler)
	req := core.InboundRequest{Headers: map[string]string{HeaderSvixID: "msg_1"}}

	for i := 0; i < 2; i++ {
		result, err := processor.Process(context.Background(), req)
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		if result.Metadata["provider_id"] != core.DefaultProviderID {
			t.Fatalf("expected default provider id, got %#v", result.Metadata)
		}
	}
	if handler.calls != 2 {
		t.Fatalf("expected handler calls=2, got %d", handler.calls)
	}
}

func TestProcessor_MarksRetryReadyOnHandlerFailure(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	handler := &stubWebhookHandler{err: errors.New("temporary failure")}
	processor := NewProcessor(stubVerifier{}, ledger, handler)
	fixed := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	processor.Now = func() time.Time { return fixed }
	ledger.Now = func() time.Time { return fixed }

	req := core.InboundRequest{
		ProviderID: "clerk",
		Headers:    map[string]string{HeaderSvixID: "msg_42"},
	}
	if _, err := processor.Process(context.Background(), req); err == nil {
		t.Fatalf("expected handler failure to propagate")
	}

	record, err := ledger.Get(context.Background(), "clerk", "msg_42")
	if err != nil {
		t.Fatalf("load delivery record: %v", err)
	}
	if record.Status != DeliveryStatusRetryReady {
		t.Fatalf("expected retry-ready status, got %q", record.Status)
	}
	if record.LastError != "temporary failure" {
		t.Fatalf("expected last error to be recorded, got %q", record.LastError)
	}

	handler.err = nil
	handler.result = core.InboundResult{Accepted: true, StatusCode: http.StatusOK}
	if _, err := processor.Process(context.Background(), req); err != nil {
		t.Fatalf("expected redelivery to be reclaimed: %v", err)
	}
	record, _ = ledger.Get(context.Background(), "clerk", "msg_42")
	if record.Status != DeliveryStatusProcessed || record.Attempts != 2 {
		t.Fatalf("expected processed after second attempt, got %#v", record)
	}
}

func TestProcessor_RejectsInFlightDelivery(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	if _, claimed, err := ledger.Claim(context.Background(), "clerk", "msg_7", nil, time.Minute); err != nil || !claimed {
		t.Fatalf("seed claim: claimed=%v err=%v", claimed, err)
	}
	handler := &stubWebhookHandler{}
	processor := NewProcessor(stubVerifier{}, ledger, handler)

	result, err := processor.Process(context.Background(), core.InboundRequest{
		ProviderID: "clerk",
		Headers:    map[string]string{HeaderSvixID: "msg_7"},
	})
	if err == nil {
		t.Fatalf("expected in-flight error")
	}
	if result.StatusCode != http.StatusConflict || !core.HasTextCode(err, core.ErrorDeliveryInFlight) {
		t.Fatalf("expected 409 in-flight, got %d %v", result.StatusCode, err)
	}
	if handler.calls != 0 {
		t.Fatalf("expected handler not to run for in-flight delivery")
	}
}

func TestProcessor_RejectsInvalidSignature(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	handler := &stubWebhookHandler{}
	verifyErr := signatureError(ErrNoMatchingSignature, nil)
	processor := NewProcessor(stubVerifier{err: verifyErr}, ledger, handler)

	result, err := processor.Process(context.Background(), core.InboundRequest{
		ProviderID: "clerk",
		Headers:    map[string]string{HeaderSvixID: "msg_2"},
	})
	if err == nil {
		t.Fatalf("expected verifier error")
	}
	if result.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request status code, got %d", result.StatusCode)
	}
	if handler.calls != 0 {
		t.Fatalf("expected handler not to run when verification fails")
	}
	if len(ledger.Snapshot()) != 0 {
		t.Fatalf("expected no ledger entry for rejected delivery")
	}
}

func TestProcessor_RequiresVerifier(t *testing.T) {
	handler := &stubWebhookHandler{}
	processor := NewProcessor(nil, nil, handler)

	_, err := processor.Process(context.Background(), core.InboundRequest{})
	if err == nil {
		t.Fatalf("expected missing verifier to fail")
	}
	if core.StatusCode(err) != http.StatusInternalServerError || !core.HasTextCode(err, core.ErrorConfigInvalid) {
		t.Fatalf("expected 500 config error, got %v", err)
	}
	if handler.calls != 0 {
		t.Fatalf("expected handler not to run")
	}
}

func TestProcessor_RequiresDeliveryIDWithLedger(t *testing.T) {
	processor := NewProcessor(stubVerifier{}, NewMemoryDeliveryLedger(), &stubWebhookHandler{})
	_, err := processor.Process(context.Background(), core.InboundRequest{ProviderID: "clerk"})
	if err == nil || core.StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing delivery id, got %v", err)
	}
}

type stubVerifier struct {
	err error
}

func (v stubVerifier) Verify(context.Context, core.InboundRequest) error {
	return v.err
}

type stubWebhookHandler struct {
	result core.InboundResult
	err    error
	calls  int
}

func (h *stubWebhookHandler) Handle(context.Context, core.InboundRequest) (core.InboundResult, error) {
	h.calls++
	if h.err != nil {
		return core.InboundResult{}, h.err
	}
	return h.result, nil
}
