package webhooks

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/goliatone/go-identity-sync/core"
)

var testSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("super-secret-signing-key"))

func newTestVerifier(t *testing.T, now time.Time) *SvixVerifier {
	t.Helper()
	verifier, err := NewSvixVerifier(testSecret, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return verifier
}

func signedRequest(verifier *SvixVerifier, msgID string, sentAt time.Time, body []byte) core.InboundRequest {
	return core.InboundRequest{
		ProviderID: "clerk",
		Body:       body,
		Headers: map[string]string{
			"Svix-Id":        msgID,
			"Svix-Timestamp": strconv.FormatInt(sentAt.Unix(), 10),
			"Svix-Signature": verifier.Sign(msgID, sentAt, body),
		},
	}
}

func TestSvixVerifier_AcceptsValidSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	verifier := newTestVerifier(t, now)
	body := []byte(`{"type":"user.created"}`)

	req := signedRequest(verifier, "msg_1", now.Add(-time.Minute), body)
	if err := verifier.Verify(context.Background(), req); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestSvixVerifier_AcceptsPublishedSvixVector(t *testing.T) {
	sentAt := time.Unix(1614265330, 0).UTC()
	verifier, err := NewSvixVerifier(
		"whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw",
		WithClock(func() time.Time { return sentAt }),
	)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	req := core.InboundRequest{
		ProviderID: "clerk",
		Body:       []byte(`{"test": 2432232314}`),
		Headers: map[string]string{
			"svix-id":        "msg_p5jXN8AQM9LWM0D4loKWxJek",
			"svix-timestamp": "1614265330",
			"svix-signature": "v1,g0hM9SsE+OTPJTGt/tmIKtSyZlE3uFJELVlNIOLJ1OE=",
		},
	}
	if err := verifier.Verify(context.Background(), req); err != nil {
		t.Fatalf("expected published vector to verify, got %v", err)
	}

	req.Headers["svix-id"] = "msg_other"
	if err := verifier.Verify(context.Background(), req); !errors.Is(err, ErrNoMatchingSignature) {
		t.Fatalf("expected changed message id to break the vector, got %v", err)
	}
}

func TestSvixVerifier_AcceptsAnyMatchingEntry(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	verifier := newTestVerifier(t, now)
	body := []byte(`{}`)
	req := signedRequest(verifier, "msg_2", now, body)
	req.Headers["Svix-Signature"] = "v2,ignored v1,bm90LWl0 " + req.Headers["Svix-Signature"]

	if err := verifier.Verify(context.Background(), req); err != nil {
		t.Fatalf("expected rotated signature list to verify, got %v", err)
	}
}

func TestSvixVerifier_RejectsTamperedBody(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	verifier := newTestVerifier(t, now)
	req := signedRequest(verifier, "msg_3", now, []byte(`{"a":1}`))
	req.Body = []byte(`{"a": 1}`)

	err := verifier.Verify(context.Background(), req)
	if err == nil {
		t.Fatalf("expected whitespace change to break the signature")
	}
	if core.StatusCode(err) != http.StatusBadRequest || !core.HasTextCode(err, core.ErrorSignatureInvalid) {
		t.Fatalf("expected 400 signature error, got %v", err)
	}
}

func TestSvixVerifier_RejectsOtherSecret(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	signer, err := NewSvixVerifier(base64.StdEncoding.EncodeToString([]byte("other")))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	req := signedRequest(signer, "msg_4", now, []byte(`{}`))
	if err := newTestVerifier(t, now).Verify(context.Background(), req); err == nil {
		t.Fatalf("expected signature from another secret to fail")
	}
}

func TestSvixVerifier_TimestampTolerance(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	verifier := newTestVerifier(t, now)
	body := []byte(`{}`)

	cases := map[string]struct {
		sentAt time.Time
		want   error
	}{
		"too old": {sentAt: now.Add(-6 * time.Minute), want: ErrTimestampTooOld},
		"too new": {sentAt: now.Add(6 * time.Minute), want: ErrTimestampTooNew},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := signedRequest(verifier, "msg_5", tc.sentAt, body)
			err := verifier.Verify(context.Background(), req)
			if err == nil {
				t.Fatalf("expected tolerance failure")
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSvixVerifier_RejectsMalformedTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	verifier := newTestVerifier(t, now)
	req := signedRequest(verifier, "msg_6", now, []byte(`{}`))
	req.Headers["Svix-Timestamp"] = "yesterday"

	if err := verifier.Verify(context.Background(), req); !errors.Is(err, ErrInvalidTimestamp) {
		t.Fatalf("expected invalid timestamp, got %v", err)
	}
}

func TestSvixVerifier_MissingHeaders(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	verifier := newTestVerifier(t, now)
	for _, header := range []string{"Svix-Id", "Svix-Timestamp", "Svix-Signature"} {
		req := signedRequest(verifier, "msg_7", now, []byte(`{}`))
		delete(req.Headers, header)
		err := verifier.Verify(context.Background(), req)
		if !core.HasTextCode(err, core.ErrorMissingHeaders) {
			t.Fatalf("expected missing headers error without %s, got %v", header, err)
		}
	}
}

func TestNewSvixVerifier_RejectsBadSecrets(t *testing.T) {
	for _, secret := range []string{"", "whsec_", "whsec_***not-base64***"} {
		if _, err := NewSvixVerifier(secret); err == nil || !core.HasTextCode(err, core.ErrorConfigInvalid) {
			t.Fatalf("expected config error for %q, got %v", secret, err)
		}
	}
}

func TestClerkWebhookTemplate_VerifyAndExtract(t *testing.T) {
	now := time.Now().UTC()
	template, err := NewClerkWebhookTemplate(testSecret)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if template.ProviderID != core.DefaultProviderID {
		t.Fatalf("unexpected provider id %q", template.ProviderID)
	}
	signer := template.Verifier.(*SvixVerifier)
	req := signedRequest(signer, "msg_8", now, []byte(`{}`))
	if err := template.Verifier.Verify(context.Background(), req); err != nil {
		t.Fatalf("verify: %v", err)
	}
	deliveryID, err := template.Extractor(req)
	if err != nil || deliveryID != "msg_8" {
		t.Fatalf("expected svix id as delivery id, got %q %v", deliveryID, err)
	}
}
