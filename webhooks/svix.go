package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
	svix "github.com/svix/svix-webhooks/go"
)

const (
	HeaderSvixID        = "svix-id"
	HeaderSvixTimestamp = "svix-timestamp"
	HeaderSvixSignature = "svix-signature"

	svixSecretPrefix = "whsec_"

	DefaultSvixTolerance = 5 * time.Minute
)

var (
	ErrMissingHeaders      = errors.New("webhooks: svix-id, svix-timestamp and svix-signature headers are required")
	ErrInvalidTimestamp    = errors.New("webhooks: invalid signature timestamp")
	ErrTimestampTooOld     = errors.New("webhooks: message timestamp too old")
	ErrTimestampTooNew     = errors.New("webhooks: message timestamp too new")
	ErrNoMatchingSignature = errors.New("webhooks: no matching signature found")
)

// SvixVerifier checks Svix signatures with the official svix webhook
// library. The timestamp window is enforced here so the clock and tolerance
// stay configurable.
type SvixVerifier struct {
	webhook   *svix.Webhook
	Tolerance time.Duration
	Now       func() time.Time
}

type SvixOption func(*SvixVerifier)

func WithTolerance(tolerance time.Duration) SvixOption {
	return func(v *SvixVerifier) {
		if tolerance > 0 {
			v.Tolerance = tolerance
		}
	}
}

func WithClock(now func() time.Time) SvixOption {
	return func(v *SvixVerifier) {
		if now != nil {
			v.Now = now
		}
	}
}

// NewSvixVerifier decodes the signing secret once. The whsec_ prefix is optional.
func NewSvixVerifier(secret string, opts ...SvixOption) (*SvixVerifier, error) {
	webhook, err := newSvixWebhook(secret)
	if err != nil {
		return nil, err
	}
	verifier := &SvixVerifier{
		webhook:   webhook,
		Tolerance: DefaultSvixTolerance,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier, nil
}

func (v *SvixVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	if v == nil || v.webhook == nil {
		return core.Internal("webhooks: svix verifier is not configured", nil)
	}
	msgID := req.Header(HeaderSvixID)
	timestamp := req.Header(HeaderSvixTimestamp)
	signatures := req.Header(HeaderSvixSignature)
	if msgID == "" || timestamp == "" || signatures == "" {
		return signatureError(ErrMissingHeaders, nil)
	}

	sentAt, err := parseSvixTimestamp(timestamp)
	if err != nil {
		return signatureError(err, map[string]any{"svix_id": msgID})
	}
	if err := v.checkTolerance(sentAt); err != nil {
		return signatureError(err, map[string]any{"svix_id": msgID, "svix_timestamp": timestamp})
	}

	headers := http.Header{}
	headers.Set(HeaderSvixID, msgID)
	headers.Set(HeaderSvixTimestamp, strings.TrimSpace(timestamp))
	headers.Set(HeaderSvixSignature, signatures)
	if err := v.webhook.VerifyIgnoringTimestamp(req.Body, headers); err != nil {
		return signatureError(fmt.Errorf("%w: %w", ErrNoMatchingSignature, err), map[string]any{"svix_id": msgID})
	}
	return nil
}

// Sign returns a "v1,<base64>" signature entry for the given message.
func (v *SvixVerifier) Sign(msgID string, sentAt time.Time, body []byte) string {
	if v == nil || v.webhook == nil {
		return ""
	}
	signature, err := v.webhook.Sign(msgID, sentAt, body)
	if err != nil {
		return ""
	}
	return signature
}

func (v *SvixVerifier) checkTolerance(sentAt time.Time) error {
	now := time.Now().UTC()
	if v.Now != nil {
		now = v.Now().UTC()
	}
	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultSvixTolerance
	}
	if now.Sub(sentAt) > tolerance {
		return ErrTimestampTooOld
	}
	if sentAt.Sub(now) > tolerance {
		return ErrTimestampTooNew
	}
	return nil
}

func parseSvixTimestamp(value string) (time.Time, error) {
	seconds, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}
	return time.Unix(seconds, 0).UTC(), nil
}

func newSvixWebhook(secret string) (*svix.Webhook, error) {
	trimmed := strings.TrimSpace(secret)
	if strings.TrimPrefix(trimmed, svixSecretPrefix) == "" {
		return nil, core.NewError(
			"webhooks: signing secret is required",
			goerrors.CategoryValidation,
			http.StatusInternalServerError,
			core.ErrorConfigInvalid,
			nil,
		)
	}
	webhook, err := svix.NewWebhook(trimmed)
	if err != nil {
		return nil, core.WrapError(
			err,
			goerrors.CategoryValidation,
			"webhooks: signing secret is not valid base64",
			http.StatusInternalServerError,
			core.ErrorConfigInvalid,
			nil,
		)
	}
	return webhook, nil
}

func signatureError(cause error, metadata map[string]any) error {
	textCode := core.ErrorSignatureInvalid
	if errors.Is(cause, ErrMissingHeaders) {
		textCode = core.ErrorMissingHeaders
	}
	return core.WrapError(
		cause,
		goerrors.CategoryAuth,
		"webhooks: request verification failed",
		http.StatusBadRequest,
		textCode,
		metadata,
	)
}

var _ Verifier = (*SvixVerifier)(nil)
