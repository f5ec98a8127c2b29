package inbound

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
	"github.com/goliatone/go-identity-sync/webhooks"
)

const DefaultMaxBodyBytes int64 = 1 << 20

type Processor interface {
	Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

type Option func(*WebhookHandler)

func WithProviderID(providerID string) Option {
	return func(h *WebhookHandler) {
		if providerID = strings.TrimSpace(providerID); providerID != "" {
			h.providerID = providerID
		}
	}
}

func WithMaxBodyBytes(limit int64) Option {
	return func(h *WebhookHandler) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

func WithObserver(observer core.Observer) Option {
	return func(h *WebhookHandler) {
		h.observer = observer
	}
}

// WebhookHandler is the HTTP surface for signed provider deliveries. Success
// is answered with an empty body; failures carry a short plain-text reason.
type WebhookHandler struct {
	processor    Processor
	providerID   string
	maxBodyBytes int64
	observer     core.Observer
}

func NewWebhookHandler(processor Processor, opts ...Option) *WebhookHandler {
	h := &WebhookHandler{
		processor:    processor,
		providerID:   core.DefaultProviderID,
		maxBodyBytes: DefaultMaxBodyBytes,
		observer:     core.NewObserver(nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startedAt := time.Now()
	ctx := r.Context()
	fields := map[string]any{
		"provider_id": h.providerID,
		"svix_id":     strings.TrimSpace(r.Header.Get(webhooks.HeaderSvixID)),
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if h.processor == nil {
		h.fail(ctx, w, startedAt, inboundError(
			messageNotConfigured,
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			core.ErrorConfigInvalid,
			nil,
		), fields)
		return
	}
	if !hasSvixHeaders(r.Header) {
		h.fail(ctx, w, startedAt, inboundError(
			messageMissingHeaders,
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			core.ErrorMissingHeaders,
			nil,
		), fields)
		return
	}

	body, err := readBody(w, r, h.maxBodyBytes)
	if err != nil {
		h.fail(ctx, w, startedAt, err, fields)
		return
	}

	result, err := h.processor.Process(ctx, core.InboundRequest{
		ProviderID: h.providerID,
		Headers:    flattenHeaders(r.Header),
		Body:       body,
	})
	for key, value := range result.Metadata {
		fields[key] = value
	}
	if err != nil {
		h.fail(ctx, w, startedAt, err, fields)
		return
	}

	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	h.observer.ObserveOutcome(ctx, startedAt, successOutcome(result), nil, fields)
	w.WriteHeader(status)
}

func (h *WebhookHandler) fail(
	ctx context.Context,
	w http.ResponseWriter,
	startedAt time.Time,
	err error,
	fields map[string]any,
) {
	status, message, outcome := errorResponse(err)
	h.observer.ObserveOutcome(ctx, startedAt, outcome, err, fields)
	http.Error(w, message, status)
}

func hasSvixHeaders(header http.Header) bool {
	for _, key := range []string{webhooks.HeaderSvixID, webhooks.HeaderSvixTimestamp, webhooks.HeaderSvixSignature} {
		if strings.TrimSpace(header.Get(key)) == "" {
			return false
		}
	}
	return true
}

// readBody returns the raw bytes the signature was computed over.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, inboundBadInput("inbound: request body too large", map[string]any{"limit": limit})
		}
		return nil, inboundBadInput("inbound: read request body", map[string]any{"error": err.Error()})
	}
	return body, nil
}

func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		out[strings.ToLower(key)] = values[0]
	}
	return out
}

func successOutcome(result core.InboundResult) string {
	switch {
	case result.Metadata["deduped"] == true:
		return "deduped"
	case result.Metadata["ignored"] == true:
		return "ignored"
	case result.Metadata["duplicate"] == true:
		return "duplicate"
	default:
		return "user_created"
	}
}
