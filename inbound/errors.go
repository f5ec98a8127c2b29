package inbound

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
)

// Response bodies are deliberately generic; the detail goes to the log.
const (
	messageMissingHeaders   = "missing svix headers"
	messageInvalidSignature = "invalid webhook signature"
	messageInvalidPayload   = "invalid event payload"
	messageCreateUserFailed = "error creating user"
	messageNotConfigured    = "webhook secret not configured"
	messageInFlight         = "delivery is already being processed"
	messageInternal         = "internal error"
)

func inboundError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	return core.NewError(message, category, code, textCode, metadata)
}

func inboundBadInput(message string, metadata map[string]any) error {
	return inboundError(message, goerrors.CategoryBadInput, http.StatusBadRequest, core.ErrorBadInput, metadata)
}

// errorResponse maps a processing error to the status and body written to
// the sender, plus the outcome label used for logs and metrics.
func errorResponse(err error) (int, string, string) {
	mapped := core.MapError(err)
	status := mapped.Code
	switch strings.TrimSpace(mapped.TextCode) {
	case core.ErrorMissingHeaders:
		return http.StatusBadRequest, messageMissingHeaders, "missing_headers"
	case core.ErrorSignatureInvalid:
		return http.StatusBadRequest, messageInvalidSignature, "signature_invalid"
	case core.ErrorPayloadInvalid:
		return http.StatusBadRequest, messageInvalidPayload, "payload_invalid"
	case core.ErrorPersistenceFailed:
		return http.StatusInternalServerError, messageCreateUserFailed, "persistence_failed"
	case core.ErrorConfigInvalid:
		return http.StatusInternalServerError, messageNotConfigured, "config_invalid"
	case core.ErrorDeliveryInFlight:
		return http.StatusConflict, messageInFlight, "in_flight"
	}
	if status >= http.StatusInternalServerError || status == 0 {
		return http.StatusInternalServerError, messageInternal, "internal_error"
	}
	return status, http.StatusText(status), "rejected"
}
