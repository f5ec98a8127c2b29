package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput          = "IDENTITY_SYNC_BAD_INPUT"
	ErrorConfigInvalid     = "IDENTITY_SYNC_CONFIG_INVALID"
	ErrorMissingHeaders    = "IDENTITY_SYNC_MISSING_HEADERS"
	ErrorSignatureInvalid  = "IDENTITY_SYNC_SIGNATURE_INVALID"
	ErrorPayloadInvalid    = "IDENTITY_SYNC_PAYLOAD_INVALID"
	ErrorUserExists        = "IDENTITY_SYNC_USER_EXISTS"
	ErrorUserNotFound      = "IDENTITY_SYNC_USER_NOT_FOUND"
	ErrorPersistenceFailed = "IDENTITY_SYNC_PERSISTENCE_FAILED"
	ErrorDeliveryInFlight  = "IDENTITY_SYNC_DELIVERY_IN_FLIGHT"
	ErrorDeliveryNotFound  = "IDENTITY_SYNC_DELIVERY_NOT_FOUND"
	ErrorInternal          = "IDENTITY_SYNC_INTERNAL_ERROR"
)

var (
	ErrUserAlreadyExists = errors.New("core: user already exists")
	ErrUserNotFound      = errors.New("core: user not found")
)

func NewError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func WrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return NewError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func BadInput(message string, metadata map[string]any) *goerrors.Error {
	return NewError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorBadInput, metadata)
}

func Internal(message string, metadata map[string]any) *goerrors.Error {
	return NewError(message, goerrors.CategoryInternal, http.StatusInternalServerError, ErrorInternal, metadata)
}

// MapError normalizes any error into an envelope carrying an HTTP code and a
// text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrUserAlreadyExists):
		return NewError(err.Error(), goerrors.CategoryConflict, http.StatusConflict, ErrorUserExists, nil)
	case errors.Is(err, ErrUserNotFound):
		return NewError(err.Error(), goerrors.CategoryNotFound, http.StatusNotFound, ErrorUserNotFound, nil)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return NewError(err.Error(), goerrors.CategoryBadInput, http.StatusBadRequest, ErrorBadInput, nil)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

// StatusCode returns the HTTP status an error maps to.
func StatusCode(err error) int {
	mapped := MapError(err)
	if mapped == nil {
		return http.StatusOK
	}
	return mapped.Code
}

// HasTextCode reports whether err carries the given text code.
func HasTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return false
	}
	return strings.TrimSpace(richErr.TextCode) == strings.TrimSpace(textCode)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorSignatureInvalid
	case goerrors.CategoryConflict:
		return ErrorUserExists
	case goerrors.CategoryNotFound:
		return ErrorUserNotFound
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// IsUserExists reports whether err is a uniqueness violation on a mirrored user.
func IsUserExists(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrUserAlreadyExists) || HasTextCode(err, ErrorUserExists)
}
