package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	RelayErrorBadInput            = "RELAY_BAD_INPUT"
	RelayErrorInvalidCallbackURL  = "RELAY_INVALID_CALLBACK_URL"
	RelayErrorTenantNotFound      = "RELAY_TENANT_NOT_FOUND"
	RelayErrorMessageNotFound     = "RELAY_MESSAGE_NOT_FOUND"
	RelayErrorTenantNotAuthorized = "RELAY_TENANT_NOT_AUTHORIZED"
	RelayErrorAuthCodeInvalid     = "RELAY_AUTH_CODE_INVALID"
	RelayErrorDuplicateMessage    = "RELAY_DUPLICATE_MESSAGE"
	RelayErrorDeliveryTransient   = "RELAY_DELIVERY_TRANSIENT"
	RelayErrorDeliveryRejected    = "RELAY_DELIVERY_REJECTED"
	RelayErrorInternal            = "RELAY_INTERNAL_ERROR"
)

func relayErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureRelayErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrInvalidCallbackURL):
		return newRelayError(err.Error(), goerrors.CategoryBadInput, RelayErrorInvalidCallbackURL)
	case errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrTenantAuthNotFound):
		return newRelayError(err.Error(), goerrors.CategoryNotFound, RelayErrorTenantNotFound)
	case errors.Is(err, ErrMessageNotFound):
		return newRelayError(err.Error(), goerrors.CategoryNotFound, RelayErrorMessageNotFound)
	case errors.Is(err, ErrTenantNotAuthorized):
		return newRelayError(err.Error(), goerrors.CategoryAuthz, RelayErrorTenantNotAuthorized)
	case errors.Is(err, ErrAuthCodeExpired), errors.Is(err, ErrAuthCodeNotRequested), errors.Is(err, ErrAuthCodeRejected):
		return newRelayError(err.Error(), goerrors.CategoryAuth, RelayErrorAuthCodeInvalid)
	case errors.Is(err, ErrDuplicateInbound):
		return newRelayError(err.Error(), goerrors.CategoryConflict, RelayErrorDuplicateMessage)
	case errors.Is(err, ErrInvalidDirection), errors.Is(err, ErrInvalidMessageStatus):
		return newRelayError(err.Error(), goerrors.CategoryBadInput, RelayErrorBadInput)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newRelayError(err.Error(), goerrors.CategoryNotFound, RelayErrorTenantNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must"):
		return newRelayError(err.Error(), goerrors.CategoryBadInput, RelayErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureRelayErrorEnvelope(mapped)
}

func newRelayError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureRelayErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureRelayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = relayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultRelayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultRelayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return RelayErrorBadInput
	case goerrors.CategoryNotFound:
		return RelayErrorTenantNotFound
	case goerrors.CategoryAuth:
		return RelayErrorAuthCodeInvalid
	case goerrors.CategoryAuthz:
		return RelayErrorTenantNotAuthorized
	case goerrors.CategoryConflict:
		return RelayErrorDuplicateMessage
	case goerrors.CategoryExternal:
		return RelayErrorDeliveryTransient
	default:
		return RelayErrorInternal
	}
}

func relayHTTPStatus(category goerrors.Category) int {
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
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MapError converts any error into a relay envelope with a text code.
func MapError(err error) *goerrors.Error {
	return defaultErrorMapper(err)
}
