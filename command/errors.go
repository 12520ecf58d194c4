package command

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-relay/core"
)

func commandDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.RelayErrorInternal)
}

func commandValidationError(field string, message string) error {
	return goerrors.NewValidation("command: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.RelayErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func commandWrapValidation(err error, field string) error {
	if err == nil {
		return nil
	}
	wrapped := goerrors.Wrap(err, goerrors.CategoryValidation, "command: validation failed").
		WithCode(http.StatusBadRequest).
		WithTextCode(core.RelayErrorInvalidCallbackURL)
	wrapped.WithMetadata(map[string]any{"field": field})
	return wrapped
}
