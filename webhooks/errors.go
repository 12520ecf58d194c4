package webhooks

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-relay/core"
)

func deliveryError(source error, outcome Outcome, result Result, target string) error {
	textCode := core.RelayErrorDeliveryRejected
	message := "webhooks: callback rejected delivery"
	if outcome == OutcomeRetry {
		textCode = core.RelayErrorDeliveryTransient
		message = fmt.Sprintf("webhooks: delivery retries exhausted after %d attempts", result.Attempts)
	}
	metadata := map[string]any{
		"callback_url": target,
		"attempts":     result.Attempts,
		"outcome":      string(outcome),
	}
	if result.StatusCode > 0 {
		metadata["status_code"] = result.StatusCode
	}

	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryExternal, message)
	} else {
		err = goerrors.New(fmt.Sprintf("%s: status %d", message, result.StatusCode), goerrors.CategoryExternal)
	}
	return err.
		WithCode(http.StatusBadGateway).
		WithTextCode(textCode).
		WithMetadata(metadata)
}

// FailureReason is the short text stored on a failed message.
func FailureReason(result Result) string {
	switch {
	case result.StatusCode > 0 && result.LastOutcome == OutcomeRejected:
		return fmt.Sprintf("rejected: http %d", result.StatusCode)
	case result.StatusCode > 0:
		return fmt.Sprintf("retries exhausted: http %d", result.StatusCode)
	case result.Cause != nil:
		return fmt.Sprintf("%s: %v", result.LastOutcome, result.Cause)
	default:
		return string(result.Outcome)
	}
}
