package core

import (
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestRelayErrorMapper_AssignsStableCodes(t *testing.T) {
	cases := []struct {
		err      error
		textCode string
		category goerrors.Category
	}{
		{fmt.Errorf("%w: missing host", ErrInvalidCallbackURL), RelayErrorInvalidCallbackURL, goerrors.CategoryBadInput},
		{ErrTenantNotFound, RelayErrorTenantNotFound, goerrors.CategoryNotFound},
		{ErrMessageNotFound, RelayErrorMessageNotFound, goerrors.CategoryNotFound},
		{ErrTenantNotAuthorized, RelayErrorTenantNotAuthorized, goerrors.CategoryAuthz},
		{fmt.Errorf("%w: PHONE_CODE_INVALID", ErrAuthCodeRejected), RelayErrorAuthCodeInvalid, goerrors.CategoryAuth},
		{ErrDuplicateInbound, RelayErrorDuplicateMessage, goerrors.CategoryConflict},
		{fmt.Errorf("core: tenant id is required"), RelayErrorBadInput, goerrors.CategoryBadInput},
	}
	for _, tc := range cases {
		mapped := MapError(tc.err)
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%v: expected text code %q, got %q", tc.err, tc.textCode, mapped.TextCode)
		}
		if mapped.Category != tc.category {
			t.Fatalf("%v: expected category %q, got %q", tc.err, tc.category, mapped.Category)
		}
		if mapped.Code == 0 {
			t.Fatalf("%v: expected http status on mapped error", tc.err)
		}
	}
}

func TestRelayErrorMapper_PreservesRichErrors(t *testing.T) {
	original := goerrors.New("upstream unavailable", goerrors.CategoryExternal).
		WithTextCode(RelayErrorDeliveryTransient)
	mapped := MapError(fmt.Errorf("wrapped: %w", original))
	if mapped != original {
		t.Fatalf("expected rich error to pass through")
	}
	if mapped.TextCode != RelayErrorDeliveryTransient {
		t.Fatalf("expected text code preserved, got %q", mapped.TextCode)
	}
}

func TestRelayErrorMapper_Nil(t *testing.T) {
	if MapError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestRelayHTTPStatus(t *testing.T) {
	cases := map[goerrors.Category]int{
		goerrors.CategoryBadInput: http.StatusBadRequest,
		goerrors.CategoryNotFound: http.StatusNotFound,
		goerrors.CategoryAuthz:    http.StatusForbidden,
		goerrors.CategoryExternal: http.StatusBadGateway,
		goerrors.CategoryInternal: http.StatusInternalServerError,
	}
	for category, want := range cases {
		if got := relayHTTPStatus(category); got != want {
			t.Fatalf("%s: expected %d, got %d", category, want, got)
		}
	}
}
