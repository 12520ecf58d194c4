package command

import (
	"strings"

	"github.com/goliatone/go-relay/core"
)

const (
	TypeCreateTenant     = "relay.command.tenant.create"
	TypeSetCallback      = "relay.command.tenant.set_callback"
	TypeRequestAuthCode  = "relay.command.auth.request_code"
	TypeSubmitAuthCode   = "relay.command.auth.submit_code"
	TypeSetAuthorization = "relay.command.auth.set"
	TypeStartDispatch    = "relay.command.dispatch.start"
	TypeStopDispatch     = "relay.command.dispatch.stop"
	TypeReconcile        = "relay.command.dispatch.reconcile"
	TypeReceiveInbound   = "relay.command.inbound.receive"
)

type CreateTenantMessage struct {
	Request core.CreateTenantRequest
}

func (CreateTenantMessage) Type() string { return TypeCreateTenant }

func (m CreateTenantMessage) Validate() error {
	if strings.TrimSpace(m.Request.Name) == "" {
		return commandValidationError("name", "tenant name is required")
	}
	if strings.TrimSpace(m.Request.CallbackURL) != "" {
		if _, err := core.ValidateCallbackURL(m.Request.CallbackURL); err != nil {
			return commandWrapValidation(err, "callback_url")
		}
	}
	return nil
}

// SetCallbackMessage allows an empty URL, which clears the callback.
type SetCallbackMessage struct {
	Request core.SetCallbackRequest
}

func (SetCallbackMessage) Type() string { return TypeSetCallback }

func (m SetCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.Request.CallbackURL) != "" {
		if _, err := core.ValidateCallbackURL(m.Request.CallbackURL); err != nil {
			return commandWrapValidation(err, "callback_url")
		}
	}
	return nil
}

type RequestAuthCodeMessage struct {
	Request core.RequestAuthCodeRequest
}

func (RequestAuthCodeMessage) Type() string { return TypeRequestAuthCode }

func (m RequestAuthCodeMessage) Validate() error {
	if strings.TrimSpace(m.Request.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.Request.PhoneNumber) == "" {
		return commandValidationError("phone_number", "phone number is required")
	}
	return nil
}

type SubmitAuthCodeMessage struct {
	Request core.SubmitAuthCodeRequest
}

func (SubmitAuthCodeMessage) Type() string { return TypeSubmitAuthCode }

func (m SubmitAuthCodeMessage) Validate() error {
	if strings.TrimSpace(m.Request.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return commandValidationError("code", "code is required")
	}
	return nil
}

type SetAuthorizationMessage struct {
	Request core.SetAuthorizationRequest
}

func (SetAuthorizationMessage) Type() string { return TypeSetAuthorization }

func (m SetAuthorizationMessage) Validate() error {
	return requireTenantID(m.Request.TenantID)
}

type StartDispatchMessage struct {
	TenantID string
}

func (StartDispatchMessage) Type() string { return TypeStartDispatch }

func (m StartDispatchMessage) Validate() error {
	return requireTenantID(m.TenantID)
}

type StopDispatchMessage struct {
	TenantID string
}

func (StopDispatchMessage) Type() string { return TypeStopDispatch }

func (m StopDispatchMessage) Validate() error {
	return requireTenantID(m.TenantID)
}

type ReconcileMessage struct{}

func (ReconcileMessage) Type() string { return TypeReconcile }

func (ReconcileMessage) Validate() error { return nil }

type ReceiveInboundMessage struct {
	Request core.ReceiveInboundRequest
}

func (ReceiveInboundMessage) Type() string { return TypeReceiveInbound }

func (m ReceiveInboundMessage) Validate() error {
	if err := requireTenantID(m.Request.TenantID); err != nil {
		return err
	}
	if m.Request.Content == "" {
		return commandValidationError("content", "content is required")
	}
	return nil
}

func requireTenantID(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	return nil
}
