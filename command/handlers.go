package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-relay/core"
)

type MutatingService interface {
	CreateTenant(ctx context.Context, req core.CreateTenantRequest) (core.Tenant, error)
	SetCallback(ctx context.Context, req core.SetCallbackRequest) (core.Tenant, error)
	RequestAuthCode(ctx context.Context, req core.RequestAuthCodeRequest) (core.TenantAuth, error)
	SubmitAuthCode(ctx context.Context, req core.SubmitAuthCodeRequest) (core.TenantAuth, error)
	SetAuthorization(ctx context.Context, req core.SetAuthorizationRequest) (core.TenantAuth, error)
	StartDispatch(ctx context.Context, tenantID string) error
	StopDispatch(ctx context.Context, tenantID string) error
	Reconcile(ctx context.Context) (core.ReconcileResult, error)
	ReceiveInbound(ctx context.Context, req core.ReceiveInboundRequest) (core.ReceiveInboundResult, error)
}

type CreateTenantCommand struct {
	service MutatingService
}

func NewCreateTenantCommand(service MutatingService) *CreateTenantCommand {
	return &CreateTenantCommand{service: service}
}

func (c *CreateTenantCommand) Execute(ctx context.Context, msg CreateTenantMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: tenant service is required")
	}
	out, err := c.service.CreateTenant(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetCallbackCommand struct {
	service MutatingService
}

func NewSetCallbackCommand(service MutatingService) *SetCallbackCommand {
	return &SetCallbackCommand{service: service}
}

func (c *SetCallbackCommand) Execute(ctx context.Context, msg SetCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: tenant service is required")
	}
	out, err := c.service.SetCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RequestAuthCodeCommand struct {
	service MutatingService
}

func NewRequestAuthCodeCommand(service MutatingService) *RequestAuthCodeCommand {
	return &RequestAuthCodeCommand{service: service}
}

func (c *RequestAuthCodeCommand) Execute(ctx context.Context, msg RequestAuthCodeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	out, err := c.service.RequestAuthCode(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SubmitAuthCodeCommand struct {
	service MutatingService
}

func NewSubmitAuthCodeCommand(service MutatingService) *SubmitAuthCodeCommand {
	return &SubmitAuthCodeCommand{service: service}
}

func (c *SubmitAuthCodeCommand) Execute(ctx context.Context, msg SubmitAuthCodeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	out, err := c.service.SubmitAuthCode(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetAuthorizationCommand struct {
	service MutatingService
}

func NewSetAuthorizationCommand(service MutatingService) *SetAuthorizationCommand {
	return &SetAuthorizationCommand{service: service}
}

func (c *SetAuthorizationCommand) Execute(ctx context.Context, msg SetAuthorizationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	out, err := c.service.SetAuthorization(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type StartDispatchCommand struct {
	service MutatingService
}

func NewStartDispatchCommand(service MutatingService) *StartDispatchCommand {
	return &StartDispatchCommand{service: service}
}

func (c *StartDispatchCommand) Execute(ctx context.Context, msg StartDispatchMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	return c.service.StartDispatch(ctx, msg.TenantID)
}

type StopDispatchCommand struct {
	service MutatingService
}

func NewStopDispatchCommand(service MutatingService) *StopDispatchCommand {
	return &StopDispatchCommand{service: service}
}

func (c *StopDispatchCommand) Execute(ctx context.Context, msg StopDispatchMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	return c.service.StopDispatch(ctx, msg.TenantID)
}

type ReconcileCommand struct {
	service MutatingService
}

func NewReconcileCommand(service MutatingService) *ReconcileCommand {
	return &ReconcileCommand{service: service}
}

func (c *ReconcileCommand) Execute(ctx context.Context, _ ReconcileMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	out, err := c.service.Reconcile(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReceiveInboundCommand struct {
	service MutatingService
}

func NewReceiveInboundCommand(service MutatingService) *ReceiveInboundCommand {
	return &ReceiveInboundCommand{service: service}
}

func (c *ReceiveInboundCommand) Execute(ctx context.Context, msg ReceiveInboundMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: inbound service is required")
	}
	out, err := c.service.ReceiveInbound(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
