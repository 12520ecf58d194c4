package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateTenantMessage]     = (*CreateTenantCommand)(nil)
	_ gocmd.Commander[SetCallbackMessage]      = (*SetCallbackCommand)(nil)
	_ gocmd.Commander[RequestAuthCodeMessage]  = (*RequestAuthCodeCommand)(nil)
	_ gocmd.Commander[SubmitAuthCodeMessage]   = (*SubmitAuthCodeCommand)(nil)
	_ gocmd.Commander[SetAuthorizationMessage] = (*SetAuthorizationCommand)(nil)
	_ gocmd.Commander[StartDispatchMessage]    = (*StartDispatchCommand)(nil)
	_ gocmd.Commander[StopDispatchMessage]     = (*StopDispatchCommand)(nil)
	_ gocmd.Commander[ReconcileMessage]        = (*ReconcileCommand)(nil)
	_ gocmd.Commander[ReceiveInboundMessage]   = (*ReceiveInboundCommand)(nil)
)
