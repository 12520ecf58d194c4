package relay

import (
	"fmt"

	relaycommand "github.com/goliatone/go-relay/command"
	relayquery "github.com/goliatone/go-relay/query"
)

type CommandQueryService interface {
	relaycommand.MutatingService
	relayquery.TenantReader
	relayquery.DispatchReader
	relayquery.MessageReader
}

type Commands struct {
	CreateTenant     *relaycommand.CreateTenantCommand
	SetCallback      *relaycommand.SetCallbackCommand
	RequestAuthCode  *relaycommand.RequestAuthCodeCommand
	SubmitAuthCode   *relaycommand.SubmitAuthCodeCommand
	SetAuthorization *relaycommand.SetAuthorizationCommand
	StartDispatch    *relaycommand.StartDispatchCommand
	StopDispatch     *relaycommand.StopDispatchCommand
	Reconcile        *relaycommand.ReconcileCommand
	ReceiveInbound   *relaycommand.ReceiveInboundCommand
}

type Queries struct {
	GetTenant          *relayquery.GetTenantQuery
	ListTenants        *relayquery.ListTenantsQuery
	DispatcherStatus   *relayquery.DispatcherStatusQuery
	DispatcherSnapshot *relayquery.DispatcherSnapshotQuery
	ListMessages       *relayquery.ListMessagesQuery
	GetMessage         *relayquery.GetMessageQuery
	FeedCursor         *relayquery.FeedCursorQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
	bundles  map[string]any
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	hooks *ExtensionHooks
}

// WithExtensionHooks builds the hooks' command/query bundles alongside the
// stock handlers.
func WithExtensionHooks(hooks *ExtensionHooks) FacadeOption {
	return func(options *facadeOptions) {
		options.hooks = hooks
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("relay: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{service: service, bundles: map[string]any{}}
	facade.commands = Commands{
		CreateTenant:     relaycommand.NewCreateTenantCommand(service),
		SetCallback:      relaycommand.NewSetCallbackCommand(service),
		RequestAuthCode:  relaycommand.NewRequestAuthCodeCommand(service),
		SubmitAuthCode:   relaycommand.NewSubmitAuthCodeCommand(service),
		SetAuthorization: relaycommand.NewSetAuthorizationCommand(service),
		StartDispatch:    relaycommand.NewStartDispatchCommand(service),
		StopDispatch:     relaycommand.NewStopDispatchCommand(service),
		Reconcile:        relaycommand.NewReconcileCommand(service),
		ReceiveInbound:   relaycommand.NewReceiveInboundCommand(service),
	}
	facade.queries = Queries{
		GetTenant:          relayquery.NewGetTenantQuery(service),
		ListTenants:        relayquery.NewListTenantsQuery(service),
		DispatcherStatus:   relayquery.NewDispatcherStatusQuery(service),
		DispatcherSnapshot: relayquery.NewDispatcherSnapshotQuery(service),
		ListMessages:       relayquery.NewListMessagesQuery(service),
		GetMessage:         relayquery.NewGetMessageQuery(service),
		FeedCursor:         relayquery.NewFeedCursorQuery(service),
	}

	if cfg.hooks != nil {
		bundles, err := cfg.hooks.BuildCommandQueryBundles(service)
		if err != nil {
			return nil, err
		}
		facade.bundles = bundles
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// Bundle returns the extension bundle registered under name.
func (f *Facade) Bundle(name string) (any, bool) {
	if f == nil {
		return nil, false
	}
	bundle, ok := f.bundles[name]
	return bundle, ok
}
