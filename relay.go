package relay

import (
	"fmt"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/dispatch"
	"github.com/goliatone/go-relay/inbound"
	"github.com/goliatone/go-relay/store/memory"
	"github.com/goliatone/go-relay/webhooks"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type RuntimeDependencies = core.RuntimeDependencies
type StoreProvider = core.StoreProvider
type DispatchRegistry = core.DispatchRegistry
type InboundReceiver = core.InboundReceiver
type FeedNotifier = core.FeedNotifier
type Authenticator = core.Authenticator

type CreateTenantRequest = core.CreateTenantRequest
type SetCallbackRequest = core.SetCallbackRequest
type RequestAuthCodeRequest = core.RequestAuthCodeRequest
type SubmitAuthCodeRequest = core.SubmitAuthCodeRequest
type SetAuthorizationRequest = core.SetAuthorizationRequest
type ReceiveInboundRequest = core.ReceiveInboundRequest
type ListMessagesRequest = core.ListMessagesRequest

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorFactory            = core.WithErrorFactory
	WithErrorMapper             = core.WithErrorMapper
	WithPersistenceClient       = core.WithPersistenceClient
	WithRepositoryFactory       = core.WithRepositoryFactory
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithStoreProvider           = core.WithStoreProvider
	WithFallbackStores          = core.WithFallbackStores
	WithDispatchRegistry        = core.WithDispatchRegistry
	WithDispatchRegistryFactory = core.WithDispatchRegistryFactory
	WithInboundReceiver         = core.WithInboundReceiver
	WithInboundReceiverFactory  = core.WithInboundReceiverFactory
	WithFeedNotifier            = core.WithFeedNotifier
	WithAuthenticator           = core.WithAuthenticator
	WithClock                   = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds a relay service with the stock runtime: in-memory
// fallback stores, a webhook dispatch registry and an in-process inbound
// receiver. Caller options are applied after the defaults and win.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	defaults := []Option{
		core.WithFallbackStores(memory.NewStoreProvider()),
		core.WithDispatchRegistryFactory(NewDispatchRegistryFactory()),
		core.WithInboundReceiverFactory(inbound.NewReceiverFactory(nil)),
	}
	return core.NewService(cfg, append(defaults, opts...)...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

// NewDispatchRegistryFactory wires the store-backed inbound feed to a webhook
// delivery policy. policyOpts customize the policy (transport, signer, sleep).
func NewDispatchRegistryFactory(policyOpts ...webhooks.PolicyOption) core.DispatchRegistryFactory {
	return func(deps core.RuntimeDependencies) (core.DispatchRegistry, error) {
		feed, err := inbound.NewStoreFeed(deps.MessageStore, deps.CursorStore)
		if err != nil {
			return nil, fmt.Errorf("relay: dispatch feed: %w", err)
		}
		policy := webhooks.NewPolicy(deps.Config.Dispatch, policyOpts...)
		return dispatch.NewRegistry(feed, feed,
			dispatch.WithConfig(deps.Config.Dispatch),
			dispatch.WithDeliverer(policy),
			dispatch.WithLogger(resolveLogger("relay.dispatch", deps)),
			dispatch.WithMetricsRecorder(deps.MetricsRecorder),
		)
	}
}

func resolveLogger(name string, deps core.RuntimeDependencies) core.Logger {
	_, logger := glog.Resolve(name, deps.LoggerProvider, deps.Logger)
	return logger
}
