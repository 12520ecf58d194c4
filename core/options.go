package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	tenantStore       TenantStore
	tenantAuthStore   TenantAuthStore
	messageStore      MessageStore
	cursorStore       CursorStore
	fallbackStores    StoreProvider
	registry          DispatchRegistry
	registryFactory   DispatchRegistryFactory
	receiver          InboundReceiver
	receiverFactory   InboundReceiverFactory
	notifiers         []FeedNotifier
	authenticator     Authenticator
	now               func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTenantStore(store TenantStore) Option {
	return func(b *serviceBuilder) {
		b.tenantStore = store
	}
}

func WithTenantAuthStore(store TenantAuthStore) Option {
	return func(b *serviceBuilder) {
		b.tenantAuthStore = store
	}
}

func WithMessageStore(store MessageStore) Option {
	return func(b *serviceBuilder) {
		b.messageStore = store
	}
}

func WithCursorStore(store CursorStore) Option {
	return func(b *serviceBuilder) {
		b.cursorStore = store
	}
}

// WithStoreProvider sets every store that has not been set explicitly.
func WithStoreProvider(provider StoreProvider) Option {
	return func(b *serviceBuilder) {
		if provider == nil {
			return
		}
		if b.tenantStore == nil {
			b.tenantStore = provider.TenantStore()
		}
		if b.tenantAuthStore == nil {
			b.tenantAuthStore = provider.TenantAuthStore()
		}
		if b.messageStore == nil {
			b.messageStore = provider.MessageStore()
		}
		if b.cursorStore == nil {
			b.cursorStore = provider.CursorStore()
		}
	}
}

// WithFallbackStores fills stores still missing after the repository factory
// has been consulted.
func WithFallbackStores(provider StoreProvider) Option {
	return func(b *serviceBuilder) {
		b.fallbackStores = provider
	}
}

func WithDispatchRegistry(registry DispatchRegistry) Option {
	return func(b *serviceBuilder) {
		b.registry = registry
	}
}

func WithDispatchRegistryFactory(factory DispatchRegistryFactory) Option {
	return func(b *serviceBuilder) {
		b.registryFactory = factory
	}
}

func WithInboundReceiver(receiver InboundReceiver) Option {
	return func(b *serviceBuilder) {
		b.receiver = receiver
	}
}

func WithInboundReceiverFactory(factory InboundReceiverFactory) Option {
	return func(b *serviceBuilder) {
		b.receiverFactory = factory
	}
}

// WithFeedNotifier adds a notifier told about every appended inbound message,
// in addition to waking the local worker.
func WithFeedNotifier(notifier FeedNotifier) Option {
	return func(b *serviceBuilder) {
		if notifier != nil {
			b.notifiers = append(b.notifiers, notifier)
		}
	}
}

func WithAuthenticator(authenticator Authenticator) Option {
	return func(b *serviceBuilder) {
		b.authenticator = authenticator
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("relay", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return relayErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticConfigLoader serves a fixed raw map, mostly for tests and embedding.
func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](normalizeDurations(raw),
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, defaults, true)
	loadedLayer := configToLayerMap(loaded, defaults, false)
	runtimeLayer := configToLayerMap(runtime, defaults, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap keeps only values that differ from defaults unless
// includeZero is set, so an untouched runtime config does not mask the file.
func configToLayerMap(cfg Config, defaults Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || (strings.TrimSpace(cfg.ServiceName) != "" && cfg.ServiceName != defaults.ServiceName) {
		layer["service_name"] = cfg.ServiceName
	}

	dispatch := map[string]any{}
	d, dd := cfg.Dispatch, defaults.Dispatch
	putDuration(dispatch, "attempt_timeout", d.AttemptTimeout, dd.AttemptTimeout, includeZero)
	putDuration(dispatch, "initial_backoff", d.InitialBackoff, dd.InitialBackoff, includeZero)
	putDuration(dispatch, "max_backoff", d.MaxBackoff, dd.MaxBackoff, includeZero)
	putDuration(dispatch, "shutdown_grace", d.ShutdownGrace, dd.ShutdownGrace, includeZero)
	putDuration(dispatch, "poll_interval", d.PollInterval, dd.PollInterval, includeZero)
	if includeZero || (d.MaxAttempts > 0 && d.MaxAttempts != dd.MaxAttempts) {
		dispatch["max_attempts"] = d.MaxAttempts
	}
	if includeZero || (strings.TrimSpace(d.UserAgent) != "" && d.UserAgent != dd.UserAgent) {
		dispatch["user_agent"] = d.UserAgent
	}
	if includeZero || (strings.TrimSpace(d.SigningSecret) != "" && d.SigningSecret != dd.SigningSecret) {
		dispatch["signing_secret"] = d.SigningSecret
	}
	if len(dispatch) > 0 {
		layer["dispatch"] = dispatch
	}

	inbound := map[string]any{}
	putDuration(inbound, "idempotency_ttl", cfg.Inbound.IdempotencyTTL, defaults.Inbound.IdempotencyTTL, includeZero)
	if len(inbound) > 0 {
		layer["inbound"] = inbound
	}
	cache := map[string]any{}
	putDuration(cache, "tenant_ttl", cfg.Cache.TenantTTL, defaults.Cache.TenantTTL, includeZero)
	if len(cache) > 0 {
		layer["cache"] = cache
	}
	auth := map[string]any{}
	putDuration(auth, "code_timeout", cfg.Auth.CodeTimeout, defaults.Auth.CodeTimeout, includeZero)
	if len(auth) > 0 {
		layer["auth"] = auth
	}
	return layer
}

func putDuration(layer map[string]any, key string, value time.Duration, fallback time.Duration, includeZero bool) {
	if includeZero || (value > 0 && value != fallback) {
		layer[key] = value
	}
}
