package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config            Config
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
	registry          DispatchRegistry
	receiver          InboundReceiver
	notifiers         []FeedNotifier
	authenticator     Authenticator
	now               func() time.Time
	tenantLocks       tenantLocks
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	TenantStore       TenantStore
	TenantAuthStore   TenantAuthStore
	MessageStore      MessageStore
	CursorStore       CursorStore
	DispatchRegistry  DispatchRegistry
	InboundReceiver   InboundReceiver
	Authenticator     Authenticator
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("relay", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("relay"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil && !builder.storesComplete() {
		var stores StoreProvider
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			stores = built
		} else if provided, ok := builder.repositoryFactory.(StoreProvider); ok {
			stores = provided
		}
		WithStoreProvider(stores)(&builder)
	}
	if !builder.storesComplete() && builder.fallbackStores != nil {
		WithStoreProvider(builder.fallbackStores)(&builder)
	}
	if !builder.storesComplete() {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: tenant, tenant auth, message and cursor stores are required"))
	}

	deps := RuntimeDependencies{
		Config:          finalConfig,
		Logger:          logger,
		LoggerProvider:  provider,
		MetricsRecorder: builder.metricsRecorder,
		TenantStore:     builder.tenantStore,
		TenantAuthStore: builder.tenantAuthStore,
		MessageStore:    builder.messageStore,
		CursorStore:     builder.cursorStore,
	}
	if builder.registry == nil && builder.registryFactory != nil {
		registry, buildErr := builder.registryFactory(deps)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		builder.registry = registry
	}
	if builder.registry == nil {
		return nil, mapBuildError(builder.errorMapper, ErrDispatchRegistryAbsent)
	}
	if builder.receiver == nil && builder.receiverFactory != nil {
		receiver, buildErr := builder.receiverFactory(deps)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		builder.receiver = receiver
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		tenantStore:       builder.tenantStore,
		tenantAuthStore:   builder.tenantAuthStore,
		messageStore:      builder.messageStore,
		cursorStore:       builder.cursorStore,
		registry:          builder.registry,
		receiver:          builder.receiver,
		notifiers:         append([]FeedNotifier(nil), builder.notifiers...),
		authenticator:     builder.authenticator,
		now:               builder.now,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func (b *serviceBuilder) storesComplete() bool {
	return b.tenantStore != nil && b.tenantAuthStore != nil && b.messageStore != nil && b.cursorStore != nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		TenantStore:       s.tenantStore,
		TenantAuthStore:   s.tenantAuthStore,
		MessageStore:      s.messageStore,
		CursorStore:       s.cursorStore,
		DispatchRegistry:  s.registry,
		InboundReceiver:   s.receiver,
		Authenticator:     s.authenticator,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *Service) requireTenant(ctx context.Context, tenantID string) (Tenant, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Tenant{}, fmt.Errorf("core: tenant id is required")
	}
	tenant, err := s.tenantStore.Get(ctx, tenantID)
	if err != nil {
		return Tenant{}, err
	}
	return tenant, nil
}

// authState returns the tenant's auth record, treating a missing record as
// unauthorized.
func (s *Service) authState(ctx context.Context, tenantID string) (TenantAuth, error) {
	auth, err := s.tenantAuthStore.Get(ctx, tenantID)
	if err != nil {
		if goerrors.Is(err, ErrTenantAuthNotFound) {
			return TenantAuth{TenantID: tenantID}, nil
		}
		return TenantAuth{}, err
	}
	return auth, nil
}
