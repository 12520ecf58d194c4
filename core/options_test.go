package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func baseOptions() []Option {
	return []Option{
		WithStoreProvider(newTestStores()),
		WithDispatchRegistry(newFakeRegistry()),
	}
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{}, baseOptions()...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil || deps.LoggerProvider == nil {
		t.Fatalf("expected default logger and provider")
	}
	if deps.ErrorFactory == nil || deps.ErrorMapper == nil {
		t.Fatalf("expected default error factory and mapper")
	}
	if deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default config provider and options resolver")
	}
	cfg := svc.Config()
	if cfg.ServiceName != "relay" {
		t.Fatalf("expected default service_name=relay, got %q", cfg.ServiceName)
	}
	if cfg.Dispatch.MaxAttempts != DefaultMaxAttempts || cfg.Dispatch.AttemptTimeout != DefaultAttemptTimeout {
		t.Fatalf("expected dispatch defaults, got %+v", cfg.Dispatch)
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	persistenceClient := &struct{ Name string }{Name: "persistence"}
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	resolved := DefaultConfig()
	resolved.ServiceName = "resolved"
	optionsResolver := &fixedOptionsResolver{cfg: resolved}
	authenticator := &fakeAuthenticator{}

	svc, err := NewService(Config{ServiceName: "runtime"}, append(baseOptions(),
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorMapper(customMapper),
		WithPersistenceClient(persistenceClient),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithAuthenticator(authenticator),
	)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if resolvedLogger := deps.LoggerProvider.GetLogger("relay.override"); resolvedLogger != customLogger {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if deps.PersistenceClient != persistenceClient {
		t.Fatalf("expected custom persistence client override")
	}
	if deps.ConfigProvider != configProvider || deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected config provider and resolver overrides")
	}
	if deps.Authenticator != authenticator {
		t.Fatalf("expected authenticator override")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}

	var richErr *goerrors.Error
	if mapped := svc.mapError(errors.New("anything")); !goerrors.As(mapped, &richErr) || richErr.Message != "mapped" {
		t.Fatalf("expected custom mapper to be used, got %v", mapped)
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(NewStaticConfigLoader(map[string]any{
		"service_name": "from-config",
		"dispatch": map[string]any{
			"max_attempts":    3,
			"initial_backoff": "250ms",
		},
	}))

	svc, err := NewService(Config{ServiceName: "from-runtime"}, append(baseOptions(), WithConfigProvider(provider))...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config, got %q", cfg.ServiceName)
	}
	if cfg.Dispatch.MaxAttempts != 3 {
		t.Fatalf("expected config layer max_attempts, got %d", cfg.Dispatch.MaxAttempts)
	}
	if cfg.Dispatch.InitialBackoff != 250*time.Millisecond {
		t.Fatalf("expected config layer initial_backoff, got %s", cfg.Dispatch.InitialBackoff)
	}
	if cfg.Dispatch.MaxBackoff != DefaultMaxBackoff {
		t.Fatalf("expected default max_backoff, got %s", cfg.Dispatch.MaxBackoff)
	}
}

func TestNewService_InvalidConfigRejected(t *testing.T) {
	provider := NewCfgxConfigProvider(NewStaticConfigLoader(map[string]any{
		"dispatch": map[string]any{
			"initial_backoff": "1m",
			"max_backoff":     "1s",
		},
	}))
	if _, err := NewService(Config{}, append(baseOptions(), WithConfigProvider(provider))...); err == nil {
		t.Fatalf("expected validation error for inverted backoff bounds")
	}
}

func TestYAMLConfigLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	content := []byte("service_name: edge\ndispatch:\n  attempt_timeout: 3s\n  user_agent: edge/2\ninbound:\n  idempotency_ttl: 1h\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	raw, err := NewYAMLConfigLoader(path).LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	dispatch, ok := raw["dispatch"].(map[string]any)
	if !ok {
		t.Fatalf("expected dispatch map, got %T", raw["dispatch"])
	}
	if dispatch["attempt_timeout"] != 3*time.Second {
		t.Fatalf("expected parsed duration, got %#v", dispatch["attempt_timeout"])
	}
	if dispatch["user_agent"] != "edge/2" {
		t.Fatalf("expected string passthrough, got %#v", dispatch["user_agent"])
	}

	cfg, err := NewCfgxConfigProvider(NewYAMLConfigLoader(path)).Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "edge" || cfg.Dispatch.AttemptTimeout != 3*time.Second || cfg.Inbound.IdempotencyTTL != time.Hour {
		t.Fatalf("unexpected loaded config %+v", cfg)
	}
}

func TestYAMLConfigLoader_MissingFile(t *testing.T) {
	loader := NewYAMLConfigLoader(filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := loader.LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected error for missing required file")
	}
	loader.Optional = true
	raw, err := loader.LoadRaw(context.Background())
	if err != nil || len(raw) != 0 {
		t.Fatalf("expected empty map for optional file, got %v %v", raw, err)
	}
}

func TestDispatchConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*DispatchConfig)
	}{
		{name: "zero timeout", mutate: func(c *DispatchConfig) { c.AttemptTimeout = 0 }},
		{name: "zero attempts", mutate: func(c *DispatchConfig) { c.MaxAttempts = 0 }},
		{name: "inverted backoff", mutate: func(c *DispatchConfig) { c.InitialBackoff = time.Minute; c.MaxBackoff = time.Second }},
		{name: "zero grace", mutate: func(c *DispatchConfig) { c.ShutdownGrace = 0 }},
		{name: "zero poll", mutate: func(c *DispatchConfig) { c.PollInterval = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig().Dispatch
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}
