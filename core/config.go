package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAttemptTimeout = 10 * time.Second
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
	DefaultShutdownGrace  = 5 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultUserAgent      = "go-relay/1"
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultTenantCacheTTL = time.Minute
	DefaultAuthCodeTTL    = 5 * time.Minute
)

type DispatchConfig struct {
	AttemptTimeout time.Duration `koanf:"attempt_timeout" mapstructure:"attempt_timeout"`
	MaxAttempts    int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
	ShutdownGrace  time.Duration `koanf:"shutdown_grace" mapstructure:"shutdown_grace"`
	PollInterval   time.Duration `koanf:"poll_interval" mapstructure:"poll_interval"`
	UserAgent      string        `koanf:"user_agent" mapstructure:"user_agent"`
	SigningSecret  string        `koanf:"signing_secret" mapstructure:"signing_secret"`
}

type InboundConfig struct {
	IdempotencyTTL time.Duration `koanf:"idempotency_ttl" mapstructure:"idempotency_ttl"`
}

type CacheConfig struct {
	TenantTTL time.Duration `koanf:"tenant_ttl" mapstructure:"tenant_ttl"`
}

type AuthConfig struct {
	CodeTimeout time.Duration `koanf:"code_timeout" mapstructure:"code_timeout"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Dispatch    DispatchConfig `koanf:"dispatch" mapstructure:"dispatch"`
	Inbound     InboundConfig  `koanf:"inbound" mapstructure:"inbound"`
	Cache       CacheConfig    `koanf:"cache" mapstructure:"cache"`
	Auth        AuthConfig     `koanf:"auth" mapstructure:"auth"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "relay",
		Dispatch: DispatchConfig{
			AttemptTimeout: DefaultAttemptTimeout,
			MaxAttempts:    DefaultMaxAttempts,
			InitialBackoff: DefaultInitialBackoff,
			MaxBackoff:     DefaultMaxBackoff,
			ShutdownGrace:  DefaultShutdownGrace,
			PollInterval:   DefaultPollInterval,
			UserAgent:      DefaultUserAgent,
		},
		Inbound: InboundConfig{IdempotencyTTL: DefaultIdempotencyTTL},
		Cache:   CacheConfig{TenantTTL: DefaultTenantCacheTTL},
		Auth:    AuthConfig{CodeTimeout: DefaultAuthCodeTTL},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	return c.Dispatch.Validate()
}

func (c DispatchConfig) Validate() error {
	if c.AttemptTimeout <= 0 {
		return fmt.Errorf("core: dispatch.attempt_timeout must be positive")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("core: dispatch.max_attempts must be at least 1")
	}
	if c.InitialBackoff <= 0 || c.MaxBackoff <= 0 {
		return fmt.Errorf("core: dispatch backoff bounds must be positive")
	}
	if c.InitialBackoff > c.MaxBackoff {
		return fmt.Errorf("core: dispatch.initial_backoff must not exceed dispatch.max_backoff")
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("core: dispatch.shutdown_grace must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("core: dispatch.poll_interval must be positive")
	}
	return nil
}
