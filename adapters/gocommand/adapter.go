package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// MessageNamespace prefixes every relay command and query type.
const MessageNamespace = "relay."

// ValidateMessage enforces the relay message contract: a Type() inside the
// relay namespace plus the message's own Validate() when it has one.
func ValidateMessage(msg any) error {
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	messageType := strings.TrimSpace(m.Type())
	if messageType == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	if !strings.HasPrefix(messageType, MessageNamespace) {
		return fmt.Errorf("gocommand: message type %q is outside the %q namespace", messageType, MessageNamespace)
	}
	return command.ValidateMessage(msg)
}

// RegistryAdapter owns the go-command registry the relay facade registers
// into.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

// AddQueueResolver mirrors registered relay commands into a go-job queue
// registry at Initialize, so reconcile and inbound commands can run as jobs.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

// Dispatch validates msg and sends it through the global dispatcher.
func Dispatch[T command.Message](ctx context.Context, msg T) error {
	if err := ValidateMessage(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

// Query validates msg and runs it against the subscribed relay query.
func Query[T command.Message, R any](ctx context.Context, msg T) (R, error) {
	if err := ValidateMessage(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}

func registerCommand[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.registry.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func registerQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := adapter.registry.RegisterCommand(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}
