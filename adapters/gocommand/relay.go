package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	relay "github.com/goliatone/go-relay"
)

// Subscriptions tracks every dispatcher subscription made for a facade.
type Subscriptions []commanddispatcher.Subscription

// Unsubscribe releases every subscription in reverse order.
func (s Subscriptions) Unsubscribe() {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != nil {
			s[i].Unsubscribe()
		}
	}
}

// RegisterFacade registers the relay commands and queries with the registry
// and subscribes them on the global dispatcher. On error nothing stays
// subscribed.
func RegisterFacade(adapter *RegistryAdapter, facade *relay.Facade, runnerOpts ...runner.Option) (Subscriptions, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if facade == nil {
		return nil, fmt.Errorf("gocommand: relay facade is required")
	}

	var subs Subscriptions
	track := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	commands := facade.Commands()
	queries := facade.Queries()
	steps := []func() error{
		func() error { return track(registerCommand(adapter, commands.CreateTenant, runnerOpts...)) },
		func() error { return track(registerCommand(adapter, commands.SetCallback, runnerOpts...)) },
		func() error { return track(registerCommand(adapter, commands.RequestAuthCode, runnerOpts...)) },
		func() error { return track(registerCommand(adapter, commands.SubmitAuthCode, runnerOpts...)) },
		func() error { return track(registerCommand(adapter, commands.SetAuthorization, runnerOpts...)) },
		func() error { return track(registerCommand(adapter, commands.StartDispatch, runnerOpts...)) },
		func() error { return track(registerCommand(adapter, commands.StopDispatch, runnerOpts...)) },
		func() error { return track(registerCommand(adapter, commands.Reconcile, runnerOpts...)) },
		func() error { return track(registerCommand(adapter, commands.ReceiveInbound, runnerOpts...)) },
		func() error { return track(registerQuery(adapter, queries.GetTenant, runnerOpts...)) },
		func() error { return track(registerQuery(adapter, queries.ListTenants, runnerOpts...)) },
		func() error { return track(registerQuery(adapter, queries.DispatcherStatus, runnerOpts...)) },
		func() error { return track(registerQuery(adapter, queries.DispatcherSnapshot, runnerOpts...)) },
		func() error { return track(registerQuery(adapter, queries.ListMessages, runnerOpts...)) },
		func() error { return track(registerQuery(adapter, queries.GetMessage, runnerOpts...)) },
		func() error { return track(registerQuery(adapter, queries.FeedCursor, runnerOpts...)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			subs.Unsubscribe()
			return nil, err
		}
	}
	return subs, nil
}
