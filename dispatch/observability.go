package dispatch

import (
	"context"
	"sort"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/webhooks"
)

type eventLogger struct {
	logger  core.Logger
	metrics core.MetricsRecorder
}

func newEventLogger(logger core.Logger, metrics core.MetricsRecorder) *eventLogger {
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &eventLogger{logger: glog.Ensure(logger), metrics: metrics}
}

func (l *eventLogger) observe(ctx context.Context, result webhooks.Result, fields map[string]any) {
	tags := map[string]string{"outcome": string(result.Outcome)}
	l.metrics.IncCounter(ctx, "relay.dispatch.delivery.total", 1, tags)
	l.metrics.ObserveHistogram(ctx, "relay.dispatch.delivery.attempts", float64(result.Attempts), tags)

	switch result.Outcome {
	case webhooks.OutcomeDelivered:
		l.info(ctx, "callback delivered", fields)
	case webhooks.OutcomeFailed:
		if result.Err != nil {
			fields["error"] = result.Err.Error()
		}
		fields["reason"] = webhooks.FailureReason(result)
		l.warn(ctx, "callback delivery failed", fields)
	default:
		l.warn(ctx, "callback delivery abandoned", fields)
	}
}

func (l *eventLogger) info(ctx context.Context, msg string, fields map[string]any) {
	l.with(ctx).Info(msg, flatten(fields)...)
}

func (l *eventLogger) warn(ctx context.Context, msg string, fields map[string]any) {
	l.with(ctx).Warn(msg, flatten(fields)...)
}

func (l *eventLogger) error(ctx context.Context, msg string, fields map[string]any) {
	l.with(ctx).Error(msg, flatten(fields)...)
}

func (l *eventLogger) with(ctx context.Context) core.Logger {
	if ctx == nil {
		return l.logger
	}
	return l.logger.WithContext(ctx)
}

func flatten(fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
