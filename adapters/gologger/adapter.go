package gologger

import (
	"context"
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-relay/core"
)

const DefaultJobLoggerName = "relay.jobs"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultJobLoggerName
	}
	return glog.Resolve(name, provider, logger)
}

func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the relay logger and returns the go-job bridges
// for the same sink.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// JobLogHook writes relay job lifecycle events as structured log lines.
type JobLogHook struct {
	logger glog.Logger
}

func NewJobLogHook(provider glog.LoggerProvider, logger glog.Logger) *JobLogHook {
	_, resolved := Resolve(DefaultJobLoggerName, provider, logger)
	return &JobLogHook{logger: resolved}
}

func (h *JobLogHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx).Debug("relay job started", jobEventFields(event)...)
}

func (h *JobLogHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx).Info("relay job succeeded", jobEventFields(event)...)
}

func (h *JobLogHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx).Error("relay job failed", jobEventFields(event)...)
}

func (h *JobLogHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx).Warn("relay job retry scheduled", jobEventFields(event)...)
}

func (h *JobLogHook) log(ctx context.Context) glog.Logger {
	if h == nil || h.logger == nil {
		return glog.Nop()
	}
	if ctx == nil {
		return h.logger
	}
	return h.logger.WithContext(ctx)
}

func jobEventFields(event core.JobWorkerEvent) []any {
	fields := []any{"attempt", event.Attempt}
	if event.Message != nil {
		fields = append(fields, "job_id", event.Message.JobID)
		if event.Message.IdempotencyKey != "" {
			fields = append(fields, "idempotency_key", event.Message.IdempotencyKey)
		}
	}
	if event.Delay > 0 {
		fields = append(fields, "delay", event.Delay.String())
	}
	if event.Duration > 0 {
		fields = append(fields, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	return fields
}

var _ core.JobWorkerHook = (*JobLogHook)(nil)
