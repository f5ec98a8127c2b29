package core

import (
	"context"
	"sort"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Observer logs and counts webhook outcomes.
type Observer struct {
	Logger  Logger
	Metrics MetricsRecorder
}

func NewObserver(logger Logger, metrics MetricsRecorder) Observer {
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return Observer{
		Logger:  glog.Ensure(logger),
		Metrics: metrics,
	}
}

// ObserveOutcome records one handled delivery. outcome is a short label such
// as "user_created", "ignored" or "signature_invalid".
func (o Observer) ObserveOutcome(
	ctx context.Context,
	startedAt time.Time,
	outcome string,
	err error,
	fields map[string]any,
) {
	outcome = normalizeOutcome(outcome)
	if outcome == "" {
		outcome = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	elapsed := time.Since(startedAt)

	contextFields := cloneFields(fields)
	contextFields["outcome"] = outcome
	contextFields["status"] = status
	contextFields["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := map[string]string{
		"outcome": outcome,
		"status":  status,
	}
	for _, key := range []string{"provider_id", "event_type"} {
		if value := TrimAny(contextFields[key]); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}

	o.recordCounter(ctx, MetricWebhookTotal, 1, tags)
	o.recordHistogram(ctx, MetricWebhookDurationMS, float64(elapsed.Milliseconds()), tags)

	if err != nil {
		o.Error(ctx, "webhook "+outcome, contextFields)
		return
	}
	o.Info(ctx, "webhook "+outcome, contextFields)
}

func (o Observer) Info(ctx context.Context, message string, fields map[string]any) {
	o.logWithLevel(ctx, "info", message, fields)
}

func (o Observer) Warn(ctx context.Context, message string, fields map[string]any) {
	o.logWithLevel(ctx, "warn", message, fields)
}

func (o Observer) Error(ctx context.Context, message string, fields map[string]any) {
	o.logWithLevel(ctx, "error", message, fields)
}

func (o Observer) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if o.Logger == nil {
		return
	}
	logger := o.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (o Observer) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.IncCounter(ctx, strings.TrimSpace(name), value, metricTags(tags))
}

func (o Observer) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.ObserveHistogram(ctx, strings.TrimSpace(name), value, metricTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
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

func normalizeOutcome(outcome string) string {
	outcome = strings.TrimSpace(strings.ToLower(outcome))
	outcome = strings.ReplaceAll(outcome, " ", "_")
	outcome = strings.ReplaceAll(outcome, "-", "_")
	outcome = strings.ReplaceAll(outcome, ".", "_")
	return outcome
}
