package core

import (
	"context"
	"strings"
)

// Webhook metric names. Both carry outcome and status tags, plus
// provider_id and event_type when known.
const (
	MetricWebhookTotal      = "identity_sync.webhook.total"
	MetricWebhookDurationMS = "identity_sync.webhook.duration_ms"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// metricTags copies tags for a recorder, dropping blank keys and values so
// backends never see empty label names.
func metricTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for key, value := range tags {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

var _ MetricsRecorder = NopMetricsRecorder{}
