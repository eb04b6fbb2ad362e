package prommetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestMetrics_RecordWebhookEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "tiergate")

	m.RecordWebhookEvent("stripe", "checkout.session.completed", "upgraded")
	m.RecordWebhookEvent("stripe", "checkout.session.completed", "upgraded")
	m.RecordWebhookEvent("stripe", "invoice.payment_succeeded", "ignored")

	mf := gatherFamily(t, reg, "tiergate_billing_webhook_events_total")
	require.NotNil(t, mf, "webhook events counter not registered")
	assert.Len(t, mf.GetMetric(), 2)

	for _, metric := range mf.GetMetric() {
		labels := map[string]string{}
		for _, lp := range metric.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["event_type"] == "checkout.session.completed" {
			assert.Equal(t, float64(2), metric.GetCounter().GetValue())
		} else {
			assert.Equal(t, float64(1), metric.GetCounter().GetValue())
		}
	}
}

func TestMetrics_RecordTierChange(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "tiergate")

	m.RecordTierChange("stripe", "free", "pro")

	mf := gatherFamily(t, reg, "tiergate_billing_tier_changes_total")
	require.NotNil(t, mf)
	require.Len(t, mf.GetMetric(), 1)
	assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
}

func TestMetrics_Durations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "tiergate")

	m.RecordWebhookProcessingDuration("stripe", "checkout.session.completed", 42*time.Millisecond)
	m.RecordAPICallDuration("stripe", "/checkout/sessions", 10*time.Millisecond)

	mf := gatherFamily(t, reg, "tiergate_billing_webhook_processing_duration_seconds")
	require.NotNil(t, mf)
	assert.Equal(t, uint64(1), mf.GetMetric()[0].GetHistogram().GetSampleCount())
}
