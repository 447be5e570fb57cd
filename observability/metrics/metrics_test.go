package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type testEvent string

func (e testEvent) EventType() string { return string(e) }

func TestCollectorCountsPerEventType(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewCollector(reg)

	collector.Emit(testEvent("campaign.created"))
	collector.Emit(testEvent("campaign.invested"))
	collector.Emit(testEvent("campaign.invested"))
	collector.Emit(nil)

	expected := `
# HELP tokenvest_events_total Number of platform events emitted, by event type.
# TYPE tokenvest_events_total counter
tokenvest_events_total{type="campaign.created"} 1
tokenvest_events_total{type="campaign.invested"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "tokenvest_events_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}
