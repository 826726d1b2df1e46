package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSessionMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSessionMetrics(reg)

	m.IncDetection()
	m.IncDetection()
	m.IncQuotaDenied()
	m.IncOrderCommitted()
	m.ObserveRecordingSeconds(12)

	if got := testutil.ToFloat64(m.detections); got != 2 {
		t.Fatalf("detections = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.quotaDenials); got != 1 {
		t.Fatalf("quota denials = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.orders); got != 1 {
		t.Fatalf("orders = %v, want 1", got)
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	m := NewSessionMetrics(nil)
	m.IncDetection()
	m.IncRecordingStarted()
	m.ObserveRecordingSeconds(1)

	c := NewCronJobMetrics(nil)
	c.IncSuccess("orders retention")
	c.ObserveDuration("orders retention", time.Second)
}

func TestNormalizeLabel(t *testing.T) {
	if got := jobLabel("  Orders Retention "); got != "orders_retention" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := jobLabel(""); got != "unknown" {
		t.Fatalf("unexpected label %q", got)
	}
}
