package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics tracks the scan and recording pipeline.
type SessionMetrics struct {
	detections   prometheus.Counter
	duplicates   prometheus.Counter
	recordings   prometheus.Counter
	quotaDenials prometheus.Counter
	orders       prometheus.Counter
	duration     prometheus.Histogram
}

// NewSessionMetrics registers the pipeline metrics on the provided registerer.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	if reg == nil {
		return &SessionMetrics{}
	}
	m := &SessionMetrics{
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scan_detections_total",
			Help: "QR payloads accepted by the scan engine.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scan_duplicates_suppressed_total",
			Help: "Repeat payloads dropped inside the lock window.",
		}),
		recordings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recordings_started_total",
			Help: "Recording sessions started.",
		}),
		quotaDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quota_denials_total",
			Help: "Detections refused because the daily free limit was reached.",
		}),
		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_committed_total",
			Help: "Orders committed after a finalized recording.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recording_duration_seconds",
			Help:    "Duration of finalized recordings.",
			Buckets: []float64{5, 10, 20, 30, 60, 120, 300},
		}),
	}
	reg.MustRegister(m.detections, m.duplicates, m.recordings, m.quotaDenials, m.orders, m.duration)
	return m
}

func (m *SessionMetrics) IncDetection() {
	if m == nil || m.detections == nil {
		return
	}
	m.detections.Inc()
}

func (m *SessionMetrics) IncDuplicateSuppressed() {
	if m == nil || m.duplicates == nil {
		return
	}
	m.duplicates.Inc()
}

func (m *SessionMetrics) IncRecordingStarted() {
	if m == nil || m.recordings == nil {
		return
	}
	m.recordings.Inc()
}

func (m *SessionMetrics) IncQuotaDenied() {
	if m == nil || m.quotaDenials == nil {
		return
	}
	m.quotaDenials.Inc()
}

func (m *SessionMetrics) IncOrderCommitted() {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.Inc()
}

func (m *SessionMetrics) ObserveRecordingSeconds(seconds float64) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(seconds)
}
