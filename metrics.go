package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts handshakes that installed a credential pair.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts handshakes that ended without a pair.
	MetricLoginFailure
	// MetricRefreshSuccess counts exchanges that installed a new pair.
	MetricRefreshSuccess
	// MetricRefreshFailure counts exchanges that failed and cleared the session.
	MetricRefreshFailure
	// MetricRefreshJoined counts callers that shared an in-flight exchange.
	MetricRefreshJoined
	// MetricRefreshSkipped counts renewals answered with an already newer credential.
	MetricRefreshSkipped
	// MetricNoRefreshCredential counts refreshes requested without a refresh credential.
	MetricNoRefreshCredential
	// MetricRetryAttempted counts requests replayed after a 401.
	MetricRetryAttempted
	// MetricRetrySucceeded counts replays the API accepted.
	MetricRetrySucceeded
	// MetricRetryExhausted counts replays that were rejected again.
	MetricRetryExhausted
	// MetricSessionEnded counts sessions ended after a fatal renewal failure.
	MetricSessionEnded
	// MetricLogout counts logouts that cleared a session.
	MetricLogout
	// MetricLogoutNetworkFailure counts logouts whose revoke call failed.
	MetricLogoutNetworkFailure
	// MetricProfileSuccess counts profile loads.
	MetricProfileSuccess
	// MetricProfileFailure counts failed profile loads.
	MetricProfileFailure
	// MetricNavigationAllowed counts guarded navigations that were allowed.
	MetricNavigationAllowed
	// MetricNavigationLoginRedirect counts navigations sent to login.
	MetricNavigationLoginRedirect
	// MetricNavigationRoleDenied counts navigations denied for lack of role.
	MetricNavigationRoleDenied
	// MetricStorageDegraded counts credential stores that fell back to memory.
	MetricStorageDegraded
	// MetricAuditDropped counts audit events that never reached the sink.
	MetricAuditDropped
	// MetricRefreshLatency is the refresh exchange latency histogram.
	MetricRefreshLatency
	// MetricRequestLatency is the pipeline latency histogram, replay included.
	MetricRequestLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBounds are the inclusive upper bounds, in milliseconds, of the
// first seven latency buckets. The last bucket is unbounded.
var HistogramBounds = [histBucketCount - 1]float64{5, 10, 25, 50, 100, 250, 500}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and latency histograms. The zero value
// and a nil *Metrics are both valid and record nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every metric.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Only latency metrics carry
// histograms; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || !isLatencyMetric(id) {
		return
	}
	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, every latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isLatencyMetric(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricRefreshLatency, MetricRequestLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func isLatencyMetric(id MetricID) bool {
	return id == MetricRefreshLatency || id == MetricRequestLatency
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
