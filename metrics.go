package sessionkit

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram.
type MetricID uint16

const (
	// MetricBootAuthenticated counts boots that ended signed in.
	MetricBootAuthenticated MetricID = iota
	// MetricBootUnauthenticated counts boots that ended signed out.
	MetricBootUnauthenticated
	MetricLoginSuccess
	MetricLoginFailure
	MetricRegisterSuccess
	MetricRegisterFailure
	MetricLogout
	// MetricAuthorizationFailure counts teardowns caused by a server
	// rejection.
	MetricAuthorizationFailure
	// MetricRemoteLogout counts logouts observed from another instance.
	MetricRemoteLogout
	MetricRemoteLogin
	MetricReconcileSuccess
	MetricReconcileFailure
	// MetricReconcileDiscarded counts reconciliations whose result lost to
	// a newer write.
	MetricReconcileDiscarded
	MetricIdentityUpdated
	// MetricSnapshotCorrupt counts unreadable persisted profiles.
	MetricSnapshotCorrupt
	// MetricExpiredCredential counts JWT credentials dropped at boot.
	MetricExpiredCredential
	MetricRefreshThrottled
	// MetricReconcileLatency is the only histogram.
	MetricReconcileLatency
	metricIDCount
)

// MetricCount is the number of defined metrics, for exporters.
const MetricCount = int(metricIDCount)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters record.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms record.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricReconcileLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads a counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, and the histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricReconcileLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricReconcileLatency].buckets[i])
		}
		s.Histograms[MetricReconcileLatency] = buckets
	}

	return s
}

// Upper bounds of the first seven latency buckets; the eighth is open.
var latencyBucketBounds = [histBucketCount - 1]time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
}

// LatencyBucketBounds returns the histogram's upper bounds for exporters.
func LatencyBucketBounds() []time.Duration {
	return append([]time.Duration(nil), latencyBucketBounds[:]...)
}

func bucketIndex(d time.Duration) int {
	for i, bound := range latencyBucketBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
