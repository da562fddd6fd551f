package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by authcore APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricOTPIssued is an exported constant or variable used by the authentication engine.
	MetricOTPIssued MetricID = iota
	// MetricOTPIssueRateLimited is an exported constant or variable used by the authentication engine.
	MetricOTPIssueRateLimited
	// MetricOTPDeliveryFailed is an exported constant or variable used by the authentication engine.
	MetricOTPDeliveryFailed
	// MetricOTPVerifySuccess is an exported constant or variable used by the authentication engine.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure is an exported constant or variable used by the authentication engine.
	MetricOTPVerifyFailure
	// MetricOTPAttemptsExceeded is an exported constant or variable used by the authentication engine.
	MetricOTPAttemptsExceeded
	// MetricOwnershipVerified is an exported constant or variable used by the authentication engine.
	MetricOwnershipVerified
	// MetricOwnershipFailure is an exported constant or variable used by the authentication engine.
	MetricOwnershipFailure
	// MetricRecoverySessionOpened is an exported constant or variable used by the authentication engine.
	MetricRecoverySessionOpened
	// MetricRecoveryResetSuccess is an exported constant or variable used by the authentication engine.
	MetricRecoveryResetSuccess
	// MetricRecoveryResetFailure is an exported constant or variable used by the authentication engine.
	MetricRecoveryResetFailure
	// MetricRecoveryReplay is an exported constant or variable used by the authentication engine.
	MetricRecoveryReplay
	// MetricRecoveryAbandoned is an exported constant or variable used by the authentication engine.
	MetricRecoveryAbandoned
	// MetricWeakPasswordRejected is an exported constant or variable used by the authentication engine.
	MetricWeakPasswordRejected
	// MetricSignupSuccess is an exported constant or variable used by the authentication engine.
	MetricSignupSuccess
	// MetricSignupDuplicate is an exported constant or variable used by the authentication engine.
	MetricSignupDuplicate
	// MetricSignupFailure is an exported constant or variable used by the authentication engine.
	MetricSignupFailure
	// MetricLoginSuccess is an exported constant or variable used by the authentication engine.
	MetricLoginSuccess
	// MetricLoginFailure is an exported constant or variable used by the authentication engine.
	MetricLoginFailure
	// MetricLoginRateLimited is an exported constant or variable used by the authentication engine.
	MetricLoginRateLimited
	// MetricApprovalChanged is an exported constant or variable used by the authentication engine.
	MetricApprovalChanged
	// MetricRateLimitHit is an exported constant or variable used by the authentication engine.
	MetricRateLimitHit
	// MetricVerifyLatency is an exported constant or variable used by the authentication engine.
	MetricVerifyLatency
	metricIDCount
)

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

// Metrics defines a public type used by authcore APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by authcore APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are being recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample for the verify path histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a point-in-time deep copy of all metrics.
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
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
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
