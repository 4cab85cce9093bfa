// Package metrics exposes the engine's Prometheus instrumentation. It
// mirrors the construction idiom dreamsxin-wal uses for its write-ahead
// log (promauto.With(reg).New*), adapted to a segment-based transactional
// memory engine's counters and gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters and gauges a Region reports. A nil *Metrics
// is safe to call methods on; every method is a no-op in that case so
// callers that never opt into metrics pay nothing.
type Metrics struct {
	transactionsCommitted prometheus.Counter
	transactionsAborted   *prometheus.CounterVec
	segmentsAllocated     prometheus.Counter
	segmentsFreed         prometheus.Counter
	segmentsLive          prometheus.Gauge
}

// New registers the engine's metrics against reg. If reg is nil, a private
// registry is created so the library never pollutes the default global
// registry unless the caller explicitly hands one in.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Metrics{
		transactionsCommitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "regiontx_transactions_committed_total",
			Help: "regiontx_transactions_committed_total counts transactions that reached End successfully.",
		}),
		transactionsAborted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "regiontx_transactions_aborted_total",
			Help: "regiontx_transactions_aborted_total counts aborted transactions by reason.",
		}, []string{"reason"}),
		segmentsAllocated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "regiontx_segments_allocated_total",
			Help: "regiontx_segments_allocated_total counts segments created via Alloc, including the root segment.",
		}),
		segmentsFreed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "regiontx_segments_freed_total",
			Help: "regiontx_segments_freed_total counts segments physically removed on commit of a pending free or on rollback of a pending allocation.",
		}),
		segmentsLive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "regiontx_segments_live",
			Help: "regiontx_segments_live is the current number of segments in the region, including the root.",
		}),
	}
}

// AbortReason enumerates why a transaction aborted, used as the metrics
// label and in logging.
type AbortReason string

const (
	AbortSegmentNotFound AbortReason = "segment_not_found"
	AbortLockContention   AbortReason = "lock_contention"
	AbortTombstoned       AbortReason = "tombstoned"
	AbortReadOnly         AbortReason = "read_only"
	AbortOutOfMemory      AbortReason = "out_of_memory"
)

func (m *Metrics) CommitTransaction() {
	if m == nil {
		return
	}
	m.transactionsCommitted.Inc()
}

func (m *Metrics) AbortTransaction(reason AbortReason) {
	if m == nil {
		return
	}
	m.transactionsAborted.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) SegmentAllocated() {
	if m == nil {
		return
	}
	m.segmentsAllocated.Inc()
	m.segmentsLive.Inc()
}

func (m *Metrics) SegmentFreed() {
	if m == nil {
		return
	}
	m.segmentsFreed.Inc()
	m.segmentsLive.Dec()
}
