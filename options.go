package stm

import (
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orizon-labs/regiontx/internal/region"
)

// Option configures a Region at Create time.
type Option func(*region.Config)

// WithZeroOnFree clears a segment's bytes the instant it is tombstoned by
// Free, rather than leaving the old contents in place until the buffer is
// reused. Off by default, mirroring the teacher's opt-in
// SecurityPolicy.EnableZeroOnFree.
func WithZeroOnFree() Option {
	return func(c *region.Config) { c.ZeroOnFree = true }
}

// WithLogger sets the structured logger the region and its transactions
// report to. The default is a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(c *region.Config) { c.Logger = logger }
}

// WithMetricsRegisterer enables Prometheus instrumentation, registering
// the region's counters and gauges against reg. Without this option the
// region collects no metrics.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *region.Config) { c.Metrics = metricsFor(reg) }
}
