package stm

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orizon-labs/regiontx/internal/engine"
	"github.com/orizon-labs/regiontx/internal/metrics"
	"github.com/orizon-labs/regiontx/internal/region"
)

func metricsFor(reg prometheus.Registerer) *metrics.Metrics { return metrics.New(reg) }

// Region is a handle to a collection of aligned byte segments. The zero
// value is not usable; obtain one with Create.
type Region struct {
	r *region.Region
}

// Create allocates a zero-initialized root segment of size bytes, aligned
// as requested, and returns the region that owns it. size must be a
// positive multiple of alignment, and alignment must be a power of two.
func Create(size, alignment uintptr, opts ...Option) (*Region, error) {
	var cfg region.Config
	for _, opt := range opts {
		opt(&cfg)
	}

	r, err := region.Create(size, alignment, cfg)
	if err != nil {
		return nil, err
	}
	return &Region{r: r}, nil
}

// Destroy releases every segment in the region, including the root, and
// the region itself. The caller must ensure no transaction against this
// region is in flight.
func (rg *Region) Destroy() error { return rg.r.Destroy() }

// Start returns the root segment's base address.
func (rg *Region) Start() uintptr { return rg.r.Start() }

// Size returns the root segment's size in bytes.
func (rg *Region) Size() uintptr { return rg.r.Size() }

// Alignment returns the region's byte alignment.
func (rg *Region) Alignment() uintptr { return rg.r.Alignment() }

// Begin opens a transaction against the region. If readOnly is true, only
// Read is legal against the returned transaction; Write, Alloc, and Free
// all abort it immediately.
func (rg *Region) Begin(readOnly bool) *Tx {
	return &Tx{tx: engine.Begin(rg.r, readOnly)}
}
