package pipeline

import (
	"sync/atomic"

	"firestige.xyz/siemtap/internal/core"
	"firestige.xyz/siemtap/internal/metrics"
)

// Metrics contains per-pipeline counters. Each update is mirrored into the
// process-wide Prometheus counters.
type Metrics struct {
	Received       atomic.Uint64 // frames read from the handle
	Dropped        atomic.Uint64 // frames dropped because the channel was full
	CaptureDropped atomic.Uint64 // drops reported by the capture source
	Decoded        atomic.Uint64 // records produced
	Reported       atomic.Uint64 // records accepted by at least one reporter
	ReportErrors   atomic.Uint64 // failed Report calls

	depth [core.LayerTransport + 1]atomic.Uint64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) observe(rec *core.PacketRecord) {
	m.Decoded.Add(1)

	layer := rec.Depth()
	m.depth[layer].Add(1)
	metrics.DecodeDepthTotal.WithLabelValues(layer.String()).Inc()
	metrics.RecordsTotal.WithLabelValues(rec.AppProtocol.String()).Inc()
}

func (m *Metrics) snapshot() Stats {
	s := Stats{
		Received:       m.Received.Load(),
		Dropped:        m.Dropped.Load(),
		CaptureDropped: m.CaptureDropped.Load(),
		Decoded:        m.Decoded.Load(),
		Reported:       m.Reported.Load(),
		ReportErrors:   m.ReportErrors.Load(),
		Depth:          make(map[core.Layer]uint64, len(m.depth)),
	}
	for i := range m.depth {
		s.Depth[core.Layer(i)] = m.depth[i].Load()
	}
	return s
}

// Stats represents pipeline statistics.
type Stats struct {
	Received       uint64
	Dropped        uint64
	CaptureDropped uint64
	Decoded        uint64
	Reported       uint64
	ReportErrors   uint64
	Depth          map[core.Layer]uint64 // records per deepest decoded layer
}
