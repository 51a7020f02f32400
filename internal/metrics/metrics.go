// Package metrics exposes the DPI core and capture pipeline's counters
// and gauges as Prometheus metrics, generalizing heplify's hand-counted
// decoder.stats struct into a registered, per-Identifier CounterVec.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sipcapture/xailyser/internal/dpi"
)

const (
	namespace = "xailyser"
	subsystem = "dpi"
)

const labelProtocol = "protocol"

// Collector holds every Prometheus metric the capture server exposes.
type Collector struct {
	// LayersDecoded counts successfully decoded layers, one series per
	// dpi.Identifier — the registered counterpart of decoder.go's
	// ip4Count/ip6Count/tcpCount/udpCount/dnsCount/unknownCount fields.
	LayersDecoded *prometheus.CounterVec

	// FramesParsed counts frames whose traversal reached resComplete.
	FramesParsed prometheus.Counter
	// FramesIncomplete counts frames whose traversal reached
	// resIncomplete (a recognized prefix, unrecognized remainder).
	FramesIncomplete prometheus.Counter
	// FramesFailed counts frames whose traversal reached resFailed (the
	// frame itself was malformed).
	FramesFailed prometheus.Counter
	// DepthExceeded is registered for frames that hit the bounded-recursion
	// limit. Nothing increments it: dpi.Parse reports a depth abort as an
	// ordinary failed frame.
	DepthExceeded prometheus.Counter

	// ActiveConnections tracks the currently open control-channel
	// sessions. It is exported under the "sampler" subsystem.
	ActiveConnections prometheus.Gauge
	// FanoutSubscribers tracks the fanout's currently connected clients.
	FanoutSubscribers prometheus.Gauge
}

// NewCollector builds a Collector and registers it against reg. If reg is
// nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newCollector()
	reg.MustRegister(
		c.LayersDecoded,
		c.FramesParsed,
		c.FramesIncomplete,
		c.FramesFailed,
		c.DepthExceeded,
		c.ActiveConnections,
		c.FanoutSubscribers,
	)
	return c
}

func newCollector() *Collector {
	return &Collector{
		LayersDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "layers_decoded_total",
			Help:      "Total layers successfully decoded, labeled by protocol identifier.",
		}, []string{labelProtocol}),

		FramesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_parsed_total",
			Help:      "Total frames whose traversal completed fully.",
		}),
		FramesIncomplete: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_incomplete_total",
			Help:      "Total frames decoded to a partial, unrecognized-remainder result.",
		}),
		FramesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_failed_total",
			Help:      "Total frames whose traversal failed outright.",
		}),
		DepthExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "depth_exceeded_total",
			Help:      "Total frames that hit the bounded recursion depth.",
		}),

		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "active_connections",
			Help:      "Number of currently open control-channel sessions.",
		}),
		FanoutSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "subscribers",
			Help:      "Number of currently connected inspection clients.",
		}),
	}
}

// ObserveLayer increments the per-protocol decoded-layer counter.
func (c *Collector) ObserveLayer(id dpi.Identifier) {
	c.LayersDecoded.WithLabelValues(id.String()).Inc()
}
