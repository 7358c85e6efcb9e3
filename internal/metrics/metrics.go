// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CaptureFramesTotal counts frames read from the capture source
	CaptureFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siemtap_capture_frames_total",
			Help: "Total number of frames read from the capture source",
		},
	)

	// CaptureDropsTotal counts frames the source or kernel dropped
	CaptureDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siemtap_capture_drops_total",
			Help: "Total number of frames dropped before decoding",
		},
	)

	// DecodeDepthTotal counts records by the deepest layer decoded
	DecodeDepthTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siemtap_decode_depth_total",
			Help: "Total number of records by deepest decoded layer",
		},
		[]string{"layer"},
	)

	// RecordsTotal counts records by classified application protocol
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siemtap_records_total",
			Help: "Total number of records by application protocol",
		},
		[]string{"app_protocol"},
	)

	// ReporterRecordsTotal counts records accepted by each reporter
	ReporterRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siemtap_reporter_records_total",
			Help: "Total number of records accepted by a reporter",
		},
		[]string{"reporter"},
	)

	// ReporterErrorsTotal counts reporter errors by name
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siemtap_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
		[]string{"reporter"},
	)
)
