// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers match them with errors.Is.
var (
	// Header decoding errors. They never escape decoder.Decode, which degrades
	// to a partially populated record instead.
	ErrInsufficientData = errors.New("siemtap: insufficient data")
	ErrMalformedHeader  = errors.New("siemtap: malformed header")

	// Capture errors
	ErrCaptureTimeout  = errors.New("siemtap: capture read timeout")
	ErrCaptureNotFound = errors.New("siemtap: capture plugin not found")
	ErrCaptureClosed   = errors.New("siemtap: capture handle closed")

	// Reporter errors
	ErrReporterNotFound = errors.New("siemtap: reporter plugin not found")
	ErrNotConnected     = errors.New("siemtap: not connected to collector")

	// Configuration errors
	ErrConfigInvalid = errors.New("siemtap: invalid configuration")
)
