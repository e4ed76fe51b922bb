// Package options provides the functional-options surface for the
// public e2e facade (root package e2e), following the same WithXxx
// builder pattern as the rest of the ambient stack.
package options

import (
	"github.com/bgrewell/e2e-kit/pkg/ufloat16"
	"github.com/go-logr/logr"
)

// Options represents the options for reading a .e2e file.
type Options struct {
	// Logger receives trace/debug detail and the warnings spec section 7
	// calls for on recoverable per-chunk decode failures. Defaults to
	// logr.Discard().
	Logger logr.Logger

	// TrailingPlaceholderCompat mirrors the documented (flagged, spec
	// section 9) source behavior of only inspecting a volume's first
	// slot to decide whether to drop it: trailing unfilled slots in an
	// otherwise-populated volume are retained rather than causing the
	// whole volume to be dropped. Defaults to true.
	TrailingPlaceholderCompat bool

	// ZeroSizedImageAbortsScan mirrors the documented (flagged, spec
	// section 9) source behavior of aborting the remaining chunk scan
	// entirely on encountering a zero-sized image chunk. Defaults to
	// true.
	ZeroSizedImageAbortsScan bool

	// LUT lets a caller inject a precomputed UFloat16 lookup table,
	// e.g. a process-wide shared instance, instead of building one per
	// call. Defaults to ufloat16.Shared().
	LUT *ufloat16.Table
}

// Option represents a function that modifies the Options.
type Option func(*Options)

// WithLogger sets the Logger used to report trace detail and recoverable
// per-chunk warnings.
func WithLogger(logger logr.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTrailingPlaceholderCompat toggles the documented trailing-sentinel
// compatibility behavior (spec section 9, Open Question 2).
func WithTrailingPlaceholderCompat(enabled bool) Option {
	return func(o *Options) {
		o.TrailingPlaceholderCompat = enabled
	}
}

// WithZeroSizedImageAbortsScan toggles the documented zero-sized-image
// abort behavior (spec section 9, Open Question 1).
func WithZeroSizedImageAbortsScan(enabled bool) Option {
	return func(o *Options) {
		o.ZeroSizedImageAbortsScan = enabled
	}
}

// WithLUT injects a precomputed UFloat16 lookup table.
func WithLUT(lut *ufloat16.Table) Option {
	return func(o *Options) {
		o.LUT = lut
	}
}

// Default returns the default Options, matching the documented source
// behavior unless overridden.
func Default() Options {
	return Options{
		Logger:                    logr.Discard(),
		TrailingPlaceholderCompat: true,
		ZeroSizedImageAbortsScan:  true,
	}
}
