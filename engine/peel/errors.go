package peel

import "errors"

var (
	// ErrInvalidConfig is returned for a negative peel depth, a non-positive buffer size or an
	// unknown pool mode.
	ErrInvalidConfig = errors.New("peel: invalid configuration")

	// ErrAllocation wraps a device error raised while allocating layer or composite buffers.
	// The buffers held before the failing call are still valid.
	ErrAllocation = errors.New("peel: buffer allocation failed")

	// ErrInjection wraps a failure to instrument a material with the occlusion test.
	ErrInjection = errors.New("peel: shader injection failed")

	// ErrDisposed is returned by every operation on a disposed Driver.
	ErrDisposed = errors.New("peel: driver disposed")

	// ErrNotPrepared is returned by Render before any scene has been prepared.
	ErrNotPrepared = errors.New("peel: no scene prepared")
)
