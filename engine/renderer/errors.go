package renderer

import "errors"

var (
	// ErrOutOfMemory is returned when the device cannot allocate a texture.
	ErrOutOfMemory = errors.New("renderer: out of device memory")

	// ErrReleased is returned when a released texture or target is used.
	ErrReleased = errors.New("renderer: resource released")

	// ErrNoFrame is returned when the default framebuffer is used outside BeginFrame/Present.
	ErrNoFrame = errors.New("renderer: no frame in flight")

	// ErrUnsupported is returned for operations a backend cannot perform.
	ErrUnsupported = errors.New("renderer: operation not supported by backend")
)
