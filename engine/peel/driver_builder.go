package peel

// DriverBuilderOption configures a Driver.
type DriverBuilderOption func(*driver)

// WithPeelDepth sets the number of layers peeled per Render.
// Defaults to DefaultPeelDepth.
//
// Parameters:
//   - n: the layer count, at least 1
//
// Returns:
//   - DriverBuilderOption: a function that applies the peel depth option
func WithPeelDepth(n int) DriverBuilderOption {
	return func(d *driver) {
		d.config.peelDepth = n
	}
}

// WithPoolMode sets how many physical layer buffers back the loop.
// Defaults to PoolModeFixed.
//
// Parameters:
//   - mode: the pool mode
//
// Returns:
//   - DriverBuilderOption: a function that applies the pool mode option
func WithPoolMode(mode PoolMode) DriverBuilderOption {
	return func(d *driver) {
		d.config.mode = mode
	}
}

// WithEpsilon sets the depth comparison margin.
// Defaults to DefaultEpsilon.
//
// Parameters:
//   - epsilon: the margin, not negative
//
// Returns:
//   - DriverBuilderOption: a function that applies the epsilon option
func WithEpsilon(epsilon float32) DriverBuilderOption {
	return func(d *driver) {
		d.config.epsilon = epsilon
	}
}

// WithSize fixes the logical layer buffer size. Without it the buffers follow the device size.
//
// Parameters:
//   - width, height: the logical size
//
// Returns:
//   - DriverBuilderOption: a function that applies the size option
func WithSize(width, height int) DriverBuilderOption {
	return func(d *driver) {
		d.config.width, d.config.height = width, height
	}
}

// WithPixelScale sets the ratio between the logical size and buffer pixels.
// Defaults to 1.
//
// Parameters:
//   - scale: the pixel scale, positive
//
// Returns:
//   - DriverBuilderOption: a function that applies the pixel scale option
func WithPixelScale(scale float32) DriverBuilderOption {
	return func(d *driver) {
		d.config.pixelScale = scale
	}
}

// WithEnabled sets whether Render peels or draws the source scene directly.
// Defaults to true.
func WithEnabled(enabled bool) DriverBuilderOption {
	return func(d *driver) {
		d.config.enabled = enabled
	}
}

// WithInjectorOptions passes options to the driver's Injector.
func WithInjectorOptions(options ...InjectorBuilderOption) DriverBuilderOption {
	return func(d *driver) {
		d.injectorOptions = append(d.injectorOptions, options...)
	}
}
