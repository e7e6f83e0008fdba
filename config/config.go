// Package config loads depth peeling settings from TOML or YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/peel"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for a file extension other than .toml, .yaml or .yml.
var ErrUnsupportedFormat = errors.New("config: unsupported format")

// Format is a configuration file syntax.
type Format int

const (
	// FormatTOML is TOML v1.0.
	FormatTOML Format = iota

	// FormatYAML is YAML 1.2.
	FormatYAML
)

// FormatFromPath picks the format from a file extension.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Format: the format
//   - error: ErrUnsupportedFormat for an unknown extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Peel holds the depth peeling settings of a host application. Keys missing from a file keep
// their Default value.
type Peel struct {
	// PeelDepth is the number of layers peeled per frame.
	PeelDepth int `toml:"peel_depth" yaml:"peel_depth"`

	// PoolMode is "fixed" or "pingpong".
	PoolMode string `toml:"pool_mode" yaml:"pool_mode"`

	// Epsilon is the depth comparison margin.
	Epsilon float32 `toml:"epsilon" yaml:"epsilon"`

	// Width and Height fix the logical buffer size. Zero follows the device size.
	Width  int `toml:"width" yaml:"width"`
	Height int `toml:"height" yaml:"height"`

	// PixelScale is the ratio between logical size and buffer pixels.
	PixelScale float32 `toml:"pixel_scale" yaml:"pixel_scale"`

	// Enabled turns peeling on. When off the scene is drawn with its own blending.
	Enabled bool `toml:"enabled" yaml:"enabled"`

	// ClearColor is the RGBA background the host clears the default framebuffer to.
	ClearColor [4]float32 `toml:"clear_color" yaml:"clear_color"`
}

// Default returns the settings used when no file is given.
//
// Returns:
//   - Peel: the default settings
func Default() Peel {
	return Peel{
		PeelDepth:  peel.DefaultPeelDepth,
		PoolMode:   peel.PoolModeFixed.String(),
		Epsilon:    peel.DefaultEpsilon,
		PixelScale: 1,
		Enabled:    true,
		ClearColor: [4]float32{0, 0, 0, 1},
	}
}

// Load reads and validates a settings file, picking the syntax from its extension.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Peel: the settings
//   - error: a read, syntax or validation error
func Load(path string) (Peel, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Peel{}, err
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Peel{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	p, err := Parse(data, format)
	if err != nil {
		return Peel{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates settings. Unknown keys are rejected.
//
// Parameters:
//   - data: the file contents
//   - format: the syntax
//
// Returns:
//   - Peel: the settings
//   - error: a syntax or validation error
func Parse(data []byte, format Format) (Peel, error) {
	p := Default()
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Peel{}, fmt.Errorf("decode toml: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return Peel{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return Peel{}, fmt.Errorf("%w: Format(%d)", ErrUnsupportedFormat, int(format))
	}
	if err := p.Validate(); err != nil {
		return Peel{}, err
	}
	return p, nil
}

// Validate checks every field. Errors wrap peel.ErrInvalidConfig.
//
// Returns:
//   - error: the first invalid field
func (p Peel) Validate() error {
	if p.PeelDepth < 1 {
		return fmt.Errorf("%w: peel_depth %d", peel.ErrInvalidConfig, p.PeelDepth)
	}
	if _, err := peel.ParsePoolMode(p.PoolMode); err != nil {
		return err
	}
	if p.Epsilon < 0 {
		return fmt.Errorf("%w: epsilon %v", peel.ErrInvalidConfig, p.Epsilon)
	}
	if p.Width < 0 || p.Height < 0 || (p.Width == 0) != (p.Height == 0) {
		return fmt.Errorf("%w: size %dx%d", peel.ErrInvalidConfig, p.Width, p.Height)
	}
	if p.PixelScale <= 0 {
		return fmt.Errorf("%w: pixel_scale %v", peel.ErrInvalidConfig, p.PixelScale)
	}
	for i, c := range p.ClearColor {
		if c < 0 || c > 1 {
			return fmt.Errorf("%w: clear_color[%d] %v", peel.ErrInvalidConfig, i, c)
		}
	}
	return nil
}

// Options turns the settings into driver options.
//
// Returns:
//   - []peel.DriverBuilderOption: the options
//   - error: a validation error
func (p Peel) Options() ([]peel.DriverBuilderOption, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	mode, _ := peel.ParsePoolMode(p.PoolMode)
	opts := []peel.DriverBuilderOption{
		peel.WithPeelDepth(p.PeelDepth),
		peel.WithPoolMode(mode),
		peel.WithEpsilon(p.Epsilon),
		peel.WithPixelScale(p.PixelScale),
		peel.WithEnabled(p.Enabled),
	}
	if p.Width > 0 {
		opts = append(opts, peel.WithSize(p.Width, p.Height))
	}
	return opts, nil
}

// RendererOptions returns the renderer options the settings imply: clear color and pixel ratio,
// plus the size when one is fixed.
//
// Returns:
//   - []renderer.RendererBuilderOption: the options
func (p Peel) RendererOptions() []renderer.RendererBuilderOption {
	opts := []renderer.RendererBuilderOption{
		renderer.WithClearColor(common.RGBA(p.ClearColor[0], p.ClearColor[1], p.ClearColor[2], p.ClearColor[3])),
		renderer.WithPixelRatio(p.PixelScale),
	}
	if p.Width > 0 {
		opts = append(opts, renderer.WithSize(common.ScaledSize(p.Width, p.Height, p.PixelScale)))
	}
	return opts
}
