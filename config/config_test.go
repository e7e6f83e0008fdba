package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-peel/engine/peel"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlConfig = `
peel_depth = 6
pool_mode = "pingpong"
epsilon = 0.0001
width = 320
height = 240
pixel_scale = 2.0
enabled = false
clear_color = [0.1, 0.2, 0.3, 1.0]
`

const yamlConfig = `
peel_depth: 6
pool_mode: pingpong
epsilon: 0.0001
width: 320
height: 240
pixel_scale: 2
enabled: false
clear_color: [0.1, 0.2, 0.3, 1.0]
`

func expected() Peel {
	return Peel{
		PeelDepth:  6,
		PoolMode:   "pingpong",
		Epsilon:    0.0001,
		Width:      320,
		Height:     240,
		PixelScale: 2,
		Enabled:    false,
		ClearColor: [4]float32{0.1, 0.2, 0.3, 1},
	}
}

func TestParseTOML(t *testing.T) {
	p, err := Parse([]byte(tomlConfig), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, expected(), p)
}

func TestParseYAML(t *testing.T) {
	p, err := Parse([]byte(yamlConfig), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, expected(), p)
}

func TestParseKeepsDefaults(t *testing.T) {
	p, err := Parse([]byte("peel_depth = 2\n"), FormatTOML)
	require.NoError(t, err)
	want := Default()
	want.PeelDepth = 2
	assert.Equal(t, want, p)

	p, err = Parse(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("layers = 4\n"), FormatTOML)
	assert.Error(t, err)
	_, err = Parse([]byte("layers: 4\n"), FormatYAML)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(p *Peel){
		"zero depth":       func(p *Peel) { p.PeelDepth = 0 },
		"unknown mode":     func(p *Peel) { p.PoolMode = "triple" },
		"negative epsilon": func(p *Peel) { p.Epsilon = -1 },
		"half size":        func(p *Peel) { p.Width = 100 },
		"zero scale":       func(p *Peel) { p.PixelScale = 0 },
		"clear color":      func(p *Peel) { p.ClearColor[2] = 2 },
	} {
		p := Default()
		mutate(&p)
		assert.ErrorIs(t, p.Validate(), peel.ErrInvalidConfig, name)
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"peel.toml": tomlConfig,
		"peel.yaml": yamlConfig,
		"peel.yml":  yamlConfig,
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		p, err := Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, expected(), p, name)
	}

	_, err := Load(filepath.Join(dir, "peel.json"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOptionsConfigureDriver(t *testing.T) {
	p := expected()
	opts, err := p.Options()
	require.NoError(t, err)

	d := peel.NewDriver(opts...)
	t.Cleanup(d.Dispose)
	assert.Equal(t, 6, d.PeelDepth())
	assert.Equal(t, peel.PoolModePingPong, d.PoolMode())
	assert.Equal(t, float32(0.0001), d.Epsilon())
	assert.False(t, d.Enabled())

	p.PeelDepth = 0
	_, err = p.Options()
	assert.ErrorIs(t, err, peel.ErrInvalidConfig)
}

func TestRendererOptions(t *testing.T) {
	p := Default()
	p.Width, p.Height, p.PixelScale = 5, 3, 2
	p.ClearColor = [4]float32{0.5, 0, 0, 1}

	r := renderer.NewRenderer(renderer.BackendTypeSoftware, p.RendererOptions()...)
	t.Cleanup(r.Release)
	w, h := r.Size()
	assert.Equal(t, [2]int{10, 6}, [2]int{w, h})
	assert.Equal(t, float32(2), r.PixelRatio())
	assert.Equal(t, float32(0.5), r.ClearColor().R)
}
