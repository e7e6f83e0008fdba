package peel

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
)

// State is the phase of the driver's peel loop.
type State int

const (
	// StateIdle is the state before the first Render and after a failed one.
	StateIdle State = iota

	// StatePeeling is the state while layers are being rendered and composited.
	StatePeeling

	// StateDone is the state after a Render completed.
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePeeling:
		return "peeling"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// deviceState is the renderer state a Render changes and puts back on every exit path.
type deviceState struct {
	target     renderer.RenderTarget
	clearColor common.Color
	blendMode  renderer.BlendMode
}

func saveDeviceState(device renderer.Renderer) deviceState {
	return deviceState{
		target:     device.RenderTarget(),
		clearColor: device.ClearColor(),
		blendMode:  device.BlendMode(),
	}
}

func (s deviceState) restore(device renderer.Renderer) {
	device.SetRenderTarget(s.target)
	device.SetClearColor(s.clearColor)
	device.SetBlendMode(s.blendMode)
}
