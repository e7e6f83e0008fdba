package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-peel/engine/camera"
	"github.com/Carmen-Shannon/oxy-peel/engine/peel"
	"github.com/Carmen-Shannon/oxy-peel/engine/profiler"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-peel/engine/scene"
	"github.com/Carmen-Shannon/oxy-peel/engine/window"
)

// ErrNotConfigured is returned when a frame is requested before the engine has a renderer,
// a camera and a peel driver.
var ErrNotConfigured = errors.New("engine: renderer, camera and driver are required")

// engine implements the Engine interface.
// Owns the frame loop that drives a peel.Driver against a renderer, optionally presenting to a window.
type engine struct {
	mu *sync.Mutex

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window   window.Window
	renderer renderer.Renderer
	driver   peel.Driver
	camera   camera.Camera
	output   peel.Output

	profiler         *profiler.Profiler
	profilingEnabled bool

	frameCallback func(deltaTime float32)
	frameCount    int

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine is the host loop for an order-independent transparency scene.
// Each frame it runs the frame callback, renders the prepared scene through the peel driver and
// presents the default framebuffer.
type Engine interface {
	// Window returns the window the engine presents to, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the device the engine renders with.
	Renderer() renderer.Renderer

	// Driver returns the peel driver.
	Driver() peel.Driver

	// Camera returns the camera the scene is rendered from.
	Camera() camera.Camera

	// SetScene prepares s for peeling and makes it the scene drawn each frame.
	//
	// Parameters:
	//   - s: the scene to draw
	//
	// Returns:
	//   - error: the driver's preparation error, if any
	SetScene(s scene.Scene) error

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetFrameCallback registers the function called at the start of each frame, before rendering.
	// Use this for input handling, camera updates and driver reconfiguration.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetFrameCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Frame renders a single frame.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous frame
	//
	// Returns:
	//   - *peel.Composite: the composite produced by the driver
	//   - error: ErrNotConfigured, a frame acquisition error or the driver's render error
	Frame(deltaTime float32) (*peel.Composite, error)

	// Frames returns the number of frames rendered successfully.
	Frames() int

	// Run starts the render loop. With a window it blocks until the window closes; headless it
	// blocks until Quit is called.
	Run()

	// Quit signals the render loop to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// When a window is configured its resize events resize the renderer and update the camera aspect.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:          &sync.Mutex{},
		quitChannel: make(chan struct{}),
		profiler:    profiler.NewProfiler(),
		output:      peel.OutputDefault(),
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.resize)
	}

	return e
}

// resize propagates a framebuffer size change to the renderer and the camera.
func (e *engine) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if e.renderer != nil {
		e.renderer.Resize(width, height)
	}
	if e.camera != nil {
		e.camera.SetAspect(float32(width) / float32(height))
	}
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Driver() peel.Driver {
	return e.driver
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) SetScene(s scene.Scene) error {
	if e.driver == nil {
		return ErrNotConfigured
	}
	if _, err := e.driver.Prepare(s); err != nil {
		return err
	}
	return nil
}

func (e *engine) Frame(deltaTime float32) (*peel.Composite, error) {
	e.mu.Lock()
	callback := e.frameCallback
	e.mu.Unlock()

	if callback != nil {
		callback(deltaTime)
	}

	if e.renderer == nil || e.camera == nil || e.driver == nil {
		return nil, ErrNotConfigured
	}

	if err := e.renderer.BeginFrame(); err != nil {
		return nil, fmt.Errorf("begin frame: %w", err)
	}
	start := time.Now()
	c, err := e.driver.Render(e.renderer, e.camera, e.output)
	e.renderer.Present()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.frameCount++
	profiling := e.profilingEnabled
	e.mu.Unlock()

	if profiling && e.profiler != nil {
		e.profiler.Observe(c.Layers, time.Since(start))
		e.profiler.Tick()
	}
	return c, nil
}

func (e *engine) Frames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameCount
}

func (e *engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.handleRender()

	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
}

// Quit signals the render goroutine to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal the render goroutine to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// A failed frame is logged and the loop continues. Recovers from panics to avoid crashing the
// process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			if _, err := e.Frame(dt); err != nil {
				log.Printf("frame failed: %v", err)
				if errors.Is(err, ErrNotConfigured) || errors.Is(err, peel.ErrDisposed) {
					e.signalQuit()
					return
				}
			}

			e.mu.Lock()
			limit := e.renderFrameLimit
			e.mu.Unlock()
			if limit > 0 {
				if remaining := limit - time.Since(lastRender); remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

// SetFrameCallback registers the function called at the start of each frame.
func (e *engine) SetFrameCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frameCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderFrameLimit = frameDuration(fps)
}

// frameDuration converts a frame rate into the minimum frame duration, 0 when uncapped.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
