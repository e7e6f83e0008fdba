package profiler

import (
	"log"
	"runtime"
	"sync"
	"time"
)

// Report is one interval of collected statistics.
type Report struct {
	// FPS is the frame rate over the interval.
	FPS float64
	// HeapMB is the live heap size in megabytes.
	HeapMB float64
	// GCCount is the total number of completed GC cycles.
	GCCount uint32
	// Passes is the number of peel passes observed during the interval.
	Passes int
	// AvgLayers is the mean number of layers peeled per pass.
	AvgLayers float64
	// AvgPass is the mean duration of a peel pass.
	AvgPass time.Duration
	// MaxPass is the longest peel pass.
	MaxPass time.Duration
}

// Profiler tracks frame rate, memory and peel pass timing for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu *sync.Mutex

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats

	passes    int
	layers    int
	passTotal time.Duration
	passMax   time.Duration

	last Report
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		mu:             &sync.Mutex{},
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// SetInterval sets how often Tick reports. Non-positive values report on every tick.
//
// Parameters:
//   - d: the reporting interval
func (p *Profiler) SetInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateInterval = d
}

// Observe records one peel pass.
//
// Parameters:
//   - layers: the number of layers the pass peeled
//   - d: the wall time of the pass
func (p *Profiler) Observe(layers int, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passes++
	p.layers += layers
	p.passTotal += d
	p.passMax = max(p.passMax, d)
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	r := Report{
		HeapMB:  float64(p.memStats.Alloc) / 1024 / 1024,
		GCCount: p.memStats.NumGC,
		Passes:  p.passes,
		MaxPass: p.passMax,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		r.FPS = float64(p.frameCount) / secs
	}
	if p.passes > 0 {
		r.AvgLayers = float64(p.layers) / float64(p.passes)
		r.AvgPass = p.passTotal / time.Duration(p.passes)
	}

	log.Printf("[Profiler] FPS: %.2f | Heap: %.2f MB | GC: %d | Peel: %d passes, %.1f layers avg, %s avg, %s max",
		r.FPS, r.HeapMB, r.GCCount, r.Passes, r.AvgLayers, r.AvgPass, r.MaxPass)

	p.last = r
	p.frameCount = 0
	p.lastTime = currentTime
	p.passes, p.layers = 0, 0
	p.passTotal, p.passMax = 0, 0
	return true
}

// Last returns the most recently logged report.
func (p *Profiler) Last() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
