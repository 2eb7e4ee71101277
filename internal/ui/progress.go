package ui

import (
	"sync"
	"time"
)

// speedSampleInterval is the minimum gap between throughput samples.
// Sampling faster than this just measures scheduler noise.
const speedSampleInterval = 500 * time.Millisecond

// etaSmoothing is the weight of the newest raw estimate in the smoothed
// ETA. Lower values favor stability over responsiveness.
const etaSmoothing = 0.3

// SpeedStats carries throughput figures for display.
type SpeedStats struct {
	Current float64 // files/sec over the last sample window
	Avg     float64 // exponentially smoothed average
	Peak    float64
}

// ProgressStats is a snapshot of one stage's progress.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64 // 0.0 to 1.0
	ETA         time.Duration
	CurrentFile string
	ErrorCount  int
	WarnCount   int
	Speed       SpeedStats
}

// ProgressTracker accumulates progress state across stages. Safe for
// concurrent use.
type ProgressTracker struct {
	mu          sync.Mutex
	stage       Stage
	current     int
	total       int
	currentFile string
	startTime   time.Time
	stageStart  time.Time
	errors      []ErrorEvent
	warnings    []ErrorEvent

	lastETA time.Duration

	lastCurrent int
	lastSample  time.Time
	speed       SpeedStats
	sampled     bool
	spark       *Sparkline
}

// NewProgressTracker creates a tracker starting in the scanning stage.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageScanning,
		startTime:  now,
		stageStart: now,
		lastSample: now,
		spark:      NewSparkline(60),
	}
}

// SetStage moves to a new stage and resets per-stage counters.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.total = total
	p.current = 0
	p.currentFile = ""
	p.stageStart = time.Now()
	p.lastETA = 0

	p.lastCurrent = 0
	p.lastSample = p.stageStart
	p.speed = SpeedStats{}
	p.sampled = false
	p.spark.Clear()
}

// Update records progress within the current stage.
func (p *ProgressTracker) Update(current int, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if file != "" {
		p.currentFile = file
	}

	now := time.Now()
	elapsed := now.Sub(p.lastSample)
	if elapsed < speedSampleInterval {
		return
	}
	if delta := current - p.lastCurrent; delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		p.speed.Current = speed
		if !p.sampled {
			p.speed.Avg = speed
			p.sampled = true
		} else {
			p.speed.Avg = 0.2*speed + 0.8*p.speed.Avg
		}
		if speed > p.speed.Peak {
			p.speed.Peak = speed
		}
		p.spark.Add(speed)
	}
	p.lastCurrent = current
	p.lastSample = now
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Stats returns the current snapshot. It takes the write lock because the
// ETA calculation updates its smoothing state.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	progress := 0.0
	if p.total > 0 {
		progress = float64(p.current) / float64(p.total)
		if progress > 1.0 {
			progress = 1.0
		}
	}

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    progress,
		ETA:         p.calculateETA(),
		CurrentFile: p.currentFile,
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
		Speed:       p.speed,
	}
}

// Elapsed returns time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.startTime)
}

// Errors returns a copy of the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ErrorEvent, len(p.errors))
	copy(out, p.errors)
	return out
}

// Warnings returns a copy of the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ErrorEvent, len(p.warnings))
	copy(out, p.warnings)
	return out
}

// SpeedStats returns the current throughput figures.
func (p *ProgressTracker) SpeedStats() SpeedStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// RenderSparkline draws the throughput strip at the given width.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spark.Render(width)
}

// calculateETA estimates remaining stage time, smoothed exponentially so
// the display does not jump around between samples. Callers hold the lock.
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.current == 0 || p.total == 0 {
		return 0
	}
	progress := float64(p.current) / float64(p.total)
	if progress <= 0 || progress >= 1.0 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = raw
		return raw
	}
	p.lastETA = time.Duration(etaSmoothing*float64(raw) + (1-etaSmoothing)*float64(p.lastETA))
	return p.lastETA
}
