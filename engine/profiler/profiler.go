package profiler

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StageTiming is the accumulated timing of one named stage.
type StageTiming struct {
	// Name is the stage name passed to Begin/End.
	Name string
	// Count is the number of completed Begin/End pairs.
	Count int
	// Total is the summed duration of every completed pair.
	Total time.Duration
	// Max is the longest single pair.
	Max time.Duration
}

// Profiler tracks per-stage durations and memory statistics for model loads.
// Stages may be opened and closed from multiple goroutines.
type Profiler struct {
	mu             sync.Mutex
	open           map[string]time.Time
	stages         map[string]*StageTiming
	order          []string
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	now            func() time.Time
}

// NewProfiler creates a new Profiler with no recorded stages.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		open:   make(map[string]time.Time),
		stages: make(map[string]*StageTiming),
		now:    time.Now,
	}
}

// Begin marks the start of a stage. Beginning a stage that is already open restarts it.
//
// Parameters:
//   - stage: the stage name
func (p *Profiler) Begin(stage string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open[stage] = p.now()
}

// End closes a stage opened by Begin and accumulates its duration.
// Ending a stage that was never opened is ignored.
//
// Parameters:
//   - stage: the stage name
//
// Returns:
//   - time.Duration: the duration of this pair, zero if the stage was not open
func (p *Profiler) End(stage string) time.Duration {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	start, ok := p.open[stage]
	if !ok {
		return 0
	}
	delete(p.open, stage)
	elapsed := p.now().Sub(start)

	timing, ok := p.stages[stage]
	if !ok {
		timing = &StageTiming{Name: stage}
		p.stages[stage] = timing
		p.order = append(p.order, stage)
	}
	timing.Count++
	timing.Total += elapsed
	if elapsed > timing.Max {
		timing.Max = elapsed
	}
	return elapsed
}

// Stages returns the accumulated timings in the order the stages first completed.
//
// Returns:
//   - []StageTiming: a copy of the stage timings
func (p *Profiler) Stages() []StageTiming {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]StageTiming, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, *p.stages[name])
	}
	return out
}

// Reset discards every recorded and open stage.
func (p *Profiler) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = make(map[string]time.Time)
	p.stages = make(map[string]*StageTiming)
	p.order = nil
}

// Report logs every stage timing followed by heap and GC statistics gathered since the previous report.
//
// Parameters:
//   - logger: the logger to write to, nothing is written if nil
func (p *Profiler) Report(logger *zap.Logger) {
	if p == nil || logger == nil {
		return
	}
	for _, s := range p.Stages() {
		logger.Info("stage timing",
			zap.String("stage", s.Name),
			zap.Int("count", s.Count),
			zap.Duration("total", s.Total),
			zap.Duration("max", s.Max),
		)
	}

	p.mu.Lock()
	runtime.ReadMemStats(&p.memStats)
	// Alloc: bytes of live heap objects, Sys: bytes obtained from the OS
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	churnMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024

	gcCount := p.memStats.NumGC
	var lastPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
	}
	gcDelta := gcCount - p.lastGCCount

	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.mu.Unlock()

	logger.Info("memory",
		zap.Float64("heap_mb", allocMB),
		zap.Float64("allocated_mb", churnMB),
		zap.Uint32("gc_cycles", gcDelta),
		zap.Uint64("last_gc_pause_us", lastPauseUs),
		zap.Float64("sys_mb", sysMB),
	)
}
