package mm

import (
	"sync"
	"sync/atomic"

	"github.com/redstone-os/redstone/internal/log"
)

// MemoryPressure classifies how urgently the reclaim subsystem needs to free pages, ported from
// mm/reclaim/mod.rs's MemoryPressure enum and its free-frame-count thresholds.
type MemoryPressure int

const (
	PressureNone MemoryPressure = iota
	PressureLow
	PressureMedium
	PressureCritical
)

func (p MemoryPressure) String() string {
	switch p {
	case PressureNone:
		return "none"
	case PressureLow:
		return "low"
	case PressureMedium:
		return "medium"
	case PressureCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Watermarks are the free-frame thresholds separating pressure levels, matching the defaults in
// mm/reclaim/mod.rs's MemoryWatermarks::default (low=1024, high=4096, min=256 frames).
type Watermarks struct {
	Low  uint64
	High uint64
	Min  uint64
}

// DefaultWatermarks returns the original's default watermark values.
func DefaultWatermarks() Watermarks {
	return Watermarks{Low: 1024, High: 4096, Min: 256}
}

// Pressure computes the current memory pressure level from a PMM's stats and the given
// watermarks, matching mm/reclaim/mod.rs's get_pressure.
func Pressure(stats PMMStats, wm Watermarks) MemoryPressure {
	free := stats.TotalFrames - stats.UsedFrames

	switch {
	case free > wm.High:
		return PressureNone
	case free > wm.Low:
		return PressureLow
	case free > wm.Min:
		return PressureMedium
	default:
		return PressureCritical
	}
}

// EvictFunc evicts up to n pages and returns how many were actually reclaimed. The reclaim
// subsystem is policy, not mechanism: it decides how many pages to ask for, and defers to the
// caller-supplied evictor (normally backed by the page cache / VMM) to actually do it.
type EvictFunc func(n int) int

// Kswapd is the background reclaim daemon (C4/C9 collaborator), ported from
// mm/reclaim/kswapd.rs: on each tick it reads the current pressure and evicts a number of pages
// scaled to how severe it is, logging a warning and invoking the OOM killer if eviction doesn't
// relieve critical pressure.
type Kswapd struct {
	pmm    *PMM
	wm     Watermarks
	evict  EvictFunc
	oom    *OOMKiller
	logger *log.Logger

	running atomic.Bool
}

// NewKswapd creates a kswapd daemon over pmm, using evict to reclaim pages and oom to select a
// victim if eviction cannot relieve critical pressure.
func NewKswapd(pmm *PMM, wm Watermarks, evict EvictFunc, oom *OOMKiller, logger *log.Logger) *Kswapd {
	return &Kswapd{pmm: pmm, wm: wm, evict: evict, oom: oom, logger: logger}
}

// Start marks the daemon running. Idempotent, matching start_kswapd's "already running" guard.
func (k *Kswapd) Start() {
	if k.running.CompareAndSwap(false, true) {
		k.logger.Info("kswapd started")
	}
}

// Stop marks the daemon stopped.
func (k *Kswapd) Stop() {
	k.running.Store(false)
}

// Running reports whether the daemon is currently marked running.
func (k *Kswapd) Running() bool {
	return k.running.Load()
}

// WakeUp triggers one reclaim tick if the daemon is running, matching wake_up's guard plus
// kswapd_tick.
func (k *Kswapd) WakeUp() {
	if !k.running.Load() {
		return
	}

	k.tick()
}

func (k *Kswapd) tick() {
	pressure := Pressure(k.pmm.Stats(), k.wm)

	switch pressure {
	case PressureNone:
		return
	case PressureLow:
		k.evict(16)
	case PressureMedium:
		k.evict(64)
	case PressureCritical:
		k.evict(256)

		if Pressure(k.pmm.Stats(), k.wm) == PressureCritical {
			k.logger.Warn("kswapd: still critical after eviction, invoking OOM killer")

			if k.oom != nil {
				k.oom.Kill()
			}
		}
	}
}

// PageAger implements CLOCK-style page aging (C4/C9 collaborator), ported from
// mm/reclaim/aging.rs's PageAger: a hand sweeps over the page set, and Tick is the hook a
// reclaimer calls to advance it and discover eviction candidates.
type PageAger struct {
	mu         sync.Mutex
	hand       uint64
	pageCount  uint64
	accessed   map[uint64]bool
	pagesAged  atomic.Uint64
	promoted   atomic.Uint64
	demoted    atomic.Uint64
}

// NewPageAger creates a CLOCK ager over pageCount pages.
func NewPageAger(pageCount uint64) *PageAger {
	return &PageAger{pageCount: pageCount, accessed: make(map[uint64]bool)}
}

// Tick advances the clock hand by one position and returns the page index as an eviction
// candidate if its accessed bit was clear, clearing the bit of any page it passes over whose bit
// was set (giving it a "second chance"), matching the CLOCK algorithm the original's TODO left
// unfinished.
func (a *PageAger) Tick() (idx uint64, evict bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pageCount == 0 {
		return 0, false
	}

	a.hand = (a.hand + 1) % a.pageCount
	a.pagesAged.Add(1)

	if a.accessed[a.hand] {
		a.accessed[a.hand] = false
		a.demoted.Add(1)

		return a.hand, false
	}

	return a.hand, true
}

// MarkAccessed sets a page's accessed bit, giving it a second chance the next time the clock hand
// reaches it.
func (a *PageAger) MarkAccessed(idx uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.accessed[idx] = true
	a.promoted.Add(1)
}

// OOMVictim describes a candidate for OOM termination and its score; higher Score means more
// likely to be killed, matching the original's "higher score, more likely to die" convention.
type OOMVictim struct {
	TaskID uint64
	Score  int64
}

// OOMKiller selects and signals a task for termination when reclaim cannot free enough memory,
// ported from mm/reclaim/oom.rs. Victim selection is pluggable via Candidates, since scoring
// depends on task accounting data this package does not own.
type OOMKiller struct {
	logger     *log.Logger
	candidates func() []OOMVictim
	kill       func(taskID uint64) error
	immune     map[uint64]bool
	mu         sync.Mutex

	kills atomic.Uint64
}

// NewOOMKiller creates an OOM killer. candidates returns the current scoreable task set; kill
// delivers the fatal signal to the chosen task.
func NewOOMKiller(logger *log.Logger, candidates func() []OOMVictim, kill func(uint64) error) *OOMKiller {
	return &OOMKiller{logger: logger, candidates: candidates, kill: kill, immune: make(map[uint64]bool)}
}

// SetImmune marks a task as exempt from OOM selection, matching set_oom_immune.
func (o *OOMKiller) SetImmune(taskID uint64, immune bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if immune {
		o.immune[taskID] = true
	} else {
		delete(o.immune, taskID)
	}
}

// Kill selects the highest-scoring non-immune candidate and kills it, returning whether a victim
// was found and terminated.
func (o *OOMKiller) Kill() bool {
	o.logger.Error("out of memory: selecting victim")

	victims := o.candidates()

	var best *OOMVictim

	o.mu.Lock()
	for i := range victims {
		v := &victims[i]
		if o.immune[v.TaskID] {
			continue
		}

		if best == nil || v.Score > best.Score {
			best = v
		}
	}
	o.mu.Unlock()

	if best == nil {
		o.logger.Error("out of memory: no suitable victim found")
		return false
	}

	if err := o.kill(best.TaskID); err != nil {
		o.logger.Error("out of memory: failed to kill victim", log.Any("error", err))
		return false
	}

	o.logger.Error("out of memory: killed task", log.Any("task", best.TaskID))
	o.kills.Add(1)

	return true
}

// Kills returns the number of tasks terminated by this killer so far.
func (o *OOMKiller) Kills() uint64 {
	return o.kills.Load()
}
