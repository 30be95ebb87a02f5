// Package progress aggregates discrete job events into a monotonic 0-100
// progress scalar with an ETA estimate.
package progress

import (
	"sync"
	"time"
)

// Phase identifies which stage of the compression job is running.
type Phase string

const (
	PhasePlanning      Phase = "planning"
	PhaseCompressing   Phase = "compressing"
	PhaseMerging       Phase = "merging"
	PhaseErrorRecovery Phase = "error-recovery"
)

// Phase weights are fixed: planning owns [0,10], compressing [10,90] scaled
// by completed chunks, merging [90,100]. Time spent in a phase is irrelevant.
const (
	planningEnd    = 10.0
	compressingEnd = 90.0
	progressMax    = 100.0
)

// etaWindow bounds the per-chunk duration history used for the moving average.
const etaWindow = 8

// Update is one derived progress event delivered to the caller.
type Update struct {
	Phase              Phase
	Progress           float64 // 0-100
	CurrentChunk       int     // 1-based, 0 when not compressing
	TotalChunks        int
	EstimatedRemaining time.Duration // 0 until at least one chunk completed
	Message            string
}

// Tracker converts phase and chunk events into a non-decreasing progress
// stream. It is single-writer: the orchestrator drives it from one goroutine,
// but the mutex keeps reads from other goroutines (status endpoints) safe.
type Tracker struct {
	mu sync.Mutex

	phase           Phase
	totalChunks     int
	completedChunks int
	lastProgress    float64
	durations       []time.Duration

	callback func(Update)
}

// NewTracker creates a tracker delivering derived events to cb. A nil
// callback is allowed; the tracker then only maintains state for Snapshot.
func NewTracker(cb func(Update)) *Tracker {
	return &Tracker{phase: PhasePlanning, callback: cb}
}

// StartPlanning reports the beginning of a job pass.
func (t *Tracker) StartPlanning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhasePlanning
	t.emitLocked(0, 0, "analyzing document")
}

// StartCompressing reports the plan outcome and enters the compressing phase.
func (t *Tracker) StartCompressing(totalChunks int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhaseCompressing
	t.totalChunks = totalChunks
	t.completedChunks = 0
	t.emitLocked(planningEnd, 1, "")
}

// ChunkStarted reports that chunk index (0-based) was dispatched.
func (t *Tracker) ChunkStarted(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitLocked(t.compressingProgressLocked(), index+1, "")
}

// ChunkCompleted records one finished chunk and its duration.
func (t *Tracker) ChunkCompleted(index int, took time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedChunks++
	t.durations = append(t.durations, took)
	if len(t.durations) > etaWindow {
		t.durations = t.durations[len(t.durations)-etaWindow:]
	}
	current := index + 2
	if current > t.totalChunks {
		current = t.totalChunks
	}
	t.emitLocked(t.compressingProgressLocked(), current, "")
}

// StartMerging enters the merging phase.
func (t *Tracker) StartMerging() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhaseMerging
	t.emitLocked(compressingEnd, 0, "merging chunks")
}

// MergeProgress maps internal merge sub-progress (0-100) into [90,100].
func (t *Tracker) MergeProgress(percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	t.emitLocked(compressingEnd+(progressMax-compressingEnd)*percent/100, 0, "")
}

// Done reports job completion.
func (t *Tracker) Done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhaseMerging
	t.emitLocked(progressMax, 0, "complete")
}

// Recovering reports a degradation retry. Progress holds at the position the
// failure occurred; the message names the preset about to be tried.
func (t *Tracker) Recovering(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhaseErrorRecovery
	t.emitLocked(t.lastProgress, 0, message)
}

// ResetPass rewinds chunk bookkeeping for a fresh degradation pass without
// lowering the reported progress scalar.
func (t *Tracker) ResetPass() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedChunks = 0
	t.totalChunks = 0
	t.durations = t.durations[:0]
	t.phase = PhasePlanning
}

// Snapshot returns the current derived state without emitting an event.
func (t *Tracker) Snapshot() Update {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Update{
		Phase:              t.phase,
		Progress:           t.lastProgress,
		TotalChunks:        t.totalChunks,
		EstimatedRemaining: t.etaLocked(),
	}
}

func (t *Tracker) compressingProgressLocked() float64 {
	if t.totalChunks == 0 {
		return planningEnd
	}
	frac := float64(t.completedChunks) / float64(t.totalChunks)
	return planningEnd + (compressingEnd-planningEnd)*frac
}

// etaLocked is a simple moving average of completed-chunk durations times the
// remaining chunk count. Zero until the first chunk lands.
func (t *Tracker) etaLocked() time.Duration {
	if len(t.durations) == 0 || t.totalChunks == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range t.durations {
		sum += d
	}
	avg := sum / time.Duration(len(t.durations))
	remaining := t.totalChunks - t.completedChunks
	if remaining < 0 {
		remaining = 0
	}
	return avg * time.Duration(remaining)
}

// emitLocked delivers an event, clamping progress to be non-decreasing.
// error-recovery deliberately re-reports the held position.
func (t *Tracker) emitLocked(progress float64, currentChunk int, message string) {
	if progress < t.lastProgress {
		progress = t.lastProgress
	}
	t.lastProgress = progress
	if t.callback == nil {
		return
	}
	t.callback(Update{
		Phase:              t.phase,
		Progress:           progress,
		CurrentChunk:       currentChunk,
		TotalChunks:        t.totalChunks,
		EstimatedRemaining: t.etaLocked(),
		Message:            message,
	})
}
