package mapengine

import "time"

// RefinePhase is the scheduler state. The machine runs
// Idle → FastCompose → Refining(step 0..2) → Idle, and drops back to Idle
// from any state when a new gesture or a resize bumps the epoch.
type RefinePhase int

const (
	RefineIdle RefinePhase = iota
	// RefineWaiting covers the fixed delay between the gesture-end fast
	// compose and the first expensive step, so rapid repeated gestures never
	// start background work they would immediately cancel.
	RefineWaiting
	RefineRunning
)

// Refinement step order is fixed: water, boundary, then the final compose
// with labels and axis text.
const (
	RefineStepWater = iota
	RefineStepBoundary
	RefineStepFinal
	refineStepCount
)

// RefineScheduler drives the progressive background refinement that restores
// full render quality after a gesture. It is owned and ticked by the engine;
// one step runs per tick slot. Cancellation is cooperative through the epoch
// counter: a job only performs work while its epoch still matches.
type RefineScheduler struct {
	// StartDelay is the pause between gesture end and step 0. BusyGrace is
	// how long a job may run before the busy indicator is surfaced.
	StartDelay time.Duration
	BusyGrace  time.Duration

	epoch    int64
	phase    RefinePhase
	step     int
	startAt  time.Time
	jobStart time.Time
}

func NewRefineScheduler() *RefineScheduler {
	return &RefineScheduler{
		StartDelay: 150 * time.Millisecond,
		BusyGrace:  400 * time.Millisecond,
	}
}

// Epoch returns the current render epoch.
func (r *RefineScheduler) Epoch() int64 { return r.epoch }

// Phase returns the current scheduler state.
func (r *RefineScheduler) Phase() RefinePhase { return r.phase }

// Cancel bumps the epoch and aborts any outstanding job without side
// effects. Called on gesture start and resize.
func (r *RefineScheduler) Cancel() {
	r.epoch++
	r.phase = RefineIdle
}

// GestureEnd bumps the epoch, cancelling prior jobs, and schedules a new
// refinement to begin after StartDelay. The caller performs the synchronous
// fast compose; this only arms the background job. Returns the new epoch.
func (r *RefineScheduler) GestureEnd(now time.Time) int64 {
	r.epoch++
	r.phase = RefineWaiting
	r.step = RefineStepWater
	r.startAt = now.Add(r.StartDelay)
	r.jobStart = now
	return r.epoch
}

// Next returns the step to execute in this tick slot, if any. The engine
// must call StepDone with the same epoch after the step completes; a step
// whose epoch no longer matches must not mutate any cache.
func (r *RefineScheduler) Next(now time.Time) (step int, epoch int64, ok bool) {
	switch r.phase {
	case RefineWaiting:
		if now.Before(r.startAt) {
			return 0, 0, false
		}
		r.phase = RefineRunning
		return r.step, r.epoch, true
	case RefineRunning:
		return r.step, r.epoch, true
	default:
		return 0, 0, false
	}
}

// StepDone advances the job past the completed step. A stale epoch is a
// cancelled job finishing late; it is ignored.
func (r *RefineScheduler) StepDone(epoch int64) {
	if epoch != r.epoch || r.phase != RefineRunning {
		return
	}
	r.step++
	if r.step >= refineStepCount {
		r.phase = RefineIdle
	}
}

// Busy reports whether the running job has outlived the grace period and the
// busy indicator should be shown. Cleared implicitly when the job finishes
// or is cancelled.
func (r *RefineScheduler) Busy(now time.Time) bool {
	if r.phase == RefineIdle {
		return false
	}
	return now.Sub(r.jobStart) >= r.BusyGrace
}
