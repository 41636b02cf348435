package mapengine

import (
	"testing"
	"time"
)

func TestRefineRunsStepsInOrderAfterDelay(t *testing.T) {
	r := NewRefineScheduler()
	base := time.Now()
	epoch := r.GestureEnd(base)

	if _, _, ok := r.Next(base.Add(r.StartDelay / 2)); ok {
		t.Fatal("step handed out before the start delay elapsed")
	}
	if r.Phase() != RefineWaiting {
		t.Fatalf("phase %v, want RefineWaiting", r.Phase())
	}

	at := base.Add(r.StartDelay)
	for want := RefineStepWater; want < refineStepCount; want++ {
		step, ep, ok := r.Next(at)
		if !ok {
			t.Fatalf("no step handed out, want step %d", want)
		}
		if step != want || ep != epoch {
			t.Fatalf("got step %d epoch %d, want step %d epoch %d", step, ep, want, epoch)
		}
		r.StepDone(ep)
	}
	if r.Phase() != RefineIdle {
		t.Fatalf("phase %v after final step, want RefineIdle", r.Phase())
	}
	if _, _, ok := r.Next(at); ok {
		t.Fatal("idle scheduler handed out a step")
	}
}

func TestRefineStepRepeatsUntilDone(t *testing.T) {
	r := NewRefineScheduler()
	base := time.Now()
	r.GestureEnd(base)
	at := base.Add(r.StartDelay)

	s1, _, _ := r.Next(at)
	s2, _, _ := r.Next(at)
	if s1 != s2 {
		t.Fatalf("step advanced without StepDone: %d then %d", s1, s2)
	}
}

func TestRefineCancelDropsJob(t *testing.T) {
	r := NewRefineScheduler()
	base := time.Now()
	old := r.GestureEnd(base)
	at := base.Add(r.StartDelay)
	if _, _, ok := r.Next(at); !ok {
		t.Fatal("expected a runnable step")
	}

	r.Cancel()
	if r.Phase() != RefineIdle {
		t.Fatalf("phase %v after Cancel, want RefineIdle", r.Phase())
	}
	if r.Epoch() == old {
		t.Fatal("Cancel must bump the epoch")
	}
	if _, _, ok := r.Next(at.Add(time.Second)); ok {
		t.Fatal("cancelled scheduler handed out a step")
	}
	// A cancelled job finishing late must not advance anything.
	r.StepDone(old)
	if r.Phase() != RefineIdle {
		t.Fatal("stale StepDone mutated the scheduler")
	}
}

func TestRefineNewGestureSupersedesOldJob(t *testing.T) {
	r := NewRefineScheduler()
	base := time.Now()
	old := r.GestureEnd(base)
	at := base.Add(r.StartDelay)
	_, ep, _ := r.Next(at)
	r.StepDone(ep) // water done under the old epoch

	newEpoch := r.GestureEnd(at)
	if newEpoch == old {
		t.Fatal("second GestureEnd reused the epoch")
	}
	// The superseding job restarts from the first step.
	step, ep2, ok := r.Next(at.Add(r.StartDelay))
	if !ok || step != RefineStepWater || ep2 != newEpoch {
		t.Fatalf("got step %d epoch %d ok=%v, want water step under epoch %d", step, ep2, ok, newEpoch)
	}
	// Late completion from the old job is ignored.
	r.StepDone(old)
	if step, _, _ := r.Next(at.Add(r.StartDelay)); step != RefineStepWater {
		t.Fatalf("stale StepDone advanced the new job to step %d", step)
	}
}

func TestRefineBusyAfterGracePeriod(t *testing.T) {
	r := NewRefineScheduler()
	base := time.Now()
	if r.Busy(base) {
		t.Fatal("idle scheduler reported busy")
	}
	r.GestureEnd(base)
	if r.Busy(base.Add(r.BusyGrace / 2)) {
		t.Fatal("busy before the grace period elapsed")
	}
	if !r.Busy(base.Add(r.BusyGrace)) {
		t.Fatal("not busy after the grace period")
	}
	// Finish the job: busy clears.
	at := base.Add(r.StartDelay)
	for i := 0; i < refineStepCount; i++ {
		_, ep, ok := r.Next(at)
		if !ok {
			t.Fatal("expected a runnable step")
		}
		r.StepDone(ep)
	}
	if r.Busy(base.Add(time.Hour)) {
		t.Fatal("busy after the job completed")
	}
}
