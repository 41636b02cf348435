package mapengine

import (
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// SelectionState tracks the lock/hover machine: Idle ⇄ Hovering ⇄ Locked.
// At most one of the two stations drives the highlight; while locked, hover
// updates are suppressed entirely.
type SelectionState struct {
	Locked         bool
	LockedStation  *Station
	HoveredStation *Station
}

// hoverRadius is the pointer pick radius in screen pixels.
const hoverRadius = 14.0

// dragThreshold separates a click from a drag, in screen pixels.
const dragThreshold = 4.0

// wheelSettleTicks is how many ticks without wheel input end a zoom gesture.
const wheelSettleTicks = 8

// PointerMove handles a pointer position update. Hover queries are skipped
// while a gesture is active (no index hits mid-pan) and while a lock is held
// (hover frozen).
func (e *Engine) PointerMove(x, y float64) {
	if e.gesturing || e.sel.Locked || !e.dataLoaded {
		return
	}
	st := e.queryNearest(x, y)
	if st == e.sel.HoveredStation {
		return
	}
	e.sel.HoveredStation = st
	e.emitHoverChanged(st)
	e.tiers.Invalidate(TierSymbol)
}

// PointerLeave clears the hover unless a lock holds the highlight.
func (e *Engine) PointerLeave() {
	if e.sel.Locked || e.sel.HoveredStation == nil {
		return
	}
	e.sel.HoveredStation = nil
	e.emitHoverChanged(nil)
	e.tiers.Invalidate(TierSymbol)
}

// Click toggles the selection lock. A click while locked unlocks; otherwise
// the nearest station within the pick radius is locked.
func (e *Engine) Click(x, y float64) {
	if !e.dataLoaded {
		return
	}
	if e.sel.Locked {
		e.sel.Locked = false
		e.sel.LockedStation = nil
		e.emitSelectionUnlocked()
		e.tiers.Invalidate(TierSymbol)
		// Hover tracking resumes immediately at the release position.
		e.PointerMove(x, y)
		return
	}
	st := e.queryNearest(x, y)
	if st == nil {
		return
	}
	e.lock(st)
}

// LockToNearest locks the selection to the station nearest the given
// geographic coordinate. Used by external location search.
func (e *Engine) LockToNearest(lon, lat float64) {
	if !e.dataLoaded {
		return
	}
	bx, by := e.vp.Proj.Forward(clampLon(lon), clampLat(lat))
	sx, sy := e.vp.BaseToScreen(bx, by)
	st := e.index.QueryNearest(e.vp, sx, sy, math.MaxFloat64)
	if st == nil {
		return
	}
	e.lock(st)
}

func (e *Engine) lock(st *Station) {
	e.sel.Locked = true
	e.sel.LockedStation = st
	e.sel.HoveredStation = nil
	e.emitSelectionLocked(st)
	e.tiers.Invalidate(TierSymbol)
}

// Selection returns a copy of the current selection state.
func (e *Engine) Selection() SelectionState { return e.sel }

// SetSymbolStyle switches the global symbol renderer.
func (e *Engine) SetSymbolStyle(s SymbolStyle) {
	if e.style == s {
		return
	}
	e.style = s
	e.tiers.Invalidate(TierSymbol)
}

// GestureStart enters bitmap interaction mode: the symbol raster is frozen
// and any outstanding refinement is cancelled.
func (e *Engine) GestureStart() {
	if e.gesturing || !e.dataLoaded {
		return
	}
	e.gesturing = true
	e.refine.Cancel()
	e.labelsVisible = false
	e.ensureSymbolTier()
	e.bitmap.Begin(e.tiers.tiers[TierSymbol].image, e.tiers.tiers[TierSymbol].snap)
}

// Pan applies a gesture pan delta.
func (e *Engine) Pan(dx, dy float64) {
	if !e.dataLoaded {
		return
	}
	e.vp.ApplyPan(dx, dy)
}

// ZoomAt applies a gesture zoom around a screen focal point.
func (e *Engine) ZoomAt(fx, fy, factor float64) {
	if !e.dataLoaded {
		return
	}
	e.vp.ApplyZoomAt(fx, fy, factor)
}

// GestureEnd leaves bitmap mode, performs the synchronous fast compose, and
// arms the background refinement job.
func (e *Engine) GestureEnd(now time.Time) {
	if !e.gesturing {
		return
	}
	e.gesturing = false
	e.bitmap.End()
	e.refine.GestureEnd(now)
	e.fastCompose()
	// The pointer is wherever the gesture released it; refresh the hover
	// without waiting for movement.
	if e.pointerInside {
		e.PointerMove(e.pointerX, e.pointerY)
	}
}

func (e *Engine) queryNearest(x, y float64) *Station {
	if e.index.Version() != e.vp.Version() {
		e.index.Rebuild(e.stations, e.vp, e.glyph)
	}
	return e.index.QueryNearest(e.vp, x, y, hoverRadius)
}

// handleInput translates ebiten pointer state into engine operations. Runs
// once per tick.
func (e *Engine) handleInput(now time.Time) {
	mx, my := ebiten.CursorPosition()
	fx, fy := float64(mx), float64(my)
	inside := mx >= 0 && my >= 0 && mx < e.vp.Width && my < e.vp.Height
	e.pointerX, e.pointerY = fx, fy

	if inside != e.pointerInside {
		e.pointerInside = inside
		if !inside {
			e.PointerLeave()
		}
	}

	// Wheel zoom is a gesture: it begins on the first wheel tick and ends
	// after a short settle period with no further wheel input.
	_, wheelY := ebiten.Wheel()
	if wheelY != 0 && inside {
		if !e.gesturing {
			e.GestureStart()
		}
		e.wheelIdle = 0
		e.ZoomAt(fx, fy, math.Pow(1.1, wheelY))
	} else if e.gesturing && !e.dragActive {
		e.wheelIdle++
		if e.wheelIdle >= wheelSettleTicks {
			e.GestureEnd(now)
		}
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) && inside {
		e.pressed = true
		e.pressX, e.pressY = fx, fy
		e.dragLastX, e.dragLastY = fx, fy
	}

	if e.pressed && ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		if !e.dragActive && math.Hypot(fx-e.pressX, fy-e.pressY) > dragThreshold {
			e.dragActive = true
			if !e.gesturing {
				e.GestureStart()
			}
		}
		if e.dragActive {
			e.Pan(fx-e.dragLastX, fy-e.dragLastY)
		}
		e.dragLastX, e.dragLastY = fx, fy
	}

	if e.pressed && inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		e.pressed = false
		if e.dragActive {
			e.dragActive = false
			e.GestureEnd(now)
		} else {
			e.Click(fx, fy)
		}
	}

	if !e.gesturing && !e.dragActive && inside {
		e.PointerMove(fx, fy)
	}
}
