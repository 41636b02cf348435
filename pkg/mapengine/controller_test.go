package mapengine

import (
	"image/color"
	"testing"
	"time"
)

func newTestEngine(t *testing.T) (*Engine, []*Station) {
	t.Helper()
	stations := []*Station{
		{ID: "ber", Lon: 13.4, Lat: 52.5, Class: "Cfb", City: "Berlin", BaseColor: color.RGBA{80, 160, 90, 255}},
		{ID: "cai", Lon: 31.2, Lat: 30.0, Class: "BWh", City: "Cairo", BaseColor: color.RGBA{220, 180, 60, 255}},
		{ID: "sin", Lon: 103.8, Lat: 1.35, Class: "Af", City: "Singapore", BaseColor: color.RGBA{40, 120, 200, 255}},
		{ID: "rey", Lon: -21.9, Lat: 64.1, Class: "Cfc", City: "Reykjavik", BaseColor: color.RGBA{120, 140, 220, 255}},
	}
	e := NewEngine(800, 600)
	e.SetData(stations, nil, nil, nil)
	if !e.dataLoaded {
		t.Fatal("engine did not load the test station set")
	}
	return e, stations
}

func screenPos(e *Engine, st *Station) (float64, float64) {
	bx, by := st.Projected(e.vp, e.glyph)
	return e.vp.BaseToScreen(bx, by)
}

type recordingListener struct {
	hovers  []*Station
	locks   []*Station
	unlocks int
	readies int
}

func (r *recordingListener) HoverChanged(st *Station)    { r.hovers = append(r.hovers, st) }
func (r *recordingListener) SelectionLocked(st *Station) { r.locks = append(r.locks, st) }
func (r *recordingListener) SelectionUnlocked()          { r.unlocks++ }
func (r *recordingListener) DataReady()                  { r.readies++ }

func TestHoverTracksNearestStation(t *testing.T) {
	e, stations := newTestEngine(t)
	rec := &recordingListener{}
	e.Subscribe(rec)

	x, y := screenPos(e, stations[0])
	e.PointerMove(x, y)
	if e.Selection().HoveredStation != stations[0] {
		t.Fatalf("hovered %v, want %s", e.Selection().HoveredStation, stations[0].ID)
	}
	if len(rec.hovers) != 1 || rec.hovers[0] != stations[0] {
		t.Fatalf("listener got hovers %v", rec.hovers)
	}

	// Moving within the same station's pick radius fires nothing.
	e.PointerMove(x+2, y+2)
	if len(rec.hovers) != 1 {
		t.Fatalf("redundant hover event fired: %v", rec.hovers)
	}

	e.PointerLeave()
	if e.Selection().HoveredStation != nil {
		t.Fatal("hover survived PointerLeave")
	}
	if len(rec.hovers) != 2 || rec.hovers[1] != nil {
		t.Fatalf("listener did not get the nil hover: %v", rec.hovers)
	}
}

func TestLockSuppressesHoverUntilUnlocked(t *testing.T) {
	e, stations := newTestEngine(t)
	rec := &recordingListener{}
	e.Subscribe(rec)

	lx, ly := screenPos(e, stations[0])
	e.Click(lx, ly)
	sel := e.Selection()
	if !sel.Locked || sel.LockedStation != stations[0] {
		t.Fatalf("click did not lock %s: %+v", stations[0].ID, sel)
	}
	if len(rec.locks) != 1 || rec.locks[0] != stations[0] {
		t.Fatalf("listener got locks %v", rec.locks)
	}

	// While locked, pointing at another station changes nothing.
	hx, hy := screenPos(e, stations[1])
	e.PointerMove(hx, hy)
	if got := e.Selection().HoveredStation; got != nil {
		t.Fatalf("hover %v fired while locked", got)
	}
	if len(rec.hovers) != 0 {
		t.Fatalf("hover events during lock: %v", rec.hovers)
	}

	// Unlocking re-enables hover immediately at the click position.
	e.Click(hx, hy)
	sel = e.Selection()
	if sel.Locked {
		t.Fatal("second click did not unlock")
	}
	if rec.unlocks != 1 {
		t.Fatalf("unlock events: %d", rec.unlocks)
	}
	if sel.HoveredStation != stations[1] {
		t.Fatalf("hover after unlock is %v, want %s", sel.HoveredStation, stations[1].ID)
	}
}

func TestClickOnEmptySpaceDoesNotLock(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Click(2, 2) // corner, outside every pick radius after fitting
	if e.Selection().Locked {
		t.Fatalf("locked on empty space: %+v", e.Selection())
	}
}

func TestLockToNearestUsesGeographicCoordinates(t *testing.T) {
	e, stations := newTestEngine(t)
	e.LockToNearest(30.5, 29.0) // close to Cairo
	sel := e.Selection()
	if !sel.Locked || sel.LockedStation != stations[1] {
		t.Fatalf("locked %+v, want %s", sel.LockedStation, stations[1].ID)
	}
	// No radius limit: a far-off coordinate still locks the nearest station.
	e.Click(0, 0) // unlock first (corner is empty space, so only the unlock fires)
	e.LockToNearest(-179, -89)
	if !e.Selection().Locked {
		t.Fatal("far-off coordinate did not lock anything")
	}
}

func TestGestureSuppressesHoverAndLabels(t *testing.T) {
	e, stations := newTestEngine(t)
	e.GestureStart()
	if !e.gesturing || !e.bitmap.Active() {
		t.Fatal("gesture did not freeze the symbol raster")
	}
	if e.labelsVisible {
		t.Fatal("labels still visible during gesture")
	}
	x, y := screenPos(e, stations[0])
	e.PointerMove(x, y)
	if e.Selection().HoveredStation != nil {
		t.Fatal("hover query ran during a gesture")
	}
}

func TestGestureEndRequeriesHover(t *testing.T) {
	e, stations := newTestEngine(t)
	e.GestureStart()
	e.Pan(25, 10)
	// Simulate the pointer resting over a station at release.
	x, y := screenPos(e, stations[2])
	e.pointerX, e.pointerY = x, y
	e.pointerInside = true
	e.GestureEnd(time.Now())
	if e.gesturing || e.bitmap.Active() {
		t.Fatal("gesture state survived GestureEnd")
	}
	if e.Selection().HoveredStation != stations[2] {
		t.Fatalf("hover not refreshed at release: %v", e.Selection().HoveredStation)
	}
}

func TestSetSymbolStyleInvalidatesSymbolTier(t *testing.T) {
	e, _ := newTestEngine(t)
	if e.tiers.Signature(TierSymbol) == "" {
		t.Fatal("symbol tier not generated on load")
	}
	e.SetSymbolStyle(StylePoint)
	if e.tiers.Signature(TierSymbol) != "" {
		t.Fatal("style switch did not invalidate the symbol tier")
	}
	sig := func() string { e.ensureSymbolTier(); return e.tiers.Signature(TierSymbol) }()
	e.SetSymbolStyle(StylePoint) // no-op
	if e.tiers.Signature(TierSymbol) != sig {
		t.Fatal("redundant style switch invalidated the symbol tier")
	}
}

func TestParseSymbolStyleRoundTrip(t *testing.T) {
	for _, s := range []SymbolStyle{StylePoint, StyleGlyph} {
		got, err := ParseSymbolStyle(s.String())
		if err != nil || got != s {
			t.Errorf("round trip of %v: got %v, err %v", s, got, err)
		}
	}
	if _, err := ParseSymbolStyle("sparkline"); err == nil {
		t.Error("unknown style accepted")
	}
}
