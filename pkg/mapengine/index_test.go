package mapengine

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
)

func randomStations(n int, seed int64) []*Station {
	rng := rand.New(rand.NewSource(seed))
	stations := make([]*Station, n)
	for i := range stations {
		stations[i] = &Station{
			ID:  fmt.Sprintf("s%04d", i),
			Lon: rng.Float64()*340 - 170,
			Lat: rng.Float64()*160 - 80,
		}
	}
	return stations
}

// bruteNearest is the reference the index is checked against.
func bruteNearest(stations []*Station, vp *Viewport, g GlyphScale, sx, sy, maxScreenRadius float64) *Station {
	qx, qy := vp.ScreenToBase(sx, sy)
	bestD := maxScreenRadius / vp.Transform.Scale
	var best *Station
	for _, s := range stations {
		x, y := s.Projected(vp, g)
		if d := math.Hypot(x-qx, y-qy); d <= bestD {
			bestD = d
			best = s
		}
	}
	return best
}

func TestQueryNearestMatchesBruteForce(t *testing.T) {
	for _, n := range []int{20, 800} { // below and above the tree threshold
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			stations := randomStations(n, int64(n))
			vp := fittedViewport(stations)
			g := DefaultGlyphScale()
			idx := NewStationIndex()
			idx.Rebuild(stations, vp, g)
			if n >= linearThreshold && idx.tree == nil {
				t.Fatal("expected an R-tree above the linear threshold")
			}
			if n < linearThreshold && idx.tree != nil {
				t.Fatal("expected a linear scan below the threshold")
			}

			rng := rand.New(rand.NewSource(99))
			for i := 0; i < 500; i++ {
				sx := rng.Float64() * 800
				sy := rng.Float64() * 600
				got := idx.QueryNearest(vp, sx, sy, hoverRadius)
				want := bruteNearest(stations, vp, g, sx, sy, hoverRadius)
				if got != want {
					t.Fatalf("query (%f, %f): got %v, want %v", sx, sy, got, want)
				}
			}
		})
	}
}

func TestQueryNearestRespectsRadius(t *testing.T) {
	stations := randomStations(50, 3)
	vp := fittedViewport(stations)
	idx := NewStationIndex()
	idx.Rebuild(stations, vp, DefaultGlyphScale())

	target := stations[0]
	bx, by := target.Projected(vp, DefaultGlyphScale())
	sx, sy := vp.BaseToScreen(bx, by)
	if got := idx.QueryNearest(vp, sx, sy, hoverRadius); got != target {
		t.Fatalf("query at station position returned %v", got)
	}
	// A tiny radius far away from everything must return nil.
	if got := idx.QueryNearest(vp, -5000, -5000, 1); got != nil {
		t.Errorf("far-off query returned %v, want nil", got)
	}
}

func TestQueryNearestRadiusScalesWithZoom(t *testing.T) {
	stations := []*Station{
		{ID: "near", Lon: 0, Lat: 0},
		{ID: "a", Lon: 100, Lat: 50},
		{ID: "b", Lon: -100, Lat: -50},
	}
	vp := fittedViewport(stations)
	g := DefaultGlyphScale()
	idx := NewStationIndex()
	idx.Rebuild(stations, vp, g)

	bx, by := stations[0].Projected(vp, g)
	// Offset 20 screen px at scale 1: outside the 14 px pick radius.
	sx, sy := vp.BaseToScreen(bx, by)
	if got := idx.QueryNearest(vp, sx+20, sy, hoverRadius); got != nil {
		t.Fatalf("expected miss at 20px offset, got %v", got)
	}
	// After zooming in the same base offset shrinks in screen terms, so aim
	// 20 px off in the new screen space: still a miss, while 5 px hits.
	vp.ApplyZoomAt(400, 300, 4)
	sx, sy = vp.BaseToScreen(bx, by)
	if got := idx.QueryNearest(vp, sx+5, sy, hoverRadius); got != stations[0] {
		t.Errorf("expected hit at 5px offset after zoom, got %v", got)
	}
}

func TestIndexVersionTracking(t *testing.T) {
	stations := randomStations(10, 1)
	vp := fittedViewport(stations)
	idx := NewStationIndex()
	if idx.Version() == vp.Version() {
		t.Fatal("fresh index must not match any viewport version")
	}
	idx.Rebuild(stations, vp, DefaultGlyphScale())
	if idx.Version() != vp.Version() {
		t.Fatalf("index version %d, viewport %d", idx.Version(), vp.Version())
	}
	vp.Fit(stations)
	if idx.Version() == vp.Version() {
		t.Error("index version must go stale after a refit")
	}
}
