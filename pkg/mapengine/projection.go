package mapengine

import (
	"fmt"
	"math"
)

const (
	// ScaleMin and ScaleMax bound the viewport zoom factor.
	ScaleMin = 1.0
	ScaleMax = 20.0

	// OverscrollDeg is the geographic margin, in degrees, by which the data
	// bounds are expanded when clamping the pan. The user can always drag the
	// content this far past the viewport edge and no further.
	OverscrollDeg = 8.0

	// fitPadding keeps projected stations away from the viewport edge so
	// symbols are never clipped at scale 1.
	fitPadding = 24.0

	// symbolPadPx expands the content rectangle by the largest symbol radius
	// when clamping.
	symbolPadPx = 18.0
)

// Projection is a fitted equirectangular forward/inverse mapping from
// geographic coordinates to the base plane. Identity projections (degenerate
// station sets) render nothing.
type Projection struct {
	PixPerDeg        float64
	MinLon, MaxLon   float64
	MinLat, MaxLat   float64
	offsetX, offsetY float64
	identity         bool
}

// Forward maps lon/lat to base-plane coordinates. Out-of-range coordinates
// are clamped to valid geographic bounds, never rejected.
func (p *Projection) Forward(lon, lat float64) (x, y float64) {
	if p.identity {
		return lon, lat
	}
	lon = clampLon(lon)
	lat = clampLat(lat)
	x = p.offsetX + (lon-p.MinLon)*p.PixPerDeg
	y = p.offsetY + (p.MaxLat-lat)*p.PixPerDeg
	return x, y
}

// Inverse maps base-plane coordinates back to lon/lat.
func (p *Projection) Inverse(x, y float64) (lon, lat float64) {
	if p.identity {
		return x, y
	}
	lon = p.MinLon + (x-p.offsetX)/p.PixPerDeg
	lat = p.MaxLat - (y-p.offsetY)/p.PixPerDeg
	return lon, lat
}

// Identity reports whether this is the no-op fallback projection.
func (p *Projection) Identity() bool { return p.identity }

func clampLon(lon float64) float64 {
	if lon < -180 {
		return -180
	}
	if lon > 180 {
		return 180
	}
	return lon
}

func clampLat(lat float64) float64 {
	if lat < -90 {
		return -90
	}
	if lat > 90 {
		return 90
	}
	return lat
}

// ViewportTransform is the composable affine view state applied on top of the
// base projection: screen = base*Scale + Pan.
type ViewportTransform struct {
	PanX, PanY float64
	Scale      float64
}

// Viewport owns the fitted projection, the live transform and the projection
// version counter. It never triggers rendering itself.
type Viewport struct {
	Width, Height int
	Proj          *Projection
	Transform     ViewportTransform

	version int
}

func NewViewport(width, height int) *Viewport {
	return &Viewport{
		Width:     width,
		Height:    height,
		Proj:      &Projection{identity: true},
		Transform: ViewportTransform{Scale: 1},
	}
}

// Version returns the current projection version. Every Fit (viewport resize
// or station-set change) increments it; all derived caches key on it.
func (v *Viewport) Version() int { return v.version }

// Fit computes an equirectangular projection placing every station strictly
// inside the viewport, resets the transform, and bumps the version. An empty
// or degenerate station set installs the identity projection.
func (v *Viewport) Fit(stations []*Station) {
	v.version++
	v.Transform = ViewportTransform{Scale: 1}

	if len(stations) == 0 {
		v.Proj = &Projection{identity: true}
		return
	}
	minLon, maxLon := math.MaxFloat64, -math.MaxFloat64
	minLat, maxLat := math.MaxFloat64, -math.MaxFloat64
	for _, s := range stations {
		lon, lat := clampLon(s.Lon), clampLat(s.Lat)
		minLon = math.Min(minLon, lon)
		maxLon = math.Max(maxLon, lon)
		minLat = math.Min(minLat, lat)
		maxLat = math.Max(maxLat, lat)
	}
	lonSpan := maxLon - minLon
	latSpan := maxLat - minLat
	if lonSpan <= 0 && latSpan <= 0 {
		// Single point or all stations stacked: degenerate.
		v.Proj = &Projection{identity: true}
		return
	}
	if lonSpan <= 0 {
		lonSpan = 1
	}
	if latSpan <= 0 {
		latSpan = 1
	}
	availW := float64(v.Width) - 2*fitPadding
	availH := float64(v.Height) - 2*fitPadding
	if availW <= 0 || availH <= 0 {
		v.Proj = &Projection{identity: true}
		return
	}
	ppd := math.Min(availW/lonSpan, availH/latSpan)
	v.Proj = &Projection{
		PixPerDeg: ppd,
		MinLon:    minLon,
		MaxLon:    maxLon,
		MinLat:    minLat,
		MaxLat:    maxLat,
		offsetX:   (float64(v.Width) - lonSpan*ppd) / 2,
		offsetY:   (float64(v.Height) - latSpan*ppd) / 2,
	}
}

// Resize updates the viewport dimensions and refits against the given
// station set.
func (v *Viewport) Resize(width, height int, stations []*Station) {
	v.Width, v.Height = width, height
	v.Fit(stations)
}

// BaseToScreen applies the viewport transform to base-plane coordinates.
func (v *Viewport) BaseToScreen(x, y float64) (float64, float64) {
	return x*v.Transform.Scale + v.Transform.PanX, y*v.Transform.Scale + v.Transform.PanY
}

// ScreenToBase inverts the viewport transform.
func (v *Viewport) ScreenToBase(x, y float64) (float64, float64) {
	return (x - v.Transform.PanX) / v.Transform.Scale, (y - v.Transform.PanY) / v.Transform.Scale
}

// ApplyPan shifts the view by a screen-space delta and re-clamps.
func (v *Viewport) ApplyPan(dx, dy float64) {
	v.Transform.PanX += dx
	v.Transform.PanY += dy
	v.Constrain()
}

// ApplyZoomAt scales the view around a screen-space focal point, keeping the
// base point under the cursor fixed, then re-clamps. The scale is bounded to
// [ScaleMin, ScaleMax].
func (v *Viewport) ApplyZoomAt(fx, fy, factor float64) {
	oldScale := v.Transform.Scale
	newScale := oldScale * factor
	if newScale < ScaleMin {
		newScale = ScaleMin
	}
	if newScale > ScaleMax {
		newScale = ScaleMax
	}
	if newScale == oldScale {
		v.Constrain()
		return
	}
	// Keep the world point under the focal point stationary.
	ratio := newScale / oldScale
	v.Transform.PanX = fx - (fx-v.Transform.PanX)*ratio
	v.Transform.PanY = fy - (fy-v.Transform.PanY)*ratio
	v.Transform.Scale = newScale
	v.Constrain()
}

// Constrain clamps the pan so the projected data bounds, expanded by the
// symbol padding and the geographic overscroll margin, keep intersecting the
// viewport. Axes where the content fits inside the viewport are centered.
// Idempotent: constraining an already-valid transform changes nothing.
func (v *Viewport) Constrain() {
	if v.Proj.identity {
		return
	}
	x0, y0 := v.Proj.Forward(v.Proj.MinLon, v.Proj.MaxLat)
	x1, y1 := v.Proj.Forward(v.Proj.MaxLon, v.Proj.MinLat)
	s := v.Transform.Scale
	margin := OverscrollDeg*v.Proj.PixPerDeg*s + symbolPadPx

	// Content rectangle in screen space, margin included.
	cx0 := x0*s + v.Transform.PanX - margin
	cx1 := x1*s + v.Transform.PanX + margin
	cy0 := y0*s + v.Transform.PanY - margin
	cy1 := y1*s + v.Transform.PanY + margin

	v.Transform.PanX += clampAxis(cx0, cx1, float64(v.Width))
	v.Transform.PanY += clampAxis(cy0, cy1, float64(v.Height))
}

// clampAxis returns the pan correction for one axis: center when the content
// span fits inside the viewport, otherwise the smallest shift that restores
// an intersection.
func clampAxis(c0, c1, view float64) float64 {
	if c1-c0 <= view {
		return (view-(c1-c0))/2 - c0
	}
	if c1 < 0 {
		return -c1
	}
	if c0 > view {
		return view - c0
	}
	return 0
}

// TransformSnapshot is the value identity of a transform, used for cache
// signatures and relative compositing.
type TransformSnapshot struct {
	PanX, PanY, Scale float64
	Version           int
}

// Snapshot captures the current transform and projection version.
func (v *Viewport) Snapshot() TransformSnapshot {
	return TransformSnapshot{
		PanX:    v.Transform.PanX,
		PanY:    v.Transform.PanY,
		Scale:   v.Transform.Scale,
		Version: v.version,
	}
}

// Signature renders the snapshot as a cache key. Two rasters produced under
// the same signature are pixel-identical.
func (t TransformSnapshot) Signature() string {
	return fmt.Sprintf("v%d:%.3f:%.3f:%.4f", t.Version, t.PanX, t.PanY, t.Scale)
}
