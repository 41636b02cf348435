package mapengine

import "image/color"

// Station is one climate station. The geographic identity is immutable after
// load; the derived block is a per-projection cache and is only valid while
// its version matches the engine's current projection version. Readers must
// go through the accessor methods, which recompute on a version mismatch
// instead of trusting stale values.
type Station struct {
	ID            string
	Lon, Lat      float64
	Class         string // Köppen classification code, e.g. "Cfb"
	City, Country string
	MonthlyTemp   [12]float64 // °C
	MonthlyPrecip [12]float64 // mm
	BaseColor     color.RGBA

	derived stationDerived
}

type stationDerived struct {
	version      int
	x, y         float64 // base-plane coordinates
	tempRadii    [12]float64
	precipRadii  [12]float64
	fill, stroke color.RGBA
	innerFill    color.RGBA
}

// Projected returns the station's base-plane coordinates under vp's current
// projection, recomputing the derived cache if it is stale.
func (s *Station) Projected(vp *Viewport, g GlyphScale) (x, y float64) {
	s.ensureDerived(vp, g)
	return s.derived.x, s.derived.y
}

// GlyphAttrs returns the per-month radius factors and derived colors,
// recomputing if stale.
func (s *Station) GlyphAttrs(vp *Viewport, g GlyphScale) (precip, temp *[12]float64, fill, inner, stroke color.RGBA) {
	s.ensureDerived(vp, g)
	d := &s.derived
	return &d.precipRadii, &d.tempRadii, d.fill, d.innerFill, d.stroke
}

func (s *Station) ensureDerived(vp *Viewport, g GlyphScale) {
	// Version 0 is the zero value of a never-filled cache and also the
	// version of a never-fitted viewport; Fit starts real versions at 1, so
	// 0 never counts as a hit.
	if s.derived.version != 0 && s.derived.version == vp.Version() {
		return
	}
	s.derived.x, s.derived.y = vp.Proj.Forward(s.Lon, s.Lat)
	for m := 0; m < 12; m++ {
		s.derived.precipRadii[m] = g.PrecipRadiusFactor(s.MonthlyPrecip[m])
		s.derived.tempRadii[m] = g.TempRadiusFactor(s.MonthlyTemp[m])
	}
	s.derived.fill = AdjustHSL(s.BaseColor, 0.85, 1.1)
	s.derived.innerFill = AdjustHSL(s.BaseColor, 1.15, 0.75)
	s.derived.stroke = AdjustHSL(s.BaseColor, 0.6, 0.45)
	s.derived.version = vp.Version()
}

// GlyphScale holds the normalization constants for glyph geometry. The
// precipitation curve is a three-segment piecewise-linear ramp (shallow,
// steep, shallow); temperature is a straight ramp between global bounds.
// These are configuration, not requirements: swap them to match a dataset.
type GlyphScale struct {
	PrecipBreakLow  float64 // mm, end of the first shallow segment
	PrecipBreakHigh float64 // mm, end of the steep segment
	PrecipMax       float64 // mm, clamp ceiling
	RadiusMin       float64 // factor at 0 mm
	RadiusMax       float64 // factor at PrecipMax

	TempMin float64 // °C mapped to 0
	TempMax float64 // °C mapped to 1

	ReferenceMonth int // month index marked with a radial tick
}

// DefaultGlyphScale returns constants tuned for worldwide station normals.
func DefaultGlyphScale() GlyphScale {
	return GlyphScale{
		PrecipBreakLow:  40,
		PrecipBreakHigh: 280,
		PrecipMax:       600,
		RadiusMin:       0.15,
		RadiusMax:       1.0,
		TempMin:         -35,
		TempMax:         35,
		ReferenceMonth:  0,
	}
}

// fractions of the radius range reached at each breakpoint; the steep middle
// segment covers most of the range.
const (
	precipFracLow  = 0.18
	precipFracHigh = 0.88
)

// PrecipRadiusFactor maps monthly precipitation (mm) into
// [RadiusMin, RadiusMax]. Non-decreasing for all inputs; out-of-domain
// values are clamped, never propagated.
func (g GlyphScale) PrecipRadiusFactor(p float64) float64 {
	if p < 0 {
		p = 0
	}
	if p > g.PrecipMax {
		p = g.PrecipMax
	}
	var frac float64
	switch {
	case p <= g.PrecipBreakLow:
		frac = precipFracLow * p / g.PrecipBreakLow
	case p <= g.PrecipBreakHigh:
		frac = precipFracLow + (precipFracHigh-precipFracLow)*(p-g.PrecipBreakLow)/(g.PrecipBreakHigh-g.PrecipBreakLow)
	default:
		frac = precipFracHigh + (1-precipFracHigh)*(p-g.PrecipBreakHigh)/(g.PrecipMax-g.PrecipBreakHigh)
	}
	return g.RadiusMin + (g.RadiusMax-g.RadiusMin)*frac
}

// TempRadiusFactor maps monthly mean temperature (°C) into [0, 1] linearly
// against the configured global bounds, clamping out-of-range input.
func (g GlyphScale) TempRadiusFactor(t float64) float64 {
	return clamp01((t - g.TempMin) / (g.TempMax - g.TempMin))
}
