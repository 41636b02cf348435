package mapengine

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// SymbolStyle selects between the two interchangeable station renderers.
// The choice is global and picked once per symbol-tier regeneration, not per
// station.
type SymbolStyle int

const (
	// StylePoint draws a filled disc with a fixed stroke.
	StylePoint SymbolStyle = iota
	// StyleGlyph draws a 12-vertex radial climate glyph: the outer polygon
	// encodes monthly precipitation, the inner one monthly temperature.
	StyleGlyph
)

func (s SymbolStyle) String() string {
	if s == StyleGlyph {
		return "glyph"
	}
	return "point"
}

// ParseSymbolStyle parses "point" or "glyph".
func ParseSymbolStyle(s string) (SymbolStyle, error) {
	switch s {
	case "point":
		return StylePoint, nil
	case "glyph":
		return StyleGlyph, nil
	}
	return StylePoint, fmt.Errorf("unknown symbol style %q", s)
}

// HighlightState is the classification driving the highlight, if any. Lock
// takes priority over hover; stations of a different classification render
// faded.
type HighlightState struct {
	Active bool
	Class  string
}

const (
	basePointRadius = 4.5
	baseGlyphRadius = 13.0
	fadedAlpha      = 0.18
	tickExtend      = 1.35
)

// densityFactor shrinks symbols as the station count grows so dense sets stay
// readable. Precomputed once per station set.
func densityFactor(n int) float64 {
	if n <= 0 {
		return 1
	}
	f := 12 / math.Sqrt(float64(n))
	if f < 0.35 {
		f = 0.35
	}
	if f > 1.5 {
		f = 1.5
	}
	return f
}

// Canonical ebiten pattern for path filling: triangles sample a white pixel
// and carry the color in the vertices.
var (
	whiteImage    = ebiten.NewImage(3, 3)
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
)

func init() {
	whiteImage.Fill(color.White)
}

func fillPath(dst *ebiten.Image, path *vector.Path, c color.RGBA) {
	vs, is := path.AppendVerticesAndIndicesForFilling(nil, nil)
	cr := float32(c.R) / 255
	cg := float32(c.G) / 255
	cb := float32(c.B) / 255
	ca := float32(c.A) / 255
	for i := range vs {
		vs[i].SrcX = 1
		vs[i].SrcY = 1
		vs[i].ColorR = cr
		vs[i].ColorG = cg
		vs[i].ColorB = cb
		vs[i].ColorA = ca
	}
	op := &ebiten.DrawTrianglesOptions{
		AntiAlias: true,
		FillRule:  ebiten.FillRuleEvenOdd,
	}
	dst.DrawTriangles(vs, is, whiteSubImage, op)
}

// monthAngle places month 0 at twelve o'clock, months clockwise.
func monthAngle(m int) float64 {
	return -math.Pi/2 + float64(m)*(2*math.Pi/12)
}

// renderSymbols paints every visible station into the symbol tier at the
// current transform. The style renderer is chosen once here.
func (e *Engine) renderSymbols(dst *ebiten.Image) {
	hl := e.highlightState()
	draw := e.drawPointSymbol
	radius := basePointRadius
	if e.style == StyleGlyph {
		draw = e.drawGlyphSymbol
		radius = baseGlyphRadius
	}
	r := radius * e.density * e.vp.Transform.Scale

	// Cull to the viewport plus one symbol radius.
	w, h := float64(e.vp.Width), float64(e.vp.Height)
	for _, st := range e.stations {
		bx, by := st.Projected(e.vp, e.glyph)
		x, y := e.vp.BaseToScreen(bx, by)
		if x < -r || x > w+r || y < -r || y > h+r {
			continue
		}
		alpha := 1.0
		if hl.Active && st.Class != hl.Class {
			alpha = fadedAlpha
		}
		draw(dst, st, x, y, r, alpha)
	}
}

func (e *Engine) drawPointSymbol(dst *ebiten.Image, st *Station, x, y, r, alpha float64) {
	_, _, fill, _, stroke := st.GlyphAttrs(e.vp, e.glyph)
	vector.DrawFilledCircle(dst, float32(x), float32(y), float32(r), applyAlpha(fill, alpha), true)
	vector.StrokeCircle(dst, float32(x), float32(y), float32(r), 1, applyAlpha(stroke, alpha), true)
}

func (e *Engine) drawGlyphSymbol(dst *ebiten.Image, st *Station, x, y, r, alpha float64) {
	precip, temp, fill, inner, stroke := st.GlyphAttrs(e.vp, e.glyph)

	var outerPath vector.Path
	for m := 0; m < 12; m++ {
		vr := r * precip[m]
		a := monthAngle(m)
		px := float32(x + vr*math.Cos(a))
		py := float32(y + vr*math.Sin(a))
		if m == 0 {
			outerPath.MoveTo(px, py)
		} else {
			outerPath.LineTo(px, py)
		}
	}
	outerPath.Close()
	fillPath(dst, &outerPath, applyAlpha(fill, alpha))

	var innerPath vector.Path
	innerScale := r * 0.55
	for m := 0; m < 12; m++ {
		vr := innerScale * temp[m]
		a := monthAngle(m)
		px := float32(x + vr*math.Cos(a))
		py := float32(y + vr*math.Sin(a))
		if m == 0 {
			innerPath.MoveTo(px, py)
		} else {
			innerPath.LineTo(px, py)
		}
	}
	innerPath.Close()
	fillPath(dst, &innerPath, applyAlpha(inner, alpha))

	// Reference-month tick, drawn from the outer vertex outward.
	ref := e.glyph.ReferenceMonth
	a := monthAngle(ref)
	vr := r * precip[ref]
	x0 := x + vr*math.Cos(a)
	y0 := y + vr*math.Sin(a)
	x1 := x + vr*tickExtend*math.Cos(a)
	y1 := y + vr*tickExtend*math.Sin(a)
	vector.StrokeLine(dst, float32(x0), float32(y0), float32(x1), float32(y1), 1, applyAlpha(stroke, alpha), true)
}

// highlightState resolves which classification drives the highlight; the
// lock wins over hover.
func (e *Engine) highlightState() HighlightState {
	if e.sel.Locked && e.sel.LockedStation != nil {
		return HighlightState{Active: true, Class: e.sel.LockedStation.Class}
	}
	if e.sel.HoveredStation != nil {
		return HighlightState{Active: true, Class: e.sel.HoveredStation.Class}
	}
	return HighlightState{}
}
