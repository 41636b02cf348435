// Package mapengine renders an interactive climate-station map: a fitted
// world projection with pan/zoom, a spatial index for pointer picking, tiered
// offscreen render caches, and a cancellable background refinement job that
// restores full quality after a gesture. All mutable state (transform,
// selection, caches) is owned by the Engine and mutated only through its
// operations.
package mapengine

import (
	"bytes"
	"fmt"
	"image/color"
	"log"
	"math"
	"runtime/debug"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	geojson "github.com/paulmach/go.geojson"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	colorBackground = color.RGBA{8, 10, 15, 255}
	colorLand       = color.RGBA{26, 29, 35, 255}
	colorOutline    = color.RGBA{56, 64, 78, 255}
	colorWater      = color.RGBA{13, 24, 38, 255}
	colorGlow       = color.RGBA{36, 90, 140, 255}
	colorGraticule  = color.RGBA{28, 33, 42, 255}
	colorFrame      = color.RGBA{46, 53, 66, 255}
	colorAxisText   = color.RGBA{120, 128, 142, 255}
	colorMarker     = color.RGBA{255, 255, 255, 255}
)

// featureCullPad is the fixed pixel buffer added to the viewport when culling
// features for the water and boundary tiers.
const featureCullPad = 64.0

// Engine is the interactive rendering core. It implements ebiten.Game; the
// host passes pointer events through the ebiten loop and receives
// notifications through Subscribe. The raster it draws into is an opaque
// handle for the host: calling Draw with a host-owned image produces an
// export snapshot, and nothing external ever mutates the internal tiers.
type Engine struct {
	vp      *Viewport
	tiers   *RenderCache
	geom    *GeometryCache
	index   *StationIndex
	refine  *RefineScheduler
	bitmap  GestureBitmap
	glyph   GlyphScale
	style   SymbolStyle
	density float64

	stations   []*Station
	places     []*Place
	boundaries *geojson.FeatureCollection
	water      *geojson.FeatureCollection

	sel           SelectionState
	gesturing     bool
	pressed       bool
	dragActive    bool
	pressX        float64
	pressY        float64
	dragLastX     float64
	dragLastY     float64
	pointerX      float64
	pointerY      float64
	pointerInside bool
	wheelIdle     int

	listeners     []Listener
	labelsVisible bool
	dataLoaded    bool

	fontSource *text.GoTextFaceSource
	monoSource *text.GoTextFaceSource
	glowImage  *ebiten.Image
}

func NewEngine(width, height int) *Engine {
	s, _ := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	m, _ := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))

	e := &Engine{
		vp:         NewViewport(width, height),
		tiers:      NewRenderCache(width, height),
		index:      NewStationIndex(),
		refine:     NewRefineScheduler(),
		glyph:      DefaultGlyphScale(),
		style:      StyleGlyph,
		density:    1,
		fontSource: s,
		monoSource: m,
	}
	e.geom = NewGeometryCache(e.vp)
	e.initGlowTexture()
	return e
}

// Viewport exposes the projection/transform manager, primarily for hosts
// converting coordinates for export overlays.
func (e *Engine) Viewport() *Viewport { return e.vp }

// SetGlyphScale replaces the glyph normalization constants. Takes effect on
// the next projection change.
func (e *Engine) SetGlyphScale(g GlyphScale) { e.glyph = g }

// SetData installs the station set and feature collections, fits the
// projection, and produces the first full frame synchronously. Emits
// DataReady.
func (e *Engine) SetData(stations []*Station, boundaries, water *geojson.FeatureCollection, places []*Place) {
	e.stations = stations
	e.boundaries = boundaries
	e.water = water
	e.places = places
	e.density = densityFactor(len(stations))

	e.vp.Fit(stations)
	e.sel = SelectionState{}
	e.refine.Cancel()

	if e.vp.Proj.Identity() {
		log.Printf("mapengine: degenerate station set (%d stations), rendering disabled", len(stations))
		e.dataLoaded = false
		return
	}
	e.index.Rebuild(stations, e.vp, e.glyph)
	e.dataLoaded = true
	e.regenerateAll()
	log.Printf("mapengine: data ready: %d stations, %d places", len(stations), len(places))
	e.emitDataReady()
}

// Resize changes the internal render resolution: refit, rebuild, full
// redraw. Bumps the render epoch, cancelling any outstanding refinement.
func (e *Engine) Resize(width, height int) {
	e.refine.Cancel()
	e.bitmap.End()
	e.gesturing = false
	e.vp.Resize(width, height, e.stations)
	e.tiers.Resize(width, height)
	if !e.dataLoaded || e.vp.Proj.Identity() {
		return
	}
	e.index.Rebuild(e.stations, e.vp, e.glyph)
	e.regenerateAll()
}

// regenerateAll rebuilds every tier at the current transform, synchronously.
// Used for the initial frame and after a resize.
func (e *Engine) regenerateAll() {
	snap := e.vp.Snapshot()
	sig := snap.Signature()
	e.tiers.Ensure(TierWater, snap, sig, e.renderWaterTier)
	e.tiers.Ensure(TierBoundary, snap, sig, e.renderBoundaryTier)
	e.ensureSymbolTier()
	e.labelsVisible = true
}

// Update advances one engine tick: input, then at most one refinement step.
func (e *Engine) Update() error {
	if !e.dataLoaded {
		return nil
	}
	now := time.Now()
	e.handleInput(now)
	if step, epoch, ok := e.refine.Next(now); ok {
		e.runRefineStep(step, epoch)
	}
	return nil
}

// fastCompose is the synchronous gesture-end pass: only the cheap symbol
// tier is regenerated at the new transform; water and boundary stay stale
// and are composited through the relative transform until refinement
// replaces them.
func (e *Engine) fastCompose() {
	e.ensureSymbolTier()
}

func (e *Engine) runRefineStep(step int, epoch int64) {
	// Cooperative cancellation: a stale epoch means a new gesture or resize
	// superseded this job. No cache may be touched past this check.
	if epoch != e.refine.Epoch() {
		return
	}
	snap := e.vp.Snapshot()
	sig := snap.Signature()
	switch step {
	case RefineStepWater:
		e.tiers.Ensure(TierWater, snap, sig, e.renderWaterTier)
	case RefineStepBoundary:
		e.tiers.Ensure(TierBoundary, snap, sig, e.renderBoundaryTier)
	case RefineStepFinal:
		e.labelsVisible = true
	}
	e.refine.StepDone(epoch)
}

func (e *Engine) ensureSymbolTier() {
	snap := e.vp.Snapshot()
	e.tiers.Ensure(TierSymbol, snap, e.symbolSignature(snap), e.renderSymbols)
}

// symbolSignature extends the transform signature with everything the symbol
// raster depends on: style and the active lock/hover classifications.
func (e *Engine) symbolSignature(snap TransformSnapshot) string {
	var lockClass, hoverClass string
	if e.sel.Locked && e.sel.LockedStation != nil {
		lockClass = e.sel.LockedStation.Class
	}
	if e.sel.HoveredStation != nil {
		hoverClass = e.sel.HoveredStation.Class
	}
	return fmt.Sprintf("%s|%s|L=%s|H=%s", snap.Signature(), e.style, lockClass, hoverClass)
}

// cullRect returns the viewport rectangle in base coordinates, expanded by
// the fixed feature-culling buffer.
func (e *Engine) cullRect() (x0, y0, x1, y1 float64) {
	x0, y0 = e.vp.ScreenToBase(-featureCullPad, -featureCullPad)
	x1, y1 = e.vp.ScreenToBase(float64(e.vp.Width)+featureCullPad, float64(e.vp.Height)+featureCullPad)
	return x0, y0, x1, y1
}

func (e *Engine) renderWaterTier(dst *ebiten.Image) {
	if e.water == nil {
		return
	}
	x0, y0, x1, y1 := e.cullRect()
	for _, f := range e.water.Features {
		if !e.geom.Visible(f, x0, y0, x1, y1) {
			continue
		}
		cf := e.geom.Feature(f)
		e.drawFeatureFill(dst, cf, colorWater)
	}
	// The glow samples a radial texture over each water body, clipped to the
	// water pixels already present in this tier.
	for _, f := range e.water.Features {
		cf := e.geom.Feature(f)
		if !cf.Intersects(x0, y0, x1, y1) {
			continue
		}
		e.drawWaterGlow(dst, cf)
	}
}

func (e *Engine) renderBoundaryTier(dst *ebiten.Image) {
	if e.boundaries == nil {
		return
	}
	x0, y0, x1, y1 := e.cullRect()
	s := e.vp.Transform.Scale
	panX, panY := e.vp.Transform.PanX, e.vp.Transform.PanY
	for _, f := range e.boundaries.Features {
		if !e.geom.Visible(f, x0, y0, x1, y1) {
			continue
		}
		cf := e.geom.Feature(f)
		e.drawFeatureFill(dst, cf, colorLand)
		for _, ring := range cf.Rings() {
			for i := 0; i+3 < len(ring); i += 2 {
				ax := float32(ring[i]*s + panX)
				ay := float32(ring[i+1]*s + panY)
				bx := float32(ring[i+2]*s + panX)
				by := float32(ring[i+3]*s + panY)
				vector.StrokeLine(dst, ax, ay, bx, by, 1, colorOutline, false)
			}
		}
	}
}

// drawFeatureFill transforms the cached base-space fill mesh to the current
// screen transform and paints it.
func (e *Engine) drawFeatureFill(dst *ebiten.Image, cf *CachedFeature, c color.RGBA) {
	src, is := cf.FillMesh()
	if len(src) == 0 {
		return
	}
	s := float32(e.vp.Transform.Scale)
	panX := float32(e.vp.Transform.PanX)
	panY := float32(e.vp.Transform.PanY)
	cr := float32(c.R) / 255
	cg := float32(c.G) / 255
	cb := float32(c.B) / 255
	vs := make([]ebiten.Vertex, len(src))
	for i, v := range src {
		v.DstX = v.DstX*s + panX
		v.DstY = v.DstY*s + panY
		v.SrcX, v.SrcY = 1, 1
		v.ColorR, v.ColorG, v.ColorB, v.ColorA = cr, cg, cb, 1
		vs[i] = v
	}
	op := &ebiten.DrawTrianglesOptions{FillRule: ebiten.FillRuleEvenOdd}
	dst.DrawTriangles(vs, is, whiteSubImage, op)
}

func (e *Engine) drawWaterGlow(dst *ebiten.Image, cf *CachedFeature) {
	if e.glowImage == nil {
		return
	}
	s := e.vp.Transform.Scale
	w := (cf.MaxX - cf.MinX) * s
	h := (cf.MaxY - cf.MinY) * s
	if w < 8 || h < 8 {
		return
	}
	cx, cy := e.vp.BaseToScreen(cf.CenterX, cf.CenterY)
	gw := float64(e.glowImage.Bounds().Dx())
	op := &ebiten.DrawImageOptions{}
	op.Blend = ebiten.BlendSourceAtop
	op.GeoM.Translate(-gw/2, -gw/2)
	op.GeoM.Scale(w*1.2/gw, h*1.2/gw)
	op.GeoM.Translate(cx, cy)
	op.ColorScale.ScaleWithColor(colorGlow)
	op.ColorScale.ScaleAlpha(0.35)
	dst.DrawImage(e.glowImage, op)
}

// initGlowTexture builds the radial falloff texture composited over water
// bodies.
func (e *Engine) initGlowTexture() {
	const size = 128
	e.glowImage = ebiten.NewImage(size, size)
	pixels := make([]byte, size*size*4)
	center := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-center, float64(y)-center
			dist := math.Sqrt(dx*dx+dy*dy) / center
			if dist > 1 {
				continue
			}
			val := math.Cos(dist * math.Pi / 2)
			a := uint8(val * val * 255)
			off := (y*size + x) * 4
			pixels[off], pixels[off+1], pixels[off+2], pixels[off+3] = a, a, a, a
		}
	}
	e.glowImage.WritePixels(pixels)
}

// Draw composites one frame. Tier order is a correctness invariant: water
// under boundaries, symbols over boundaries, overlay markers over symbols.
func (e *Engine) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)
	if !e.dataLoaded {
		return
	}
	now := time.Now()
	cur := e.vp.Snapshot()
	sig := cur.Signature()

	e.tiers.Composite(screen, TierWater, cur, sig)
	e.tiers.Composite(screen, TierBoundary, cur, sig)
	e.drawFrameBorder(screen)
	e.drawGraticule(screen)

	if e.bitmap.Active() {
		e.bitmap.CompositeTransformed(screen, cur)
	} else {
		e.ensureSymbolTier()
		e.tiers.Composite(screen, TierSymbol, cur, e.symbolSignature(cur))
	}

	if e.labelsVisible {
		e.drawLabels(screen)
	}
	e.drawSelectionMarker(screen)
	if e.labelsVisible {
		e.drawAxes(screen)
	}
	if e.refine.Busy(now) {
		e.drawBusyIndicator(screen)
	}
}

// Layout keeps a fixed internal resolution, like any offscreen-composited
// renderer; window scaling is ebiten's problem.
func (e *Engine) Layout(outsideWidth, outsideHeight int) (int, int) {
	return e.vp.Width, e.vp.Height
}

func (e *Engine) drawFrameBorder(screen *ebiten.Image) {
	vector.StrokeRect(screen, 0.5, 0.5, float32(e.vp.Width)-1, float32(e.vp.Height)-1, 1, colorFrame, false)
}

// graticuleStepDeg picks a round step so the grid thins out as the user
// zooms in.
func graticuleStepDeg(scale float64) float64 {
	switch {
	case scale < 2:
		return 30
	case scale < 6:
		return 10
	default:
		return 5
	}
}

func (e *Engine) drawGraticule(screen *ebiten.Image) {
	p := e.vp.Proj
	step := graticuleStepDeg(e.vp.Transform.Scale)
	w, h := float32(e.vp.Width), float32(e.vp.Height)
	for lon := math.Ceil(p.MinLon/step) * step; lon <= p.MaxLon; lon += step {
		bx, _ := p.Forward(lon, p.MinLat)
		x, _ := e.vp.BaseToScreen(bx, 0)
		if x < 0 || x > float64(w) {
			continue
		}
		vector.StrokeLine(screen, float32(x), 0, float32(x), h, 1, colorGraticule, false)
	}
	for lat := math.Ceil(p.MinLat/step) * step; lat <= p.MaxLat; lat += step {
		_, by := p.Forward(p.MinLon, lat)
		_, y := e.vp.BaseToScreen(0, by)
		if y < 0 || y > float64(h) {
			continue
		}
		vector.StrokeLine(screen, 0, float32(y), w, float32(y), 1, colorGraticule, false)
	}
}

// drawAxes writes longitude ticks along the bottom edge and latitude ticks
// along the left edge, in the mono face.
func (e *Engine) drawAxes(screen *ebiten.Image) {
	if e.monoSource == nil {
		return
	}
	p := e.vp.Proj
	step := graticuleStepDeg(e.vp.Transform.Scale)
	face := &text.GoTextFace{Source: e.monoSource, Size: 10}
	for lon := math.Ceil(p.MinLon/step) * step; lon <= p.MaxLon; lon += step {
		bx, _ := p.Forward(lon, p.MinLat)
		x, _ := e.vp.BaseToScreen(bx, 0)
		if x < 12 || x > float64(e.vp.Width)-24 {
			continue
		}
		op := &text.DrawOptions{}
		op.GeoM.Translate(x+2, float64(e.vp.Height)-14)
		op.ColorScale.ScaleWithColor(colorAxisText)
		text.Draw(screen, fmt.Sprintf("%.0f°", lon), face, op)
	}
	for lat := math.Ceil(p.MinLat/step) * step; lat <= p.MaxLat; lat += step {
		_, by := p.Forward(p.MinLon, lat)
		_, y := e.vp.BaseToScreen(0, by)
		if y < 12 || y > float64(e.vp.Height)-18 {
			continue
		}
		op := &text.DrawOptions{}
		op.GeoM.Translate(4, y+2)
		op.ColorScale.ScaleWithColor(colorAxisText)
		text.Draw(screen, fmt.Sprintf("%.0f°", lat), face, op)
	}
}

// drawSelectionMarker rings the station driving the highlight. Always drawn
// above the symbol raster.
func (e *Engine) drawSelectionMarker(screen *ebiten.Image) {
	st := e.sel.LockedStation
	if st == nil {
		st = e.sel.HoveredStation
	}
	if st == nil {
		return
	}
	bx, by := st.Projected(e.vp, e.glyph)
	x, y := e.vp.BaseToScreen(bx, by)
	r := baseGlyphRadius * e.density * e.vp.Transform.Scale * 1.25
	if e.style == StylePoint {
		r = basePointRadius*e.density*e.vp.Transform.Scale + 4
	}
	vector.StrokeCircle(screen, float32(x), float32(y), float32(r), 1.5, colorMarker, true)
	if e.sel.Locked {
		vector.StrokeCircle(screen, float32(x), float32(y), float32(r+4), 1, colorMarker, true)
	}
}

func (e *Engine) drawBusyIndicator(screen *ebiten.Image) {
	if e.monoSource == nil {
		return
	}
	face := &text.GoTextFace{Source: e.monoSource, Size: 12}
	msg := "refining…"
	tw, _ := text.Measure(msg, face, 0)
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(e.vp.Width)-tw-12, 10)
	op.ColorScale.ScaleWithColor(colorAxisText)
	text.Draw(screen, msg, face, op)
}

// StartMemoryWatcher periodically returns freed memory to the OS. Large
// boundary datasets leave sizeable garbage behind after projection changes.
func (e *Engine) StartMemoryWatcher() {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		for range ticker.C {
			debug.FreeOSMemory()
		}
	}()
}
