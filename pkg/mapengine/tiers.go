package mapengine

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Tier identifies one of the three independently keyed offscreen rasters.
type Tier int

const (
	TierWater Tier = iota
	TierBoundary
	TierSymbol
	tierCount
)

type tierEntry struct {
	signature string
	snap      TransformSnapshot
	image     *ebiten.Image
}

// RenderCache owns the offscreen raster buffers. A tier is regenerated only
// when its signature changes; a stored raster is composited as-is only on an
// exact signature match, and through an explicit relative transform otherwise.
type RenderCache struct {
	width, height int
	tiers         [tierCount]tierEntry
}

func NewRenderCache(width, height int) *RenderCache {
	return &RenderCache{width: width, height: height}
}

// Resize drops every tier. Rasters from the old dimensions are never reused.
func (rc *RenderCache) Resize(width, height int) {
	if width == rc.width && height == rc.height {
		return
	}
	rc.width, rc.height = width, height
	for i := range rc.tiers {
		rc.tiers[i] = tierEntry{}
	}
}

// Ensure makes the tier's raster current for the given signature. If the
// stored signature already matches this is a no-op; otherwise generate is
// invoked exactly once to repaint the offscreen buffer. Reports whether a
// regeneration happened.
func (rc *RenderCache) Ensure(t Tier, snap TransformSnapshot, sig string, generate func(dst *ebiten.Image)) bool {
	e := &rc.tiers[t]
	if e.signature == sig && e.image != nil {
		return false
	}
	if e.image == nil {
		e.image = ebiten.NewImage(rc.width, rc.height)
	} else {
		e.image.Clear()
	}
	generate(e.image)
	e.signature = sig
	e.snap = snap
	return true
}

// Invalidate clears a tier's signature so the next Ensure regenerates it.
func (rc *RenderCache) Invalidate(t Tier) {
	rc.tiers[t].signature = ""
}

// Signature returns the tier's stored signature, empty if never generated.
func (rc *RenderCache) Signature(t Tier) string {
	return rc.tiers[t].signature
}

// Composite draws the tier onto dst. On an exact signature match the raster
// is blitted untransformed. Otherwise the stale raster is composited through
// the relative affine between its snapshot transform and the current one —
// geometrically approximate, but never passed off as current content.
func (rc *RenderCache) Composite(dst *ebiten.Image, t Tier, cur TransformSnapshot, curSig string) {
	e := &rc.tiers[t]
	if e.image == nil {
		return
	}
	if e.signature == curSig {
		dst.DrawImage(e.image, nil)
		return
	}
	if e.snap.Version != cur.Version {
		// A projection change redefines the base plane; the old raster has no
		// meaningful transform relative to it.
		return
	}
	op := &ebiten.DrawImageOptions{}
	applyRelative(&op.GeoM, e.snap, cur)
	dst.DrawImage(e.image, op)
}

// applyRelative configures g to map a raster drawn at snap onto the screen at
// cur: scale by cur.Scale/snap.Scale, then translate so the pans line up.
func applyRelative(g *ebiten.GeoM, snap, cur TransformSnapshot) {
	ratio := cur.Scale / snap.Scale
	g.Scale(ratio, ratio)
	g.Translate(cur.PanX-snap.PanX*ratio, cur.PanY-snap.PanY*ratio)
}
