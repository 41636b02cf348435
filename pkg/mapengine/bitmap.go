package mapengine

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// GestureBitmap is the fast interaction mode used while a pan/zoom gesture is
// active. It freezes the symbol-layer raster at gesture start and composites
// that single snapshot through one affine transform per frame, skipping all
// glyph geometry work. The transform-only distortion lasts only for the
// gesture and is corrected by the fast compose on release.
type GestureBitmap struct {
	image  *ebiten.Image
	snap   TransformSnapshot
	active bool
}

// Begin freezes the given symbol raster and the transform it was produced
// under. The raster must not be regenerated until End.
func (b *GestureBitmap) Begin(symbol *ebiten.Image, snap TransformSnapshot) {
	b.image = symbol
	b.snap = snap
	b.active = true
}

// Active reports whether a gesture snapshot is held.
func (b *GestureBitmap) Active() bool { return b.active }

// CompositeTransformed blits the snapshot through the relative affine between
// the snapshot transform and cur. No geometry is re-evaluated.
func (b *GestureBitmap) CompositeTransformed(dst *ebiten.Image, cur TransformSnapshot) {
	if !b.active || b.image == nil {
		return
	}
	op := &ebiten.DrawImageOptions{}
	applyRelative(&op.GeoM, b.snap, cur)
	dst.DrawImage(b.image, op)
}

// End discards the snapshot.
func (b *GestureBitmap) End() {
	b.image = nil
	b.active = false
}
