package mapengine

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	geojson "github.com/paulmach/go.geojson"
)

// CachedFeature holds the projected form of one boundary or water feature:
// its base-plane bounding box, the projected rings for stroking, and the
// pre-triangulated fill mesh. Valid only while version matches the viewport.
type CachedFeature struct {
	version                int
	MinX, MinY, MaxX, MaxY float64
	CenterX, CenterY       float64

	// rings are projected outlines, one flat [x0 y0 x1 y1 ...] slice per ring.
	rings [][]float64

	fillVs []ebiten.Vertex
	fillIs []uint16
}

// Intersects reports whether the feature's bounding box intersects the given
// base-plane rectangle. This is the viewport-culling test and runs before any
// per-feature work.
func (cf *CachedFeature) Intersects(x0, y0, x1, y1 float64) bool {
	return cf.MaxX >= x0 && cf.MinX <= x1 && cf.MaxY >= y0 && cf.MinY <= y1
}

// Rings returns the projected outlines for stroking.
func (cf *CachedFeature) Rings() [][]float64 { return cf.rings }

// FillMesh returns the cached triangulation. Callers copy and transform the
// vertices; the cached slices are never mutated.
func (cf *CachedFeature) FillMesh() ([]ebiten.Vertex, []uint16) {
	return cf.fillVs, cf.fillIs
}

// GeometryCache caches projected geometry per feature, keyed transitively on
// the projection version. A version mismatch on read is a cache miss and
// triggers recomputation; stale entries are never returned.
type GeometryCache struct {
	vp      *Viewport
	entries map[*geojson.Feature]*CachedFeature
}

func NewGeometryCache(vp *Viewport) *GeometryCache {
	return &GeometryCache{vp: vp, entries: make(map[*geojson.Feature]*CachedFeature)}
}

// Feature returns the cached projection of f, recomputing it if the stored
// projection version is stale.
func (c *GeometryCache) Feature(f *geojson.Feature) *CachedFeature {
	if cf, ok := c.entries[f]; ok && cf.version == c.vp.Version() {
		return cf
	}
	cf := c.project(f)
	c.entries[f] = cf
	return cf
}

// Visible culls f against an expanded base-plane viewport rectangle.
func (c *GeometryCache) Visible(f *geojson.Feature, x0, y0, x1, y1 float64) bool {
	return c.Feature(f).Intersects(x0, y0, x1, y1)
}

func (c *GeometryCache) project(f *geojson.Feature) *CachedFeature {
	cf := &CachedFeature{
		version: c.vp.Version(),
		MinX:    math.MaxFloat64,
		MinY:    math.MaxFloat64,
		MaxX:    -math.MaxFloat64,
		MaxY:    -math.MaxFloat64,
	}

	var polys [][][][]float64
	switch {
	case f.Geometry == nil:
		return cf
	case f.Geometry.IsPolygon():
		polys = [][][][]float64{f.Geometry.Polygon}
	case f.Geometry.IsMultiPolygon():
		polys = f.Geometry.MultiPolygon
	default:
		return cf
	}

	var path vector.Path
	for _, poly := range polys {
		for _, ring := range poly {
			if len(ring) < 3 {
				continue
			}
			flat := make([]float64, 0, len(ring)*2)
			for i, coord := range ring {
				x, y := c.vp.Proj.Forward(coord[0], coord[1])
				flat = append(flat, x, y)
				cf.MinX = math.Min(cf.MinX, x)
				cf.MaxX = math.Max(cf.MaxX, x)
				cf.MinY = math.Min(cf.MinY, y)
				cf.MaxY = math.Max(cf.MaxY, y)
				if i == 0 {
					path.MoveTo(float32(x), float32(y))
				} else {
					path.LineTo(float32(x), float32(y))
				}
			}
			path.Close()
			cf.rings = append(cf.rings, flat)
		}
	}
	if len(cf.rings) == 0 {
		cf.MinX, cf.MinY, cf.MaxX, cf.MaxY = 0, 0, 0, 0
		return cf
	}
	cf.CenterX = (cf.MinX + cf.MaxX) / 2
	cf.CenterY = (cf.MinY + cf.MaxY) / 2
	cf.fillVs, cf.fillIs = path.AppendVerticesAndIndicesForFilling(nil, nil)
	return cf
}
