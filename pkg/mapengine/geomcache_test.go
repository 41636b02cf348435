package mapengine

import (
	"testing"

	geojson "github.com/paulmach/go.geojson"
)

func squareFeature(lon0, lat0, lon1, lat1 float64) *geojson.Feature {
	return geojson.NewPolygonFeature([][][]float64{{
		{lon0, lat0}, {lon1, lat0}, {lon1, lat1}, {lon0, lat1}, {lon0, lat0},
	}})
}

func TestGeometryCacheReusesUntilProjectionChanges(t *testing.T) {
	vp := fittedViewport(worldStations())
	c := NewGeometryCache(vp)
	f := squareFeature(-10, -10, 10, 10)

	cf1 := c.Feature(f)
	cf2 := c.Feature(f)
	if cf1 != cf2 {
		t.Fatal("cache recomputed under an unchanged projection")
	}
	if len(cf1.Rings()) != 1 {
		t.Fatalf("got %d rings, want 1", len(cf1.Rings()))
	}
	if vs, is := cf1.FillMesh(); len(vs) == 0 || len(is) == 0 {
		t.Fatal("fill mesh is empty for a valid polygon")
	}

	vp.Fit(worldStations())
	cf3 := c.Feature(f)
	if cf3 == cf1 {
		t.Fatal("cache returned a stale entry after a projection change")
	}
	if cf3.version != vp.Version() {
		t.Fatalf("recomputed entry has version %d, viewport %d", cf3.version, vp.Version())
	}
}

func TestGeometryCacheBoundingBox(t *testing.T) {
	vp := fittedViewport(worldStations())
	c := NewGeometryCache(vp)
	f := squareFeature(-10, -10, 10, 10)
	cf := c.Feature(f)

	x0, y0 := vp.Proj.Forward(-10, 10) // top-left on the base plane
	x1, y1 := vp.Proj.Forward(10, -10)
	const eps = 1e-9
	if cf.MinX-x0 > eps || cf.MaxX-x1 < -eps || cf.MinY-y0 > eps || cf.MaxY-y1 < -eps {
		t.Errorf("bbox [%f,%f]x[%f,%f] does not cover projected corners [%f,%f]x[%f,%f]",
			cf.MinX, cf.MaxX, cf.MinY, cf.MaxY, x0, x1, y0, y1)
	}

	if !cf.Intersects(cf.MinX-1, cf.MinY-1, cf.MaxX+1, cf.MaxY+1) {
		t.Error("feature does not intersect a superset rectangle")
	}
	if cf.Intersects(cf.MaxX+10, cf.MinY, cf.MaxX+20, cf.MaxY) {
		t.Error("feature intersects a disjoint rectangle")
	}
}

func TestGeometryCacheMultiPolygonAndHoles(t *testing.T) {
	vp := fittedViewport(worldStations())
	c := NewGeometryCache(vp)

	// Outer ring with a hole, plus a detached island.
	f := geojson.NewMultiPolygonFeature(
		[][][]float64{
			{{-20, -20}, {20, -20}, {20, 20}, {-20, 20}, {-20, -20}},
			{{-5, -5}, {5, -5}, {5, 5}, {-5, 5}, {-5, -5}},
		},
		[][][]float64{
			{{40, 40}, {50, 40}, {50, 50}, {40, 50}, {40, 40}},
		},
	)
	cf := c.Feature(f)
	if got := len(cf.Rings()); got != 3 {
		t.Fatalf("got %d rings, want 3", got)
	}
}

func TestGeometryCacheNonPolygonGeometry(t *testing.T) {
	vp := fittedViewport(worldStations())
	c := NewGeometryCache(vp)
	f := geojson.NewPointFeature([]float64{1, 2})
	cf := c.Feature(f)
	if len(cf.Rings()) != 0 {
		t.Error("point geometry produced rings")
	}
	if cf.Intersects(-1e9, -1e9, 1e9, 1e9) && len(cf.rings) > 0 {
		t.Error("empty feature claims geometry")
	}
}
