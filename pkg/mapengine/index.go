package mapengine

import (
	"math"

	"github.com/dhconnelly/rtreego"
)

// linearThreshold is the station count below which a linear scan beats the
// R-tree. Spatial pruning only pays off once the set is large.
const linearThreshold = 256

// rtree point entries need a non-zero extent.
const pointExtent = 1e-4

type stationPoint struct {
	st   *Station
	x, y float64
}

func (p stationPoint) Bounds() rtreego.Rect {
	r, _ := rtreego.NewRect(rtreego.Point{p.x, p.y}, []float64{pointExtent, pointExtent})
	return r
}

// StationIndex answers nearest-station queries over base-plane coordinates.
// It must be rebuilt whenever the projection version changes; queries against
// a stale index would return coordinates from a previous fit.
type StationIndex struct {
	tree    *rtreego.Rtree
	points  []stationPoint
	version int
}

func NewStationIndex() *StationIndex {
	return &StationIndex{version: -1}
}

// Rebuild constructs the index from each station's current base-projected
// coordinates.
func (idx *StationIndex) Rebuild(stations []*Station, vp *Viewport, g GlyphScale) {
	idx.points = idx.points[:0]
	for _, s := range stations {
		x, y := s.Projected(vp, g)
		idx.points = append(idx.points, stationPoint{st: s, x: x, y: y})
	}
	idx.version = vp.Version()
	if len(idx.points) < linearThreshold {
		idx.tree = nil
		return
	}
	spatials := make([]rtreego.Spatial, len(idx.points))
	for i := range idx.points {
		spatials[i] = idx.points[i]
	}
	idx.tree = rtreego.NewTree(2, 25, 50, spatials...)
}

// Version returns the projection version this index was built against.
func (idx *StationIndex) Version() int { return idx.version }

// QueryNearest returns the station closest to the given screen point within
// maxScreenRadius pixels, or nil. The radius is converted into base space by
// dividing by the current scale.
func (idx *StationIndex) QueryNearest(vp *Viewport, sx, sy, maxScreenRadius float64) *Station {
	if len(idx.points) == 0 {
		return nil
	}
	qx, qy := vp.ScreenToBase(sx, sy)
	maxDist := maxScreenRadius / vp.Transform.Scale

	if idx.tree != nil {
		obj := idx.tree.NearestNeighbor(rtreego.Point{qx, qy})
		if obj == nil {
			return nil
		}
		p := obj.(stationPoint)
		if math.Hypot(p.x-qx, p.y-qy) > maxDist {
			return nil
		}
		return p.st
	}

	var best *Station
	bestD := maxDist
	for i := range idx.points {
		p := &idx.points[i]
		d := math.Hypot(p.x-qx, p.y-qy)
		if d <= bestD {
			bestD = d
			best = p.st
		}
	}
	return best
}
