package mapengine

import (
	"image/color"
	"sort"

	"github.com/biter777/countries"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
)

// PlaceKind distinguishes the two label families.
type PlaceKind int

const (
	PlaceCity PlaceKind = iota
	PlaceCountry
)

// Place is a candidate map label. City places carry their own name; country
// places resolve their display name from the ISO code at draw time.
type Place struct {
	Kind        PlaceKind
	Name        string
	CountryCode string
	Lon, Lat    float64
	Capital     bool
	Rank        int // smaller is more prominent
	Population  int
}

// DisplayName resolves the text drawn for the place.
func (p *Place) DisplayName() string {
	if p.Kind == PlaceCountry {
		if name := countries.ByName(p.CountryCode).String(); name != "Unknown" {
			return name
		}
	}
	return p.Name
}

// labelGrid is a fixed-cell spatial hash over placed label boxes. A
// candidate is rejected if its box overlaps any box in the cells it covers.
type labelGrid struct {
	cell  float64
	boxes map[[2]int][]labelBox
}

type labelBox struct {
	x0, y0, x1, y1 float64
}

func newLabelGrid(cell float64) *labelGrid {
	return &labelGrid{cell: cell, boxes: make(map[[2]int][]labelBox)}
}

func (g *labelGrid) cellsFor(b labelBox) (c0x, c0y, c1x, c1y int) {
	return int(b.x0 / g.cell), int(b.y0 / g.cell), int(b.x1 / g.cell), int(b.y1 / g.cell)
}

// tryPlace claims the box if it collides with nothing already placed.
func (g *labelGrid) tryPlace(b labelBox) bool {
	c0x, c0y, c1x, c1y := g.cellsFor(b)
	for cy := c0y; cy <= c1y; cy++ {
		for cx := c0x; cx <= c1x; cx++ {
			for _, o := range g.boxes[[2]int{cx, cy}] {
				if b.x0 < o.x1 && b.x1 > o.x0 && b.y0 < o.y1 && b.y1 > o.y0 {
					return false
				}
			}
		}
	}
	for cy := c0y; cy <= c1y; cy++ {
		for cx := c0x; cx <= c1x; cx++ {
			key := [2]int{cx, cy}
			g.boxes[key] = append(g.boxes[key], b)
		}
	}
	return true
}

// labelBudget returns the density limits for the current zoom: when zoomed
// out only a few prominent labels survive; zooming in admits more and
// smaller places.
func labelBudget(scale float64) (maxLabels int, minPopulation int, maxRank int) {
	switch {
	case scale < 2:
		return 24, 1_000_000, 2
	case scale < 5:
		return 60, 250_000, 4
	case scale < 10:
		return 140, 50_000, 8
	default:
		return 320, 0, 99
	}
}

// drawLabels places and paints city/country labels greedily in rank order.
func (e *Engine) drawLabels(dst *ebiten.Image) {
	if e.fontSource == nil || len(e.places) == 0 {
		return
	}
	scale := e.vp.Transform.Scale
	maxLabels, minPop, maxRank := labelBudget(scale)

	// Viewport-cull candidates first, then rank.
	w, h := float64(e.vp.Width), float64(e.vp.Height)
	candidates := make([]*Place, 0, len(e.places))
	for _, p := range e.places {
		bx, by := e.vp.Proj.Forward(p.Lon, p.Lat)
		x, y := e.vp.BaseToScreen(bx, by)
		if x < 0 || x > w || y < 0 || y > h {
			continue
		}
		if p.Kind == PlaceCity && (p.Population < minPop || p.Rank > maxRank) && !p.Capital {
			continue
		}
		candidates = append(candidates, p)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Capital != b.Capital {
			return a.Capital
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.Population > b.Population
	})

	grid := newLabelGrid(64)
	cityFace := &text.GoTextFace{Source: e.fontSource, Size: labelFontSize(scale)}
	countryFace := &text.GoTextFace{Source: e.fontSource, Size: labelFontSize(scale) * 1.35}

	placed := 0
	for _, p := range candidates {
		if placed >= maxLabels {
			break
		}
		face := cityFace
		clr := color.RGBA{235, 238, 245, 255}
		if p.Kind == PlaceCountry {
			face = countryFace
			clr = color.RGBA{160, 168, 185, 255}
		}
		name := p.DisplayName()
		bx, by := e.vp.Proj.Forward(p.Lon, p.Lat)
		x, y := e.vp.BaseToScreen(bx, by)
		tw, th := text.Measure(name, face, 0)
		box := labelBox{x0: x - tw/2 - 2, y0: y - th - 4, x1: x + tw/2 + 2, y1: y - 2}
		if !grid.tryPlace(box) {
			continue
		}
		op := &text.DrawOptions{}
		op.GeoM.Translate(box.x0+2, box.y0+2)
		op.ColorScale.ScaleWithColor(clr)
		text.Draw(dst, name, face, op)
		placed++
	}
}

// labelFontSize shrinks slowly with zoom: zoomed-out maps show fewer,
// larger labels, zoomed-in maps fit many small ones.
func labelFontSize(scale float64) float64 {
	size := 17 - scale*0.5
	if size < 11 {
		size = 11
	}
	return size
}
