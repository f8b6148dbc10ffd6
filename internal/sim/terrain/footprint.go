package terrain

import (
	"fmt"
	"iter"

	"towerkeep.ai/internal/sim/logic/geom"
)

type Shape int

const (
	ShapeRect Shape = iota
	ShapeDisc
)

func (s Shape) String() string {
	if s == ShapeDisc {
		return "disc"
	}
	return "rect"
}

// Footprint is the horizontal extent of an element: an axis-aligned rect,
// optionally reduced to the disc inscribed in it.
type Footprint struct {
	Rect  geom.Rect
	Shape Shape
}

func RectFootprint(r geom.Rect) Footprint { return Footprint{Rect: r, Shape: ShapeRect} }

// DiscFootprint is the disc of the given radius centred on (cx,cz).
func DiscFootprint(cx, cz, radius int) Footprint {
	return Footprint{Rect: geom.RectAround(cx, cz, radius), Shape: ShapeDisc}
}

func (f Footprint) Contains(x, z int) bool {
	if !f.Rect.Contains(x, z) {
		return false
	}
	if f.Shape == ShapeDisc {
		return geom.InDisc(x, z, f.Rect.X, f.Rect.Z, f.Rect.MaxX(), f.Rect.MaxZ())
	}
	return true
}

// Cells yields every column of the footprint in row-major order.
func (f Footprint) Cells() iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for z := f.Rect.Z; z <= f.Rect.MaxZ(); z++ {
			for x := f.Rect.X; x <= f.Rect.MaxX(); x++ {
				if f.Contains(x, z) && !yield(x, z) {
					return
				}
			}
		}
	}
}

func (f Footprint) String() string {
	return fmt.Sprintf("%s%s", f.Shape, f.Rect)
}
