package templates

import (
	"iter"

	"towerkeep.ai/internal/sim/logic/geom"
)

const markerHeight = 3

// Bounds marks the four corners of the build area with colored posts.
func (e *Engine) Bounds(area geom.Box) iter.Seq[Edit] {
	return func(yield func(Edit) bool) {
		b := e.builder("bounds", yield)
		r := area.Rect()
		corners := [][2]int{{r.X, r.Z}, {r.MaxX(), r.Z}, {r.MaxX(), r.MaxZ()}, {r.X, r.MaxZ()}}
		for i, c := range corners {
			g := e.ground(c[0], c[1], area.Origin.Y)
			blk := e.block(e.Palettes.At("bounds", "marker", i))
			b.fillWith(geom.Cuboid(geom.V(c[0], g+1, c[1]), geom.V(c[0], g+markerHeight, c[1])), blk)
		}
	}
}
