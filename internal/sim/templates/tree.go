package templates

import (
	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/logic/mathx"
)

const (
	trunkRadius = 2
	// per-mille chance of keeping every trunk block on the first level;
	// squared each level so the trunk thins faster as it rises.
	trunkKeep = 750
)

// castleTree grows a spruce in the middle of the hall: a beacon on a 3x3
// diamond base, a hollow trunk tapering upward and a leaf crown filling the
// upper half of the hall. The beam column stays clear up to the roof.
func (b *builder) castleTree(c *layout.Castle) {
	cx, cz := c.Center.X, c.Center.Z
	y0 := c.FloorY + 1
	top := c.FloorY + c.WallHeight
	levels := b.trunkLevels(top - y0)
	crownR := c.Half/2 - 1

	for y := y0 + (top-y0)/2; y < top; y++ {
		for dz := -crownR; dz <= crownR; dz++ {
			for dx := -crownR; dx <= crownR; dx++ {
				if dx == 0 && dz == 0 {
					continue
				}
				if dx*dx+dz*dz > crownR*crownR {
					continue
				}
				p := geom.V(cx+dx, y, cz+dz)
				b.set(p, b.pick("castle", "leaves", p))
			}
		}
	}
	for i, lv := range levels {
		for dz := -trunkRadius; dz <= trunkRadius; dz++ {
			for dx := -trunkRadius; dx <= trunkRadius; dx++ {
				if lv[dx+trunkRadius][dz+trunkRadius] {
					p := geom.V(cx+dx, y0+i, cz+dz)
					b.set(p, b.pick("castle", "trunk", p))
				}
			}
		}
	}
	b.fill(geom.Cuboid(geom.V(cx-1, c.FloorY, cz-1), geom.V(cx+1, c.FloorY, cz+1)), "castle", "tree_base")
	b.fill(single(geom.V(cx, y0, cz)), "castle", "beacon")
	b.fillWith(geom.Line(geom.V(cx, y0+1, cz), geom.V(cx, top-1, cz)), Air)
	b.fill(single(geom.V(cx, top, cz)), "castle", "roof")
}

type trunkSlice [2*trunkRadius + 1][2*trunkRadius + 1]bool

// trunkLevels returns up to maxLevels horizontal trunk slices, bottom first.
// A slice is a 5x5 square without its centre and corners; going up, the
// block farthest from the centre is dropped with rising probability. The
// trunk ends once a single block is left.
func (b *builder) trunkLevels(maxLevels int) []trunkSlice {
	var s trunkSlice
	n := 0
	for x := range s {
		for z := range s[x] {
			edge := (x == 0 || x == 2*trunkRadius) && (z == 0 || z == 2*trunkRadius)
			s[x][z] = !edge && !(x == trunkRadius && z == trunkRadius)
			if s[x][z] {
				n++
			}
		}
	}

	keep := trunkKeep
	out := make([]trunkSlice, 0, maxLevels)
	for y := 0; y < maxLevels && n > 1; y++ {
		if !mathx.Permille(b.hash(y, 0), keep) {
			var far [][2]int
			best := -1
			for x := range s {
				for z := range s[x] {
					if !s[x][z] {
						continue
					}
					dx, dz := x-trunkRadius, z-trunkRadius
					switch d := dx*dx + dz*dz; {
					case d > best:
						best, far = d, [][2]int{{x, z}}
					case d == best:
						far = append(far, [2]int{x, z})
					}
				}
			}
			k := far[b.hash(y, 1)%uint64(len(far))]
			s[k[0]][k[1]] = false
			n--
		}
		keep = keep * keep / 1000
		out = append(out, s)
	}
	return out
}
