package templates

import (
	"iter"

	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/terrain"
)

const beaconPyramid = 4

func (b *builder) tower(el layout.Element) {
	t := el.Tower
	a := t.Anchor
	base := a.Y
	rs, rr, rf := t.ShaftRadius, t.RoomRadius, t.RoofRadius

	// site preparation
	for x, z := range terrain.DiscFootprint(a.X, a.Z, rs).Cells() {
		b.prepareColumn(x, z, b.e.ground(x, z, base), base, "tower", "foundation")
	}

	// shaft
	b.fill(geom.Disc(a, rs), "tower", "foundation")
	b.fill(geom.Cylinder(a.Offset(-rs, 1, -rs), geom.V(a.X+rs, t.Deck-1, a.Z+rs), geom.Tube), "tower", "shaft")
	for y := base + 4; y < t.Deck-2; y += 6 {
		for d := geom.North; d <= geom.West; d++ {
			b.fill(geom.Cuboid(a.WithY(y).Add(d.Step().Scale(rs)), a.WithY(y+1).Add(d.Step().Scale(rs))), "tower", "window")
		}
	}

	// room walls and windows
	b.fill(geom.Cylinder(geom.V(a.X-rr, t.Deck+1, a.Z-rr), geom.V(a.X+rr, t.RoofY-1, a.Z+rr), geom.Tube), "tower", "wall")
	k := diagonalOnRing(rr)
	for s := 0; s < t.Stories; s++ {
		fy := t.Deck + s*t.StoryHeight
		for _, sx := range []int{-1, 1} {
			for _, sz := range []int{-1, 1} {
				p := geom.V(a.X+sx*k, fy+2, a.Z+sz*k)
				b.fill(geom.Cuboid(p, p.Up(1)), "tower", "window")
			}
		}
	}

	// floors
	for s := 0; s < t.Stories; s++ {
		b.fill(geom.Disc(a.WithY(t.Deck+s*t.StoryHeight), rr), "tower", "floor")
	}

	// interiors
	for s := 0; s < t.Stories && s < len(t.Interiors); s++ {
		b.interior(t, el.Rotation, s)
	}

	// roof: slab, guard ring, beacon pyramid under a hollow cone
	b.fill(geom.Disc(a.WithY(t.RoofY), rf), "tower", "roof_floor")
	b.fill(geom.Ring(a.WithY(t.RoofY+1), rf), "tower", "guard")
	b.fill(geom.Pyramid(a.WithY(t.RoofY+1), beaconPyramid, false), "tower", "pyramid")
	b.fill(single(a.WithY(t.RoofY+1+beaconPyramid)), "tower", "beacon")
	coneH := min(t.RoofHeight, rr-1)
	for p := range geom.Cone(a.WithY(t.RoofY+1), coneH, true) {
		if b.done {
			return
		}
		// the beam needs glass above the beacon
		if (abs(p.X-a.X) <= 1 && abs(p.Z-a.Z) <= 1) || p.Y >= t.RoofY+coneH-2 {
			b.set(p, b.pick("tower", "glass", p))
			continue
		}
		b.set(p, b.pick("tower", "cone", p))
	}

	// decoration: doorways, roof openings, ladder
	for _, d := range t.Doors {
		b.doorway(d.At, 3)
	}
	for _, d := range t.RoofDoors {
		b.fillWith(geom.Cuboid(d.At.Offset(-2, 1, -2), d.At.Offset(2, 1, 2)), Air)
	}
	ladder := b.pick("tower", "ladder", a).WithState("facing", "east")
	b.fillWith(geom.Line(geom.V(a.X-(rr-1), t.Deck+1, a.Z), geom.V(a.X-(rr-1), t.RoofY, a.Z)), ladder)
}

// doorway clears a three-wide opening of the given height above at.
func (b *builder) doorway(at geom.Vec3, height int) {
	b.fillWith(geom.Cuboid(at.Offset(-1, 1, -1), at.Offset(1, height, 1)), Air)
}

// diagonalOnRing is the largest k with (k,k) inside the disc of radius r.
func diagonalOnRing(r int) int {
	for k := r; k > 0; k-- {
		if geom.InDisc(k, k, -r, -r, r, r) {
			return k
		}
	}
	return 0
}

func single(p geom.Vec3) iter.Seq[geom.Vec3] {
	return func(yield func(geom.Vec3) bool) { yield(p) }
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
