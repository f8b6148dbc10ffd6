package templates

import (
	"fmt"
	"strings"

	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/logic/mathx"
)

const (
	pillarRadius = 3
	coneHeight   = 4
	// The basement chest spells this number in buckets.
	puzzleAnswer = 42
)

func (b *builder) castle(el layout.Element) {
	c := el.Castle
	cx, cz := c.Center.X, c.Center.Z
	base := c.Center.Y
	top := c.FloorY + c.WallHeight
	r := geom.RectAround(cx, cz, c.Half)
	x0, z0, x1, z1 := r.X, r.Z, r.MaxX(), r.MaxZ()
	corners := [4]geom.Vec3{geom.V(x0, 0, z0), geom.V(x0, 0, z1), geom.V(x1, 0, z1), geom.V(x1, 0, z0)}

	// site preparation: a solid plinth from the terrain up to the base
	for z := z0; z <= z1; z++ {
		for x := x0; x <= x1; x++ {
			g := b.e.ground(x, z, base)
			switch {
			case g < base:
				b.fill(geom.Cuboid(geom.V(x, g+1, z), geom.V(x, base-1, z)), "castle", "plinth")
			case g > base:
				b.fillWith(geom.Cuboid(geom.V(x, base+1, z), geom.V(x, g, z)), Air)
			}
		}
	}

	// structure: base slab, outer walls, hollow interior, corner pillars
	b.fill(geom.Cuboid(geom.V(x0, base, z0), geom.V(x1, base, z1)), "castle", "floor")
	b.squareRing(x0, z0, x1, z1, base+1, top, "wall")
	b.fillWith(geom.Cuboid(geom.V(x0+1, base+1, z0+1), geom.V(x1-1, c.FloorY-1, z1-1)), Air)
	b.fillWith(geom.Cuboid(geom.V(x0+1, c.FloorY+1, z0+1), geom.V(x1-1, top-1, z1-1)), Air)
	for _, k := range corners {
		b.fill(geom.Cylinder(geom.V(k.X-pillarRadius, base+1, k.Z-pillarRadius), geom.V(k.X+pillarRadius, top+2, k.Z+pillarRadius), geom.Hollow), "castle", "pillar")
	}

	// floors
	b.fill(geom.Cuboid(geom.V(x0+1, c.FloorY, z0+1), geom.V(x1-1, c.FloorY, z1-1)), "castle", "floor")
	b.fill(geom.Cuboid(geom.V(x0, top, z0), geom.V(x1, top, z1)), "castle", "floor")

	// interior: four chambers split by cross walls with doorways, the tree
	// in the middle
	m := c.Half / 2
	b.fill(geom.Cuboid(geom.V(cx, c.FloorY+1, z0+1), geom.V(cx, top-1, z1-1)), "castle", "wall")
	b.fill(geom.Cuboid(geom.V(x0+1, c.FloorY+1, cz), geom.V(x1-1, top-1, cz)), "castle", "wall")
	for _, at := range []geom.Vec3{geom.V(cx, c.FloorY, cz-m), geom.V(cx, c.FloorY, cz+m), geom.V(cx-m, c.FloorY, cz), geom.V(cx+m, c.FloorY, cz)} {
		b.doorway(at, 3)
	}
	for _, sx := range []int{-1, 1} {
		for _, sz := range []int{-1, 1} {
			b.fill(single(geom.V(cx+sx*m, top, cz+sz*m)), "castle", "light")
		}
	}
	b.castleTree(c)
	b.basement(c, x0, z0, x1, z1)

	// decoration: stepped glass roof, magma cones, the bridge doorway
	for k := 0; k < c.RoofHeight; k++ {
		hk := c.Half - k*c.Half/c.RoofHeight
		y := top + 1 + k
		if hk <= 0 {
			b.fill(single(geom.V(cx, y, cz)), "castle", "roof")
			break
		}
		b.squareRing(cx-hk, cz-hk, cx+hk, cz+hk, y, y, "roof")
	}
	for _, k := range corners {
		b.fill(geom.Cone(geom.V(k.X, top+3, k.Z), coneHeight, false), "castle", "cone")
	}

	d := c.DoorAt
	ix, iz := sign(cx-d.X), sign(cz-d.Z)
	for s := 0; s <= pillarRadius+1; s++ {
		p := d.Offset(ix*s, 0, iz*s)
		b.fill(geom.Cuboid(p.Offset(-1, 0, -1), p.Offset(1, 0, 1)), "castle", "floor")
		b.doorway(p, 3)
	}
}

// basement lays out the puzzle under the main floor: a ladder down from the
// hall, stepping stones across a partly lava floor, and a chest whose
// buckets encode the answer.
func (b *builder) basement(c *layout.Castle, x0, z0, x1, z1 int) {
	base := c.Center.Y
	lane := c.Center.Z + 2
	ladderX, chestX := x1-1, x0+1
	keep := func(x, z int) bool {
		return z == lane && (x >= ladderX-1 || x <= chestX+1 || (x-chestX)%2 == 0)
	}

	for z := z0 + 1; z <= z1-1; z++ {
		for x := x0 + 1; x <= x1-1; x++ {
			if keep(x, z) || !mathx.Permille(b.hash(x, z), 500) {
				continue
			}
			p := geom.V(x, base, z)
			b.set(p, b.pick("castle", "lava", p))
		}
	}
	for x := chestX + 2; x < ladderX-1; x += 2 {
		p := geom.V(x, base+1, lane)
		b.set(p, b.pick("castle", "parkour", p))
	}

	ladder := Block{ID: "minecraft:ladder"}.WithState("facing", "west")
	b.fillWith(geom.Line(geom.V(ladderX, base+1, lane), geom.V(ladderX, c.FloorY, lane)), ladder)

	chest := b.pick("castle", "chest", geom.V(chestX, base+1, lane)).WithState("facing", "east").WithData(answerChest(puzzleAnswer))
	b.set(geom.V(chestX, base+1, lane), chest)
	note := b.pick("castle", "sign", geom.V(chestX, base+2, lane+1)).WithState("facing", "east").
		WithData(SignData("black", true, "", "THE ANSWER IS", "(obviously)"))
	b.set(geom.V(chestX, base+2, lane+1), note)
}

// answerChest encodes n in nine bits, water buckets for ones and empty
// buckets for zeros, in the chest's middle row.
func answerChest(n int) string {
	bits := fmt.Sprintf("%09b", n)
	items := make([]string, 0, len(bits))
	for i, ch := range bits {
		item := "bucket"
		if ch == '1' {
			item = "water_bucket"
		}
		items = append(items, fmt.Sprintf(`{Slot:%db,id:"minecraft:%s",Count:1b}`, 9+i, item))
	}
	return "{Items:[" + strings.Join(items, ",") + "]}"
}

func (b *builder) squareRing(x0, z0, x1, z1, y0, y1 int, slot string) {
	b.fill(geom.Cuboid(geom.V(x0, y0, z0), geom.V(x1, y1, z0)), "castle", slot)
	b.fill(geom.Cuboid(geom.V(x0, y0, z1), geom.V(x1, y1, z1)), "castle", slot)
	if z1-z0 > 1 {
		b.fill(geom.Cuboid(geom.V(x0, y0, z0+1), geom.V(x0, y1, z1-1)), "castle", slot)
		b.fill(geom.Cuboid(geom.V(x1, y0, z0+1), geom.V(x1, y1, z1-1)), "castle", slot)
	}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
