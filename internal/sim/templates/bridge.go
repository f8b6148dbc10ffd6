package templates

import (
	"math"

	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/logic/geom"
)

func (b *builder) bridge(el layout.Element) {
	br := el.Bridge
	from, to := br.From, br.To
	dx, dz := to.X-from.X, to.Z-from.Z
	n := max(abs(dx), abs(dz))
	// walkway width runs across the dominant axis
	cross := geom.South
	if abs(dz) > abs(dx) {
		cross = geom.East
	}
	hw := br.Width / 2
	y := from.Y

	gapLo, gapHi := n+1, n
	if br.Puzzle && br.PuzzleGap > 0 {
		gapLo, gapHi = n-br.PuzzleGap, n-1
	}
	inGap := func(i int) bool { return i >= gapLo && i <= gapHi }
	center := func(i int) geom.Vec3 {
		if n == 0 {
			return from
		}
		return geom.V(from.X+roundDiv(dx*i, n), y, from.Z+roundDiv(dz*i, n))
	}
	across := func(c geom.Vec3, w int) geom.Vec3 { return c.Add(cross.Step().Scale(w)) }

	// arch: deep at the ends, shallow mid-span
	for i := 0; i <= n; i++ {
		if inGap(i) {
			continue
		}
		depth := 1
		if n > 0 {
			depth += br.ArchRise - int(math.Round(float64(br.ArchRise)*math.Sin(math.Pi*float64(i)/float64(n))))
		}
		c := center(i)
		for w := -hw + 1; w <= hw-1; w++ {
			p := across(c, w)
			b.fill(geom.Cuboid(p.Up(-depth), p.Up(-1)), "bridge", "support")
		}
	}

	// walkway
	for i := 0; i <= n; i++ {
		if inGap(i) {
			continue
		}
		c := center(i)
		for w := -hw; w <= hw; w++ {
			p := across(c, w)
			if w == -hw || w == hw {
				b.set(p, b.pick("bridge", "edge", p))
				continue
			}
			b.set(p, b.pick("bridge", "walkway", p))
		}
	}

	// railings, under-stairs, roof
	for i := 0; i <= n; i++ {
		if inGap(i) {
			continue
		}
		c := center(i)
		for _, w := range []int{-hw, hw} {
			p := across(c, w)
			inward := cross
			if w > 0 {
				inward = cross.Opposite()
			}
			b.set(p.Up(-1), b.pick("bridge", "under_stairs", p).WithState("facing", inward.String()))
			if br.Roofed && i%4 == 0 {
				b.fill(geom.Cuboid(p.Up(1), p.Up(3)), "bridge", "post")
				continue
			}
			b.set(p.Up(1), b.pick("bridge", "railing", p))
		}
		if br.Roofed {
			b.fill(geom.Line(across(c, -hw).Up(4), across(c, hw).Up(4)), "bridge", "roof")
			if i%8 == 4 {
				b.fill(single(c.Up(3)), "bridge", "light")
			}
		}
	}

	if br.Puzzle && gapLo > 0 && gapLo <= n {
		edge := center(gapLo - 1)
		b.set(edge, b.pick("bridge", "marker", edge))
		sign := b.pick("bridge", "sign", edge).WithData(SignData("black", true, "Look", "for", "the", "Light"))
		b.set(edge.Up(1), sign)
	}
}

func roundDiv(a, n int) int {
	return int(math.Round(float64(a) / float64(n)))
}
