package templates

import (
	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/logic/geom"
)

const stairHeadroom = 3

func (b *builder) stairway(el layout.Element) {
	s := el.Stairway
	steps := s.Steps()
	type col struct{ x, z int }
	levels := map[col][]int{}
	for _, p := range steps {
		k := col{p.X, p.Z}
		levels[k] = append(levels[k], p.Y)
	}
	below := func(p geom.Vec3) int {
		best := -1 << 31
		for _, y := range levels[col{p.X, p.Z}] {
			if y < p.Y && y > best {
				best = y
			}
		}
		return best
	}

	// headroom where the hillside intrudes
	for _, p := range steps {
		if g := b.e.ground(p.X, p.Z, s.FromY); g > p.Y {
			b.fillWith(geom.Cuboid(p.Up(1), geom.V(p.X, min(g, p.Y+stairHeadroom), p.Z)), Air)
		}
	}

	// supports down to the terrain or the lap below
	for _, p := range steps {
		stop := max(b.e.ground(p.X, p.Z, s.FromY)+1, below(p)+stairHeadroom+1)
		if p.Y-1 >= stop {
			b.fill(geom.Cuboid(geom.V(p.X, stop, p.Z), p.Up(-1)), "stairway", "support")
		}
	}

	// treads
	onPath := map[geom.Vec3]bool{}
	for i, p := range steps {
		onPath[p] = true
		slot := "step"
		if i > 0 && steps[i-1].Y == p.Y {
			slot = "landing"
		}
		b.set(p, b.pick("stairway", slot, p))
	}

	// outer rail with a light every few steps
	for i, p := range steps {
		out := geom.DirToward(s.Center.X, s.Center.Z, p.X, p.Z)
		q := p.Add(out.Step()).Up(1)
		if onPath[q] || onPath[q.Up(-1)] {
			continue
		}
		b.set(q, b.pick("stairway", "rail", q))
		if i%6 == 5 {
			b.fill(single(q.Up(1)), "stairway", "light")
		}
	}
}
