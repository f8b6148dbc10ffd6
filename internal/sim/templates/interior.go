package templates

import (
	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/logic/blueprint"
	"towerkeep.ai/internal/sim/logic/geom"
)

type interiorStyle struct {
	signColor string
	lines     []string
	lanterns  int
}

// interiorStyles is indexed by layout.Interior; the palette id is the
// interior name.
var interiorStyles = [...]interiorStyle{
	layout.Nostalgic: {signColor: "black", lines: []string{"", "Welcome", "Traveller"}, lanterns: 3},
	layout.Crimson:   {signColor: "black", lines: []string{"When", "You're Lost", "in the", "Darkness"}, lanterns: 5},
	layout.Warped:    {signColor: "cyan", lines: []string{"", "Follow", "the Glow"}, lanterns: 4},
	layout.Endgame:   {signColor: "purple", lines: []string{"The End", "is only", "the", "Beginning"}, lanterns: 2},
}

var chain = Block{ID: "minecraft:chain"}

func (b *builder) interior(t *layout.Tower, rotation, story int) {
	kind := t.Interiors[story]
	style := interiorStyles[kind]
	pal := kind.String()
	fy := t.Deck + story*t.StoryHeight
	a := t.Anchor.WithY(fy)
	r := t.RoomRadius - 1

	b.fill(geom.Disc(a, r), pal, "floor")
	b.fill(geom.Ring(a.Up(1), r), pal, "accent")

	// table in the middle, carpets around it
	b.fill(single(a.Up(1)), pal, "accent")
	for d := geom.North; d <= geom.West; d++ {
		b.fill(single(a.Up(1).Add(d.Step())), pal, "carpet")
	}

	// hanging lanterns
	ceiling := fy + t.StoryHeight - 1
	cands := geom.Collect(geom.Disc(a.WithY(ceiling), max(r-3, 1)))
	for i := 0; i < style.lanterns && len(cands) > 0; i++ {
		c := cands[b.hash(story, i)%uint64(len(cands))]
		if c.X == a.X && c.Z == a.Z {
			continue
		}
		n := 1 + int(b.hash(story, i, 1)%2)
		for j := 0; j < n; j++ {
			b.set(c.Up(-j), chain)
		}
		b.fill(single(c.Up(-n)), pal, "light")
	}

	// wall sign on the side the tower faces
	off := blueprint.RotateOffset(geom.V(0, 2, -r), rotation)
	facing := blueprint.RotateDir(geom.South, rotation)
	sign := Block{ID: "minecraft:oak_wall_sign"}.WithState("facing", facing.String()).WithData(SignData(style.signColor, true, style.lines...))
	b.set(a.Add(off), sign)
}
