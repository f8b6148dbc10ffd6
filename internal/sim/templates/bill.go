package templates

import (
	"iter"

	"towerkeep.ai/internal/sim/logic/blueprint"
	"towerkeep.ai/internal/sim/logic/geom"
)

// Final replays seq with last-write-wins.
func Final(seq iter.Seq[Edit]) map[geom.Vec3]Block {
	out := map[geom.Vec3]Block{}
	for e := range Cells(seq) {
		out[e.Pos] = e.Block
	}
	return out
}

// Bill is the material bill of a plan: final non-air cells per block id,
// largest first.
func Bill(seq iter.Seq[Edit]) []blueprint.ItemCount {
	counts := map[string]int{}
	for _, b := range Final(seq) {
		if !b.IsAir() {
			counts[b.ID]++
		}
	}
	return blueprint.Tally(counts)
}

// Placement flattens the final state of seq into blueprint blocks anchored
// at the origin, keyed by the full block string.
func Placement(seq iter.Seq[Edit]) []blueprint.PlacementBlock {
	final := Final(seq)
	out := make([]blueprint.PlacementBlock, 0, len(final))
	for p, b := range final {
		out = append(out, blueprint.PlacementBlock{Pos: p, Block: b.String()})
	}
	return out
}
