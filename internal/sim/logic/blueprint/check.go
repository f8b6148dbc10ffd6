package blueprint

import "towerkeep.ai/internal/sim/logic/geom"

// BlockGetter returns the block id stored at a world position ("" when unset).
type BlockGetter func(p geom.Vec3) string

type PlacementBlock struct {
	Pos   geom.Vec3
	Block string
}

// CheckPlaced reports whether every block of a placement, rotated around
// anchor, is present in the world.
func CheckPlaced(getBlock BlockGetter, blocks []PlacementBlock, anchor geom.Vec3, rotation int) bool {
	if getBlock == nil || len(blocks) == 0 {
		return false
	}
	return len(Mismatches(getBlock, blocks, anchor, rotation, 1)) == 0
}

// Mismatches lists up to limit world positions whose block differs from the
// placement (limit <= 0 means no limit).
func Mismatches(getBlock BlockGetter, blocks []PlacementBlock, anchor geom.Vec3, rotation int, limit int) []geom.Vec3 {
	if getBlock == nil {
		return nil
	}
	rot := NormalizeRotation(rotation)
	var out []geom.Vec3
	for _, b := range blocks {
		p := anchor.Add(RotateOffset(b.Pos, rot))
		if getBlock(p) != b.Block {
			out = append(out, p)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}
