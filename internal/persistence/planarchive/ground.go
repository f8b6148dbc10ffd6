package planarchive

import (
	"fmt"

	"towerkeep.ai/internal/sim/encoding"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/terrain"
)

// GroundV1 is the surveyed heightmap, run-length packed. Heights are stored
// relative to MinY.
type GroundV1 struct {
	Rect      [4]int   `json:"rect"` // x, z, dx, dz
	MinY      int      `json:"min_y"`
	Heights   string   `json:"heights"`
	Materials []string `json:"materials,omitempty"`
	// MaterialIdx indexes Materials per column; empty when unknown.
	MaterialIdx string `json:"material_idx,omitempty"`
}

func NewGround(hm *terrain.HeightMap) (GroundV1, error) {
	r := hm.Rect()
	g := GroundV1{Rect: [4]int{r.X, r.Z, r.DX, r.DZ}}
	heights := make([]int, 0, r.Area())
	mats := make([]string, 0, r.Area())
	minY, maxY := 0, 0
	for z := r.Z; z <= r.MaxZ(); z++ {
		for x := r.X; x <= r.MaxX(); x++ {
			y, _ := hm.At(x, z)
			if len(heights) == 0 || y < minY {
				minY = y
			}
			if len(heights) == 0 || y > maxY {
				maxY = y
			}
			heights = append(heights, y)
			mats = append(mats, hm.Material(x, z))
		}
	}
	if maxY-minY > 0xFFFF {
		return g, fmt.Errorf("ground range %d..%d too tall to archive", minY, maxY)
	}
	g.MinY = minY
	rel := make([]uint16, len(heights))
	for i, y := range heights {
		rel[i] = uint16(y - minY)
	}
	g.Heights = encoding.EncodeRuns(rel)

	idx := map[string]uint16{}
	packed := make([]uint16, len(mats))
	known := false
	for i, m := range mats {
		if m != "" {
			known = true
		}
		j, ok := idx[m]
		if !ok {
			j = uint16(len(g.Materials))
			idx[m] = j
			g.Materials = append(g.Materials, m)
		}
		packed[i] = j
	}
	if !known {
		g.Materials = nil
		return g, nil
	}
	g.MaterialIdx = encoding.EncodeRuns(packed)
	return g, nil
}

// HeightMap rebuilds the archived ground.
func (g GroundV1) HeightMap() (*terrain.HeightMap, error) {
	r := geom.Rect{X: g.Rect[0], Z: g.Rect[1], DX: g.Rect[2], DZ: g.Rect[3]}
	rel, err := encoding.DecodeRuns(g.Heights, r.Area())
	if err != nil {
		return nil, fmt.Errorf("ground heights: %w", err)
	}
	heights := make([]int, len(rel))
	for i, v := range rel {
		heights[i] = g.MinY + int(v)
	}
	var mats []string
	if g.MaterialIdx != "" {
		packed, err := encoding.DecodeRuns(g.MaterialIdx, r.Area())
		if err != nil {
			return nil, fmt.Errorf("ground materials: %w", err)
		}
		mats = make([]string, len(packed))
		for i, j := range packed {
			if int(j) >= len(g.Materials) {
				return nil, fmt.Errorf("ground materials: index %d out of %d", j, len(g.Materials))
			}
			mats[i] = g.Materials[j]
		}
	}
	return terrain.NewHeightMap(r, heights, mats)
}
