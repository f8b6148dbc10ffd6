package worldtest

import (
	"math"

	"github.com/aquilax/go-perlin"

	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/terrain"
)

const groundBlock = "minecraft:grass_block"

// Area is a size x size build area at the origin.
func Area(size int) geom.Box {
	return geom.Box{Origin: geom.V(0, 0, 0), Size: geom.V(size, 256, size)}
}

func Flat(area geom.Box, y int) *terrain.HeightMap {
	return terrain.Flat(area.Rect(), y)
}

// Pit is flat ground at y with a round pit of the given radius and depth
// centred on (cx, cz).
func Pit(area geom.Box, y, cx, cz, radius, depth int) *terrain.HeightMap {
	return build(area, func(x, z int) int {
		dx, dz := x-cx, z-cz
		if dx*dx+dz*dz <= radius*radius {
			return y - depth
		}
		return y
	})
}

// Plateau raises a square of half-size half around (cx, cz) by rise.
func Plateau(area geom.Box, y, cx, cz, half, rise int) *terrain.HeightMap {
	return build(area, func(x, z int) int {
		if abs(x-cx) <= half && abs(z-cz) <= half {
			return y + rise
		}
		return y
	})
}

// Hills is rolling perlin terrain around base with the given amplitude.
// The same seed always yields the same heights.
func Hills(area geom.Box, base, amplitude int, seed int64) *terrain.HeightMap {
	p := perlin.NewPerlin(2, 2, 3, seed)
	return build(area, func(x, z int) int {
		n := p.Noise2D(float64(x)/48, float64(z)/48)
		return base + int(math.Round(n*float64(amplitude)))
	})
}

func build(area geom.Box, height func(x, z int) int) *terrain.HeightMap {
	r := area.Rect()
	heights := make([]int, 0, r.Area())
	materials := make([]string, 0, r.Area())
	for z := r.Z; z <= r.MaxZ(); z++ {
		for x := r.X; x <= r.MaxX(); x++ {
			heights = append(heights, height(x, z))
			materials = append(materials, groundBlock)
		}
	}
	hm, err := terrain.NewHeightMap(r, heights, materials)
	if err != nil {
		panic(err)
	}
	return hm
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
