package main

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"towerkeep.ai/internal/persistence/planarchive"
	"towerkeep.ai/internal/sim/templates"
)

var (
	lowland   = color.RGBA{46, 110, 52, 255}
	highland  = color.RGBA{196, 184, 150, 255}
	buildLow  = color.RGBA{150, 40, 30, 255}
	buildHigh = color.RGBA{255, 220, 90, 255}
	edgeColor = color.RGBA{220, 20, 20, 255}
)

// renderOverview draws the archived ground top-down with scale pixels per
// column. Terrain is shaded by height; columns where the plan builds above
// the ground are shaded by how far the build rises. The area border is red.
func renderOverview(p planarchive.PlanV1, scale int) (*image.RGBA, error) {
	if p.Ground.Heights == "" {
		return nil, errors.New("archive has no ground")
	}
	if scale < 1 {
		scale = 1
	}
	ground, err := p.Ground.HeightMap()
	if err != nil {
		return nil, err
	}
	r := ground.Rect()

	lo, _ := ground.At(r.X, r.Z)
	hi := lo
	for z := r.Z; z <= r.MaxZ(); z++ {
		for x := r.X; x <= r.MaxX(); x++ {
			h, _ := ground.At(x, z)
			lo, hi = min(lo, h), max(hi, h)
		}
	}

	top := map[[2]int]int{}
	for pos, blk := range templates.Final(p.EditSeq()) {
		if blk.IsAir() {
			continue
		}
		k := [2]int{pos.X, pos.Z}
		if y, ok := top[k]; !ok || pos.Y > y {
			top[k] = pos.Y
		}
	}
	maxRise := 1
	for k, y := range top {
		if h, ok := ground.At(k[0], k[1]); ok && y-h > maxRise {
			maxRise = y - h
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, r.DX*scale, r.DZ*scale))
	for z := r.Z; z <= r.MaxZ(); z++ {
		for x := r.X; x <= r.MaxX(); x++ {
			h, _ := ground.At(x, z)
			c := lerp(lowland, highland, h-lo, hi-lo)
			if y, ok := top[[2]int{x, z}]; ok && y > h {
				c = lerp(buildLow, buildHigh, y-h, maxRise)
			}
			if x == r.X || z == r.Z || x == r.MaxX() || z == r.MaxZ() {
				c = edgeColor
			}
			px, pz := (x-r.X)*scale, (z-r.Z)*scale
			draw.Draw(img, image.Rect(px, pz, px+scale, pz+scale), &image.Uniform{C: c}, image.Point{}, draw.Src)
		}
	}
	return img, nil
}

func lerp(a, b color.RGBA, n, d int) color.RGBA {
	if d <= 0 {
		return a
	}
	mix := func(u, v uint8) uint8 { return uint8(int(u) + (int(v)-int(u))*n/d) }
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
