// Package terrain turns a world heightmap into build planes: a single base
// elevation per footprint, chosen so that site preparation moves as little
// ground as possible.
package terrain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"towerkeep.ai/internal/sim/logic/geom"
)

// HeightMap holds the topmost solid block Y (and its material) per column.
type HeightMap struct {
	rect      geom.Rect
	heights   []int
	materials []string
}

// NewHeightMap copies heights (row-major, x fastest) into a read-only map.
// materials may be nil.
func NewHeightMap(rect geom.Rect, heights []int, materials []string) (*HeightMap, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("heightmap: empty rect %s", rect)
	}
	if len(heights) != rect.Area() {
		return nil, fmt.Errorf("heightmap: %d heights for %s (want %d)", len(heights), rect, rect.Area())
	}
	if materials != nil && len(materials) != len(heights) {
		return nil, fmt.Errorf("heightmap: %d materials for %d heights", len(materials), len(heights))
	}
	hm := &HeightMap{rect: rect, heights: append([]int(nil), heights...)}
	if materials != nil {
		hm.materials = append([]string(nil), materials...)
	}
	return hm, nil
}

// Flat is a convenience constructor for a uniform heightmap.
func Flat(rect geom.Rect, y int) *HeightMap {
	h := make([]int, rect.Area())
	for i := range h {
		h[i] = y
	}
	hm, _ := NewHeightMap(rect, h, nil)
	return hm
}

func (h *HeightMap) Rect() geom.Rect { return h.rect }

func (h *HeightMap) Contains(x, z int) bool { return h.rect.Contains(x, z) }

func (h *HeightMap) index(x, z int) int {
	return (z-h.rect.Z)*h.rect.DX + (x - h.rect.X)
}

// At returns the topmost solid Y of column (x,z).
func (h *HeightMap) At(x, z int) (int, bool) {
	if !h.rect.Contains(x, z) {
		return 0, false
	}
	return h.heights[h.index(x, z)], true
}

// Material returns the surface block id of column (x,z), or "" when unknown.
func (h *HeightMap) Material(x, z int) string {
	if h.materials == nil || !h.rect.Contains(x, z) {
		return ""
	}
	return h.materials[h.index(x, z)]
}

// Digest identifies the heightmap contents; equal maps give equal digests.
func (h *HeightMap) Digest() string {
	sum := sha256.New()
	var buf [8]byte
	for _, v := range []int{h.rect.X, h.rect.Z, h.rect.DX, h.rect.DZ} {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		sum.Write(buf[:])
	}
	for _, v := range h.heights {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		sum.Write(buf[:])
	}
	for _, m := range h.materials {
		sum.Write([]byte(m))
		sum.Write([]byte{0})
	}
	return hex.EncodeToString(sum.Sum(nil))
}
