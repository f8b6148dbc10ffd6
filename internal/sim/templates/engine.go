package templates

import (
	"iter"
	"sync"

	"towerkeep.ai/internal/sim/catalogs"
	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/logic/mathx"
	"towerkeep.ai/internal/sim/terrain"
	"towerkeep.ai/internal/sim/tuning"
)

// Engine expands elements into edits. It is safe to share between
// goroutines; expansions never mutate it beyond the parsed-block cache.
type Engine struct {
	Palettes *catalogs.PaletteCatalog
	Ground   *terrain.HeightMap
	Seed     int64
	// MaxFillDepth caps how far site preparation fills below a base.
	MaxFillDepth int

	blocks sync.Map // string -> Block
}

func NewEngine(cats *catalogs.Catalogs, ground *terrain.HeightMap, t tuning.Tuning) *Engine {
	return &Engine{
		Palettes:     &cats.Palettes,
		Ground:       ground,
		Seed:         t.Seed,
		MaxFillDepth: t.Terrain.MaxFillDepth,
	}
}

// Expand yields the edits of one element: site preparation, structure,
// floors, interior, then decoration.
func (e *Engine) Expand(el layout.Element) iter.Seq[Edit] {
	return func(yield func(Edit) bool) {
		b := e.builder(el.ID, yield)
		switch el.Kind {
		case layout.KindTower:
			if el.Tower != nil {
				b.tower(el)
			}
		case layout.KindBridge:
			if el.Bridge != nil {
				b.bridge(el)
			}
		case layout.KindCastle:
			if el.Castle != nil {
				b.castle(el)
			}
		case layout.KindEntrance:
			if el.Stairway != nil {
				b.stairway(el)
			}
		}
	}
}

// Plan concatenates the expansions of elements in order.
func (e *Engine) Plan(elements []layout.Element) iter.Seq[Edit] {
	return func(yield func(Edit) bool) {
		for _, el := range elements {
			for ed := range e.Expand(el) {
				if !yield(ed) {
					return
				}
			}
		}
	}
}

func (e *Engine) block(s string) Block {
	if v, ok := e.blocks.Load(s); ok {
		return v.(Block)
	}
	blk := ParseBlock(s)
	e.blocks.Store(s, blk)
	return blk
}

// ground returns the terrain height at (x,z), or fallback outside the map.
func (e *Engine) ground(x, z, fallback int) int {
	if e.Ground == nil {
		return fallback
	}
	if h, ok := e.Ground.At(x, z); ok {
		return h
	}
	return fallback
}

type builder struct {
	e     *Engine
	salt  int64
	yield func(Edit) bool
	done  bool
}

func (e *Engine) builder(id string, yield func(Edit) bool) *builder {
	return &builder{e: e, salt: int64(mathx.HashString(e.Seed, id)), yield: yield}
}

func (b *builder) set(p geom.Vec3, blk Block) {
	if b.done {
		return
	}
	if !b.yield(Edit{Pos: p, Block: blk, Span: 1}) {
		b.done = true
	}
}

// pick selects a palette entry keyed by position so repeated expansions agree.
func (b *builder) pick(palette, slot string, p geom.Vec3) Block {
	return b.e.block(b.e.Palettes.Pick(palette, slot, mathx.Hash3(b.salt, p.X, p.Y, p.Z)))
}

func (b *builder) fill(s iter.Seq[geom.Vec3], palette, slot string) {
	for p := range s {
		if b.done {
			return
		}
		b.set(p, b.pick(palette, slot, p))
	}
}

func (b *builder) fillWith(s iter.Seq[geom.Vec3], blk Block) {
	for p := range s {
		if b.done {
			return
		}
		b.set(p, blk)
	}
}

func (b *builder) hash(parts ...int) uint64 {
	h := uint64(b.salt)
	for _, v := range parts {
		h = mathx.Hash2(int64(h), v, len(parts))
	}
	return h
}

// prepareColumn fills below base (down to MaxFillDepth) and clears above it,
// for one column standing on ground height h.
func (b *builder) prepareColumn(x, z, h, base int, palette, slot string) {
	if h < base {
		lo := h + 1
		if d := b.e.MaxFillDepth; d > 0 && base-lo > d {
			lo = base - d
		}
		if lo > base-1 {
			return
		}
		b.fill(geom.Cuboid(geom.V(x, lo, z), geom.V(x, base-1, z)), palette, slot)
		return
	}
	if h > base {
		b.fillWith(geom.Cuboid(geom.V(x, base+1, z), geom.V(x, h, z)), Air)
	}
}
