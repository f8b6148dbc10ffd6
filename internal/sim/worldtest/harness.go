package worldtest

import (
	"iter"
	"testing"

	"towerkeep.ai/internal/sim/catalogs"
	"towerkeep.ai/internal/sim/logic/blueprint"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/templates"
	"towerkeep.ai/internal/sim/terrain"
	"towerkeep.ai/internal/sim/tuning"
)

// Harness bundles what a pipeline test needs: a world over some ground,
// fast tuning, and the embedded catalogs.
type Harness struct {
	T      *testing.T
	Area   geom.Box
	World  *World
	Tuning tuning.Tuning
	Cats   *catalogs.Catalogs
}

// NewHarness uses zero jitter and millisecond backoff so tests are quick
// and layouts are easy to reason about.
func NewHarness(t *testing.T, area geom.Box, ground *terrain.HeightMap) *Harness {
	t.Helper()
	tu := tuning.Defaults()
	tu.Layout.Jitter = 0
	tu.Emit.InitialBackoffMs = 1
	tu.Emit.MaxBackoffMs = 5
	tu.Emit.BatchTimeoutMs = 2000
	if err := tu.Check(); err != nil {
		t.Fatalf("tuning: %v", err)
	}
	return &Harness{
		T:      t,
		Area:   area,
		World:  New(area, ground),
		Tuning: tu,
		Cats:   catalogs.Default(),
	}
}

// RequireBlock fails the test unless the block id at p is want.
func (h *Harness) RequireBlock(p geom.Vec3, want string) {
	h.T.Helper()
	b, ok := h.World.Block(p)
	if !ok || b.ID != want {
		h.T.Fatalf("block at %s = %q (set=%v), want %q", p, b.ID, ok, want)
	}
}

// RequireBuilt fails the test unless the world holds the final state of
// seq at every cell it touches.
func (h *Harness) RequireBuilt(seq iter.Seq[templates.Edit]) {
	h.T.Helper()
	blocks := templates.Placement(seq)
	get := func(p geom.Vec3) string {
		b, ok := h.World.Block(p)
		if !ok {
			return ""
		}
		return b.String()
	}
	if blueprint.CheckPlaced(get, blocks, geom.Vec3{}, 0) {
		return
	}
	bad := blueprint.Mismatches(get, blocks, geom.Vec3{}, 0, 5)

	correct := map[string]int{}
	for _, b := range blocks {
		if get(b.Pos) == b.Block {
			correct[templates.ParseBlock(b.Block).ID]++
		}
	}
	missing := blueprint.RemainingCost(templates.Bill(seq), correct)
	h.T.Fatalf("world differs from plan at %v; still missing %v", bad, missing)
}
