package planarchive

import (
	"path/filepath"
	"testing"

	"towerkeep.ai/internal/sim/catalogs"
	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/templates"
	"towerkeep.ai/internal/sim/terrain"
	"towerkeep.ai/internal/sim/tuning"
)

func TestWriteReadRoundTrip(t *testing.T) {
	area := geom.Box{Origin: geom.V(0, 0, 0), Size: geom.V(100, 256, 100)}
	hm := terrain.Flat(area.Rect(), 64)
	tu := tuning.Defaults()
	l, err := layout.NewPlanner(tu, nil).Plan(area, hm)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	eng := templates.NewEngine(catalogs.Default(), hm, tu)
	seq := eng.Plan(l.Elements)

	p := New(Header{RunID: "run-1", Seed: tu.Seed}, area, l, seq)
	path := Path(t.TempDir(), "run-1")
	if filepath.Base(filepath.Dir(path)) != "run-1" {
		t.Fatalf("path %s", path)
	}
	if err := Write(path, p); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil || h.RunID != "run-1" || h.Version != Version {
		t.Fatalf("header %+v err=%v", h, err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.BuildArea() != area {
		t.Fatalf("area %v", got.BuildArea())
	}
	if len(got.Elements) != len(l.Elements) || got.EntranceID != l.EntranceID {
		t.Fatalf("elements %d entrance %s", len(got.Elements), got.EntranceID)
	}
	if d := templates.Digest(got.EditSeq()); d != p.PlanDigest || d != templates.Digest(seq) {
		t.Fatalf("digest mismatch: %s vs %s", d, p.PlanDigest)
	}
	if len(got.Edits) >= templates.CountCells(seq) {
		t.Fatalf("edits were not compacted: %d", len(got.Edits))
	}
}

func TestGroundRoundTrip(t *testing.T) {
	rect := geom.Rect{X: -5, Z: 10, DX: 7, DZ: 4}
	heights := make([]int, rect.Area())
	mats := make([]string, rect.Area())
	for i := range heights {
		heights[i] = -12 + i%5
		mats[i] = "minecraft:grass_block"
		if i%7 == 0 {
			mats[i] = "minecraft:sand"
		}
	}
	hm, err := terrain.NewHeightMap(rect, heights, mats)
	if err != nil {
		t.Fatalf("heightmap: %v", err)
	}
	g, err := NewGround(hm)
	if err != nil {
		t.Fatalf("ground: %v", err)
	}
	if g.MinY != -12 || len(g.Materials) != 2 {
		t.Fatalf("ground %+v", g)
	}
	back, err := g.HeightMap()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if back.Digest() != hm.Digest() {
		t.Fatalf("ground digest changed")
	}

	flat, _ := NewGround(terrain.Flat(rect, 64))
	if flat.MaterialIdx != "" || flat.Materials != nil {
		t.Fatalf("unknown materials should not be archived: %+v", flat)
	}
	back, err = flat.HeightMap()
	if err != nil || back.Digest() != terrain.Flat(rect, 64).Digest() {
		t.Fatalf("flat rebuild: %v", err)
	}
}
