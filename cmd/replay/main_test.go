package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"towerkeep.ai/internal/emit"
	"towerkeep.ai/internal/persistence/indexdb"
	"towerkeep.ai/internal/persistence/planarchive"
	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/templates"
	"towerkeep.ai/internal/sim/terrain"
)

func TestOpenIndexMissing(t *testing.T) {
	dir := t.TempDir()
	idx, err := openIndex(dir)
	if err != nil || idx != nil {
		t.Fatalf("openIndex on empty dir = %v, %v", idx, err)
	}
	if _, err := os.Stat(indexdb.Path(dir)); !os.IsNotExist(err) {
		t.Fatalf("index file created: %v", err)
	}
}

func TestIndexedRunSummary(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	idx, err := indexdb.OpenSQLite(indexdb.Path(dir))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.RecordElements("r1", []layout.Element{
		{Kind: layout.KindTower, ID: "tower-nw", Footprint: terrain.DiscFootprint(10, 10, 5)},
		{Kind: layout.KindTower, ID: "tower-ne", Footprint: terrain.DiscFootprint(40, 10, 5)},
		{Kind: layout.KindBridge, ID: "bridge-nw-ne", Connects: []string{"tower-nw", "tower-ne"}},
	})
	j := idx.ForRun("r1")
	for seq := 0; seq < 2; seq++ {
		b := emit.Batch{Seq: seq, Cells: 8, Edits: []templates.Edit{{Pos: geom.V(seq, 64, 0), Block: templates.Air, Span: 8}}}
		if err := j.BatchCommitted(ctx, emit.Committed{Batch: b, Attempts: 2, Elapsed: time.Millisecond}); err != nil {
			t.Fatalf("batch: %v", err)
		}
	}
	if err := idx.RecordRun(ctx, protocol.RunReport{RunID: "r1", Seed: 9, EmittedEdits: 16, CommittedEdits: 16, Batches: 2}); err != nil {
		t.Fatalf("run r1: %v", err)
	}
	if err := idx.RecordRun(ctx, protocol.RunReport{RunID: "r2", Seed: 9, Code: protocol.ErrWorldUnavailable}); err != nil {
		t.Fatalf("run r2: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = openIndex(dir)
	if err != nil || idx == nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	var out bytes.Buffer
	if err := printRuns(ctx, &out, idx, 10); err != nil {
		t.Fatalf("printRuns: %v", err)
	}
	if !strings.Contains(out.String(), "r1 seed=9 committed=16/16 batches=2 ok") {
		t.Fatalf("runs listing:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "r2 ") || !strings.Contains(out.String(), protocol.ErrWorldUnavailable) {
		t.Fatalf("failed run missing:\n%s", out.String())
	}

	out.Reset()
	if err := printIndexed(ctx, &out, idx, "r1"); err != nil {
		t.Fatalf("printIndexed: %v", err)
	}
	for _, want := range []string{"committed=16/16", "2 batch rows, 16 cells, 4 attempts", "bridge=1 tower=2"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("summary lacks %q:\n%s", want, out.String())
		}
	}
	if err := printIndexed(ctx, &out, idx, "missing"); err == nil {
		t.Fatalf("expected error for unindexed run")
	}
}

func TestRenderOverview(t *testing.T) {
	rect := geom.Rect{X: 100, Z: 200, DX: 12, DZ: 8}
	ground, err := planarchive.NewGround(terrain.Flat(rect, 64))
	if err != nil {
		t.Fatalf("ground: %v", err)
	}
	p := planarchive.PlanV1{
		Ground: ground,
		Edits: []planarchive.EditV1{
			{X: 105, Y: 65, Z: 203, Span: 1, ID: "minecraft:stone"},
			{X: 105, Y: 72, Z: 203, Span: 1, ID: "minecraft:stone"},
			{X: 106, Y: 70, Z: 203, Span: 1, ID: "minecraft:stone"},
			{X: 106, Y: 70, Z: 203, Span: 1, ID: "minecraft:air"},
		},
	}
	img, err := renderOverview(p, 3)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 36 || b.Dy() != 24 {
		t.Fatalf("bounds %v", b)
	}
	if got := img.RGBAAt(0, 0); got != edgeColor {
		t.Fatalf("corner %v want border", got)
	}
	if got := img.RGBAAt(5*3+1, 3*3+1); got != buildHigh {
		t.Fatalf("built column %v want %v", got, buildHigh)
	}
	if got := img.RGBAAt(6*3+1, 3*3+1); got != lowland {
		t.Fatalf("cleared column %v want terrain %v", got, lowland)
	}

	path := filepath.Join(t.TempDir(), "overview.png")
	if err := writePNG(path, img); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Bounds() != img.Bounds() {
		t.Fatalf("decoded bounds %v", dec.Bounds())
	}

	if _, err := renderOverview(planarchive.PlanV1{}, 1); err == nil {
		t.Fatalf("expected error without ground")
	}
}
