package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"towerkeep.ai/internal/emit"
	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/sim/catalogs"
	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/templates"
	"towerkeep.ai/internal/sim/terrain"
	"towerkeep.ai/internal/sim/tuning"
)

func TestSQLiteIndexRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "towerkeep.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	cats := catalogs.Default()
	if err := idx.UpsertCatalogs(cats, tuning.Defaults()); err != nil {
		t.Fatalf("catalogs: %v", err)
	}

	idx.RecordElements("r1", []layout.Element{
		{Kind: layout.KindTower, ID: "tower-nw", Footprint: terrain.DiscFootprint(10, 10, 5)},
		{Kind: layout.KindTower, ID: "tower-sw", Footprint: terrain.DiscFootprint(10, 40, 5)},
		{Kind: layout.KindBridge, ID: "bridge-nw-sw", Connects: []string{"tower-nw", "tower-sw"}},
	})
	j := idx.ForRun("r1")
	for seq := 0; seq < 3; seq++ {
		b := emit.Batch{Seq: seq, Cells: 10, Edits: []templates.Edit{{Pos: geom.V(seq, 64, 0), Block: templates.Air, Span: 10}}}
		if err := j.BatchCommitted(ctx, emit.Committed{Batch: b, Attempts: 1 + seq, Elapsed: time.Millisecond}); err != nil {
			t.Fatalf("batch: %v", err)
		}
	}
	rep := protocol.RunReport{RunID: "r1", Seed: 7, PlannedEdits: 40, EmittedEdits: 30, CommittedEdits: 30, Batches: 3, PlanDigest: "abc"}
	if err := idx.RecordRun(ctx, rep); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	got, err := idx.Run(ctx, "r1")
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if got.CommittedEdits != 30 || got.PlanDigest != "abc" || got.Seed != 7 {
		t.Fatalf("run %+v", got)
	}
	bs, err := idx.Batches(ctx, "r1")
	if err != nil {
		t.Fatalf("batches: %v", err)
	}
	if bs.Batches != 3 || bs.Cells != 30 || bs.Attempts != 6 {
		t.Fatalf("batches %+v", bs)
	}
	counts, err := idx.ElementCounts(ctx, "r1")
	if err != nil {
		t.Fatalf("elements: %v", err)
	}
	if counts["tower"] != 2 || counts["bridge"] != 1 {
		t.Fatalf("counts %v", counts)
	}
	d, err := idx.CatalogDigest(ctx, "palettes")
	if err != nil || d != cats.Palettes.Digest {
		t.Fatalf("palette digest %q err=%v", d, err)
	}
	ids, err := idx.RecentRuns(ctx, 10)
	if err != nil || len(ids) != 1 || ids[0] != "r1" {
		t.Fatalf("recent %v err=%v", ids, err)
	}
	if _, err := idx.Run(ctx, "missing"); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}

func TestSQLiteIndexDropsWhenFull(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	j := s.ForRun("r")
	b := emit.Batch{Cells: 1, Edits: []templates.Edit{{Span: 1}}}
	_ = j.BatchCommitted(context.Background(), emit.Committed{Batch: b})
	_ = j.BatchCommitted(context.Background(), emit.Committed{Batch: b})

	st := s.Stats()
	if st.DropBatchesTotal != 1 || st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("stats %+v", st)
	}
}
