package log

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"towerkeep.ai/internal/emit"
	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/templates"
)

func TestJSONLRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "x")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }
	for i := 0; i < 3; i++ {
		if err := w.Write(map[string]int{"i": i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		clock = clock.Add(time.Minute)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []int
	err := ReadJSONL(dir, "x", func(raw json.RawMessage) error {
		var v map[string]int
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		got = append(got, v["i"])
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Fatalf("got %v", got)
	}
}

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, "run-1")
	b := emit.Batch{Seq: 3, Cells: 4, Edits: []templates.Edit{
		{Pos: geom.V(1, 2, 3), Block: templates.Air, Span: 4},
	}}
	if err := j.BatchCommitted(context.Background(), emit.Committed{Batch: b, Attempts: 2, Elapsed: 1500 * time.Millisecond}); err != nil {
		t.Fatalf("journal: %v", err)
	}
	if err := j.WriteReport(protocol.RunReport{RunID: "run-1", Batches: 1, CommittedEdits: 4}); err != nil {
		t.Fatalf("report: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := ReadBatches(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries=%d want 1 (report line skipped)", len(entries))
	}
	e := entries[0]
	if e.RunID != "run-1" || e.Seq != 3 || e.Cells != 4 || e.Attempts != 2 || e.ElapsedMs != 1500 {
		t.Fatalf("entry %+v", e)
	}
	if e.First != [3]int{1, 2, 3} || e.Last != [3]int{4, 2, 3} {
		t.Fatalf("first=%v last=%v", e.First, e.Last)
	}
}
