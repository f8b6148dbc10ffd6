package archive

import (
	"os"
	"path/filepath"
	"testing"

	"towerkeep.ai/internal/protocol"
)

func TestArchiveCompletedRun(t *testing.T) {
	dataDir := t.TempDir()
	planDir := filepath.Join(dataDir, "runs", "r1")
	if err := os.MkdirAll(planDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	src := filepath.Join(planDir, "plan.zst")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rep := protocol.RunReport{RunID: "r1", Seed: 7, PlanDigest: "0123456789abcdef0123", EmittedEdits: 10, CommittedEdits: 10, Batches: 2}

	// Not complete: no archive.
	partial := rep
	partial.CommittedEdits = 4
	partial.Code = protocol.ErrEmission
	if _, ok, err := ArchiveCompletedRun(dataDir, src, partial); err != nil || ok {
		t.Fatalf("expected no archive, ok=%v err=%v", ok, err)
	}
	dry := rep
	dry.DryRun = true
	if _, ok, _ := ArchiveCompletedRun(dataDir, src, dry); ok {
		t.Fatalf("dry runs are not archived")
	}

	dst, ok, err := ArchiveCompletedRun(dataDir, src, rep)
	if err != nil || !ok {
		t.Fatalf("ArchiveCompletedRun: ok=%v err=%v", ok, err)
	}
	if filepath.Base(filepath.Dir(dst)) != "plan_0123456789abcdef" {
		t.Fatalf("unexpected archive dir: %s", dst)
	}
	b, err := os.ReadFile(dst)
	if err != nil || string(b) != "hello" {
		t.Fatalf("archived content mismatch: %q err=%v", string(b), err)
	}
	meta, err := ReadMeta(filepath.Dir(dst))
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.RunID != "r1" || meta.Plan != "plan.zst" || meta.CommittedEdits != 10 {
		t.Fatalf("meta %+v", meta)
	}
}
