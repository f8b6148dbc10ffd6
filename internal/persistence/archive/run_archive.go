package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"towerkeep.ai/internal/protocol"
)

type RunArchiveMeta struct {
	RunID          string `json:"run_id"`
	Seed           int64  `json:"seed"`
	PlanDigest     string `json:"plan_digest"`
	CommittedEdits int    `json:"committed_edits"`
	Batches        int    `json:"batches"`
	Plan           string `json:"plan"`
	CreatedAt      string `json:"created_at"`
}

// ArchiveCompletedRun copies the plan of a fully committed run into
// `dataDir/archives/<plan digest prefix>/`, so one copy is kept per distinct
// build. It returns (archivedPath, archived=true) when the run qualified.
func ArchiveCompletedRun(dataDir, planPath string, rep protocol.RunReport) (archivedPath string, archived bool, err error) {
	if rep.Code != "" || rep.DryRun || rep.PlanDigest == "" {
		return "", false, nil
	}
	if rep.CommittedEdits != rep.EmittedEdits {
		return "", false, nil
	}

	archiveDir := filepath.Join(dataDir, "archives", digestDir(rep.PlanDigest))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(planPath))
	if err := copyFile(planPath, dst); err != nil {
		return "", false, err
	}

	meta := RunArchiveMeta{
		RunID:          rep.RunID,
		Seed:           rep.Seed,
		PlanDigest:     rep.PlanDigest,
		CommittedEdits: rep.CommittedEdits,
		Batches:        rep.Batches,
		Plan:           filepath.Base(dst),
		CreatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, _ := json.MarshalIndent(meta, "", "  ")
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

// ReadMeta loads the meta.json written next to an archived plan.
func ReadMeta(archiveDir string) (RunArchiveMeta, error) {
	var m RunArchiveMeta
	b, err := os.ReadFile(filepath.Join(archiveDir, "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func digestDir(digest string) string {
	if len(digest) > 16 {
		digest = digest[:16]
	}
	return fmt.Sprintf("plan_%s", digest)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
