package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsPassCheck(t *testing.T) {
	if err := Defaults().Check(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	tu, err := Parse([]byte("seed: 42\nlayout:\n  stories: 3\nemit:\n  workers: 2\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tu.Seed != 42 || tu.Layout.Stories != 3 || tu.Emit.Workers != 2 {
		t.Fatalf("overrides not applied: %+v", tu)
	}
	if tu.Layout.BaseHeight != Defaults().Layout.BaseHeight || tu.Emit.BatchSize != Defaults().Emit.BatchSize {
		t.Fatalf("defaults lost: %+v", tu)
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	cases := []string{
		"access_side: up\n",
		"layout:\n  stories: 0\n",
		"emit:\n  batch_szie: 10\n",
		"layout:\n  bridge_width: 4\n",
	}
	for _, c := range cases {
		if _, err := Parse([]byte(c)); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestLoadRepoConfig(t *testing.T) {
	p := filepath.Join("..", "..", "..", "configs", "tuning.yaml")
	if _, err := os.Stat(p); err != nil {
		t.Skipf("no repo config: %v", err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu != Defaults() {
		t.Fatalf("configs/tuning.yaml drifted from Defaults():\n%+v\n%+v", tu, Defaults())
	}
}
