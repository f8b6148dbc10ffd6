package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPalettesLoad(t *testing.T) {
	c := Default()
	if len(c.Palettes.IDs) != len(Required) {
		t.Fatalf("ids=%v", c.Palettes.IDs)
	}
	if len(c.Palettes.Digest) != 64 {
		t.Fatalf("digest=%q", c.Palettes.Digest)
	}
}

func TestRepoPalettesMatchEmbedded(t *testing.T) {
	dir := filepath.Join("..", "..", "..", "configs")
	if _, err := os.Stat(filepath.Join(dir, "palettes.json")); err != nil {
		t.Skipf("no repo config: %v", err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Palettes.Digest != Default().Palettes.Digest {
		t.Fatalf("configs/palettes.json drifted from the embedded default")
	}
}

func TestPickHonoursWeights(t *testing.T) {
	c := Default()
	counts := map[string]int{}
	for h := uint64(0); h < 900; h++ {
		counts[c.Palettes.Pick("tower", "wall", h)]++
	}
	// weights 6:2:1
	if counts["minecraft:stone_bricks"] != 600 || counts["minecraft:mossy_stone_bricks"] != 200 || counts["minecraft:cracked_stone_bricks"] != 100 {
		t.Fatalf("counts=%v", counts)
	}
	if got := c.Palettes.At("bounds", "marker", 5); got != "minecraft:blue_concrete" {
		t.Fatalf("At wrap: %q", got)
	}
}

func TestParseRejectsMissingSlots(t *testing.T) {
	raw := `[{"id":"tower","slots":{"wall":[{"block":"minecraft:stone"}]}}]`
	_, err := Parse([]byte(raw))
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected missing palette/slot error, got %v", err)
	}
	if _, err := Parse([]byte(`[{"id":"x","slots":{"a":[{"block":"Stone"}]}}]`)); err == nil {
		t.Fatalf("expected schema error")
	}
}
