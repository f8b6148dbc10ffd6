package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"towerkeep.ai/internal/protocol"
)

//go:embed default_palettes.json
var defaultPalettes []byte

type Catalogs struct {
	Palettes PaletteCatalog
}

type PaletteCatalog struct {
	ByID   map[string]Palette
	IDs    []string
	Digest string
}

type Palette struct {
	ID    string                     `json:"id"`
	Slots map[string][]WeightedBlock `json:"slots"`
}

type WeightedBlock struct {
	Block  string `json:"block"`
	Weight int    `json:"weight,omitempty"`
}

// Required lists the palette slots the structure templates read.
var Required = map[string][]string{
	"tower":     {"wall", "shaft", "floor", "foundation", "roof_floor", "guard", "pyramid", "beacon", "cone", "glass", "ladder", "window", "light"},
	"bridge":    {"walkway", "railing", "edge", "under_stairs", "support", "roof", "post", "light", "marker", "sign"},
	"stairway":  {"step", "landing", "support", "rail", "light"},
	"castle":    {"plinth", "wall", "pillar", "floor", "cone", "roof", "lava", "parkour", "chest", "sign", "light", "trunk", "leaves", "tree_base", "beacon"},
	"nostalgic": {"floor", "accent", "light", "carpet"},
	"crimson":   {"floor", "accent", "light", "carpet"},
	"warped":    {"floor", "accent", "light", "carpet"},
	"endgame":   {"floor", "accent", "light", "carpet"},
	"bounds":    {"marker"},
}

// Load reads palettes.json from configDir.
func Load(configDir string) (*Catalogs, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, "palettes.json"))
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Default returns the palettes compiled into the binary.
func Default() *Catalogs {
	c, err := Parse(defaultPalettes)
	if err != nil {
		panic(fmt.Sprintf("embedded palettes: %v", err))
	}
	return c
}

func Parse(raw []byte) (*Catalogs, error) {
	var c Catalogs
	if err := loadPalettes(raw, &c.Palettes); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadPalettes(raw []byte, out *PaletteCatalog) error {
	if err := protocol.ValidateJSON(protocol.SchemaPalettes, raw); err != nil {
		return fmt.Errorf("palettes.json: %w", err)
	}
	var defs []Palette
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("palettes.json: %w", err)
	}
	out.ByID = map[string]Palette{}
	for _, p := range defs {
		if p.ID == "" {
			return fmt.Errorf("palettes.json: empty id")
		}
		if _, dup := out.ByID[p.ID]; dup {
			return fmt.Errorf("palettes.json: duplicate id %q", p.ID)
		}
		for slot, entries := range p.Slots {
			for i := range entries {
				if entries[i].Weight <= 0 {
					entries[i].Weight = 1
				}
			}
			p.Slots[slot] = entries
		}
		out.ByID[p.ID] = p
	}
	for id, slots := range Required {
		p, ok := out.ByID[id]
		if !ok {
			return fmt.Errorf("palettes.json: missing palette %q", id)
		}
		for _, s := range slots {
			if len(p.Slots[s]) == 0 {
				return fmt.Errorf("palettes.json: palette %q missing slot %q", id, s)
			}
		}
	}

	ids := make([]string, 0, len(out.ByID))
	for id := range out.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.IDs = ids
	// Digest over the canonical re-encoding so formatting changes do not
	// change plan digests.
	canon := make([]Palette, 0, len(ids))
	for _, id := range ids {
		canon = append(canon, out.ByID[id])
	}
	b, _ := json.Marshal(canon)
	out.Digest = sha256Hex(b)
	return nil
}

// Pick returns the slot entry selected by hash h, honouring weights.
func (c *PaletteCatalog) Pick(palette, slot string, h uint64) string {
	entries := c.ByID[palette].Slots[slot]
	if len(entries) == 0 {
		return ""
	}
	total := 0
	for _, e := range entries {
		total += e.Weight
	}
	r := int(h % uint64(total))
	for _, e := range entries {
		if r < e.Weight {
			return e.Block
		}
		r -= e.Weight
	}
	return entries[len(entries)-1].Block
}

// At returns the i-th slot entry, ignoring weights and wrapping around.
func (c *PaletteCatalog) At(palette, slot string, i int) string {
	entries := c.ByID[palette].Slots[slot]
	if len(entries) == 0 {
		return ""
	}
	if i < 0 {
		i = -i
	}
	return entries[i%len(entries)].Block
}
