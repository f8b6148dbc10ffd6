package tuning

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"towerkeep.ai/internal/protocol"
)

type Tuning struct {
	Seed       int64  `yaml:"seed"`
	AccessSide string `yaml:"access_side"`
	MarkBounds bool   `yaml:"mark_bounds"`

	Terrain Terrain `yaml:"terrain"`
	Layout  Layout  `yaml:"layout"`
	Access  Access  `yaml:"access"`
	Emit    Emit    `yaml:"emit"`
	World   World   `yaml:"world"`
}

// Terrain controls the footprint aggregation policy.
type Terrain struct {
	OutlierK     float64 `yaml:"outlier_k"`
	MinMAD       float64 `yaml:"min_mad"`
	SteepStddev  float64 `yaml:"steep_stddev"`
	MaxFillDepth int     `yaml:"max_fill_depth"`
}

type Layout struct {
	AnchorFraction   float64 `yaml:"anchor_fraction"`
	Jitter           int     `yaml:"jitter"`
	ShaftRadius      int     `yaml:"shaft_radius"`
	RoomRadius       int     `yaml:"room_radius"`
	RoofRadius       int     `yaml:"roof_radius"`
	BaseHeight       int     `yaml:"base_height"`
	Stories          int     `yaml:"stories"`
	StoryHeight      int     `yaml:"story_height"`
	RoofHeight       int     `yaml:"roof_height"`
	Clearance        int     `yaml:"clearance"`
	MinGap           int     `yaml:"min_gap"`
	CastleHalf       int     `yaml:"castle_half"`
	CastleHeight     int     `yaml:"castle_height"`
	CastleRoofHeight int     `yaml:"castle_roof_height"`
	BridgeWidth      int     `yaml:"bridge_width"`
	ArchRise         int     `yaml:"arch_rise"`
	PuzzleGap        int     `yaml:"puzzle_gap"`
	LandingEvery     int     `yaml:"landing_every"`
}

type Access struct {
	MinBridgeCrossings int `yaml:"min_bridge_crossings"`
}

type Emit struct {
	BatchSize        int  `yaml:"batch_size"`
	Workers          int  `yaml:"workers"`
	MaxRetries       int  `yaml:"max_retries"`
	BatchTimeoutMs   int  `yaml:"batch_timeout_ms"`
	InitialBackoffMs int  `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int  `yaml:"max_backoff_ms"`
	Coalesce         bool `yaml:"coalesce"`
}

type World struct {
	ReadRetries   int `yaml:"read_retries"`
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
}

// Defaults mirrors configs/tuning.yaml.
func Defaults() Tuning {
	return Tuning{
		Seed:       1337,
		AccessSide: "south",
		Terrain: Terrain{
			OutlierK:     3.0,
			MinMAD:       1.0,
			SteepStddev:  4.0,
			MaxFillDepth: 12,
		},
		Layout: Layout{
			AnchorFraction:   0.6,
			Jitter:           2,
			ShaftRadius:      10,
			RoomRadius:       11,
			RoofRadius:       13,
			BaseHeight:       20,
			Stories:          2,
			StoryHeight:      5,
			RoofHeight:       10,
			Clearance:        6,
			MinGap:           1,
			CastleHalf:       14,
			CastleHeight:     10,
			CastleRoofHeight: 8,
			BridgeWidth:      5,
			ArchRise:         3,
			PuzzleGap:        3,
			LandingEvery:     8,
		},
		Access: Access{MinBridgeCrossings: 1},
		Emit: Emit{
			BatchSize:        512,
			Workers:          4,
			MaxRetries:       5,
			BatchTimeoutMs:   10000,
			InitialBackoffMs: 200,
			MaxBackoffMs:     5000,
			Coalesce:         true,
		},
		World: World{
			ReadRetries:   3,
			ReadTimeoutMs: 30000,
		},
	}
}

// Load reads a tuning file on top of Defaults. Keys missing from the file keep
// their default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	t := Defaults()
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if doc != nil {
		// Validate the JSON view of the document so yaml and json configs
		// share one schema.
		js, err := json.Marshal(doc)
		if err != nil {
			return t, fmt.Errorf("tuning.yaml: %w", err)
		}
		if err := protocol.ValidateJSON(protocol.SchemaTuning, js); err != nil {
			return t, fmt.Errorf("tuning.yaml: %w", err)
		}
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Check(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Check enforces the cross-field constraints the schema cannot express.
func (t Tuning) Check() error {
	l := t.Layout
	switch {
	case l.ShaftRadius > l.RoomRadius:
		return fmt.Errorf("shaft_radius %d exceeds room_radius %d", l.ShaftRadius, l.RoomRadius)
	case l.RoomRadius > l.RoofRadius:
		return fmt.Errorf("room_radius %d exceeds roof_radius %d", l.RoomRadius, l.RoofRadius)
	case l.BridgeWidth%2 == 0:
		return fmt.Errorf("bridge_width %d must be odd", l.BridgeWidth)
	case l.BridgeWidth > 2*l.RoomRadius-1:
		return fmt.Errorf("bridge_width %d wider than the room", l.BridgeWidth)
	case l.Clearance < 1:
		return fmt.Errorf("clearance must be positive")
	case t.Access.MinBridgeCrossings < 1:
		return fmt.Errorf("min_bridge_crossings must be at least 1")
	case t.Emit.BatchSize < 1 || t.Emit.Workers < 1:
		return fmt.Errorf("emit batch_size and workers must be positive")
	}
	return nil
}
