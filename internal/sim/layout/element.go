// Package layout decides where every structural element of the build goes:
// four towers, the bridges between them, the entrance stairway and the
// raised castle in the middle.
package layout

import (
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/terrain"
)

type Kind int

const (
	KindTower Kind = iota
	KindBridge
	KindCastle
	KindEntrance
)

func (k Kind) String() string {
	switch k {
	case KindTower:
		return "tower"
	case KindBridge:
		return "bridge"
	case KindCastle:
		return "castle"
	case KindEntrance:
		return "entrance"
	}
	return "unknown"
}

// GroundID is the synthetic node every ground-level connection refers to.
const GroundID = "ground"

// Element is one positioned structure. Exactly one of the payload pointers
// is set, matching Kind.
type Element struct {
	Kind      Kind
	ID        string
	Footprint terrain.Footprint
	// Base is the Y of the lowest structural layer.
	Base   int
	Height int
	// Rotation is the number of clockwise quarter turns applied to
	// orientation-dependent decoration.
	Rotation int
	// Connects holds the ids this element links together (bridges,
	// stairways) or is linked by (towers, castle).
	Connects []string

	Tower    *Tower
	Bridge   *Bridge
	Castle   *Castle
	Stairway *Stairway
}

type District int

const (
	NW District = iota
	SW
	SE
	NE
)

var districtNames = [...]string{"nw", "sw", "se", "ne"}

func (d District) String() string { return districtNames[d&3] }

// Signs returns the X and Z direction of the district from the area centre.
func (d District) Signs() (int, int) {
	switch d {
	case NW:
		return -1, -1
	case SW:
		return -1, 1
	case SE:
		return 1, 1
	default:
		return 1, -1
	}
}

// Opposite is the diagonally opposite district.
func (d District) Opposite() District { return (d + 2) & 3 }

type Interior int

const (
	Nostalgic Interior = iota
	Crimson
	Warped
	Endgame
	interiorCount
)

var interiorNames = [...]string{"nostalgic", "crimson", "warped", "endgame"}

func (i Interior) String() string {
	if i < 0 || i >= interiorCount {
		return "unknown"
	}
	return interiorNames[i]
}

// Door is an opening in a tower wall (or roof guard) toward a connection.
type Door struct {
	// At is the wall cell the opening is centred on; At.Y is the floor the
	// opening stands on.
	At geom.Vec3
	// Facing points from the tower centre through the opening.
	Facing geom.Dir
	Via    string
}

type Tower struct {
	District District
	Index    int
	// Anchor is the column centre; Anchor.Y equals the element base.
	Anchor      geom.Vec3
	Plane       terrain.BuildPlane
	Deck        int
	RoofY       int
	Entrance    bool
	GroundDoor  bool
	ShaftRadius int
	RoomRadius  int
	RoofRadius  int
	Stories     int
	StoryHeight int
	RoofHeight  int
	Interiors   []Interior
	Doors       []Door
	RoofDoors   []Door
}

type Bridge struct {
	FromID, ToID string
	// From and To are the walkway centre-line endpoints; Y is the walkway.
	From, To geom.Vec3
	Width    int
	ArchRise int
	Roofed   bool
	// Puzzle bridges stop PuzzleGap cells short of To.
	Puzzle    bool
	PuzzleGap int
}

type Castle struct {
	// Center.Y equals the element base (plinth top).
	Center geom.Vec3
	Plane  terrain.BuildPlane
	Half   int
	// FloorY is the main floor, level with the incoming bridge.
	FloorY     int
	WallHeight int
	RoofHeight int
	// DoorAt is the wall cell the incoming bridge arrives at.
	DoorAt  geom.Vec3
	DoorVia string
}

type Stairway struct {
	TowerID string
	// Center is the tower axis at ground level.
	Center geom.Vec3
	Radius int
	Start  geom.Dir
	Toward geom.Dir
	FromY  int
	ToY    int
	// LandingEvery inserts a flat cell after that many rising steps (0: none).
	LandingEvery int
}

// Layout is the positioned element set of one run.
type Layout struct {
	Area           geom.Box
	Elements       []Element
	Deck           int
	RoofY          int
	EntranceID     string
	CastleID       string
	PuzzleBridgeID string
	Warnings       []string
}

func (l *Layout) ByID(id string) *Element {
	for i := range l.Elements {
		if l.Elements[i].ID == id {
			return &l.Elements[i]
		}
	}
	return nil
}

func (l *Layout) Count(k Kind) int {
	n := 0
	for _, el := range l.Elements {
		if el.Kind == k {
			n++
		}
	}
	return n
}
