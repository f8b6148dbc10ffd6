package layout

import (
	"errors"
	"reflect"
	"testing"

	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/terrain"
	"towerkeep.ai/internal/sim/tuning"
)

func flatArea(size, y int) (geom.Box, *terrain.HeightMap) {
	area := geom.Box{Origin: geom.V(0, 0, 0), Size: geom.V(size, 256, size)}
	return area, terrain.Flat(area.Rect(), y)
}

func TestPlanFlat100(t *testing.T) {
	area, hm := flatArea(100, 64)
	tu := tuning.Defaults()
	tu.Layout.Jitter = 0
	l, err := NewPlanner(tu, nil).Plan(area, hm)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if l.Count(KindTower) != 4 || l.Count(KindCastle) != 1 || l.Count(KindEntrance) != 1 {
		t.Fatalf("counts: towers=%d castles=%d stairways=%d", l.Count(KindTower), l.Count(KindCastle), l.Count(KindEntrance))
	}
	if l.Count(KindBridge) != 5 {
		t.Fatalf("bridges=%d want 4 ring + 1 castle", l.Count(KindBridge))
	}
	if l.EntranceID != "tower-sw" {
		t.Fatalf("entrance=%s want tower-sw (south side, district order tie-break)", l.EntranceID)
	}
	lt := tuning.Defaults().Layout
	if l.Deck != 64+lt.BaseHeight || l.RoofY != l.Deck+lt.Stories*lt.StoryHeight {
		t.Fatalf("deck=%d roof=%d", l.Deck, l.RoofY)
	}

	castle := l.ByID(l.CastleID)
	if castle == nil || castle.Base <= 64+lt.Clearance {
		t.Fatalf("castle base must clear max tower base + clearance: %+v", castle)
	}
	if castle.Castle.FloorY != l.RoofY {
		t.Fatalf("castle floor %d should match roof %d", castle.Castle.FloorY, l.RoofY)
	}

	var stair *Element
	for i := range l.Elements {
		el := &l.Elements[i]
		if !area.Rect().ContainsRect(el.Footprint.Rect) {
			t.Fatalf("%s footprint %s leaves the area", el.ID, el.Footprint)
		}
		switch el.Kind {
		case KindTower:
			if el.Base != 64 || el.Tower.Deck != l.Deck {
				t.Fatalf("%s base=%d deck=%d", el.ID, el.Base, el.Tower.Deck)
			}
			if len(el.Tower.Interiors) != lt.Stories {
				t.Fatalf("%s interiors=%v", el.ID, el.Tower.Interiors)
			}
		case KindEntrance:
			stair = el
		case KindBridge:
			if el.Bridge.Puzzle {
				if el.ID != l.PuzzleBridgeID || el.Bridge.From.Y != l.RoofY || el.Bridge.ToID != l.CastleID {
					t.Fatalf("puzzle bridge: %+v", el.Bridge)
				}
				if el.Bridge.FromID != "tower-ne" {
					t.Fatalf("castle bridge should leave the tower opposite the entrance, got %s", el.Bridge.FromID)
				}
				continue
			}
			if el.Bridge.From.Y != l.Deck || el.Bridge.To.Y != l.Deck {
				t.Fatalf("%s not at deck level: %v -> %v", el.ID, el.Bridge.From, el.Bridge.To)
			}
			if el.Bridge.ToID == l.CastleID || el.Bridge.FromID == l.CastleID {
				t.Fatalf("%s reaches the castle at deck level", el.ID)
			}
		}
	}
	if stair == nil || stair.Stairway.FromY != 64 || stair.Stairway.ToY != l.Deck {
		t.Fatalf("stairway: %+v", stair)
	}
	if !reflect.DeepEqual(stair.Connects, []string{GroundID, l.EntranceID}) {
		t.Fatalf("stairway connects %v", stair.Connects)
	}
	if l.ByID(l.EntranceID).Tower.Interiors[0] != Nostalgic {
		t.Fatalf("entrance tower first story should be nostalgic")
	}

	roofless := 0
	for _, el := range l.Elements {
		if el.Kind == KindBridge && !el.Bridge.Puzzle && !el.Bridge.Roofed {
			roofless++
		}
	}
	if roofless != 1 {
		t.Fatalf("roofless ring bridges=%d want 1", roofless)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	area, hm := flatArea(120, 70)
	tu := tuning.Defaults()
	tu.Seed = 99
	a, err := NewPlanner(tu, nil).Plan(area, hm)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	b, _ := NewPlanner(tu, nil).Plan(area, hm)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("plans differ for identical inputs")
	}
}

func TestPlanTooSmall(t *testing.T) {
	area, hm := flatArea(40, 64)
	_, err := NewPlanner(tuning.Defaults(), nil).Plan(area, hm)
	var ia *terrain.InsufficientAreaError
	if !errors.As(err, &ia) {
		t.Fatalf("40x40: expected InsufficientAreaError, got %v", err)
	}

	area, hm = flatArea(88, 64)
	_, err = NewPlanner(tuning.Defaults(), nil).Plan(area, hm)
	var li *LayoutInfeasibleError
	if !errors.As(err, &li) {
		t.Fatalf("88x88: expected LayoutInfeasibleError, got %v", err)
	}
	if li.A == "" || li.B == "" {
		t.Fatalf("error should name both elements: %v", li)
	}
}

func TestPlanAccessSideChoosesEntrance(t *testing.T) {
	cases := map[string]string{
		"north": "tower-nw",
		"south": "tower-sw",
		"east":  "tower-se",
		"west":  "tower-nw",
	}
	area, hm := flatArea(110, 64)
	for side, want := range cases {
		tu := tuning.Defaults()
		tu.AccessSide = side
		tu.Layout.Jitter = 0
		l, err := NewPlanner(tu, nil).Plan(area, hm)
		if err != nil {
			t.Fatalf("%s: %v", side, err)
		}
		if l.EntranceID != want {
			t.Fatalf("%s: entrance=%s want %s", side, l.EntranceID, want)
		}
	}
}

func TestPlanCastleOverPit(t *testing.T) {
	area := geom.Box{Origin: geom.V(0, 0, 0), Size: geom.V(100, 256, 100)}
	rect := area.Rect()
	h := make([]int, rect.Area())
	for z := 0; z < rect.DZ; z++ {
		for x := 0; x < rect.DX; x++ {
			v := 64
			if x >= 44 && x <= 54 && z >= 44 && z <= 54 {
				v = 10
			}
			h[z*rect.DX+x] = v
		}
	}
	hm, _ := terrain.NewHeightMap(rect, h, nil)
	l, err := NewPlanner(tuning.Defaults(), nil).Plan(area, hm)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	c := l.ByID(l.CastleID).Castle
	if d := c.Plane.Elevation - 64; d < -1 || d > 1 {
		t.Fatalf("castle plane %d should follow the rim (64), not the pit", c.Plane.Elevation)
	}
	if c.Plane.Outliers == 0 {
		t.Fatalf("pit cells should be rejected as outliers")
	}
}

func TestPlanRaisesDeckOverHighCastleGround(t *testing.T) {
	area := geom.Box{Origin: geom.V(0, 0, 0), Size: geom.V(100, 256, 100)}
	rect := area.Rect()
	h := make([]int, rect.Area())
	for z := 0; z < rect.DZ; z++ {
		for x := 0; x < rect.DX; x++ {
			v := 64
			if x >= 30 && x <= 68 && z >= 30 && z <= 68 {
				v = 100
			}
			h[z*rect.DX+x] = v
		}
	}
	hm, _ := terrain.NewHeightMap(rect, h, nil)
	l, err := NewPlanner(tuning.Defaults(), nil).Plan(area, hm)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	c := l.ByID(l.CastleID)
	if c.Castle.FloorY-c.Base < minBasement {
		t.Fatalf("castle floor %d too close to base %d", c.Castle.FloorY, c.Base)
	}
	if len(l.Warnings) == 0 {
		t.Fatalf("expected a deck-raised warning")
	}
}

func TestStairwaySteps(t *testing.T) {
	s := &Stairway{Center: geom.V(0, 60, 0), Radius: 12, Start: geom.South, Toward: geom.West, FromY: 60, ToY: 80, LandingEvery: 8}
	steps := s.Steps()
	if steps[0].Y != 61 || steps[len(steps)-1].Y != 80 {
		t.Fatalf("steps run %d..%d", steps[0].Y, steps[len(steps)-1].Y)
	}
	// 20 rises plus landings after the 8th and 16th
	if len(steps) != 22 {
		t.Fatalf("steps=%d want 22", len(steps))
	}
	for i := 1; i < len(steps); i++ {
		dy := steps[i].Y - steps[i-1].Y
		if dy < 0 || dy > 1 {
			t.Fatalf("step %d rises by %d", i, dy)
		}
	}
}
