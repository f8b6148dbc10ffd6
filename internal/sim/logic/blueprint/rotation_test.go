package blueprint

import (
	"testing"

	"towerkeep.ai/internal/sim/logic/geom"
)

func TestNormalizeRotation_AcceptsDegreesAndQuarterTurns(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{in: 0, want: 0},
		{in: 1, want: 1},
		{in: 3, want: 3},
		{in: 4, want: 0},
		{in: -1, want: 3},
		{in: 90, want: 1},
		{in: 270, want: 3},
		{in: -90, want: 3},
	}
	for _, c := range cases {
		if got := NormalizeRotation(c.in); got != c.want {
			t.Fatalf("NormalizeRotation(%d)=%d want %d", c.in, got, c.want)
		}
	}
}

func TestRotateMatchesDirections(t *testing.T) {
	// a clockwise quarter turn (seen from above, +Z south) maps north onto east
	for d := geom.North; d <= geom.West; d++ {
		for rot := 0; rot < 4; rot++ {
			got := RotateOffset(d.Step(), rot)
			want := RotateDir(d, rot).Step()
			if got != want {
				t.Fatalf("rotate %s by %d: offset %v want %v", d, rot, got, want)
			}
		}
	}
	if QuarterTurnsFrom(geom.North, geom.West) != 3 {
		t.Fatalf("north->west should be 3 quarter turns")
	}
}
