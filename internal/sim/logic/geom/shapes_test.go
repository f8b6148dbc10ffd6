package geom

import "testing"

func count(s func(func(Vec3) bool)) int {
	n := 0
	for range s {
		n++
	}
	return n
}

func TestCuboidCountsAndOrder(t *testing.T) {
	cells := Collect(Cuboid(V(2, 0, 2), V(0, 1, 0)))
	if len(cells) != 18 {
		t.Fatalf("cells=%d want 18", len(cells))
	}
	if cells[0] != V(0, 0, 0) || cells[len(cells)-1] != V(2, 1, 2) {
		t.Fatalf("unexpected order: first=%v last=%v", cells[0], cells[len(cells)-1])
	}
}

func TestLineEndpointsAndConnectivity(t *testing.T) {
	cases := [][2]Vec3{
		{V(0, 0, 0), V(10, 0, 0)},
		{V(0, 0, 0), V(7, 3, -4)},
		{V(5, 9, 1), V(-2, 0, 6)},
		{V(1, 1, 1), V(1, 1, 1)},
	}
	for _, c := range cases {
		pts := Collect(Line(c[0], c[1]))
		if pts[0] != c[0] || pts[len(pts)-1] != c[1] {
			t.Fatalf("line %v->%v endpoints %v %v", c[0], c[1], pts[0], pts[len(pts)-1])
		}
		for i := 1; i < len(pts); i++ {
			d := pts[i].Sub(pts[i-1])
			if abs(d.X) > 1 || abs(d.Y) > 1 || abs(d.Z) > 1 {
				t.Fatalf("line %v->%v has gap at %d: %v", c[0], c[1], i, d)
			}
		}
	}
}

func TestCylinderModes(t *testing.T) {
	a, b := V(0, 0, 0), V(8, 3, 8)
	solid := count(Cylinder(a, b, Solid))
	hollow := count(Cylinder(a, b, Hollow))
	tube := count(Cylinder(a, b, Tube))
	if !(solid > hollow && hollow > tube && tube > 0) {
		t.Fatalf("solid=%d hollow=%d tube=%d", solid, hollow, tube)
	}
	for p := range Cylinder(a, b, Solid) {
		if p.X < 0 || p.X > 8 || p.Z < 0 || p.Z > 8 {
			t.Fatalf("cell outside fitted box: %v", p)
		}
	}
	// centre column is always present in a solid cylinder and absent from a tube
	centre := V(4, 1, 4)
	foundSolid, foundTube := false, false
	for p := range Cylinder(a, b, Solid) {
		foundSolid = foundSolid || p == centre
	}
	for p := range Cylinder(a, b, Tube) {
		foundTube = foundTube || p == centre
	}
	if !foundSolid || foundTube {
		t.Fatalf("centre solid=%v tube=%v", foundSolid, foundTube)
	}
}

func TestPyramidLayers(t *testing.T) {
	// 7x7 + 5x5 + 3x3 + 1
	if got := count(Pyramid(V(0, 0, 0), 4, false)); got != 49+25+9+1 {
		t.Fatalf("pyramid=%d", got)
	}
	// 24 + 16 + 8 + 1
	if got := count(Pyramid(V(0, 0, 0), 4, true)); got != 24+16+8+1 {
		t.Fatalf("hollow pyramid=%d", got)
	}
}

func TestHollowConeHasNoCoveredCells(t *testing.T) {
	cells := map[Vec3]bool{}
	for p := range Cone(V(0, 0, 0), 6, true) {
		cells[p] = true
	}
	full := Collect(Cone(V(0, 0, 0), 6, false))
	if len(cells) == 0 || len(cells) >= len(full) {
		t.Fatalf("hollow=%d full=%d", len(cells), len(full))
	}
	for _, p := range full {
		if cells[p] {
			continue
		}
		// removed cells must be covered by a full-cone cell directly above
		covered := false
		for _, q := range full {
			if q == p.Up(1) {
				covered = true
				break
			}
		}
		if !covered {
			t.Fatalf("cell %v removed but uncovered", p)
		}
	}
}

func TestRingPathStartsOnRequestedSide(t *testing.T) {
	c := V(0, 64, 0)
	for _, toward := range []Dir{East, West} {
		path := RingPath(c, 6, South, toward)
		if len(path) != count(Ring(c, 6)) {
			t.Fatalf("path=%d ring=%d", len(path), count(Ring(c, 6)))
		}
		if path[0] != V(0, 64, 6) {
			t.Fatalf("path should start due south of centre, got %v", path[0])
		}
		if d := path[1].X - path[0].X; d*toward.Step().X <= 0 {
			t.Fatalf("toward %s: second cell %v", toward, path[1])
		}
		again := RingPath(c, 6, South, toward)
		for i := range path {
			if path[i] != again[i] {
				t.Fatalf("ring path not stable at %d", i)
			}
		}
	}
}

func TestFourConnectedFillsDiagonals(t *testing.T) {
	path := FourConnected(RingPath(V(0, 0, 0), 9, North, East))
	for i := 1; i < len(path); i++ {
		d := path[i].Sub(path[i-1])
		if abs(d.X)+abs(d.Z) != 1 {
			t.Fatalf("cells %v -> %v are not face neighbours", path[i-1], path[i])
		}
	}
}
