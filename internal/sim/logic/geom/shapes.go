package geom

import (
	"iter"
	"math"
	"sort"
)

// CylinderMode selects which cells of a fitted cylinder are produced.
type CylinderMode int

const (
	Solid CylinderMode = iota
	// Hollow keeps the side wall plus full bottom and top caps.
	Hollow
	// Tube keeps the side wall only.
	Tube
)

// Cuboid yields every cell of the box spanned by two corners (inclusive, any order).
func Cuboid(a, b Vec3) iter.Seq[Vec3] {
	x0, x1 := order(a.X, b.X)
	y0, y1 := order(a.Y, b.Y)
	z0, z1 := order(a.Z, b.Z)
	return func(yield func(Vec3) bool) {
		for y := y0; y <= y1; y++ {
			for z := z0; z <= z1; z++ {
				for x := x0; x <= x1; x++ {
					if !yield(Vec3{x, y, z}) {
						return
					}
				}
			}
		}
	}
}

// Line yields a 26-connected 3D Bresenham line from a to b, both ends included.
func Line(a, b Vec3) iter.Seq[Vec3] {
	return func(yield func(Vec3) bool) {
		dx, dy, dz := abs(b.X-a.X), abs(b.Y-a.Y), abs(b.Z-a.Z)
		sx, sy, sz := sign(b.X-a.X), sign(b.Y-a.Y), sign(b.Z-a.Z)
		p := a
		if !yield(p) {
			return
		}
		switch {
		case dx >= dy && dx >= dz:
			e1, e2 := 2*dy-dx, 2*dz-dx
			for i := 0; i < dx; i++ {
				if e1 > 0 {
					p.Y += sy
					e1 -= 2 * dx
				}
				if e2 > 0 {
					p.Z += sz
					e2 -= 2 * dx
				}
				e1 += 2 * dy
				e2 += 2 * dz
				p.X += sx
				if !yield(p) {
					return
				}
			}
		case dy >= dx && dy >= dz:
			e1, e2 := 2*dx-dy, 2*dz-dy
			for i := 0; i < dy; i++ {
				if e1 > 0 {
					p.X += sx
					e1 -= 2 * dy
				}
				if e2 > 0 {
					p.Z += sz
					e2 -= 2 * dy
				}
				e1 += 2 * dx
				e2 += 2 * dz
				p.Y += sy
				if !yield(p) {
					return
				}
			}
		default:
			e1, e2 := 2*dy-dz, 2*dx-dz
			for i := 0; i < dz; i++ {
				if e1 > 0 {
					p.Y += sy
					e1 -= 2 * dz
				}
				if e2 > 0 {
					p.X += sx
					e2 -= 2 * dz
				}
				e1 += 2 * dy
				e2 += 2 * dx
				p.Z += sz
				if !yield(p) {
					return
				}
			}
		}
	}
}

// InDisc reports whether (x,z) lies in the disc fitted into [x0,x1]x[z0,z1].
func InDisc(x, z, x0, z0, x1, z1 int) bool {
	if x < x0 || x > x1 || z < z0 || z > z1 {
		return false
	}
	cx := float64(x0+x1) / 2
	cz := float64(z0+z1) / 2
	rx := float64(x1-x0)/2 + 0.5
	rz := float64(z1-z0)/2 + 0.5
	fx := (float64(x) - cx) / rx
	fz := (float64(z) - cz) / rz
	return fx*fx+fz*fz <= 1.0
}

func onDiscEdge(x, z, x0, z0, x1, z1 int) bool {
	if !InDisc(x, z, x0, z0, x1, z1) {
		return false
	}
	return !InDisc(x+1, z, x0, z0, x1, z1) || !InDisc(x-1, z, x0, z0, x1, z1) ||
		!InDisc(x, z+1, x0, z0, x1, z1) || !InDisc(x, z-1, x0, z0, x1, z1)
}

// Cylinder yields the vertical cylinder that fits the box spanned by a and b.
func Cylinder(a, b Vec3, mode CylinderMode) iter.Seq[Vec3] {
	x0, x1 := order(a.X, b.X)
	y0, y1 := order(a.Y, b.Y)
	z0, z1 := order(a.Z, b.Z)
	return func(yield func(Vec3) bool) {
		for y := y0; y <= y1; y++ {
			capped := y == y0 || y == y1
			for z := z0; z <= z1; z++ {
				for x := x0; x <= x1; x++ {
					if !InDisc(x, z, x0, z0, x1, z1) {
						continue
					}
					switch mode {
					case Hollow:
						if !capped && !onDiscEdge(x, z, x0, z0, x1, z1) {
							continue
						}
					case Tube:
						if !onDiscEdge(x, z, x0, z0, x1, z1) {
							continue
						}
					}
					if !yield(Vec3{x, y, z}) {
						return
					}
				}
			}
		}
	}
}

// Disc is a one-block-thick solid cylinder of the given radius centred on c.
func Disc(c Vec3, radius int) iter.Seq[Vec3] {
	return Cylinder(c.Offset(-radius, 0, -radius), c.Offset(radius, 0, radius), Solid)
}

// Ring is the one-block-thick outline of Disc(c, radius).
func Ring(c Vec3, radius int) iter.Seq[Vec3] {
	return Cylinder(c.Offset(-radius, 0, -radius), c.Offset(radius, 0, radius), Tube)
}

// Pyramid yields a square pyramid whose base width is 2*height-1.
func Pyramid(origin Vec3, height int, hollow bool) iter.Seq[Vec3] {
	return func(yield func(Vec3) bool) {
		for y := 0; y < height; y++ {
			lo := -height + y + 1
			hi := height - y - 1
			for z := lo; z <= hi; z++ {
				for x := lo; x <= hi; x++ {
					if hollow && abs(x) != hi && abs(z) != hi {
						continue
					}
					if !yield(origin.Offset(x, y, z)) {
						return
					}
				}
			}
		}
	}
}

// Cone yields stacked discs whose radius shrinks by one per layer. A hollow
// cone drops every cell that has another cone cell directly above it.
func Cone(origin Vec3, height int, hollow bool) iter.Seq[Vec3] {
	return func(yield func(Vec3) bool) {
		for y := 0; y < height; y++ {
			r := height - y - 1
			top := origin.Up(y + 1)
			r2 := r - 1
			for p := range Disc(origin.Up(y), r) {
				if hollow && y+1 < height && r2 >= 0 && InDisc(p.X, p.Z, top.X-r2, top.Z-r2, top.X+r2, top.Z+r2) {
					continue
				}
				if !yield(p) {
					return
				}
			}
		}
	}
}

// RingPath returns the cells of Ring(c, radius) in angular order, starting at
// the cell nearest direction start and travelling around the ring in the
// sense that first heads toward direction toward.
func RingPath(c Vec3, radius int, start, toward Dir) []Vec3 {
	cells := Collect(Ring(c, radius))
	if len(cells) == 0 {
		return nil
	}
	base := dirAngle(start)
	angle := func(p Vec3) float64 {
		a := math.Atan2(float64(p.Z-c.Z), float64(p.X-c.X)) - base
		for a < -math.Pi {
			a += 2 * math.Pi
		}
		for a >= math.Pi {
			a -= 2 * math.Pi
		}
		return a
	}
	sort.SliceStable(cells, func(i, j int) bool {
		ai, aj := angle(cells[i]), angle(cells[j])
		if ai != aj {
			return ai < aj
		}
		if cells[i].X != cells[j].X {
			return cells[i].X < cells[j].X
		}
		return cells[i].Z < cells[j].Z
	})
	best := 0
	for i, p := range cells {
		if math.Abs(angle(p)) < math.Abs(angle(cells[best])) {
			best = i
		}
	}
	path := append(append([]Vec3{}, cells[best:]...), cells[:best]...)
	if len(path) > 2 {
		step := toward.Step()
		d := path[1].Sub(path[0])
		if d.X*step.X+d.Z*step.Z < 0 {
			// reverse everything after the start cell
			rest := path[1:]
			for i, j := 0, len(rest)-1; i < j; i, j = i+1, j-1 {
				rest[i], rest[j] = rest[j], rest[i]
			}
		}
	}
	return path
}

// FourConnected inserts a corner cell between diagonal neighbours so every
// consecutive pair of the result shares a face. Inserted cells take the Y of
// the cell before them.
func FourConnected(path []Vec3) []Vec3 {
	if len(path) < 2 {
		return path
	}
	out := make([]Vec3, 0, len(path)+len(path)/4)
	out = append(out, path[0])
	for i := 1; i < len(path); i++ {
		prev, next := path[i-1], path[i]
		if prev.X != next.X && prev.Z != next.Z {
			out = append(out, Vec3{X: next.X, Y: prev.Y, Z: prev.Z})
		}
		out = append(out, next)
	}
	return out
}

func dirAngle(d Dir) float64 {
	switch d {
	case East:
		return 0
	case South:
		return math.Pi / 2
	case West:
		return math.Pi
	default:
		return -math.Pi / 2
	}
}

// Collect drains a shape into a slice.
func Collect(s iter.Seq[Vec3]) []Vec3 {
	var out []Vec3
	for p := range s {
		out = append(out, p)
	}
	return out
}

func order(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
