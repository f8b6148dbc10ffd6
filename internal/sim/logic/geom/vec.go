// Package geom holds the integer voxel geometry shared by the planner and the
// template engine: vectors, boxes and the shape generators templates are built
// from. Shapes are iter.Seq values so they can be replayed without buffering.
package geom

import "fmt"

type Vec3 struct {
	X, Y, Z int
}

func V(x, y, z int) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(k int) Vec3 {
	return Vec3{v.X * k, v.Y * k, v.Z * k}
}

func (v Vec3) Up(dy int) Vec3 {
	return Vec3{v.X, v.Y + dy, v.Z}
}

func (v Vec3) WithY(y int) Vec3 {
	return Vec3{v.X, y, v.Z}
}

func (v Vec3) Offset(dx, dy, dz int) Vec3 {
	return Vec3{v.X + dx, v.Y + dy, v.Z + dz}
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}

// Dir is a horizontal cardinal direction. Negative Z is north, positive X is east.
type Dir int

const (
	North Dir = iota
	East
	South
	West
)

func (d Dir) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	default:
		return "west"
	}
}

// Step is the unit offset of d.
func (d Dir) Step() Vec3 {
	switch d {
	case North:
		return Vec3{0, 0, -1}
	case East:
		return Vec3{1, 0, 0}
	case South:
		return Vec3{0, 0, 1}
	default:
		return Vec3{-1, 0, 0}
	}
}

func (d Dir) Opposite() Dir { return (d + 2) & 3 }

// ParseDir accepts north/east/south/west (and n/e/s/w).
func ParseDir(s string) (Dir, error) {
	switch s {
	case "north", "n":
		return North, nil
	case "east", "e":
		return East, nil
	case "south", "s":
		return South, nil
	case "west", "w":
		return West, nil
	}
	return North, fmt.Errorf("unknown direction %q", s)
}

// DirToward returns the cardinal direction that best points from (fx,fz) to (tx,tz).
// Ties between axes favour the X axis.
func DirToward(fx, fz, tx, tz int) Dir {
	dx, dz := tx-fx, tz-fz
	adx, adz := dx, dz
	if adx < 0 {
		adx = -adx
	}
	if adz < 0 {
		adz = -adz
	}
	if adx >= adz {
		if dx >= 0 {
			return East
		}
		return West
	}
	if dz >= 0 {
		return South
	}
	return North
}
