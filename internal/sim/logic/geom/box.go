package geom

import "fmt"

// Rect is a horizontal axis-aligned rectangle: cells [X, X+DX) x [Z, Z+DZ).
type Rect struct {
	X, Z   int
	DX, DZ int
}

func RectAround(cx, cz, radius int) Rect {
	return Rect{X: cx - radius, Z: cz - radius, DX: 2*radius + 1, DZ: 2*radius + 1}
}

func (r Rect) Empty() bool { return r.DX <= 0 || r.DZ <= 0 }
func (r Rect) MaxX() int   { return r.X + r.DX - 1 }
func (r Rect) MaxZ() int   { return r.Z + r.DZ - 1 }
func (r Rect) Area() int   { return r.DX * r.DZ }

func (r Rect) Center() (int, int) {
	return r.X + (r.DX-1)/2, r.Z + (r.DZ-1)/2
}

func (r Rect) Contains(x, z int) bool {
	return x >= r.X && x < r.X+r.DX && z >= r.Z && z < r.Z+r.DZ
}

// ContainsRect reports whether o lies entirely inside r.
func (r Rect) ContainsRect(o Rect) bool {
	if o.Empty() {
		return false
	}
	return o.X >= r.X && o.Z >= r.Z && o.MaxX() <= r.MaxX() && o.MaxZ() <= r.MaxZ()
}

func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X <= o.MaxX() && o.X <= r.MaxX() && r.Z <= o.MaxZ() && o.Z <= r.MaxZ()
}

// Grow expands r by n cells on every side (n may be negative).
func (r Rect) Grow(n int) Rect {
	return Rect{X: r.X - n, Z: r.Z - n, DX: r.DX + 2*n, DZ: r.DZ + 2*n}
}

func (r Rect) String() string {
	return fmt.Sprintf("[x=%d..%d z=%d..%d]", r.X, r.MaxX(), r.Z, r.MaxZ())
}

// Box is an axis-aligned 3D box given by its minimum corner and size.
type Box struct {
	Origin Vec3
	Size   Vec3
}

func (b Box) Empty() bool { return b.Size.X <= 0 || b.Size.Y <= 0 || b.Size.Z <= 0 }
func (b Box) Max() Vec3   { return b.Origin.Add(b.Size).Sub(Vec3{1, 1, 1}) }

func (b Box) Rect() Rect {
	return Rect{X: b.Origin.X, Z: b.Origin.Z, DX: b.Size.X, DZ: b.Size.Z}
}

func (b Box) Contains(p Vec3) bool {
	m := b.Max()
	return p.X >= b.Origin.X && p.X <= m.X &&
		p.Y >= b.Origin.Y && p.Y <= m.Y &&
		p.Z >= b.Origin.Z && p.Z <= m.Z
}

func (b Box) String() string {
	return fmt.Sprintf("box%s+%s", b.Origin, b.Size)
}
