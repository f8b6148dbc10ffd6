package layout

import (
	"errors"
	"fmt"
	"log"
	"math"

	"towerkeep.ai/internal/sim/logic/blueprint"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/logic/mathx"
	"towerkeep.ai/internal/sim/terrain"
	"towerkeep.ai/internal/sim/tuning"
)

// minBasement is the lowest headroom allowed between the castle plinth and
// the castle main floor.
const minBasement = 4

type Planner struct {
	Tuning   tuning.Tuning
	Analyzer *terrain.Analyzer
	Logger   *log.Logger
}

func NewPlanner(t tuning.Tuning, logger *log.Logger) *Planner {
	return &Planner{Tuning: t, Analyzer: terrain.NewAnalyzer(t.Terrain), Logger: logger}
}

type towerSite struct {
	district District
	id       string
	x, z     int
	fp       terrain.Footprint
	plane    terrain.BuildPlane
}

// Plan positions every element inside area using hm for ground heights.
func (p *Planner) Plan(area geom.Box, hm *terrain.HeightMap) (*Layout, error) {
	lt := p.Tuning.Layout
	seed := p.Tuning.Seed
	rect := area.Rect()
	if rect.Empty() {
		return nil, &terrain.InsufficientAreaError{Element: "build area", Footprint: terrain.RectFootprint(rect), Area: rect}
	}
	side := geom.South
	if p.Tuning.AccessSide != "" {
		d, err := geom.ParseDir(p.Tuning.AccessSide)
		if err != nil {
			return nil, fmt.Errorf("access side: %w", err)
		}
		side = d
	}

	out := &Layout{Area: area}
	cx, cz := rect.Center()
	offX := int(math.Round(lt.AnchorFraction * float64(rect.DX) / 2))
	offZ := int(math.Round(lt.AnchorFraction * float64(rect.DZ) / 2))

	// 1. Tower anchors, one per district. Jitter only ever pushes an anchor
	// outward so it cannot turn a feasible layout into an overlapping one.
	var towers [4]towerSite
	maxBase := math.MinInt
	for d := NW; d <= NE; d++ {
		sx, sz := d.Signs()
		jx := mathx.AbsInt(mathx.Jitter(mathx.Hash2(seed, int(d), 0), lt.Jitter))
		jz := mathx.AbsInt(mathx.Jitter(mathx.Hash2(seed, int(d), 1), lt.Jitter))
		ts := towerSite{
			district: d,
			id:       "tower-" + d.String(),
			x:        cx + sx*(offX+jx),
			z:        cz + sz*(offZ+jz),
		}
		ts.fp = terrain.DiscFootprint(ts.x, ts.z, lt.RoofRadius)
		plane, err := p.analyze(hm, rect, ts.id, ts.fp)
		if err != nil {
			return nil, err
		}
		ts.plane = plane
		if w := plane.Steep(); w != "" {
			out.Warnings = append(out.Warnings, ts.id+": "+w)
		}
		maxBase = mathx.MaxInt(maxBase, plane.Elevation)
		towers[d] = ts
	}
	for i := 0; i < len(towers); i++ {
		for j := i + 1; j < len(towers); j++ {
			if towers[i].fp.Rect.Grow(lt.MinGap).Intersects(towers[j].fp.Rect) {
				return nil, &LayoutInfeasibleError{Reason: "tower footprints overlap", A: towers[i].id, B: towers[j].id}
			}
		}
	}

	// 2. Castle at the anchor centroid, raised above every tower base.
	sumX, sumZ := 0, 0
	for _, t := range towers {
		sumX += t.x
		sumZ += t.z
	}
	ccx, ccz := mathx.FloorDiv(sumX, 4), mathx.FloorDiv(sumZ, 4)
	const castleID = "castle"
	castleFP := terrain.RectFootprint(geom.RectAround(ccx, ccz, lt.CastleHalf))
	castlePlane, err := p.analyze(hm, rect, castleID, castleFP)
	if err != nil {
		return nil, err
	}
	if w := castlePlane.Steep(); w != "" {
		out.Warnings = append(out.Warnings, castleID+": "+w)
	}
	for _, t := range towers {
		if t.fp.Rect.Grow(lt.MinGap).Intersects(castleFP.Rect) {
			return nil, &LayoutInfeasibleError{Reason: "tower footprint overlaps castle", A: t.id, B: castleID}
		}
	}
	castleBase := mathx.MaxInt(castlePlane.Elevation, maxBase+1) + lt.Clearance

	deck := maxBase + lt.BaseHeight
	storiesH := lt.Stories * lt.StoryHeight
	if deck+storiesH < castleBase+minBasement {
		deck = castleBase + minBasement - storiesH
		out.Warnings = append(out.Warnings, fmt.Sprintf("deck raised to y=%d to clear the castle plinth", deck))
	}
	roofY := deck + storiesH
	out.Deck, out.RoofY, out.CastleID = deck, roofY, castleID

	// 3. Entrance: the tower nearest the access side, ties by district order.
	entrance := NW
	best := math.MaxInt
	for _, t := range towers {
		if d := sideDistance(rect, side, t.x, t.z); d < best {
			best, entrance = d, t.district
		}
	}

	elems := make([]Element, 0, 11)
	for _, t := range towers {
		facing := geom.DirToward(t.x, t.z, ccx, ccz)
		tw := &Tower{
			District:    t.district,
			Index:       int(t.district),
			Anchor:      geom.V(t.x, t.plane.Elevation, t.z),
			Plane:       t.plane,
			Deck:        deck,
			RoofY:       roofY,
			Entrance:    t.district == entrance,
			ShaftRadius: lt.ShaftRadius,
			RoomRadius:  lt.RoomRadius,
			RoofRadius:  lt.RoofRadius,
			Stories:     lt.Stories,
			StoryHeight: lt.StoryHeight,
			RoofHeight:  lt.RoofHeight,
		}
		for s := 0; s < lt.Stories; s++ {
			tw.Interiors = append(tw.Interiors, pickInterior(seed, tw.Index, s, tw.Entrance))
		}
		elems = append(elems, Element{
			Kind:      KindTower,
			ID:        t.id,
			Footprint: t.fp,
			Base:      t.plane.Elevation,
			Height:    roofY + lt.RoofHeight - t.plane.Elevation + 1,
			Rotation:  blueprint.QuarterTurnsFrom(geom.North, facing),
			Tower:     tw,
		})
	}
	tower := func(d District) *Element { return &elems[d] }

	roofTower := towers[entrance.Opposite()]
	csx, csz := roofTower.district.Signs()
	doorAt := geom.V(ccx+csx*lt.CastleHalf, roofY, ccz+csz*lt.CastleHalf)
	elems = append(elems, Element{
		Kind:      KindCastle,
		ID:        castleID,
		Footprint: castleFP,
		Base:      castleBase,
		Height:    roofY + lt.CastleHeight + lt.CastleRoofHeight - castleBase,
		Rotation:  blueprint.QuarterTurnsFrom(geom.North, geom.DirToward(ccx, ccz, doorAt.X, doorAt.Z)),
		Castle: &Castle{
			Center:     geom.V(ccx, castleBase, ccz),
			Plane:      castlePlane,
			Half:       lt.CastleHalf,
			FloorY:     roofY,
			WallHeight: lt.CastleHeight,
			RoofHeight: lt.CastleRoofHeight,
			DoorAt:     doorAt,
		},
	})
	castleIdx := len(elems) - 1

	// 4. Bridges. Tower pairs whose span would cut through the castle are
	// dropped; the castle itself is only reached from a roof.
	hw := lt.BridgeWidth / 2
	keepOut := castleFP.Rect.Grow(hw + lt.MinGap)
	var ring []int
	for i := 0; i < len(towers); i++ {
		for j := i + 1; j < len(towers); j++ {
			a, b := towers[i], towers[j]
			if crosses(a.x, a.z, b.x, b.z, keepOut) {
				p.logf("layout: skip bridge %s-%s (crosses castle)", a.district, b.district)
				continue
			}
			id := "bridge-" + a.district.String() + "-" + b.district.String()
			from, to := spanEnds(a.x, a.z, b.x, b.z, lt.RoomRadius, lt.RoomRadius, deck)
			elems = append(elems, bridgeElement(id, a.id, b.id, from, to, lt, false))
			ring = append(ring, len(elems)-1)
			tower(a.district).Tower.Doors = append(tower(a.district).Tower.Doors, Door{At: from, Facing: geom.DirToward(a.x, a.z, b.x, b.z), Via: id})
			tower(b.district).Tower.Doors = append(tower(b.district).Tower.Doors, Door{At: to, Facing: geom.DirToward(b.x, b.z, a.x, a.z), Via: id})
			addConnect(tower(a.district), id)
			addConnect(tower(b.district), id)
		}
	}
	if len(ring) > 0 {
		open := ring[mathx.Hash2(seed, 97, len(ring))%uint64(len(ring))]
		for _, i := range ring {
			elems[i].Bridge.Roofed = i != open
		}
	}

	{
		t := roofTower
		id := "bridge-" + t.district.String() + "-castle"
		from, _ := spanEnds(t.x, t.z, doorAt.X, doorAt.Z, lt.RoofRadius, 0, roofY)
		to := doorAt
		if walk := mathx.MaxInt(mathx.AbsInt(to.X-from.X), mathx.AbsInt(to.Z-from.Z)); walk <= lt.PuzzleGap+1 {
			return nil, &LayoutInfeasibleError{Reason: fmt.Sprintf("puzzle bridge span %d too short for gap %d", walk, lt.PuzzleGap), A: id}
		}
		el := bridgeElement(id, t.id, castleID, from, to, lt, true)
		elems = append(elems, el)
		tw := tower(t.district)
		tw.Tower.RoofDoors = append(tw.Tower.RoofDoors, Door{At: from, Facing: geom.DirToward(t.x, t.z, ccx, ccz), Via: id})
		addConnect(tw, id)
		addConnect(&elems[castleIdx], id)
		elems[castleIdx].Castle.DoorVia = id
		out.PuzzleBridgeID = id
	}

	// 5. Entrance stairway, spiralling outward from the access side.
	et := towers[entrance]
	radius := lt.RoomRadius + 1
	stairFP := terrain.DiscFootprint(et.x, et.z, radius)
	if !rect.ContainsRect(stairFP.Rect) {
		return nil, &terrain.InsufficientAreaError{Element: "stairway", Footprint: stairFP, Area: rect}
	}
	st := &Stairway{
		TowerID:      et.id,
		Center:       geom.V(et.x, et.plane.Elevation, et.z),
		Radius:       radius,
		Start:        side,
		Toward:       awayFrom(side, et.x, et.z, ccx, ccz),
		FromY:        et.plane.Elevation,
		ToY:          deck,
		LandingEvery: lt.LandingEvery,
	}
	steps := st.Steps()
	top := steps[len(steps)-1]
	stairID := "stairway-" + et.district.String()
	door, _ := spanEnds(et.x, et.z, top.X, top.Z, lt.RoomRadius, 0, deck)
	tower(entrance).Tower.Doors = append(tower(entrance).Tower.Doors, Door{At: door, Facing: geom.DirToward(et.x, et.z, top.X, top.Z), Via: stairID})
	addConnect(tower(entrance), stairID)
	elems = append(elems, Element{
		Kind:      KindEntrance,
		ID:        stairID,
		Footprint: stairFP,
		Base:      st.FromY,
		Height:    st.ToY - st.FromY + 4,
		Rotation:  blueprint.QuarterTurnsFrom(geom.North, side),
		Connects:  []string{GroundID, et.id},
		Stairway:  st,
	})

	out.Elements = elems
	out.EntranceID = et.id
	p.logf("layout: entrance=%s deck=%d roof=%d castle=%d elements=%d warnings=%d", out.EntranceID, deck, roofY, castleBase, len(elems), len(out.Warnings))
	return out, nil
}

func (p *Planner) analyze(hm *terrain.HeightMap, area geom.Rect, id string, fp terrain.Footprint) (terrain.BuildPlane, error) {
	if !area.ContainsRect(fp.Rect) {
		return terrain.BuildPlane{}, &terrain.InsufficientAreaError{Element: id, Footprint: fp, Area: area}
	}
	plane, err := p.Analyzer.Analyze(hm, fp)
	if err != nil {
		var ia *terrain.InsufficientAreaError
		if errors.As(err, &ia) {
			ia.Element = id
			return plane, ia
		}
		return plane, fmt.Errorf("%s: %w", id, err)
	}
	return plane, nil
}

func (p *Planner) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}

// pickInterior keeps the first entrance story nostalgic and hashes the rest.
func pickInterior(seed int64, tower, story int, entrance bool) Interior {
	if entrance && story == 0 {
		return Nostalgic
	}
	return Interior(mathx.Hash2(seed, tower, story) % uint64(interiorCount))
}

func sideDistance(r geom.Rect, side geom.Dir, x, z int) int {
	switch side {
	case geom.North:
		return z - r.Z
	case geom.South:
		return r.MaxZ() - z
	case geom.East:
		return r.MaxX() - x
	default:
		return x - r.X
	}
}

// awayFrom picks the tangent direction at the start side that leads away
// from the castle.
func awayFrom(side geom.Dir, x, z, cx, cz int) geom.Dir {
	if side == geom.North || side == geom.South {
		if cx > x {
			return geom.West
		}
		return geom.East
	}
	if cz > z {
		return geom.North
	}
	return geom.South
}

// spanEnds returns the points inset by fromInset and toInset along the
// straight line between two columns, at height y.
func spanEnds(ax, az, bx, bz, fromInset, toInset, y int) (geom.Vec3, geom.Vec3) {
	dx, dz := float64(bx-ax), float64(bz-az)
	l := math.Hypot(dx, dz)
	if l == 0 {
		return geom.V(ax, y, az), geom.V(bx, y, bz)
	}
	ux, uz := dx/l, dz/l
	from := geom.V(ax+int(math.Round(ux*float64(fromInset))), y, az+int(math.Round(uz*float64(fromInset))))
	to := geom.V(bx-int(math.Round(ux*float64(toInset))), y, bz-int(math.Round(uz*float64(toInset))))
	return from, to
}

func crosses(ax, az, bx, bz int, r geom.Rect) bool {
	for c := range geom.Line(geom.V(ax, 0, az), geom.V(bx, 0, bz)) {
		if r.Contains(c.X, c.Z) {
			return true
		}
	}
	return false
}

func bridgeElement(id, fromID, toID string, from, to geom.Vec3, lt tuning.Layout, puzzle bool) Element {
	hw := lt.BridgeWidth / 2
	minX, maxX := mathx.MinInt(from.X, to.X), mathx.MaxInt(from.X, to.X)
	minZ, maxZ := mathx.MinInt(from.Z, to.Z), mathx.MaxInt(from.Z, to.Z)
	fp := terrain.RectFootprint(geom.Rect{X: minX - hw, Z: minZ - hw, DX: maxX - minX + 1 + 2*hw, DZ: maxZ - minZ + 1 + 2*hw})
	b := &Bridge{
		FromID:   fromID,
		ToID:     toID,
		From:     from,
		To:       to,
		Width:    lt.BridgeWidth,
		ArchRise: lt.ArchRise,
		Roofed:   !puzzle,
		Puzzle:   puzzle,
	}
	if puzzle {
		b.PuzzleGap = lt.PuzzleGap
	}
	return Element{
		Kind:      KindBridge,
		ID:        id,
		Footprint: fp,
		Base:      from.Y - lt.ArchRise - 1,
		Height:    lt.ArchRise + 6,
		Rotation:  blueprint.QuarterTurnsFrom(geom.North, geom.DirToward(from.X, from.Z, to.X, to.Z)),
		Connects:  []string{fromID, toID},
		Bridge:    b,
	}
}

func addConnect(el *Element, id string) {
	el.Connects = append(el.Connects, id)
}
