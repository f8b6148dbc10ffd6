package access

import (
	"fmt"

	"github.com/zyedidia/generic/mapset"

	"towerkeep.ai/internal/sim/layout"
)

type Options struct {
	EntranceID string
	CastleID   string
	// MinBridgeCrossings is the fewest bridges a visitor must cross to
	// reach the castle.
	MinBridgeCrossings int
}

type Report struct {
	// Walkable and Solved hold bridge counts from the ground without and
	// with the puzzle bridges.
	Walkable map[string]int
	Solved   map[string]int
	// GroundLevel lists the nodes reachable without crossing a bridge.
	GroundLevel []string
	// CastleCrossings is the castle's distance in the solved graph.
	CastleCrossings int
}

// Validate checks, in order: the entrance, stray ground access, the castle,
// then every bridge. The first broken rule is returned as a *Violation.
func Validate(elements []layout.Element, opts Options) (Report, error) {
	if opts.MinBridgeCrossings < 1 {
		opts.MinBridgeCrossings = 1
	}
	walk := Build(elements, false)
	solved := Build(elements, true)
	rep := Report{
		Walkable: walk.Crossings(layout.GroundID),
		Solved:   solved.Crossings(layout.GroundID),
	}
	for _, id := range walk.Nodes() {
		if id != layout.GroundID && rep.Walkable[id] == 0 {
			rep.GroundLevel = append(rep.GroundLevel, id)
		}
	}

	byID := make(map[string]*layout.Element, len(elements))
	towers := mapset.New[string]()
	for i := range elements {
		el := &elements[i]
		byID[el.ID] = el
		if el.Kind == layout.KindTower {
			towers.Put(el.ID)
		}
	}

	// (a) entrance
	ent := byID[opts.EntranceID]
	if ent == nil || ent.Kind != layout.KindTower {
		return rep, &Violation{Kind: MissingEntrance, ElementID: opts.EntranceID, Detail: "no such tower"}
	}
	if d := rep.Walkable[ent.ID]; d != 0 {
		return rep, &Violation{Kind: MissingEntrance, ElementID: ent.ID, Detail: fmt.Sprintf("needs %d bridges from the ground", d)}
	}

	// (b) no other tower at ground level
	for _, id := range rep.GroundLevel {
		if id != ent.ID && towers.Has(id) {
			return rep, &Violation{Kind: UnintendedGroundAccess, ElementID: id, Detail: "tower reachable without a bridge"}
		}
	}

	// (c) castle
	castle := byID[opts.CastleID]
	if castle == nil || castle.Kind != layout.KindCastle {
		return rep, &Violation{Kind: UnreachableCastle, ElementID: opts.CastleID, Detail: "no such castle"}
	}
	if d := rep.Walkable[castle.ID]; d != Unreachable && d < opts.MinBridgeCrossings {
		return rep, &Violation{Kind: UnintendedGroundAccess, ElementID: castle.ID,
			Detail: fmt.Sprintf("walkable after %d bridges, want >= %d", d, opts.MinBridgeCrossings)}
	}
	rep.CastleCrossings = rep.Solved[castle.ID]
	if d := rep.CastleCrossings; d == Unreachable || d < opts.MinBridgeCrossings {
		return rep, &Violation{Kind: UnreachableCastle, ElementID: castle.ID,
			Detail: fmt.Sprintf("solved distance %d, want >= %d", d, opts.MinBridgeCrossings)}
	}

	// (d) bridges
	for _, el := range elements {
		if el.Kind != layout.KindBridge {
			continue
		}
		if len(el.Connects) != 2 || el.Connects[0] == el.Connects[1] {
			return rep, &Violation{Kind: DanglingBridge, ElementID: el.ID, Detail: fmt.Sprintf("endpoints %v", el.Connects)}
		}
		for _, end := range el.Connects {
			if byID[end] == nil {
				return rep, &Violation{Kind: DanglingBridge, ElementID: el.ID, Detail: fmt.Sprintf("unknown endpoint %q", end)}
			}
			if rep.Solved[end] == Unreachable {
				return rep, &Violation{Kind: DanglingBridge, ElementID: el.ID, Detail: fmt.Sprintf("endpoint %s unreachable", end)}
			}
		}
	}
	return rep, nil
}

// ValidateLayout runs Validate with the layout's own entrance and castle.
func ValidateLayout(l *layout.Layout, minCrossings int) (Report, error) {
	return Validate(l.Elements, Options{EntranceID: l.EntranceID, CastleID: l.CastleID, MinBridgeCrossings: minCrossings})
}
