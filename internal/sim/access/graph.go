// Package access checks the traversal topology of a layout: one tower
// reachable from the ground on foot, the others only over bridges, and the
// castle only across the puzzle bridge.
package access

import (
	"sort"

	"github.com/zyedidia/generic/mapset"

	"towerkeep.ai/internal/sim/layout"
)

// Unreachable is the distance reported for nodes the search never reaches.
const Unreachable = -1

type Edge struct {
	To     string
	Via    string
	Weight int
}

// Graph links element ids (plus layout.GroundID). Stairways and ground doors
// weigh 0, bridges weigh 1.
type Graph struct {
	nodes mapset.Set[string]
	adj   map[string][]Edge
}

// Build derives the graph from the elements' connection lists. Puzzle
// bridges are only walkable when solved is set.
func Build(elements []layout.Element, solved bool) *Graph {
	g := &Graph{nodes: mapset.New[string](), adj: map[string][]Edge{}}
	g.nodes.Put(layout.GroundID)
	for _, el := range elements {
		g.nodes.Put(el.ID)
	}
	for _, el := range elements {
		switch el.Kind {
		case layout.KindBridge:
			if el.Bridge != nil && el.Bridge.Puzzle && !solved {
				continue
			}
			if len(el.Connects) == 2 {
				g.link(el.Connects[0], el.Connects[1], el.ID, 1)
			}
		case layout.KindEntrance:
			if len(el.Connects) == 2 {
				g.link(el.Connects[0], el.Connects[1], el.ID, 0)
			}
		case layout.KindTower:
			if el.Tower != nil && el.Tower.GroundDoor {
				g.link(layout.GroundID, el.ID, el.ID, 0)
			}
		}
	}
	return g
}

func (g *Graph) link(a, b, via string, w int) {
	if !g.nodes.Has(a) || !g.nodes.Has(b) || a == b {
		return
	}
	g.adj[a] = append(g.adj[a], Edge{To: b, Via: via, Weight: w})
	g.adj[b] = append(g.adj[b], Edge{To: a, Via: via, Weight: w})
}

func (g *Graph) Has(id string) bool { return g.nodes.Has(id) }

func (g *Graph) Edges(id string) []Edge { return g.adj[id] }

// Nodes returns every node id, sorted.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, g.nodes.Size())
	g.nodes.Each(func(id string) { out = append(out, id) })
	sort.Strings(out)
	return out
}

// Crossings runs a 0-1 BFS from src and returns, per node, the minimum
// number of bridges crossed to reach it (Unreachable when none).
func (g *Graph) Crossings(src string) map[string]int {
	dist := make(map[string]int, g.nodes.Size())
	g.nodes.Each(func(id string) { dist[id] = Unreachable })
	if !g.nodes.Has(src) {
		return dist
	}
	dist[src] = 0
	// deque as front (reversed) + back slices
	var front, back []string
	back = append(back, src)
	for len(front)+len(back) > 0 {
		var cur string
		if n := len(front); n > 0 {
			cur, front = front[n-1], front[:n-1]
		} else {
			cur, back = back[0], back[1:]
		}
		for _, e := range g.adj[cur] {
			nd := dist[cur] + e.Weight
			if d := dist[e.To]; d != Unreachable && d <= nd {
				continue
			}
			dist[e.To] = nd
			if e.Weight == 0 {
				front = append(front, e.To)
			} else {
				back = append(back, e.To)
			}
		}
	}
	return dist
}
