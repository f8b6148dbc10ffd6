package emit

import (
	"iter"

	"github.com/zyedidia/generic/mapset"

	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/templates"
)

// Batch is a run of consecutive edits holding at most BatchSize cells.
type Batch struct {
	Seq   int
	Edits []templates.Edit
	Cells int
}

func (b Batch) First() geom.Vec3 {
	if len(b.Edits) == 0 {
		return geom.Vec3{}
	}
	return b.Edits[0].Pos
}

// Last is the final cell the batch writes.
func (b Batch) Last() geom.Vec3 {
	if len(b.Edits) == 0 {
		return geom.Vec3{}
	}
	e := b.Edits[len(b.Edits)-1]
	return e.Pos.Offset(e.Len()-1, 0, 0)
}

func (b Batch) coords() mapset.Set[geom.Vec3] {
	s := mapset.New[geom.Vec3]()
	for _, e := range b.Edits {
		for c := range e.Cells() {
			s.Put(c.Pos)
		}
	}
	return s
}

// Batches cuts seq into batches of size cells, splitting spans that
// straddle a boundary. Order is preserved.
func Batches(seq iter.Seq[templates.Edit], size int) iter.Seq[Batch] {
	if size < 1 {
		size = 1
	}
	return func(yield func(Batch) bool) {
		cur := Batch{}
		for e := range seq {
			pos, n := e.Pos, e.Len()
			for n > 0 {
				take := min(size-cur.Cells, n)
				cur.Edits = append(cur.Edits, templates.Edit{Pos: pos, Block: e.Block, Span: take})
				cur.Cells += take
				pos, n = pos.Offset(take, 0, 0), n-take
				if cur.Cells == size {
					if !yield(cur) {
						return
					}
					cur = Batch{Seq: cur.Seq + 1}
				}
			}
		}
		if cur.Cells > 0 {
			yield(cur)
		}
	}
}

// Coalesce drops every write that a later write to the same cell
// supersedes, then re-compacts. The final world state is unchanged.
func Coalesce(seq iter.Seq[templates.Edit]) iter.Seq[templates.Edit] {
	return func(yield func(templates.Edit) bool) {
		var cells []templates.Edit
		last := map[geom.Vec3]int{}
		for c := range templates.Cells(seq) {
			last[c.Pos] = len(cells)
			cells = append(cells, c)
		}
		live := func(yield func(templates.Edit) bool) {
			for i, c := range cells {
				if last[c.Pos] == i && !yield(c) {
					return
				}
			}
		}
		for e := range templates.Compact(live) {
			if !yield(e) {
				return
			}
		}
	}
}
