package templates

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"

	"towerkeep.ai/internal/sim/logic/geom"
)

// Edit writes Block at Span consecutive cells starting at Pos along +X.
type Edit struct {
	Pos   geom.Vec3
	Block Block
	Span  int
}

// Len is the number of cells the edit covers.
func (e Edit) Len() int {
	if e.Span < 1 {
		return 1
	}
	return e.Span
}

// Cells expands a span into single-cell edits.
func (e Edit) Cells() iter.Seq[Edit] {
	return func(yield func(Edit) bool) {
		for i := 0; i < e.Len(); i++ {
			if !yield(Edit{Pos: e.Pos.Offset(i, 0, 0), Block: e.Block, Span: 1}) {
				return
			}
		}
	}
}

func (e Edit) String() string {
	if e.Len() == 1 {
		return fmt.Sprintf("%s=%s", e.Pos, e.Block)
	}
	return fmt.Sprintf("%s+%d=%s", e.Pos, e.Len(), e.Block)
}

// Compact merges consecutive edits of the same block that continue along +X
// into one span.
func Compact(seq iter.Seq[Edit]) iter.Seq[Edit] {
	return func(yield func(Edit) bool) {
		var cur Edit
		have := false
		for e := range seq {
			if have && e.Block == cur.Block && e.Pos.Y == cur.Pos.Y && e.Pos.Z == cur.Pos.Z && e.Pos.X == cur.Pos.X+cur.Len() {
				cur.Span = cur.Len() + e.Len()
				continue
			}
			if have && !yield(cur) {
				return
			}
			cur, have = e, true
			cur.Span = cur.Len()
		}
		if have {
			yield(cur)
		}
	}
}

// Cells flattens every span of seq into single-cell edits.
func Cells(seq iter.Seq[Edit]) iter.Seq[Edit] {
	return func(yield func(Edit) bool) {
		for e := range seq {
			for c := range e.Cells() {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// CountCells is the number of cells seq writes, spans included.
func CountCells(seq iter.Seq[Edit]) int {
	n := 0
	for e := range seq {
		n += e.Len()
	}
	return n
}

// Digest hashes the cell-level content of seq, so a compacted and an
// uncompacted sequence of the same writes share a digest.
func Digest(seq iter.Seq[Edit]) string {
	h := sha256.New()
	for e := range Cells(seq) {
		fmt.Fprintf(h, "%d,%d,%d,%s,%s\n", e.Pos.X, e.Pos.Y, e.Pos.Z, e.Block, e.Block.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Concat chains sequences in order.
func Concat(seqs ...iter.Seq[Edit]) iter.Seq[Edit] {
	return func(yield func(Edit) bool) {
		for _, s := range seqs {
			for e := range s {
				if !yield(e) {
					return
				}
			}
		}
	}
}
