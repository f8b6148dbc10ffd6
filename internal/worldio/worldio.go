// Package worldio connects the generator to a voxel world: reading the build
// area and its heightmap, and submitting batches of block edits.
package worldio

import (
	"context"

	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/templates"
	"towerkeep.ai/internal/sim/terrain"
)

// BuildArea is the box the generator may edit.
type BuildArea = geom.Box

type Reader interface {
	BuildArea(ctx context.Context) (BuildArea, error)
	// HeightMap returns the topmost solid block per column of area.
	HeightMap(ctx context.Context, area BuildArea) (*terrain.HeightMap, error)
}

// Writer applies one batch of edits atomically from the caller's point of
// view: nil means every cell was written. Failures are *TransientError or
// *FatalError.
type Writer interface {
	SubmitEdits(ctx context.Context, edits []templates.Edit) error
}

type batchKey struct{}

// WithBatch tags ctx with the emitter's batch sequence number. Every attempt
// at one batch carries the same tag, so a writer can let its peer recognise
// a resubmission.
func WithBatch(ctx context.Context, seq int) context.Context {
	return context.WithValue(ctx, batchKey{}, seq)
}

func BatchFrom(ctx context.Context) (int, bool) {
	seq, ok := ctx.Value(batchKey{}).(int)
	return seq, ok
}

// ToBlocks expands spans into one wire block per cell.
func ToBlocks(edits []templates.Edit) []protocol.Block {
	n := 0
	for _, e := range edits {
		n += e.Len()
	}
	out := make([]protocol.Block, 0, n)
	for _, e := range edits {
		state := e.Block.StateMap()
		for c := range e.Cells() {
			out = append(out, protocol.Block{X: c.Pos.X, Y: c.Pos.Y, Z: c.Pos.Z, ID: e.Block.ID, State: state, Data: e.Block.Data})
		}
	}
	return out
}

// FromBlocks is the inverse of ToBlocks, one edit per wire block.
func FromBlocks(blocks []protocol.Block) []templates.Edit {
	out := make([]templates.Edit, 0, len(blocks))
	for _, b := range blocks {
		blk := templates.Block{ID: b.ID, Data: b.Data}
		for k, v := range b.State {
			blk = blk.WithState(k, v)
		}
		out = append(out, templates.Edit{Pos: geom.V(b.X, b.Y, b.Z), Block: blk, Span: 1})
	}
	return out
}

func areaFromWire(a protocol.BuildArea) BuildArea {
	lo := geom.V(min(a.XFrom, a.XTo), min(a.YFrom, a.YTo), min(a.ZFrom, a.ZTo))
	hi := geom.V(max(a.XFrom, a.XTo), max(a.YFrom, a.YTo), max(a.ZFrom, a.ZTo))
	return BuildArea{Origin: lo, Size: hi.Sub(lo).Offset(1, 1, 1)}
}
