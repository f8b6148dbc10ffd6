package worldtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/templates"
	"towerkeep.ai/internal/sim/terrain"
	"towerkeep.ai/internal/worldio"
)

// Fault makes SubmitEdits fail Times times for batches Match accepts (every
// batch when Match is nil).
type Fault struct {
	Match func([]templates.Edit) bool
	Times int
	Err   error
}

// Commit records one accepted batch.
type Commit struct {
	First geom.Vec3
	Cells int
}

// World is an in-memory world implementing worldio.Reader and
// worldio.Writer. Submitted batches are applied atomically; faults are
// consumed in injection order.
type World struct {
	mu     sync.Mutex
	area   geom.Box
	ground *terrain.HeightMap
	blocks map[geom.Vec3]templates.Block

	faults      []*Fault
	readFaults  int
	readErr     error
	delay       time.Duration
	submits     int
	commits     []Commit
	inflight    int
	maxInflight int
}

var (
	_ worldio.Reader = (*World)(nil)
	_ worldio.Writer = (*World)(nil)
)

func New(area geom.Box, ground *terrain.HeightMap) *World {
	return &World{area: area, ground: ground, blocks: map[geom.Vec3]templates.Block{}}
}

// Inject queues a fault.
func (w *World) Inject(f Fault) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.faults = append(w.faults, &f)
}

// FailNext makes the next n submits fail with err.
func (w *World) FailNext(n int, err error) { w.Inject(Fault{Times: n, Err: err}) }

// FailReads makes the next n reads fail with err.
func (w *World) FailReads(n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.readFaults, w.readErr = n, err
}

// SetDelay makes every submit take at least d (or until its context ends).
func (w *World) SetDelay(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delay = d
}

func (w *World) readFault(op string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.readFaults == 0 {
		return nil
	}
	w.readFaults--
	if w.readErr != nil {
		return w.readErr
	}
	return &worldio.TransientError{Op: op, Err: errors.New("injected read failure")}
}

func (w *World) BuildArea(ctx context.Context) (worldio.BuildArea, error) {
	if err := ctx.Err(); err != nil {
		return worldio.BuildArea{}, err
	}
	if err := w.readFault("build area"); err != nil {
		return worldio.BuildArea{}, err
	}
	return w.area, nil
}

func (w *World) HeightMap(ctx context.Context, area worldio.BuildArea) (*terrain.HeightMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.readFault("heightmap"); err != nil {
		return nil, err
	}
	if w.ground == nil || !w.ground.Rect().ContainsRect(area.Rect()) {
		return nil, &worldio.FatalError{Op: "heightmap", Err: fmt.Errorf("no ground for %s", area.Rect())}
	}
	return w.ground, nil
}

func (w *World) SubmitEdits(ctx context.Context, edits []templates.Edit) error {
	w.mu.Lock()
	w.submits++
	w.inflight++
	w.maxInflight = max(w.maxInflight, w.inflight)
	delay := w.delay
	var fault error
	for _, f := range w.faults {
		if f.Times > 0 && (f.Match == nil || f.Match(edits)) {
			f.Times--
			fault = f.Err
			break
		}
	}
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.inflight--
		w.mu.Unlock()
	}()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return &worldio.TransientError{Op: "submit", Err: ctx.Err()}
		case <-t.C:
		}
	}
	if fault != nil {
		return fault
	}
	if err := ctx.Err(); err != nil {
		return &worldio.TransientError{Op: "submit", Err: err}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	cells := 0
	for _, e := range edits {
		for c := range e.Cells() {
			w.blocks[c.Pos] = c.Block
			cells++
		}
	}
	if len(edits) > 0 {
		w.commits = append(w.commits, Commit{First: edits[0].Pos, Cells: cells})
	}
	return nil
}

// Block returns what was last written at p.
func (w *World) Block(p geom.Vec3) (templates.Block, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.blocks[p]
	return b, ok
}

// Blocks returns a copy of every written cell.
func (w *World) Blocks() map[geom.Vec3]templates.Block {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[geom.Vec3]templates.Block, len(w.blocks))
	for k, v := range w.blocks {
		out[k] = v
	}
	return out
}

func (w *World) Commits() []Commit {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Commit(nil), w.commits...)
}

// Committed is the number of cells written by accepted batches.
func (w *World) Committed() int {
	n := 0
	for _, c := range w.Commits() {
		n += c.Cells
	}
	return n
}

func (w *World) Submits() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submits
}

// MaxInflight is the highest number of concurrent submits observed.
func (w *World) MaxInflight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxInflight
}
