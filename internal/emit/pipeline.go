// Package emit streams planned edits to a world writer in bounded,
// retried batches.
package emit

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zyedidia/generic/mapset"
	"golang.org/x/sync/errgroup"

	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/templates"
	"towerkeep.ai/internal/sim/tuning"
	"towerkeep.ai/internal/worldio"
)

// Committed describes a batch the world accepted.
type Committed struct {
	Batch    Batch
	Attempts int
	Elapsed  time.Duration
}

// Journal records committed batches. Calls are serialized by the pipeline.
type Journal interface {
	BatchCommitted(ctx context.Context, c Committed) error
}

type Result struct {
	// Planned counts cells in the input; Emitted counts cells handed to
	// the writer after coalescing.
	Planned   int
	Emitted   int
	Committed int
	Batches   int
	Waves     int
	Retries   int
}

type Pipeline struct {
	Writer  worldio.Writer
	Tuning  tuning.Emit
	Logger  *log.Logger
	Metrics *Metrics
	Journal Journal

	journalMu sync.Mutex
}

func New(w worldio.Writer, t tuning.Emit, logger *log.Logger) *Pipeline {
	return &Pipeline{Writer: w, Tuning: t, Logger: logger}
}

type wave struct {
	g      *errgroup.Group
	ctx    context.Context
	coords mapset.Set[geom.Vec3]
}

func (p *Pipeline) newWave(ctx context.Context) *wave {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Tuning.Workers, 1))
	return &wave{g: g, ctx: gctx, coords: mapset.New[geom.Vec3]()}
}

func (w *wave) overlaps(s mapset.Set[geom.Vec3]) bool {
	hit := false
	s.Each(func(p geom.Vec3) {
		if !hit && w.coords.Has(p) {
			hit = true
		}
	})
	return hit
}

// Emit submits seq in order. Batches run concurrently within a wave; a
// batch that shares a cell with the current wave waits for it to drain, so
// a later write to a cell always lands after the earlier one.
func (p *Pipeline) Emit(ctx context.Context, seq iter.Seq[templates.Edit]) (Result, error) {
	var res Result
	res.Planned = templates.CountCells(seq)
	src := seq
	if p.Tuning.Coalesce {
		src = Coalesce(seq)
	}
	size := p.Tuning.BatchSize
	if size < 1 {
		size = 512
	}

	var committed, retries atomic.Int64
	result := func() Result {
		res.Committed = int(committed.Load())
		res.Retries = int(retries.Load())
		return res
	}

	w := p.newWave(ctx)
	res.Waves = 1
	var waveErr error
	for b := range Batches(src, size) {
		if ctx.Err() != nil || w.ctx.Err() != nil {
			break
		}
		coords := b.coords()
		if w.overlaps(coords) {
			if waveErr = w.g.Wait(); waveErr != nil {
				break
			}
			w = p.newWave(ctx)
			res.Waves++
		}
		coords.Each(w.coords.Put)
		res.Batches++
		res.Emitted += b.Cells
		wctx := w.ctx
		w.g.Go(func() error {
			return p.submit(wctx, b, &committed, &retries)
		})
	}
	if waveErr == nil {
		waveErr = w.g.Wait()
	}

	out := result()
	var ee *EmissionError
	if errors.As(waveErr, &ee) {
		ee.Committed = out.Committed
		p.logf("emit: %v", ee)
		return out, ee
	}
	if err := ctx.Err(); err != nil {
		p.logf("emit: canceled with %d edits committed", out.Committed)
		return out, fmt.Errorf("emit: canceled after %d committed edits: %w", out.Committed, err)
	}
	if waveErr != nil {
		return out, waveErr
	}
	p.logf("emit: %d edits in %d batches (%d waves, %d retries)", out.Committed, out.Batches, out.Waves, out.Retries)
	return out, nil
}

func (p *Pipeline) submit(ctx context.Context, b Batch, committed, retries *atomic.Int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	attempts := 0
	op := func() error {
		attempts++
		actx, cancel := context.WithTimeout(worldio.WithBatch(ctx, b.Seq), p.batchTimeout())
		defer cancel()
		err := p.Writer.SubmitEdits(actx, b.Edits)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case worldio.IsFatal(err):
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), uint64(max(p.Tuning.MaxRetries, 0))), ctx)
	err := backoff.RetryNotify(op, bo, func(err error, d time.Duration) {
		retries.Add(1)
		p.Metrics.retry()
		p.logf("emit: batch %d attempt %d failed, retry in %s: %v", b.Seq, attempts, d.Round(time.Millisecond), err)
	})
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.Metrics.batchDone(b.Cells, false, elapsed)
		return &EmissionError{Batch: b.Seq, First: b.First(), Last: b.Last(), Attempts: attempts, Err: err}
	}
	committed.Add(int64(b.Cells))
	p.Metrics.batchDone(b.Cells, true, elapsed)
	if p.Journal != nil {
		p.journalMu.Lock()
		jerr := p.Journal.BatchCommitted(ctx, Committed{Batch: b, Attempts: attempts, Elapsed: elapsed})
		p.journalMu.Unlock()
		if jerr != nil {
			p.logf("emit: journal batch %d: %v", b.Seq, jerr)
		}
	}
	return nil
}

func (p *Pipeline) newBackOff() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	if p.Tuning.InitialBackoffMs > 0 {
		eb.InitialInterval = time.Duration(p.Tuning.InitialBackoffMs) * time.Millisecond
	}
	if p.Tuning.MaxBackoffMs > 0 {
		eb.MaxInterval = time.Duration(p.Tuning.MaxBackoffMs) * time.Millisecond
	}
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

func (p *Pipeline) batchTimeout() time.Duration {
	if p.Tuning.BatchTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.Tuning.BatchTimeoutMs) * time.Millisecond
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}
