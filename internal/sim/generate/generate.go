// Package generate runs one build end to end: read the world, plan,
// validate, expand, then emit.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"towerkeep.ai/internal/emit"
	"towerkeep.ai/internal/observerproto"
	"towerkeep.ai/internal/persistence/archive"
	"towerkeep.ai/internal/persistence/indexdb"
	journal "towerkeep.ai/internal/persistence/log"
	"towerkeep.ai/internal/persistence/planarchive"
	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/sim/access"
	"towerkeep.ai/internal/sim/catalogs"
	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/templates"
	"towerkeep.ai/internal/sim/terrain"
	"towerkeep.ai/internal/sim/tuning"
	"towerkeep.ai/internal/transport/observer"
	"towerkeep.ai/internal/worldio"
)

type Options struct {
	Tuning   tuning.Tuning
	Catalogs *catalogs.Catalogs
	Reader   worldio.Reader
	// Writer may be nil when DryRun is set.
	Writer worldio.Writer
	DryRun bool

	// DataDir receives the plan archive and the emission journal; empty
	// disables both.
	DataDir string
	Index   *indexdb.SQLiteIndex
	Metrics *emit.Metrics
	// Observer, when set, streams progress to watchers.
	Observer *observer.Server
	Logger   *log.Logger
	// RunID defaults to a fresh UUID.
	RunID string
}

type Generator struct {
	opts Options
}

func New(opts Options) *Generator {
	if opts.Catalogs == nil {
		opts.Catalogs = catalogs.Default()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Generator{opts: opts}
}

func (g *Generator) RunID() string { return g.opts.RunID }

// Plan is everything computed before emission.
type Plan struct {
	Area   worldio.BuildArea
	Ground *terrain.HeightMap
	Layout *layout.Layout
	Access access.Report
	Edits  iter.Seq[templates.Edit]
}

// Plan reads the world and produces a validated, expanded plan.
func (g *Generator) Plan(ctx context.Context) (*Plan, error) {
	t := g.opts.Tuning
	snap := worldio.NewSnapshotReader(g.opts.Reader, t.World, g.opts.Logger)
	area, err := snap.BuildArea(ctx)
	if err != nil {
		return nil, err
	}
	hm, err := snap.HeightMap(ctx, area)
	if err != nil {
		return nil, err
	}
	g.logf("area %s, ground digest %.12s", area, hm.Digest())

	l, err := layout.NewPlanner(t, g.opts.Logger).Plan(area, hm)
	if err != nil {
		return nil, err
	}
	rep, err := access.ValidateLayout(l, t.Access.MinBridgeCrossings)
	if err != nil {
		return nil, err
	}

	eng := templates.NewEngine(g.opts.Catalogs, hm, t)
	seq := eng.Plan(l.Elements)
	if t.MarkBounds {
		seq = templates.Concat(seq, eng.Bounds(area))
	}
	return &Plan{Area: area, Ground: hm, Layout: l, Access: rep, Edits: seq}, nil
}

// Generate runs the whole pipeline. The report is filled in as far as the
// run got, including on error.
func (g *Generator) Generate(ctx context.Context) (Report, error) {
	start := time.Now()
	t := g.opts.Tuning
	rep := Report{RunID: g.opts.RunID, Seed: t.Seed, DryRun: g.opts.DryRun}
	g.logf("run %s: seed=%d dry_run=%v", rep.RunID, t.Seed, g.opts.DryRun)

	err := g.run(ctx, &rep)
	rep.Elapsed = time.Since(start)
	if err != nil {
		rep.Err = err
		rep.Code = codeOf(ctx, err)
		g.logf("run %s failed (%s): %v", rep.RunID, rep.Code, err)
	} else {
		g.logf("run %s: %d/%d edits committed in %d batches, %s", rep.RunID, rep.Committed, rep.Emitted, rep.Batches, rep.Elapsed.Round(time.Millisecond))
	}
	if g.opts.Observer != nil {
		g.opts.Observer.Finish(rep.Wire())
	}
	if g.opts.Index != nil {
		if ierr := g.opts.Index.RecordRun(context.WithoutCancel(ctx), rep.Wire()); ierr != nil {
			g.logf("index run %s: %v", rep.RunID, ierr)
		}
	}
	return rep, err
}

func (g *Generator) run(ctx context.Context, rep *Report) (err error) {
	t := g.opts.Tuning
	p, err := g.Plan(ctx)
	if err != nil {
		return err
	}
	l := p.Layout
	rep.Towers = l.Count(layout.KindTower)
	rep.Bridges = l.Count(layout.KindBridge)
	rep.Stairways = l.Count(layout.KindEntrance)
	rep.Castles = l.Count(layout.KindCastle)
	rep.Warnings = append(rep.Warnings, l.Warnings...)
	rep.Planned = templates.CountCells(p.Edits)
	rep.PlanDigest = templates.Digest(p.Edits)
	for _, w := range l.Warnings {
		g.logf("warning: %s", w)
	}

	if g.opts.Observer != nil {
		g.opts.Observer.Begin(observerproto.RunInfo{
			RunID:      rep.RunID,
			Seed:       rep.Seed,
			Area:       [6]int{p.Area.Origin.X, p.Area.Origin.Y, p.Area.Origin.Z, p.Area.Size.X, p.Area.Size.Y, p.Area.Size.Z},
			Planned:    rep.Planned,
			PlanDigest: rep.PlanDigest,
			DryRun:     rep.DryRun,
		}, elementInfo(l))
	}
	if g.opts.Index != nil {
		if err := g.opts.Index.UpsertCatalogs(g.opts.Catalogs, t); err != nil {
			g.logf("index catalogs: %v", err)
		}
		g.opts.Index.RecordElements(rep.RunID, l.Elements)
	}

	var jr *journal.Journal
	if g.opts.DataDir != "" {
		if err := g.archive(p, rep.RunID); err != nil {
			return fmt.Errorf("archive plan: %w", err)
		}
		if !g.opts.DryRun {
			jr = journal.NewJournal(runDir(g.opts.DataDir, rep.RunID), rep.RunID)
			defer func() {
				w := rep.Wire()
				if err != nil {
					w.Code, w.Error = codeOf(ctx, err), err.Error()
				}
				if werr := jr.WriteReport(w); werr != nil {
					g.logf("journal report: %v", werr)
				}
				_ = jr.Close()
			}()
		}
	}
	if g.opts.DryRun {
		return nil
	}
	if g.opts.Writer == nil {
		return fmt.Errorf("generate: no world writer configured")
	}

	pipe := emit.New(g.opts.Writer, t.Emit, g.opts.Logger)
	pipe.Metrics = g.opts.Metrics
	var hooks journals
	if jr != nil {
		hooks = append(hooks, jr)
	}
	if g.opts.Index != nil {
		hooks = append(hooks, g.opts.Index.ForRun(rep.RunID))
	}
	if g.opts.Observer != nil {
		hooks = append(hooks, g.opts.Observer)
	}
	if len(hooks) > 0 {
		pipe.Journal = hooks
	}
	res, err := pipe.Emit(ctx, p.Edits)
	rep.Emitted = res.Emitted
	rep.Committed = res.Committed
	rep.Batches = res.Batches
	rep.Retries = res.Retries
	if err != nil {
		return err
	}
	if g.opts.DataDir != "" {
		dst, ok, aerr := archive.ArchiveCompletedRun(g.opts.DataDir, planarchive.Path(g.opts.DataDir, rep.RunID), rep.Wire())
		if aerr != nil {
			g.logf("archive completed run: %v", aerr)
		} else if ok {
			g.logf("completed run archived to %s", dst)
		}
	}
	return nil
}

func (g *Generator) archive(p *Plan, runID string) error {
	tj, err := json.Marshal(g.opts.Tuning)
	if err != nil {
		return fmt.Errorf("encode tuning: %w", err)
	}
	arc := planarchive.New(planarchive.Header{
		RunID:     runID,
		Seed:      g.opts.Tuning.Seed,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}, p.Area, p.Layout, p.Edits)
	arc.TuningJSON = tj
	arc.PaletteDigest = g.opts.Catalogs.Palettes.Digest
	arc.GroundDigest = p.Ground.Digest()
	ground, err := planarchive.NewGround(p.Ground)
	if err != nil {
		return err
	}
	arc.Ground = ground
	path := planarchive.Path(g.opts.DataDir, runID)
	if err := planarchive.Write(path, arc); err != nil {
		return err
	}
	g.logf("plan archived to %s (%d edits)", path, len(arc.Edits))
	return nil
}

func runDir(dataDir, runID string) string {
	return filepath.Dir(planarchive.Path(dataDir, runID))
}

func elementInfo(l *layout.Layout) []observerproto.ElementInfo {
	out := make([]observerproto.ElementInfo, 0, len(l.Elements))
	for _, el := range l.Elements {
		out = append(out, observerproto.ElementInfo{
			ID:       el.ID,
			Kind:     el.Kind.String(),
			Base:     el.Base,
			Height:   el.Height,
			Connects: append([]string(nil), el.Connects...),
		})
	}
	return out
}

// journals fans one committed batch out to several hooks.
type journals []emit.Journal

func (js journals) BatchCommitted(ctx context.Context, c emit.Committed) error {
	var errs []error
	for _, j := range js {
		if err := j.BatchCommitted(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func codeOf(ctx context.Context, err error) string {
	var coded protocol.Coded
	switch {
	case errors.As(err, &coded):
		return coded.Code()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		return protocol.ErrCanceled
	}
	return protocol.ErrInternal
}

func (g *Generator) logf(format string, args ...any) {
	if g.opts.Logger != nil {
		g.opts.Logger.Printf(format, args...)
	}
}
