package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"towerkeep.ai/internal/emit"
	journal "towerkeep.ai/internal/persistence/log"
	"towerkeep.ai/internal/persistence/planarchive"
	"towerkeep.ai/internal/sim/templates"
	"towerkeep.ai/internal/sim/tuning"
	"towerkeep.ai/internal/worldio"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		planPath = flag.String("plan", "", "path to plan.zst")
		dataDir  = flag.String("data", "./data", "runtime data directory (with -run)")
		runID    = flag.String("run", "", "run id under <data>/runs (instead of -plan)")
		elements = flag.Bool("elements", false, "list archived elements")
		bill     = flag.Int("bill", 0, "print the N most used materials (0 to skip)")
		worldURL = flag.String("world", "", "re-emit the archived edits to this world server (optional)")
		runs     = flag.Int("runs", 0, "list the N most recent runs in the index under -data")
		overview = flag.String("overview", "", "write a top-down PNG of the ground and the build to this path")
		scale    = flag.Int("overview_scale", 4, "pixels per column in the overview")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := strings.TrimSpace(*planPath)
	if path == "" && *runID != "" {
		path = planarchive.Path(*dataDir, *runID)
	}
	if path == "" && *runs <= 0 {
		fmt.Fprintln(os.Stderr, "missing -plan, -run or -runs")
		return 2
	}

	idx, err := openIndex(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		return 1
	}
	if idx != nil {
		defer idx.Close()
	}
	if *runs > 0 {
		if idx == nil {
			fmt.Fprintln(os.Stderr, "no run index under", *dataDir)
			return 1
		}
		if err := printRuns(ctx, os.Stdout, idx, *runs); err != nil {
			fmt.Fprintln(os.Stderr, "list runs:", err)
			return 1
		}
		if path == "" {
			return 0
		}
	}

	p, err := planarchive.Read(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read plan:", err)
		return 1
	}
	area := p.BuildArea()
	fmt.Printf("plan v%d run=%s seed=%d created=%s area=%s deck=%d roof=%d elements=%d edits=%d warnings=%d\n",
		p.Header.Version, p.Header.RunID, p.Header.Seed, p.Header.CreatedAt, area, p.Deck, p.RoofY,
		len(p.Elements), len(p.Edits), len(p.Warnings))

	if got := templates.Digest(p.EditSeq()); got != p.PlanDigest {
		fmt.Fprintf(os.Stderr, "digest mismatch: got=%s want=%s\n", got, p.PlanDigest)
		return 1
	}
	fmt.Printf("digest ok: %s\n", p.PlanDigest)

	if p.Ground.Heights != "" {
		ground, err := p.Ground.HeightMap()
		if err != nil {
			fmt.Fprintln(os.Stderr, "archived ground:", err)
			return 1
		}
		if ground.Digest() != p.GroundDigest {
			fmt.Fprintf(os.Stderr, "ground digest mismatch: got=%s want=%s\n", ground.Digest(), p.GroundDigest)
			return 1
		}
		fmt.Printf("ground ok: %s (%s, min y %d)\n", p.GroundDigest, ground.Rect(), p.Ground.MinY)
	}

	if *elements {
		els := append([]planarchive.ElementV1(nil), p.Elements...)
		sort.Slice(els, func(i, j int) bool { return els[i].ID < els[j].ID })
		for _, el := range els {
			fmt.Printf("  %-8s %-20s base=%d height=%d %s -> %s\n", el.Kind, el.ID, el.Base, el.Height, el.Footprint, strings.Join(el.Connects, ","))
		}
	}

	if *bill > 0 {
		items := templates.Bill(p.EditSeq())
		for i, it := range items {
			if i >= *bill {
				break
			}
			fmt.Printf("  %8d %s\n", it.Count, it.Item)
		}
	}

	runDir := filepath.Dir(path)
	if batches, err := journal.ReadBatches(runDir); err == nil && len(batches) > 0 {
		cells, attempts := 0, 0
		for _, b := range batches {
			cells += b.Cells
			attempts += b.Attempts
		}
		fmt.Printf("journal: %d batches committed, %d cells, %d attempts\n", len(batches), cells, attempts)
	}
	if idx != nil {
		if err := printIndexed(ctx, os.Stdout, idx, p.Header.RunID); err != nil {
			fmt.Printf("index: %v\n", err)
		}
	}

	if *overview != "" {
		img, err := renderOverview(p, *scale)
		if err == nil {
			err = writePNG(*overview, img)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "overview:", err)
			return 1
		}
		fmt.Printf("overview written to %s\n", *overview)
	}

	if *worldURL == "" {
		return 0
	}

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags|log.Lmicroseconds)
	tune := tuning.Defaults()
	if len(p.TuningJSON) > 0 {
		if err := json.Unmarshal(p.TuningJSON, &tune); err != nil {
			logger.Printf("archived tuning: %v", err)
			return 1
		}
	}
	client := worldio.NewHTTPClient(*worldURL)
	live, err := worldio.NewSnapshotReader(client, tune.World, logger).BuildArea(ctx)
	if err != nil {
		logger.Printf("build area: %v", err)
		return 1
	}
	if live != area {
		logger.Printf("world build area %s differs from archived %s", live, area)
		return 1
	}
	res, err := emit.New(client, tune.Emit, logger).Emit(ctx, p.EditSeq())
	fmt.Printf("re-emit: %d/%d edits committed in %d batches (%d retries)\n", res.Committed, res.Emitted, res.Batches, res.Retries)
	if err != nil {
		logger.Printf("re-emit: %v", err)
		return 1
	}
	return 0
}
