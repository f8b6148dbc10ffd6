package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"towerkeep.ai/internal/persistence/indexdb"
)

// openIndex opens the run index under dataDir. It returns nil when nothing
// has been indexed there yet, rather than creating an empty database.
func openIndex(dataDir string) (*indexdb.SQLiteIndex, error) {
	path := indexdb.Path(dataDir)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return indexdb.OpenSQLite(path)
}

func printRuns(ctx context.Context, w io.Writer, idx *indexdb.SQLiteIndex, limit int) error {
	ids, err := idx.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	for _, id := range ids {
		r, err := idx.Run(ctx, id)
		if err != nil {
			return err
		}
		status := "ok"
		if r.Code != "" {
			status = r.Code
		}
		if r.DryRun {
			status += " dry-run"
		}
		fmt.Fprintf(w, "  %s seed=%d committed=%d/%d batches=%d %s\n",
			id, r.Seed, r.CommittedEdits, r.EmittedEdits, r.Batches, status)
	}
	return nil
}

// printIndexed summarizes what the index recorded for one run: the final
// report, the committed batch rows and the element mix.
func printIndexed(ctx context.Context, w io.Writer, idx *indexdb.SQLiteIndex, runID string) error {
	r, err := idx.Run(ctx, runID)
	if err != nil {
		return err
	}
	bs, err := idx.Batches(ctx, runID)
	if err != nil {
		return err
	}
	kinds, err := idx.ElementCounts(ctx, runID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", k, kinds[k]))
	}

	code := r.Code
	if code == "" {
		code = "ok"
	}
	fmt.Fprintf(w, "index: %s committed=%d/%d elapsed=%dms\n", code, r.CommittedEdits, r.EmittedEdits, r.ElapsedMs)
	fmt.Fprintf(w, "index: %d batch rows, %d cells, %d attempts\n", bs.Batches, bs.Cells, bs.Attempts)
	fmt.Fprintf(w, "index: elements %s\n", strings.Join(parts, " "))
	return nil
}
