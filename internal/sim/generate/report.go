package generate

import (
	"time"

	"towerkeep.ai/internal/protocol"
)

// Report summarizes one run.
type Report struct {
	RunID      string
	Seed       int64
	Towers     int
	Bridges    int
	Stairways  int
	Castles    int
	Planned    int
	Emitted    int
	Committed  int
	Batches    int
	Retries    int
	Warnings   []string
	PlanDigest string
	Elapsed    time.Duration
	DryRun     bool
	// Code is the protocol error code of Err, empty on success.
	Code string
	Err  error
}

func (r Report) Wire() protocol.RunReport {
	w := protocol.RunReport{
		RunID:          r.RunID,
		Seed:           r.Seed,
		Towers:         r.Towers,
		Bridges:        r.Bridges,
		Stairways:      r.Stairways,
		Castles:        r.Castles,
		PlannedEdits:   r.Planned,
		EmittedEdits:   r.Emitted,
		CommittedEdits: r.Committed,
		Batches:        r.Batches,
		Warnings:       r.Warnings,
		PlanDigest:     r.PlanDigest,
		ElapsedMs:      r.Elapsed.Milliseconds(),
		DryRun:         r.DryRun,
		Code:           r.Code,
	}
	if r.Err != nil {
		w.Error = r.Err.Error()
	}
	return w
}
