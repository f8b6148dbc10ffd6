package emit

import (
	"fmt"

	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/sim/logic/geom"
)

// EmissionError reports the batch that exhausted its retries. Batches
// committed before it stay committed.
type EmissionError struct {
	Batch     int
	First     geom.Vec3
	Last      geom.Vec3
	Attempts  int
	Committed int
	Err       error
}

func (e *EmissionError) Error() string {
	return fmt.Sprintf("emit: batch %d (%s..%s) failed after %d attempts, %d edits committed: %v",
		e.Batch, e.First, e.Last, e.Attempts, e.Committed, e.Err)
}

func (e *EmissionError) Unwrap() error { return e.Err }
func (e *EmissionError) Code() string  { return protocol.ErrEmission }
