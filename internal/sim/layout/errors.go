package layout

import (
	"fmt"

	"towerkeep.ai/internal/protocol"
)

// LayoutInfeasibleError reports two elements that cannot both be placed.
type LayoutInfeasibleError struct {
	Reason string
	A, B   string
}

func (e *LayoutInfeasibleError) Error() string {
	if e.B == "" {
		return fmt.Sprintf("layout infeasible: %s: %s", e.A, e.Reason)
	}
	return fmt.Sprintf("layout infeasible: %s / %s: %s", e.A, e.B, e.Reason)
}

func (e *LayoutInfeasibleError) Code() string { return protocol.ErrLayoutInfeasible }
