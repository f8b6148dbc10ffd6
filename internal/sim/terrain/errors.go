package terrain

import (
	"fmt"

	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/sim/logic/geom"
)

// InsufficientAreaError reports a footprint that does not fit the build area.
type InsufficientAreaError struct {
	Element   string
	Footprint Footprint
	Area      geom.Rect
}

func (e *InsufficientAreaError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("insufficient area: %s footprint %s does not fit build area %s", e.Element, e.Footprint, e.Area)
	}
	return fmt.Sprintf("insufficient area: footprint %s does not fit build area %s", e.Footprint, e.Area)
}

func (e *InsufficientAreaError) Code() string { return protocol.ErrInsufficientArea }
