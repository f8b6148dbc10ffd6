package access

import (
	"fmt"

	"towerkeep.ai/internal/protocol"
)

type ViolationKind int

const (
	MissingEntrance ViolationKind = iota + 1
	UnintendedGroundAccess
	UnreachableCastle
	DanglingBridge
)

func (k ViolationKind) String() string {
	switch k {
	case MissingEntrance:
		return "missing_entrance"
	case UnintendedGroundAccess:
		return "unintended_ground_access"
	case UnreachableCastle:
		return "unreachable_castle"
	case DanglingBridge:
		return "dangling_bridge"
	default:
		return fmt.Sprintf("violation(%d)", int(k))
	}
}

// Violation is a topology rule the layout breaks. It is always fatal.
type Violation struct {
	Kind      ViolationKind
	ElementID string
	Detail    string
}

func (v *Violation) Error() string {
	if v.Detail == "" {
		return fmt.Sprintf("access: %s: %s", v.Kind, v.ElementID)
	}
	return fmt.Sprintf("access: %s: %s: %s", v.Kind, v.ElementID, v.Detail)
}

func (v *Violation) Code() string { return protocol.ErrAccessViolation }
