package protocol

const (
	// Planning.
	ErrInsufficientArea = "E_INSUFFICIENT_AREA"
	ErrLayoutInfeasible = "E_LAYOUT_INFEASIBLE"
	ErrAccessViolation  = "E_ACCESS_VIOLATION"

	// World service.
	ErrWorldUnavailable = "E_WORLD_UNAVAILABLE"
	ErrTransient        = "E_TRANSIENT"
	ErrFatal            = "E_FATAL"

	// Emission.
	ErrEmission = "E_EMISSION"
	ErrCanceled = "E_CANCELED"

	ErrBadRequest = "E_BAD_REQUEST"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrInsufficientArea: {},
	ErrLayoutInfeasible: {},
	ErrAccessViolation:  {},
	ErrWorldUnavailable: {},
	ErrTransient:        {},
	ErrFatal:            {},
	ErrEmission:         {},
	ErrCanceled:         {},
	ErrBadRequest:       {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Coded is implemented by errors that map onto a stable wire code.
type Coded interface {
	Code() string
}
