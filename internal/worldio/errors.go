package worldio

import (
	"errors"
	"fmt"

	"towerkeep.ai/internal/protocol"
)

// TransientError is a failure worth retrying: timeouts, 5xx, dropped
// connections.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: transient: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }
func (e *TransientError) Code() string  { return protocol.ErrTransient }

// FatalError is a failure that will not go away by retrying: rejected
// payloads, 4xx, per-block failures.
type FatalError struct {
	Op     string
	Status int
	Err    error
}

func (e *FatalError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: fatal (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: fatal: %v", e.Op, e.Err)
}
func (e *FatalError) Unwrap() error { return e.Err }
func (e *FatalError) Code() string  { return protocol.ErrFatal }

// WorldUnavailableError means the world could not be read after retrying.
type WorldUnavailableError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *WorldUnavailableError) Error() string {
	return fmt.Sprintf("%s: world unavailable after %d attempts: %v", e.Op, e.Attempts, e.Err)
}
func (e *WorldUnavailableError) Unwrap() error { return e.Err }
func (e *WorldUnavailableError) Code() string  { return protocol.ErrWorldUnavailable }

func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
