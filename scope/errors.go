package scope

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrRejected marks a launch or context switch whose dispatcher refused the
// work, typically because it was closed.
var ErrRejected = errors.New("scope: dispatcher rejected work")

// PanicError is the failure reported for a task that panicked.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}

func rejected(name string, err error) error {
	return fmt.Errorf("%w on %q: %w", ErrRejected, name, err)
}
