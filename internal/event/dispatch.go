package event

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrHandlerPanic is wrapped by the error Dispatch returns for a panicking handler.
var ErrHandlerPanic = errors.New("handler panicked")

// PanicError carries the recovered value and stack of a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrHandlerPanic, e.Value)
}

// Unwrap lets errors.Is match ErrHandlerPanic.
func (e *PanicError) Unwrap() error {
	return ErrHandlerPanic
}

// Dispatch is the fault-isolated call used for every delivery. It invokes fn
// and converts both a returned error and a panic into a returned error.
// It never panics itself.
func Dispatch(fn HandlerFunc, args ...any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(args...)
}
