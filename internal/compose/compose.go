package compose

import (
	"errors"
	"fmt"

	"github.com/vyrodovalexey/webedge/internal/util"
)

// ErrStepFailed is matched by every StepError.
var ErrStepFailed = errors.New("configuration transform failed")

// Transform maps a configuration value to an extended one.
//
// A transform may mutate its input when T is a reference type; the
// composer hands it an owned working copy whenever T implements Cloner.
type Transform[T any] func(T) (T, error)

// Cloner is implemented by configuration types that can produce a deep
// copy of themselves.
type Cloner[T any] interface {
	Clone() T
}

// StepError reports the transform that aborted a composition.
type StepError struct {
	Index int
	Name  string
	Err   error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("transform %d (%s): %v", e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("transform %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Is reports ErrStepFailed and util.ErrConfigInvalid matches.
func (e *StepError) Is(target error) bool {
	return target == ErrStepFailed || target == util.ErrConfigInvalid
}

// PanicError is the error recorded when a transform panics.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("transform panicked: %v", e.Value)
}

// Compose applies transforms left to right: t_n(...t_1(base)).
//
// The base value is never modified when T implements Cloner. If any
// transform fails, the zero T and a *StepError are returned; there is no
// partially composed result. With no transforms, Compose returns the
// (cloned) base.
func Compose[T any](base T, transforms ...Transform[T]) (T, error) {
	cfg := cloneOf(base)

	for i, t := range transforms {
		next, err := run(t, cfg)
		if err != nil {
			var zero T
			return zero, &StepError{Index: i, Err: err}
		}
		cfg = next
	}

	return cfg, nil
}

// cloneOf returns v.Clone() when T implements Cloner, otherwise v.
func cloneOf[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}
	return v
}

// run invokes t, converting a panic into an error.
func run[T any](t Transform[T], cfg T) (out T, err error) {
	if t == nil {
		return cfg, nil
	}

	defer func() {
		if r := recover(); r != nil {
			var zero T
			out = zero
			err = &PanicError{Value: r}
		}
	}()

	return t(cfg)
}
