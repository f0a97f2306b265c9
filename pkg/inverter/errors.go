package inverter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter marks a non-physical configuration or request.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNoCrossingFound means the current balance has no root in [0, Vdd].
	ErrNoCrossingFound = errors.New("no crossing found")
	// ErrConvergenceFailure means an iterative solve hit its iteration cap.
	ErrConvergenceFailure = errors.New("convergence failure")
	// ErrNoiseMarginUndefined means the VTC never reaches unity gain.
	ErrNoiseMarginUndefined = errors.New("noise margin undefined")
	// ErrIntegrationUnstable means a transient step produced a non-finite value.
	ErrIntegrationUnstable = errors.New("integration unstable")
)

// ParameterError names the offending parameter of an ErrInvalidParameter.
type ParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s = %g: %s", e.Name, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error { return ErrInvalidParameter }

// InvalidParameter is a shorthand for building a *ParameterError.
func InvalidParameter(name string, value float64, reason string) error {
	return &ParameterError{Name: name, Value: value, Reason: reason}
}

// SampleError is a per-input-voltage solver failure.
type SampleError struct {
	Vin        float64
	Iterations int
	Err        error
}

func (e *SampleError) Error() string {
	if e.Iterations > 0 {
		return fmt.Sprintf("vin=%gV: %v after %d iterations", e.Vin, e.Err, e.Iterations)
	}
	return fmt.Sprintf("vin=%gV: %v", e.Vin, e.Err)
}

func (e *SampleError) Unwrap() error { return e.Err }

// StepError is a transient failure at one time step.
type StepError struct {
	Step int
	Time float64
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%gs): %v", e.Step, e.Time, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
