package mlsmpm

import "fmt"

// ConfigInvalidError is returned by NewSimulator/SetConfig when a config
// value is out of range. No step is attempted when this is returned.
type ConfigInvalidError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("config invalid: field %q value %v: %s", e.Field, e.Value, e.Reason)
}

// DeviceLostError marks the simulator as faulted: Step returns this error
// until Reset (or Restore) clears the faulted state.
type DeviceLostError struct {
	Err error
}

func (e *DeviceLostError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device lost: %v", e.Err)
	}
	return "device lost"
}

func (e *DeviceLostError) Unwrap() error { return e.Err }

// ResourceExhaustionError describes a fatal allocation failure. NewSimulator
// and Reset do not return it: they allocate with make, which panics on
// failure instead of returning an error.
type ResourceExhaustionError struct {
	Resource string
	Err      error
}

func (e *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("resource exhausted allocating %s: %v", e.Resource, e.Err)
}

func (e *ResourceExhaustionError) Unwrap() error { return e.Err }

// NumericalDegeneracyEvent describes one recoverable det(F)<=0 or NaN
// detection. It is never returned as a fatal error; the driver counts it
// in Metrics and logs through Logger.
type NumericalDegeneracyEvent struct {
	Step          uint64
	ParticleIndex int
	Reason        string
}

func (e NumericalDegeneracyEvent) String() string {
	return fmt.Sprintf("numerical degeneracy at step %d particle %d: %s", e.Step, e.ParticleIndex, e.Reason)
}

// StepOverrunError records that the adaptive scheduler hit its sub-step
// cap without dt reaching dt_safe. Non-fatal: the driver proceeds with
// dt_min and flags the event in Metrics.
type StepOverrunError struct {
	Step      uint64
	DtSafe    float32
	DtUsed    float32
	SubSteps  int
	SubStepCap int
}

func (e StepOverrunError) String() string {
	return fmt.Sprintf("step %d: sub-step cap %d reached (dt_safe=%.6f dt_used=%.6f)",
		e.Step, e.SubStepCap, e.DtSafe, e.DtUsed)
}
