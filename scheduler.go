package mlsmpm

import (
	"gonum.org/v1/gonum/stat"

	"github.com/gekko3d/mlsmpm/sim/core"
)

// Scheduler is C6: the adaptive CFL time-step selector (spec.md §4.6). It
// samples every SampleStride-th particle speed each step, matching the
// "cheap periodic sample" option the spec calls out as acceptable; at the
// default stride of 1 every particle is sampled.
type Scheduler struct {
	CFLTarget float32
	DtMin     float32
	DtMax     float32
	H         float32

	SubStepCap int

	// SampleStride controls how many particles are skipped between
	// v_max samples; 1 samples every particle, higher values trade
	// accuracy for speed on large swarms.
	SampleStride int
}

// NewScheduler returns a Scheduler configured with the spec's defaults:
// CFLTarget=0.7, dt_min=0.001, dt_max=0.1, h=1, sub-step cap 4.
func NewScheduler() *Scheduler {
	return &Scheduler{
		CFLTarget:    0.7,
		DtMin:        0.001,
		DtMax:        0.1,
		H:            1,
		SubStepCap:   4,
		SampleStride: 1,
	}
}

// SampleVMax estimates the maximum particle speed by sampling every
// SampleStride-th live particle and returns both the max and the mean
// (the mean is surfaced via metrics, computed with gonum/stat).
func (s *Scheduler) SampleVMax(particles *core.ParticleStore) (vMax, vMean float32) {
	stride := s.SampleStride
	if stride < 1 {
		stride = 1
	}
	speeds := make([]float64, 0, particles.Count/stride+1)
	for i := 0; i < particles.Count; i += stride {
		if !particles.Live(i) {
			continue
		}
		speed := particles.Velocity[i].Len()
		speeds = append(speeds, float64(speed))
		if speed > vMax {
			vMax = speed
		}
	}
	if len(speeds) == 0 {
		return 0, 0
	}
	vMean = float32(stat.Mean(speeds, nil))
	return vMax, vMean
}

// clamp32 restricts v to [lo, hi].
func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Plan computes dt_safe from v_max per spec.md §4.6 and clamps it into
// [dt_min, dt_max].
func (s *Scheduler) Plan(vMax float32) float32 {
	const eps = 1e-6
	dtSafe := s.CFLTarget * s.H / (vMax + eps)
	return clamp32(dtSafe, s.DtMin, s.DtMax)
}

// SubSteps splits dtHint into a sequence of dt values that each respect
// dtSafe, capped at SubStepCap sub-steps. If dtHint already fits in a
// single dtSafe-sized step, the returned slice has length 1. When the
// cap is reached without covering dtHint, the caller should report
// StepOverrun and proceed with what SubSteps returns (spec.md §7).
func (s *Scheduler) SubSteps(dtHint, dtSafe float32) (steps []float32, overrun bool) {
	if dtHint <= dtSafe {
		return []float32{dtHint}, false
	}
	n := int(dtHint/dtSafe) + 1
	cap := s.SubStepCap
	if cap <= 0 {
		cap = 1
	}
	overrun = n > cap
	if overrun {
		n = cap
	}
	steps = make([]float32, n)
	remaining := dtHint
	for i := 0; i < n; i++ {
		step := dtSafe
		if step > remaining {
			step = remaining
		}
		steps[i] = step
		remaining -= step
	}
	return steps, overrun
}
