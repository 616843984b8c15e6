// Package kernels is the CPU reference implementation of K1-K7 (spec.md
// §4.5): the same math the WGSL shaders in sim/shaders express, kept here
// as plain Go so the transfer pipeline has a path that can be unit
// tested without a GPU.
package kernels

import (
	"github.com/gekko3d/mlsmpm/sim/core"
	"github.com/go-gl/mathgl/mgl32"
)

// GravityMode selects the gravity vector construction (spec.md §6).
type GravityMode int

const (
	DownZ GravityMode = iota
	BackZ
	CenterRadial
	DeviceSensor
)

// TransferMode selects the effective FLIP/PIC blend ratio (spec.md §4.5 K7).
type TransferMode int

const (
	PIC TransferMode = iota
	FLIP
	Hybrid
)

// EffectiveFlipRatio maps transferMode to the alpha used in the G2P blend.
func (m TransferMode) EffectiveFlipRatio(flipRatio float32) float32 {
	switch m {
	case PIC:
		return 0
	case FLIP:
		return 1
	default:
		if flipRatio < 0 {
			return 0
		}
		if flipRatio > 1 {
			return 1
		}
		return flipRatio
	}
}

// ParticleMass and ParticleVolume are the fixed per-particle constants
// spec.md's K2/K3 scatter formulas reference as m_p / volume; the spec
// does not make these configurable, so every particle carries the same
// nominal mass and volume (grid units, h = 1).
const (
	ParticleMass   = 1.0
	ParticleVolume = 1.0
)

// Uniforms is the per-step parameter block the driver writes once before
// dispatching K1-K7 (spec.md §6 config keys, plus the material policy
// from §4.5 and the gravity/device-sensor vector).
type Uniforms struct {
	Dt float32

	GravityMode       GravityMode
	GravityStrength   float32
	DeviceGravityAxis mgl32.Vec3 // only read when GravityMode == DeviceSensor

	TransferMode TransferMode
	FlipRatio    float32

	VorticityEnabled bool
	VorticityEpsilon float32

	SurfaceTensionEnabled bool
	SurfaceTensionCoeff   float32

	SimTime float32

	Material core.MaterialParams
}
