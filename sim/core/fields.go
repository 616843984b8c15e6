package core

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// MaxForceFields is the uniform-block slot count (spec.md §3/§4.3).
const MaxForceFields = 8

type FieldKind int

const (
	Attractor FieldKind = iota
	Repeller
	Vortex
	VortexTube
	Directional
	Turbulence
)

type FalloffKind int

const (
	Constant FalloffKind = iota
	Linear
	Quadratic
	SmoothStep
)

// Falloff evaluates one of the four falloff curves from spec.md §4.3.
func (k FalloffKind) Falloff(d, radius float32) float32 {
	switch k {
	case Constant:
		return 1
	case Linear:
		if radius <= 0 {
			return 0
		}
		v := 1 - d/radius
		if v < 0 {
			v = 0
		}
		return v
	case Quadratic:
		r := d / radius
		return 1 / (1 + r*r)
	case SmoothStep:
		return smoothStep(radius, 0, d)
	default:
		return 0
	}
}

// smoothStep mirrors the GLSL/WGSL smoothstep(edge0, edge1, x) used by the
// WGSL kernels, here with edge0=radius, edge1=0 per spec.md §4.3 so the
// falloff is 1 at d=0 and 0 at d=radius.
func smoothStep(edge0, edge1, x float32) float32 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := (x - edge0) / (edge1 - edge0)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}

// FieldDescriptor is one force-field slot (spec.md §3). TTL (seconds) is
// the SUPPLEMENTED fix for the source's noted dynamic-field accumulation
// limitation (spec.md §9 open question): TTL <= 0 means permanent.
type FieldDescriptor struct {
	ID       uuid.UUID
	Kind     FieldKind
	Position mgl32.Vec3
	Axis     mgl32.Vec3
	Strength float32
	Radius   float32
	Falloff  FalloffKind
	TTL      float32
	Age      float32

	// TurbulenceScale/Rate only apply to Kind == Turbulence.
	TurbulenceScale float32
	TurbulenceRate  float32
}

// NewFieldDescriptor fills in a fresh ID; callers still set Kind/Position/etc.
func NewFieldDescriptor() FieldDescriptor {
	return FieldDescriptor{ID: uuid.New(), Falloff: SmoothStep}
}

// Expired reports whether the field's TTL has elapsed.
func (f FieldDescriptor) Expired() bool {
	return f.TTL > 0 && f.Age >= f.TTL
}

// ForceFieldRegistry holds up to MaxForceFields active descriptors, the
// uniform block evaluated inside K4 (spec.md §4.3).
type ForceFieldRegistry struct {
	Fields []FieldDescriptor
	noise  opensimplex.Noise
}

func NewForceFieldRegistry(seed int64) *ForceFieldRegistry {
	return &ForceFieldRegistry{noise: opensimplex.New(seed)}
}

// Set replaces the active field list, truncating to MaxForceFields
// (spec.md §6 set_force_fields contract: fields is [0..8]).
func (r *ForceFieldRegistry) Set(fields []FieldDescriptor) {
	if len(fields) > MaxForceFields {
		fields = fields[:MaxForceFields]
	}
	r.Fields = append(r.Fields[:0], fields...)
}

// Tick advances field ages by dt and drops expired fields (TTL cleanup).
func (r *ForceFieldRegistry) Tick(dt float32) {
	live := r.Fields[:0]
	for _, f := range r.Fields {
		f.Age += dt
		if !f.Expired() {
			live = append(live, f)
		}
	}
	r.Fields = live
}

const minDistance = 1e-5

// Evaluate returns the velocity contribution of one field at world
// position pos at simulated time t, per spec.md §4.3's per-kind formula
// table. The result still needs to be scaled by dt by the caller (K4).
func (f FieldDescriptor) Evaluate(pos mgl32.Vec3, t float32, noise opensimplex.Noise) mgl32.Vec3 {
	r := pos.Sub(f.Position)
	d := r.Len()
	if d < minDistance {
		d = minDistance
	}
	mag := f.Strength * f.Falloff.Falloff(d, f.Radius)

	switch f.Kind {
	case Attractor:
		return r.Mul(-mag / d)
	case Repeller:
		return r.Mul(mag / d)
	case Vortex:
		axis := safeNormalize(f.Axis, mgl32.Vec3{0, 0, 1})
		dir := axis.Cross(r)
		return safeNormalize(dir, mgl32.Vec3{}).Mul(mag)
	case VortexTube:
		return f.evaluateVortexTube(r, mag)
	case Directional:
		return safeNormalize(f.Axis, mgl32.Vec3{0, 0, 1}).Mul(mag)
	case Turbulence:
		return f.evaluateTurbulence(pos, t, mag, noise)
	default:
		return mgl32.Vec3{}
	}
}

// evaluateVortexTube decomposes r into an axial and a radial (perp)
// component about f.Axis, producing a tangential swirl, an inward pull
// toward the tube's centerline, and a small axial lift (spec.md §4.3).
func (f FieldDescriptor) evaluateVortexTube(r mgl32.Vec3, mag float32) mgl32.Vec3 {
	axis := safeNormalize(f.Axis, mgl32.Vec3{0, 0, 1})
	axialComp := axis.Mul(r.Dot(axis))
	perp := r.Sub(axialComp)

	tangential := safeNormalize(axis.Cross(perp), mgl32.Vec3{}).Mul(mag)
	inward := safeNormalize(perp, mgl32.Vec3{}).Mul(-mag * 0.25)
	axialLift := axis.Mul(mag * 0.1)

	return tangential.Add(inward).Add(axialLift)
}

// evaluateTurbulence samples three offset lattices of 3D simplex noise and
// takes their finite-difference curl, giving a divergence-free-ish
// velocity perturbation (spec.md §4.3: "curl of a low-amplitude 3D
// gradient noise").
func (f FieldDescriptor) evaluateTurbulence(pos mgl32.Vec3, t float32, mag float32, noise opensimplex.Noise) mgl32.Vec3 {
	if noise == nil {
		return mgl32.Vec3{}
	}
	scale := f.TurbulenceScale
	if scale <= 0 {
		scale = 0.1
	}
	rate := f.TurbulenceRate
	x := float64(pos.X())*float64(scale) + float64(t)*float64(rate)
	y := float64(pos.Y())*float64(scale) + float64(t)*float64(rate)
	z := float64(pos.Z())*float64(scale) + float64(t)*float64(rate)

	const h = 1e-2
	// Each potential component reads the noise on its own offset lattice.
	const offY, offZ = 31.416, 57.291
	sampleX := func(dy, dz float64) float64 { return noise.Eval3(x, y+dy, z+dz) }
	sampleY := func(dx, dz float64) float64 { return noise.Eval3(x+dx+offY, y+offY, z+dz+offY) }
	sampleZ := func(dx, dy float64) float64 { return noise.Eval3(x+dx+offZ, y+dy+offZ, z+offZ) }

	dFz_dy := (sampleZ(0, h) - sampleZ(0, -h)) / (2 * h)
	dFy_dz := (sampleY(0, h) - sampleY(0, -h)) / (2 * h)
	dFx_dz := (sampleX(0, h) - sampleX(0, -h)) / (2 * h)
	dFz_dx := (sampleZ(h, 0) - sampleZ(-h, 0)) / (2 * h)
	dFy_dx := (sampleY(h, 0) - sampleY(-h, 0)) / (2 * h)
	dFx_dy := (sampleX(h, 0) - sampleX(-h, 0)) / (2 * h)

	curl := mgl32.Vec3{
		float32(dFz_dy - dFy_dz),
		float32(dFx_dz - dFz_dx),
		float32(dFy_dx - dFx_dy),
	}
	return curl.Mul(mag)
}

func safeNormalize(v, fallback mgl32.Vec3) mgl32.Vec3 {
	if v.Len() < minDistance {
		return fallback
	}
	return v.Normalize()
}

// Evaluate sums all active, non-expired fields' contribution at pos.
func (r *ForceFieldRegistry) Evaluate(pos mgl32.Vec3, t float32) mgl32.Vec3 {
	var total mgl32.Vec3
	for _, f := range r.Fields {
		total = total.Add(f.Evaluate(pos, t, r.noise))
	}
	return total
}

// Curl assembles the curl vector from the six central-difference terms
// the vorticity kernel computes per cell.
func Curl(dwz_dy, dwy_dz, dwx_dz, dwz_dx, dwy_dx, dwx_dy float32) mgl32.Vec3 {
	return mgl32.Vec3{dwz_dy - dwy_dz, dwx_dz - dwz_dx, dwy_dx - dwx_dy}
}
