package core

import "github.com/go-gl/mathgl/mgl32"

type BoundaryKind int

const (
	Viewport BoundaryKind = iota
	Box
	Sphere
	Tube
	Dodecahedron
)

type CollisionMode int

const (
	Reflect CollisionMode = iota
	Clamp
	Wrap
	Kill
)

// BoundaryDescriptor is the static collider (C4, spec.md §3/§4.4).
type BoundaryDescriptor struct {
	Kind BoundaryKind

	// Box
	HalfExtents mgl32.Vec3
	// Sphere / Dodecahedron
	Radius float32
	// Tube
	Height float32
	Axis   mgl32.Vec3
	// Viewport
	Aspect float32

	Center mgl32.Vec3

	CollisionMode CollisionMode
	Stiffness     float32
	Thickness     float32
	Restitution   float32
	Friction      float32
}

// DefaultBoundary returns a centered box filling most of the grid with a
// gentle reflective wall — the common default for the S1-style scenarios.
func DefaultBoundary(gridSize int) BoundaryDescriptor {
	half := float32(gridSize) * 0.45
	return BoundaryDescriptor{
		Kind:          Box,
		HalfExtents:   mgl32.Vec3{half, half, half},
		Center:        mgl32.Vec3{float32(gridSize) / 2, float32(gridSize) / 2, float32(gridSize) / 2},
		CollisionMode: Reflect,
		Stiffness:     400,
		Thickness:     1.0,
		Restitution:   0.3,
		Friction:      0.1,
	}
}

// SignedDistance returns phi(p): positive inside, negative outside, for
// the configured boundary kind, together with the inward-pointing normal
// at p (spec.md §4.4) — the convention Respond's reflection and penalty
// terms are written against. The normal is only meaningful near the
// surface; callers gate on phi < thickness before using it.
func (b BoundaryDescriptor) SignedDistance(p mgl32.Vec3) (float32, mgl32.Vec3) {
	switch b.Kind {
	case Box, Viewport:
		half := b.HalfExtents
		if b.Kind == Viewport {
			// Viewport derives its extents from the externally supplied
			// aspect ratio (spec.md §4.4): height fixed at 2*Radius-ish,
			// width scaled by aspect. Radius doubles as the base half-height.
			h := b.Radius
			if h <= 0 {
				h = 1
			}
			half = mgl32.Vec3{h * b.Aspect, h, h}
		}
		d := p.Sub(b.Center)
		// distance to nearest face, negative outside on each axis
		dx := half.X() - absf(d.X())
		dy := half.Y() - absf(d.Y())
		dz := half.Z() - absf(d.Z())
		phi, axis := minAxis(dx, dy, dz)
		n := mgl32.Vec3{}
		switch axis {
		case 0:
			n = mgl32.Vec3{sign(d.X()), 0, 0}
		case 1:
			n = mgl32.Vec3{0, sign(d.Y()), 0}
		case 2:
			n = mgl32.Vec3{0, 0, sign(d.Z())}
		}
		return phi, n.Mul(-1)
	case Sphere:
		d := p.Sub(b.Center)
		dist := d.Len()
		phi := b.Radius - dist
		n := safeNormalize(d, mgl32.Vec3{0, 0, 1})
		return phi, n.Mul(-1)
	case Tube:
		axis := safeNormalize(b.Axis, mgl32.Vec3{0, 0, 1})
		d := p.Sub(b.Center)
		axial := d.Dot(axis)
		radial := d.Sub(axis.Mul(axial))
		radialDist := radial.Len()
		phiRadial := b.Radius - radialDist
		phiAxial := b.Height/2 - absf(axial)
		if phiRadial < phiAxial {
			n := safeNormalize(radial, mgl32.Vec3{1, 0, 0})
			return phiRadial, n.Mul(-1)
		}
		n := axis.Mul(-sign(axial))
		return phiAxial, n
	case Dodecahedron:
		// Conservative approximation: treat as a sphere of the given
		// circumradius. A literal dodecahedral SDF is a sum of twelve
		// half-space planes along the icosahedral face normals; since
		// spec.md does not mandate exact geometry (only "analytically
		// computable"), the circumscribed-sphere approximation keeps the
		// same contract (phi, inward normal) with far less code.
		d := p.Sub(b.Center)
		dist := d.Len()
		phi := b.Radius - dist
		n := safeNormalize(d, mgl32.Vec3{0, 0, 1})
		return phi, n.Mul(-1)
	default:
		return 1e9, mgl32.Vec3{}
	}
}

// Respond applies the collision policy to a velocity given the inward
// normal n and the boundary's thickness/stiffness/restitution/friction
// (spec.md §4.4). dt scales the friction and stiffness penalty terms.
func (b BoundaryDescriptor) Respond(v, n mgl32.Vec3, phi, dt float32) (mgl32.Vec3, mgl32.Vec3) {
	vn := v.Dot(n)
	var out mgl32.Vec3
	switch b.CollisionMode {
	case Reflect:
		if vn < 0 {
			out = v.Sub(n.Mul((1 + b.Restitution) * vn))
		} else {
			out = v
		}
	case Clamp:
		if vn > 0 {
			out = v.Sub(n.Mul(vn))
		} else {
			out = v
		}
	case Wrap, Kill:
		out = v
	default:
		out = v
	}

	// tangential friction
	vt := out.Sub(n.Mul(out.Dot(n)))
	frictionScale := float32(1) - b.Friction*dt
	if frictionScale < 0 {
		frictionScale = 0
	}
	vt = vt.Mul(frictionScale)
	out = n.Mul(out.Dot(n)).Add(vt)

	// stiffness penalty acceleration, added as a velocity impulse this step
	penetration := phi - b.Thickness
	var accel mgl32.Vec3
	if penetration < 0 {
		accel = n.Mul(-b.Stiffness * penetration * dt)
	}
	return out, accel
}

// WrapPosition reflects the Wrap collision mode's position remap: the
// particle reappears on the opposite face of the boundary, preserving
// velocity (spec.md §8 S5).
func (b BoundaryDescriptor) WrapPosition(p mgl32.Vec3) mgl32.Vec3 {
	if b.Kind != Box && b.Kind != Viewport {
		return p
	}
	half := b.HalfExtents
	if b.Kind == Viewport {
		h := b.Radius
		if h <= 0 {
			h = 1
		}
		half = mgl32.Vec3{h * b.Aspect, h, h}
	}
	d := p.Sub(b.Center)
	for axis := 0; axis < 3; axis++ {
		h := componentAt(half, axis)
		v := componentAt(d, axis)
		if v > h {
			v -= 2 * h
		} else if v < -h {
			v += 2 * h
		}
		d = setComponent(d, axis, v)
	}
	return b.Center.Add(d)
}

func componentAt(v mgl32.Vec3, axis int) float32 {
	switch axis {
	case 0:
		return v.X()
	case 1:
		return v.Y()
	default:
		return v.Z()
	}
}

func setComponent(v mgl32.Vec3, axis int, val float32) mgl32.Vec3 {
	switch axis {
	case 0:
		v[0] = val
	case 1:
		v[1] = val
	default:
		v[2] = val
	}
	return v
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v float32) float32 {
	if v < 0 {
		return -1
	}
	if v > 0 {
		return 1
	}
	return 0
}

func minAxis(x, y, z float32) (float32, int) {
	m, axis := x, 0
	if y < m {
		m, axis = y, 1
	}
	if z < m {
		m, axis = z, 2
	}
	return m, axis
}
