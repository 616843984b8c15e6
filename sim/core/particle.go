// Package core holds the data model shared by the CPU kernel pipeline and
// the GPU buffer manager: particles, grid cells, force fields, boundaries
// and material stress laws.
package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// MaterialID tags a particle's constitutive law.
type MaterialID int

const (
	Fluid MaterialID = iota
	Elastic
	Sand
	Snow
	Foam
	Viscous
	Rigid
	Plasma
)

func (m MaterialID) String() string {
	switch m {
	case Fluid:
		return "fluid"
	case Elastic:
		return "elastic"
	case Sand:
		return "sand"
	case Snow:
		return "snow"
	case Foam:
		return "foam"
	case Viscous:
		return "viscous"
	case Rigid:
		return "rigid"
	case Plasma:
		return "plasma"
	default:
		return "unknown"
	}
}

// ParticleStore is the SoA particle buffer (C2). Fields are allocated once
// at capacity N; Count tracks the number of live slots after Reset.
type ParticleStore struct {
	ID       []uuid.UUID
	Position []mgl32.Vec3
	Velocity []mgl32.Vec3
	C        []mgl32.Mat3 // affine velocity field (APIC)
	F        []mgl32.Mat3 // deformation gradient
	Density  []float32
	Material []MaterialID
	Age      []float32
	Lifetime []float32 // math.Inf(1) means immortal
	Active   []bool

	Count int
}

// NewParticleStore allocates a store with capacity n; call Reset to seed it.
func NewParticleStore(n int) *ParticleStore {
	return &ParticleStore{
		ID:       make([]uuid.UUID, n),
		Position: make([]mgl32.Vec3, n),
		Velocity: make([]mgl32.Vec3, n),
		C:        make([]mgl32.Mat3, n),
		F:        make([]mgl32.Mat3, n),
		Density:  make([]float32, n),
		Material: make([]MaterialID, n),
		Age:      make([]float32, n),
		Lifetime: make([]float32, n),
		Active:   make([]bool, n),
		Count:    n,
	}
}

// Cap returns the fixed allocation size (len of the backing slices).
func (p *ParticleStore) Cap() int { return len(p.Position) }

// InitialDistribution seeds particle positions; implementations are free
// to ignore grid size and sample however suits the distribution.
type InitialDistribution func(index, count int, gridSize int) mgl32.Vec3

// CubeDistribution packs particles into a centered cube of the given
// half-extent (in grid cells), one particle per lattice cell centre with
// no jitter, so repeated resets with the same count are reproducible.
func CubeDistribution(halfExtent float32) InitialDistribution {
	return func(index, count, gridSize int) mgl32.Vec3 {
		center := float32(gridSize) / 2
		side := int(math.Cbrt(float64(count))) + 1
		ix := index % side
		iy := (index / side) % side
		iz := index / (side * side)
		step := 2 * halfExtent / float32(side)
		return mgl32.Vec3{
			center - halfExtent + (float32(ix)+0.5)*step,
			center - halfExtent + (float32(iy)+0.5)*step,
			center - halfExtent + (float32(iz)+0.5)*step,
		}
	}
}

// SphericalShellDistribution places particles on a ring/shell of the given
// radius about the grid center, in the XY plane lifted to z = gridSize/2 —
// used by the vortex-persistence scenario (spec.md S2).
func SphericalShellDistribution(radius float32) InitialDistribution {
	return func(index, count, gridSize int) mgl32.Vec3 {
		center := float32(gridSize) / 2
		theta := 2 * math.Pi * float64(index) / float64(max(count, 1))
		return mgl32.Vec3{
			center + radius*float32(math.Cos(theta)),
			center + radius*float32(math.Sin(theta)),
			center,
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Reset re-seeds the first n slots (n <= Cap()) and zeroes dynamics; the
// rest of the backing storage is left inactive. Passing n == 0 keeps the
// previously configured count.
func (p *ParticleStore) Reset(n int, gridSize int, dist InitialDistribution, material MaterialID, lifetime float32) {
	if n <= 0 {
		n = p.Count
	}
	if n > p.Cap() {
		n = p.Cap()
	}
	if dist == nil {
		dist = CubeDistribution(float32(gridSize) / 4)
	}
	identity := mgl32.Ident3()
	for i := 0; i < p.Cap(); i++ {
		if i < n {
			p.ID[i] = uuid.New()
			p.Position[i] = dist(i, n, gridSize)
			p.Velocity[i] = mgl32.Vec3{}
			p.C[i] = mgl32.Mat3{}
			p.F[i] = identity
			p.Density[i] = 0
			p.Material[i] = material
			p.Age[i] = 0
			p.Lifetime[i] = lifetime
			p.Active[i] = true
		} else {
			p.Active[i] = false
		}
	}
	p.Count = n
}

// Live reports whether slot i is active and has not exceeded its lifetime.
func (p *ParticleStore) Live(i int) bool {
	return p.Active[i] && p.Age[i] < p.Lifetime[i]
}

// Kill marks a particle inactive (used by Kill boundary response and
// lifetime expiry).
func (p *ParticleStore) Kill(i int) {
	p.Active[i] = false
}

// AttributeView is a read-only handle to the particle position, velocity,
// density, material and active fields, usable by renderers between
// completed steps. It never exposes the backing slice
// directly so callers cannot mutate simulator-owned memory.
type AttributeView struct {
	positions []mgl32.Vec3
	velocities []mgl32.Vec3
	densities []float32
	materials []MaterialID
	actives   []bool
}

func (p *ParticleStore) AttributeView() AttributeView {
	return AttributeView{
		positions:  p.Position,
		velocities: p.Velocity,
		densities:  p.Density,
		materials:  p.Material,
		actives:    p.Active,
	}
}

func (v AttributeView) Len() int                 { return len(v.positions) }
func (v AttributeView) Position(i int) mgl32.Vec3 { return v.positions[i] }
func (v AttributeView) Velocity(i int) mgl32.Vec3 { return v.velocities[i] }
func (v AttributeView) Density(i int) float32     { return v.densities[i] }
func (v AttributeView) Material(i int) MaterialID { return v.materials[i] }
func (v AttributeView) Active(i int) bool         { return v.actives[i] }
