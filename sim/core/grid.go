package core

import "github.com/go-gl/mathgl/mgl32"

// MassEpsilon is the minimum cell mass below which velocity is treated as
// zero (spec.md §3 grid-cell invariant).
const MassEpsilon = 1e-6

// GridFixedPointScale is the scale used when emulating f32 atomic-add via
// a fixed-point integer accumulator on GPU backends lacking native f32
// atomics (spec.md §4.1/§9). The CPU reference path below runs single
// threaded per cell group and never needs the emulation; the
// encode/decode helpers apply the same scale as FIXED_SCALE in the WGSL
// kernels under sim/shaders.
const GridFixedPointScale = 1_000_000

// EncodeFixed converts a float accumulator value into the fixed-point
// integer representation used by the GPU atomic-add emulation.
func EncodeFixed(v float32) int64 {
	return int64(v * GridFixedPointScale)
}

// DecodeFixed converts a fixed-point accumulator back to float32.
func DecodeFixed(v int64) float32 {
	return float32(v) / GridFixedPointScale
}

// Cell is one grid node (C1). Vorticity and NeighborDensity are only
// meaningful when the corresponding feature is enabled; the driver still
// allocates them (they default to zero) to keep the array dense and
// avoid branching in hot loops.
type Cell struct {
	Momentum        mgl32.Vec3 // accumulated during P2G, becomes velocity after K4
	Mass            float32
	Vorticity       mgl32.Vec3
	NeighborDensity float32
}

// GridStore is the dense G x G x G cell array (C1). Sparsity is not
// implemented here: the spec explicitly allows a dense array as the
// reference layout and only requires that a sparse layout preserve the
// same per-cell API, which this type already exposes through Index/At.
type GridStore struct {
	Size  int
	cells []Cell
}

func NewGridStore(size int) *GridStore {
	return &GridStore{
		Size:  size,
		cells: make([]Cell, size*size*size),
	}
}

// Index maps a 3D integer coordinate to the flat cell array offset. It
// does not bounds-check; callers use InBounds first.
func (g *GridStore) Index(ix, iy, iz int) int {
	return (iz*g.Size+iy)*g.Size + ix
}

func (g *GridStore) InBounds(ix, iy, iz int) bool {
	return ix >= 0 && iy >= 0 && iz >= 0 && ix < g.Size && iy < g.Size && iz < g.Size
}

func (g *GridStore) At(ix, iy, iz int) *Cell {
	return &g.cells[g.Index(ix, iy, iz)]
}

// Clamp clamps a coordinate into [0, Size) — used for the edge case where
// a particle's base cell is within one cell of the domain edge (spec.md
// §4.5 edge cases: contributions to out-of-range cells are dropped, which
// here means callers check InBounds before scattering rather than using
// Clamp to redirect the write).
func (g *GridStore) Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v >= g.Size {
		return g.Size - 1
	}
	return v
}

// Clear zeroes momentum, mass and (if present) vorticity/neighbor density
// for every cell (K1). Called at the start of every step.
func (g *GridStore) Clear() {
	for i := range g.cells {
		g.cells[i] = Cell{}
	}
}

// TotalMass sums cell mass across the grid — used by the mass-conservation
// test (spec.md §8 property 1).
func (g *GridStore) TotalMass() float32 {
	var total float32
	for i := range g.cells {
		total += g.cells[i].Mass
	}
	return total
}

// TotalMomentum sums cell momentum across the grid — used by the
// momentum-consistency test (spec.md §8 property 2). Momentum here means
// the raw accumulated P2G value, so this must be called before K4
// (grid update) divides it into a velocity.
func (g *GridStore) TotalMomentum() mgl32.Vec3 {
	var total mgl32.Vec3
	for i := range g.cells {
		total = total.Add(g.cells[i].Momentum)
	}
	return total
}
