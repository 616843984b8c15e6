package core

import "github.com/go-gl/mathgl/mgl32"

// Weights3 holds the per-axis quadratic B-spline weights and the base
// cell / fractional offset used by every 27-neighbor scatter/gather in
// K2, K3, K5 and K7 (spec.md §4.5 K2).
type Weights3 struct {
	Base mgl32.Vec3 // floor(p - 0.5), integer-valued
	Fx   mgl32.Vec3 // p - Base, in [0.5, 1.5)
	Wx   [3]float32
	Wy   [3]float32
	Wz   [3]float32
}

func floor3(v float32) float32 {
	f := float32(int32(v))
	if v < 0 && f != v {
		f -= 1
	}
	return f
}

func quadraticWeights(fx float32) [3]float32 {
	return [3]float32{
		0.5 * (1.5 - fx) * (1.5 - fx),
		0.75 - (fx-1)*(fx-1),
		0.5 * (fx - 0.5) * (fx - 0.5),
	}
}

// ComputeWeights returns the base cell, fractional offset and the three
// per-axis quadratic B-spline weight triples for particle position p
// (spec.md §4.5 K2).
func ComputeWeights(p mgl32.Vec3) Weights3 {
	base := mgl32.Vec3{floor3(p.X() - 0.5), floor3(p.Y() - 0.5), floor3(p.Z() - 0.5)}
	fx := p.Sub(base)
	return Weights3{
		Base: base,
		Fx:   fx,
		Wx:   quadraticWeights(fx.X()),
		Wy:   quadraticWeights(fx.Y()),
		Wz:   quadraticWeights(fx.Z()),
	}
}

// Weight returns the scalar weight for neighbor offset (i,j,k) in {0,1,2}^3.
func (w Weights3) Weight(i, j, k int) float32 {
	return w.Wx[i] * w.Wy[j] * w.Wz[k]
}

// Dpos returns the offset vector (i,j,k) - fx + 0.5 used both as the APIC
// affine sample point and as the stress lever arm (spec.md §4.5 K2/K3).
func (w Weights3) Dpos(i, j, k int) mgl32.Vec3 {
	return mgl32.Vec3{
		float32(i) - w.Fx.X() + 0.5,
		float32(j) - w.Fx.Y() + 0.5,
		float32(k) - w.Fx.Z() + 0.5,
	}
}

// CellCoord returns the integer grid coordinate of neighbor (i,j,k).
func (w Weights3) CellCoord(i, j, k int) (int, int, int) {
	return int(w.Base.X()) + i, int(w.Base.Y()) + j, int(w.Base.Z()) + k
}

// PartitionOfUnity sums all 27 neighbor weights; spec.md §8 property 3
// requires this equal 1 for any fractional position in [0,1)^3 (here
// tested for arbitrary positions since the weight construction is
// translation-invariant in the fractional part).
func (w Weights3) PartitionOfUnity() float32 {
	var sum float32
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				sum += w.Weight(i, j, k)
			}
		}
	}
	return sum
}
