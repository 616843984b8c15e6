package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestPartitionOfUnity(t *testing.T) {
	positions := []mgl32.Vec3{
		{10.0, 10.0, 10.0},
		{10.25, 10.75, 10.5},
		{31.999, 0.001, 15.5},
		{7.3, 22.6, 3.1},
	}
	for _, p := range positions {
		w := ComputeWeights(p)
		sum := w.PartitionOfUnity()
		if diff := sum - 1; diff > 1e-4 || diff < -1e-4 {
			t.Errorf("partition of unity at %v = %f, want 1", p, sum)
		}
	}
}

func TestWeightNonNegative(t *testing.T) {
	w := ComputeWeights(mgl32.Vec3{12.3, 4.5, 9.9})
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				if v := w.Weight(i, j, k); v < 0 {
					t.Errorf("weight(%d,%d,%d) = %f, want >= 0", i, j, k, v)
				}
			}
		}
	}
}
