package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestFluidStressZeroAtRest(t *testing.T) {
	p := DefaultMaterialParams()
	sigma := Stress(Fluid, mgl32.Ident3(), mgl32.Mat3{}, 1, p)
	for i, v := range sigma {
		if v < -1e-6 || v > 1e-6 {
			t.Errorf("sigma[%d] = %f, want ~0 at rest (J=1, C=0)", i, v)
		}
	}
}

func TestFluidStressPressureSign(t *testing.T) {
	p := DefaultMaterialParams()
	// Compressed (J < 1) should produce a positive (outward) pressure term
	// on the diagonal: sigma = -k*(J-1)*I, J-1 < 0 => positive diagonal.
	compressed := scaleMat3(mgl32.Ident3(), 0.5)
	sigma := Stress(Fluid, compressed, mgl32.Mat3{}, 1, p)
	if sigma[0] <= 0 {
		t.Errorf("compressed fluid sigma[0,0] = %f, want > 0", sigma[0])
	}
}

func TestElasticStressIdentityIsZero(t *testing.T) {
	p := DefaultMaterialParams()
	sigma := Stress(Elastic, mgl32.Ident3(), mgl32.Mat3{}, 1, p)
	for i, v := range sigma {
		if v < -1e-3 || v > 1e-3 {
			t.Errorf("elastic sigma[%d] = %f, want ~0 at F=I", i, v)
		}
	}
}

func TestSnowStressDegenerateFGuard(t *testing.T) {
	p := DefaultMaterialParams()
	// A singular F (det = 0) must not produce NaN/Inf stress.
	degenerate := mgl32.Mat3{0, 0, 0, 0, 1, 0, 0, 0, 1}
	sigma := Stress(Snow, degenerate, mgl32.Mat3{}, 1, p)
	for i, v := range sigma {
		if v != v { // NaN check without importing math
			t.Fatalf("snow sigma[%d] is NaN for degenerate F", i)
		}
	}
}

func TestRigidClampsShear(t *testing.T) {
	shear := mgl32.Mat3{0, 1, 0, 0, 0, 0, 0, 0, 0}
	rotOnly := clampToRotation(shear)
	// The symmetric part of a skew-symmetrized shear should vanish on the
	// diagonal.
	if rotOnly[0] != 0 || rotOnly[4] != 0 || rotOnly[8] != 0 {
		t.Errorf("clampToRotation left nonzero diagonal: %v", rotOnly)
	}
}
