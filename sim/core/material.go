package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	gmat "gonum.org/v1/gonum/mat"
)

// MaterialParams holds the tunable coefficients every stress law reads
// from (spec.md §6 config keys: stiffness, dynamicViscosity, restDensity,
// plus the per-material multipliers this SPEC_FULL.md adds).
type MaterialParams struct {
	Stiffness        float32
	DynamicViscosity float32
	RestDensity      float32

	YoungsModulus float32
	PoissonRatio  float32

	SandFriction float32 // radians

	SnowCriticalCompression float32
	SnowCriticalStretch     float32

	FoamStiffnessMul   float32
	ViscousViscosityMul float32
	PlasmaStiffnessMul  float32
}

// DefaultMaterialParams mirrors the kind of sane defaults a config file
// ships (spec.md allows the implementer to pick reasonable constants).
func DefaultMaterialParams() MaterialParams {
	return MaterialParams{
		Stiffness:               4.0,
		DynamicViscosity:        0.1,
		RestDensity:             1.0,
		YoungsModulus:           1400,
		PoissonRatio:            0.2,
		SandFriction:            0.6,
		SnowCriticalCompression: 0.025,
		SnowCriticalStretch:     0.0075,
		FoamStiffnessMul:        0.6,
		ViscousViscosityMul:     4.0,
		PlasmaStiffnessMul:      1.8,
	}
}

func scaleMat3(m mgl32.Mat3, s float32) mgl32.Mat3 {
	for i := range m {
		m[i] *= s
	}
	return m
}

func addMat3(a, b mgl32.Mat3) mgl32.Mat3 {
	var r mgl32.Mat3
	for i := range a {
		r[i] = a[i] + b[i]
	}
	return r
}

func subMat3(a, b mgl32.Mat3) mgl32.Mat3 {
	var r mgl32.Mat3
	for i := range a {
		r[i] = a[i] - b[i]
	}
	return r
}

// Stress computes sigma(material, F, C, density) per spec.md §4.5's
// material stress policy. The Fluid form is mandated by the spec; the
// other materials are a SUPPLEMENTED addition (spec.md leaves them
// structural) that exercises gonum/mat for the Sand/Snow projection.
func Stress(material MaterialID, F, C mgl32.Mat3, density float32, p MaterialParams) mgl32.Mat3 {
	switch material {
	case Elastic:
		return neoHookeanStress(F, p)
	case Sand:
		return druckerPragerStress(F, p)
	case Snow:
		return snowStress(F, p)
	case Foam:
		return fluidStress(F, C, density, p.Stiffness*p.FoamStiffnessMul, p.DynamicViscosity)
	case Viscous:
		return fluidStress(F, C, density, p.Stiffness, p.DynamicViscosity*p.ViscousViscosityMul)
	case Rigid:
		return fluidStress(F, clampToRotation(C), density, p.Stiffness, p.DynamicViscosity)
	case Plasma:
		return fluidStress(F, C, density, p.Stiffness*p.PlasmaStiffnessMul, p.DynamicViscosity*0.5)
	case Fluid:
		fallthrough
	default:
		return fluidStress(F, C, density, p.Stiffness, p.DynamicViscosity)
	}
}

// fluidStress implements spec.md §4.5: sigma = -k*(J-1)*I + nu*(C + C^T).
func fluidStress(F, C mgl32.Mat3, density float32, stiffness, viscosity float32) mgl32.Mat3 {
	j := F.Det()
	pressure := -stiffness * (j - 1)
	pressureTerm := scaleMat3(mgl32.Ident3(), pressure)
	viscousTerm := scaleMat3(addMat3(C, C.Transpose()), viscosity)
	return addMat3(pressureTerm, viscousTerm)
}

// neoHookeanStress implements the Elastic law from SPEC_FULL.md §4.5:
// P = mu*(F - F^-T) + lambda*log(J)*F^-T, sigma = (1/J)*P*F^T.
func neoHookeanStress(F mgl32.Mat3, p MaterialParams) mgl32.Mat3 {
	j := F.Det()
	if j <= 1e-6 {
		return mgl32.Mat3{}
	}
	mu, lambda := lameParameters(p.YoungsModulus, p.PoissonRatio)

	fInvT := F.Inv().Transpose()
	term1 := subMat3(F, fInvT)
	term2 := scaleMat3(fInvT, lambda*float32(math.Log(float64(j))))
	piolaStress := addMat3(scaleMat3(term1, mu), term2)

	sigma := piolaStress.Mul3(F.Transpose())
	return scaleMat3(sigma, 1/j)
}

// lameParameters converts (E, nu) to Lame's (mu, lambda).
func lameParameters(young, poisson float32) (mu, lambda float32) {
	mu = young / (2 * (1 + poisson))
	lambda = young * poisson / ((1 + poisson) * (1 - 2*poisson))
	return
}

// druckerPragerStress applies a simplified sand yield projection: singular
// values of F are decomposed with gonum/mat (since mgl32 has no SVD), and
// any singular value below the friction-derived bound exp(-SandFriction)
// is raised to it before the elastic (Neo-Hookean-ish) response is
// evaluated on the projected F.
func druckerPragerStress(F mgl32.Mat3, p MaterialParams) mgl32.Mat3 {
	u, sigma, v := svd3(F)
	bound := float32(math.Exp(float64(-p.SandFriction)))
	for i := 0; i < 3; i++ {
		if sigma[i] < bound {
			sigma[i] = bound
		}
	}
	projected := recompose3(u, sigma, v)
	return neoHookeanStress(projected, p)
}

// snowStress clamps singular values to [1-criticalCompression,
// 1+criticalStretch] before applying the elastic response, per the
// standard snow plasticity formulation referenced in spec.md §4.5.
func snowStress(F mgl32.Mat3, p MaterialParams) mgl32.Mat3 {
	u, sigma, v := svd3(F)
	lo := 1 - p.SnowCriticalCompression
	hi := 1 + p.SnowCriticalStretch
	for i := 0; i < 3; i++ {
		if sigma[i] < lo {
			sigma[i] = lo
		} else if sigma[i] > hi {
			sigma[i] = hi
		}
	}
	projected := recompose3(u, sigma, v)
	return neoHookeanStress(projected, p)
}

// clampToRotation approximates spec.md's "clamped C" for Rigid by
// skew-symmetrizing C (keeping only the rotational part of the affine
// velocity field, discarding shear/stretch).
func clampToRotation(C mgl32.Mat3) mgl32.Mat3 {
	return scaleMat3(subMat3(C, C.Transpose()), 0.5)
}

// svd3 runs a 3x3 SVD via gonum/mat and returns U, the singular values,
// and V such that F = U * diag(sigma) * V^T.
func svd3(F mgl32.Mat3) (u mgl32.Mat3, sigma [3]float32, v mgl32.Mat3) {
	data := make([]float64, 9)
	for i := 0; i < 9; i++ {
		data[i] = float64(F[i])
	}
	// mgl32.Mat3 is column-major; gmat.NewDense wants row-major input, so
	// transpose indices while filling.
	m := gmat.NewDense(3, 3, nil)
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m.Set(row, col, data[col*3+row])
		}
	}

	var svd gmat.SVD
	ok := svd.Factorize(m, gmat.SVDFull)
	if !ok {
		return mgl32.Ident3(), [3]float32{1, 1, 1}, mgl32.Ident3()
	}
	sv := svd.Values(nil)
	var um, vm gmat.Dense
	svd.UTo(&um)
	svd.VTo(&vm)

	for i := 0; i < 3; i++ {
		sigma[i] = float32(sv[i])
	}
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			u[col*3+row] = float32(um.At(row, col))
			v[col*3+row] = float32(vm.At(row, col))
		}
	}
	return u, sigma, v
}

func recompose3(u mgl32.Mat3, sigma [3]float32, v mgl32.Mat3) mgl32.Mat3 {
	S := mgl32.Mat3{sigma[0], 0, 0, 0, sigma[1], 0, 0, 0, sigma[2]}
	return u.Mul3(S).Mul3(v.Transpose())
}
