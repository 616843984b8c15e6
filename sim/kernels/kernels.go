package kernels

import (
	"math"

	"github.com/gekko3d/mlsmpm/sim/core"
	"github.com/go-gl/mathgl/mgl32"
)

// ClearGrid is K1: zero momentum, mass, vorticity and neighbor density for
// every cell.
func ClearGrid(grid *core.GridStore) {
	grid.Clear()
}

// P2G1 is K2: scatter mass and APIC momentum from every live particle onto
// the 27 neighboring cells of its base cell.
func P2G1(particles *core.ParticleStore, grid *core.GridStore) {
	for i := 0; i < particles.Count; i++ {
		if !particles.Live(i) {
			continue
		}
		w := core.ComputeWeights(particles.Position[i])
		v := particles.Velocity[i]
		c := particles.C[i]

		for ii := 0; ii < 3; ii++ {
			for jj := 0; jj < 3; jj++ {
				for kk := 0; kk < 3; kk++ {
					ix, iy, iz := w.CellCoord(ii, jj, kk)
					if !grid.InBounds(ix, iy, iz) {
						continue
					}
					weight := w.Weight(ii, jj, kk)
					dpos := w.Dpos(ii, jj, kk)

					cell := grid.At(ix, iy, iz)
					cell.Mass += weight * ParticleMass
					cell.Momentum = cell.Momentum.Add(
						c.Mul3x1(dpos).Add(v).Mul(weight * ParticleMass),
					)
				}
			}
		}
	}
}

// P2G2 is K3: scatter the stress-derived momentum increment, computed from
// each particle's material law, onto the same 27-neighbor stencil.
func P2G2(particles *core.ParticleStore, grid *core.GridStore, dt float32, params core.MaterialParams) {
	for i := 0; i < particles.Count; i++ {
		if !particles.Live(i) {
			continue
		}
		sigma := core.Stress(particles.Material[i], particles.F[i], particles.C[i], particles.Density[i], params)
		w := core.ComputeWeights(particles.Position[i])
		scale := -dt * ParticleVolume // h = 1, so /h^2 is a no-op

		for ii := 0; ii < 3; ii++ {
			for jj := 0; jj < 3; jj++ {
				for kk := 0; kk < 3; kk++ {
					ix, iy, iz := w.CellCoord(ii, jj, kk)
					if !grid.InBounds(ix, iy, iz) {
						continue
					}
					weight := w.Weight(ii, jj, kk)
					dpos := w.Dpos(ii, jj, kk)

					increment := sigma.Mul3x1(dpos).Mul(scale * weight)
					cell := grid.At(ix, iy, iz)
					cell.Momentum = cell.Momentum.Add(increment)
				}
			}
		}
	}
}

// gravityVector resolves the configured gravity mode into a world-space
// acceleration at cell position p (spec.md §4.5 K4, §6 gravityMode).
func gravityVector(u Uniforms, gridSize int, p mgl32.Vec3) mgl32.Vec3 {
	s := u.GravityStrength
	switch u.GravityMode {
	case DownZ:
		return mgl32.Vec3{0, 0, -s}
	case BackZ:
		return mgl32.Vec3{0, -s, 0}
	case CenterRadial:
		center := mgl32.Vec3{float32(gridSize) / 2, float32(gridSize) / 2, float32(gridSize) / 2}
		d := center.Sub(p)
		if d.Len() < 1e-5 {
			return mgl32.Vec3{}
		}
		return d.Normalize().Mul(s)
	case DeviceSensor:
		axis := u.DeviceGravityAxis
		if axis.Len() < 1e-5 {
			axis = mgl32.Vec3{0, 0, -1}
		} else {
			axis = axis.Normalize()
		}
		return axis.Mul(s)
	default:
		return mgl32.Vec3{0, 0, -s}
	}
}

// GridUpdate is K4: divide accumulated momentum by mass to obtain a
// velocity, apply gravity, force fields and boundary response, and store
// the result back in the cell's Momentum field (reinterpreted as velocity).
func GridUpdate(grid *core.GridStore, u Uniforms, fields *core.ForceFieldRegistry, boundary core.BoundaryDescriptor) {
	for ix := 0; ix < grid.Size; ix++ {
		for iy := 0; iy < grid.Size; iy++ {
			for iz := 0; iz < grid.Size; iz++ {
				cell := grid.At(ix, iy, iz)
				if cell.Mass < core.MassEpsilon {
					cell.Momentum = mgl32.Vec3{}
					continue
				}
				pos := mgl32.Vec3{float32(ix), float32(iy), float32(iz)}
				vel := cell.Momentum.Mul(1 / cell.Mass)

				vel = vel.Add(gravityVector(u, grid.Size, pos).Mul(u.Dt))

				if fields != nil {
					vel = vel.Add(fields.Evaluate(pos, u.SimTime).Mul(u.Dt))
				}

				phi, n := boundary.SignedDistance(pos)
				if phi < boundary.Thickness {
					newV, penaltyAccel := boundary.Respond(vel, n, phi, u.Dt)
					vel = newV.Add(penaltyAccel)
				}

				cell.Momentum = vel
			}
		}
	}
}

// NeighborDensity is K5 (optional): sum the masses of the 27 cells around
// each particle's base cell into a normalized neighbor density, used as
// the surface-tension factor input in G2P.
func NeighborDensity(particles *core.ParticleStore, grid *core.GridStore, restDensity float32) {
	if restDensity <= 0 {
		restDensity = 1
	}
	for i := 0; i < particles.Count; i++ {
		if !particles.Live(i) {
			continue
		}
		w := core.ComputeWeights(particles.Position[i])
		var sum float32
		for ii := 0; ii < 3; ii++ {
			for jj := 0; jj < 3; jj++ {
				for kk := 0; kk < 3; kk++ {
					ix, iy, iz := w.CellCoord(ii, jj, kk)
					if !grid.InBounds(ix, iy, iz) {
						continue
					}
					sum += grid.At(ix, iy, iz).Mass
				}
			}
		}
		particles.Density[i] = sum / (27 * restDensity)
	}
}

// Vorticity is K6 (optional): compute curl(u) per cell by central
// differences, then apply the confinement force ε·(N × ω) back into cell
// velocity.
func Vorticity(grid *core.GridStore, dt float32, epsilon float32) {
	size := grid.Size
	curl := make([]mgl32.Vec3, size*size*size)

	vel := func(ix, iy, iz int) mgl32.Vec3 {
		ix = grid.Clamp(ix)
		iy = grid.Clamp(iy)
		iz = grid.Clamp(iz)
		return grid.At(ix, iy, iz).Momentum
	}

	for ix := 0; ix < size; ix++ {
		for iy := 0; iy < size; iy++ {
			for iz := 0; iz < size; iz++ {
				dUzDy := (vel(ix, iy+1, iz).Z() - vel(ix, iy-1, iz).Z()) * 0.5
				dUyDz := (vel(ix, iy, iz+1).Y() - vel(ix, iy, iz-1).Y()) * 0.5
				dUxDz := (vel(ix, iy, iz+1).X() - vel(ix, iy, iz-1).X()) * 0.5
				dUzDx := (vel(ix+1, iy, iz).Z() - vel(ix-1, iy, iz).Z()) * 0.5
				dUyDx := (vel(ix+1, iy, iz).Y() - vel(ix-1, iy, iz).Y()) * 0.5
				dUxDy := (vel(ix, iy+1, iz).X() - vel(ix, iy-1, iz).X()) * 0.5

				w := core.Curl(dUzDy, dUyDz, dUxDz, dUzDx, dUyDx, dUxDy)
				cell := grid.At(ix, iy, iz)
				cell.Vorticity = w
				curl[grid.Index(ix, iy, iz)] = w
			}
		}
	}

	curlMag := func(ix, iy, iz int) float32 {
		ix = grid.Clamp(ix)
		iy = grid.Clamp(iy)
		iz = grid.Clamp(iz)
		return curl[grid.Index(ix, iy, iz)].Len()
	}

	for ix := 0; ix < size; ix++ {
		for iy := 0; iy < size; iy++ {
			for iz := 0; iz < size; iz++ {
				grad := mgl32.Vec3{
					(curlMag(ix+1, iy, iz) - curlMag(ix-1, iy, iz)) * 0.5,
					(curlMag(ix, iy+1, iz) - curlMag(ix, iy-1, iz)) * 0.5,
					(curlMag(ix, iy, iz+1) - curlMag(ix, iy, iz-1)) * 0.5,
				}
				if grad.Len() < 1e-6 {
					continue
				}
				n := grad.Normalize()
				w := curl[grid.Index(ix, iy, iz)]
				force := n.Cross(w).Mul(epsilon)
				cell := grid.At(ix, iy, iz)
				cell.Momentum = cell.Momentum.Add(force.Mul(dt))
			}
		}
	}
}

// G2P is K7: gather grid velocity back onto each particle with the
// FLIP/PIC blend, optional surface-tension cohesion, advection, and
// deformation-gradient/affine-velocity update.
func G2P(particles *core.ParticleStore, grid *core.GridStore, u Uniforms, boundary core.BoundaryDescriptor) {
	alpha := u.TransferMode.EffectiveFlipRatio(u.FlipRatio)

	for i := 0; i < particles.Count; i++ {
		if !particles.Live(i) {
			continue
		}
		w := core.ComputeWeights(particles.Position[i])

		var vPic mgl32.Vec3
		var cNew mgl32.Mat3
		var comWeighted mgl32.Vec3
		var massSum float32

		for ii := 0; ii < 3; ii++ {
			for jj := 0; jj < 3; jj++ {
				for kk := 0; kk < 3; kk++ {
					ix, iy, iz := w.CellCoord(ii, jj, kk)
					if !grid.InBounds(ix, iy, iz) {
						continue
					}
					weight := w.Weight(ii, jj, kk)
					dpos := w.Dpos(ii, jj, kk)
					cell := grid.At(ix, iy, iz)
					cellVel := cell.Momentum // already velocity, post-K4

					vPic = vPic.Add(cellVel.Mul(weight))
					cNew = addOuter4(cNew, cellVel, dpos, weight)

					if u.SurfaceTensionEnabled && cell.Mass > core.MassEpsilon {
						cellPos := mgl32.Vec3{float32(ix), float32(iy), float32(iz)}
						comWeighted = comWeighted.Add(cellPos.Mul(cell.Mass))
						massSum += cell.Mass
					}
				}
			}
		}

		vOld := particles.Velocity[i]
		vFlip := vOld // spec.md §9 open question: no previous-grid velocity retained
		vNew := vFlip.Mul(alpha).Add(vPic.Mul(1 - alpha))

		if u.SurfaceTensionEnabled && massSum > 0 {
			com := comWeighted.Mul(1 / massSum)
			dir := com.Sub(particles.Position[i])
			if dir.Len() > 1e-5 {
				cohDir := dir.Normalize()
				s := float32(0)
				if rho := particles.Density[i]; rho < 1 {
					s = 1 - rho
				}
				vNew = vNew.Add(cohDir.Mul(u.SurfaceTensionCoeff * s * u.Dt))
			}
		}

		newPos := particles.Position[i].Add(vNew.Mul(u.Dt))
		if phi, n := boundary.SignedDistance(newPos); phi < boundary.Thickness {
			if boundary.CollisionMode == core.Kill {
				particles.Kill(i)
			} else {
				respV, _ := boundary.Respond(vNew, n, phi, u.Dt)
				vNew = respV
				if boundary.CollisionMode == core.Wrap {
					newPos = boundary.WrapPosition(newPos)
				}
			}
		}

		particles.Position[i] = newPos
		particles.Velocity[i] = vNew
		particles.C[i] = cNew

		deltaF := addMat3I(scaleMat3Local(cNew, u.Dt))
		particles.F[i] = deltaF.Mul3(particles.F[i])

		if j := particles.F[i].Det(); j <= 0 || math.IsNaN(float64(j)) {
			particles.F[i] = mgl32.Ident3()
			particles.Velocity[i] = mgl32.Vec3{}
		}

		particles.Age[i] += u.Dt
		if particles.Age[i] >= particles.Lifetime[i] {
			particles.Kill(i)
		}
	}
}

// addOuter4 accumulates the (4/h²)·weight·u_cell·dposᵀ outer product into
// the running C_new matrix (h = 1, so the factor is just 4·weight).
func addOuter4(acc mgl32.Mat3, u, dpos mgl32.Vec3, weight float32) mgl32.Mat3 {
	scale := 4 * weight
	outer := mgl32.Mat3{
		u.X() * dpos.X(), u.Y() * dpos.X(), u.Z() * dpos.X(),
		u.X() * dpos.Y(), u.Y() * dpos.Y(), u.Z() * dpos.Y(),
		u.X() * dpos.Z(), u.Y() * dpos.Z(), u.Z() * dpos.Z(),
	}
	for i := range outer {
		acc[i] += outer[i] * scale
	}
	return acc
}

func scaleMat3Local(m mgl32.Mat3, s float32) mgl32.Mat3 {
	for i := range m {
		m[i] *= s
	}
	return m
}

// addMat3I returns I + m, used to build the deformation-gradient update
// factor (I + Δt·C_new).
func addMat3I(m mgl32.Mat3) mgl32.Mat3 {
	id := mgl32.Ident3()
	for i := range m {
		m[i] += id[i]
	}
	return m
}

// Step runs the full K1-K7 pipeline once, in the strict order spec.md §5
// requires, with neighbor-density and vorticity gated by their enable
// flags.
func Step(particles *core.ParticleStore, grid *core.GridStore, fields *core.ForceFieldRegistry, boundary core.BoundaryDescriptor, u Uniforms) {
	ClearGrid(grid)
	P2G1(particles, grid)
	P2G2(particles, grid, u.Dt, u.Material)
	GridUpdate(grid, u, fields, boundary)
	if u.SurfaceTensionEnabled {
		NeighborDensity(particles, grid, u.Material.RestDensity)
	}
	if u.VorticityEnabled {
		Vorticity(grid, u.Dt, u.VorticityEpsilon)
	}
	G2P(particles, grid, u, boundary)
}
