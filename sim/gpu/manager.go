// Package gpu dispatches the K1-K7 compute kernels on a wgpu.Device. It
// mirrors the CPU reference path in sim/kernels field-for-field; the WGSL
// in sim/shaders is the law of record for what actually runs here. This
// package has no CPU-side fallback and is exercised only when a real
// wgpu.Device is available, so it stays outside the property-test suite
// that covers sim/kernels.
package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/mlsmpm/sim/core"
	"github.com/gekko3d/mlsmpm/sim/kernels"
	"github.com/gekko3d/mlsmpm/sim/shaders"
)

// particleStride is the byte size of one GPU-side particle record, laid out
// as the WGSL Particle struct: position, velocity, c0/c1/c2, f0/f1 each
// vec3+pad; f2 vec3 with density in its trailing word (offset 124); age,
// lifetime, active; one pad word to keep the struct a multiple of 16 bytes.
const particleStride = 16*8 + 16

// cellStride mirrors the Cell struct shared by every shader in sim/shaders:
// four atomic<i32> words, a vec3 vorticity (padded to 16), and a
// neighbor_density float packed into the pad.
const cellStride = 16 + 16

// fieldStride mirrors the Field struct in grid_update.wgsl.
const fieldStride = 16 + 16 + 16 + 16 // kind+pad, position+pad, axis+strength, radius+falloff+pad

// Manager owns the device-side buffers and pipelines for one simulation's
// GPU execution path. Zero value is not usable; construct with New.
type Manager struct {
	Device *wgpu.Device

	ParticleBuf *wgpu.Buffer
	GridBuf     *wgpu.Buffer
	FieldsBuf   *wgpu.Buffer

	ClearGridUniformBuf   *wgpu.Buffer
	P2G1UniformBuf        *wgpu.Buffer
	P2G2UniformBuf        *wgpu.Buffer
	GridUpdateUniformBuf  *wgpu.Buffer
	NeighborDensityUBuf   *wgpu.Buffer
	VorticityUniformBuf   *wgpu.Buffer
	G2PUniformBuf         *wgpu.Buffer
	ReduceReadbackBuf     *wgpu.Buffer

	clearGridPipeline      *wgpu.ComputePipeline
	p2g1Pipeline           *wgpu.ComputePipeline
	p2g2Pipeline           *wgpu.ComputePipeline
	gridUpdatePipeline     *wgpu.ComputePipeline
	neighborDensityPipe    *wgpu.ComputePipeline
	vorticityCurlPipeline  *wgpu.ComputePipeline
	vorticityConfinePipe   *wgpu.ComputePipeline
	g2pPipeline            *wgpu.ComputePipeline

	particleCount int
	gridSize      int

	mapped bool
}

// New builds compute pipelines for every kernel from the embedded WGSL and
// allocates the particle/grid/field buffers sized for particleCount and
// gridSize (spec.md §6 particleCount/gridSize).
func New(device *wgpu.Device, particleCount, gridSize int) (*Manager, error) {
	m := &Manager{Device: device, particleCount: particleCount, gridSize: gridSize}

	modules := map[string]string{
		"clear_grid":        shaders.ClearGridWGSL,
		"p2g1":               shaders.P2G1WGSL,
		"p2g2":               shaders.P2G2WGSL,
		"grid_update":        shaders.GridUpdateWGSL,
		"neighbor_density":   shaders.NeighborDensityWGSL,
		"vorticity_curl":     shaders.VorticityWGSL,
		"vorticity_confine":  shaders.VorticityWGSL,
		"g2p":                shaders.G2PWGSL,
	}
	pipelines := make(map[string]*wgpu.ComputePipeline, len(modules))
	for entry, code := range modules {
		mod, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:          fmt.Sprintf("mlsmpm-%s", entry),
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
		})
		if err != nil {
			return nil, fmt.Errorf("mlsmpm/gpu: compiling %s shader: %w", entry, err)
		}
		pipe, err := device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label: fmt.Sprintf("mlsmpm-%s-pipeline", entry),
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     mod,
				EntryPoint: entry,
			},
		})
		mod.Release()
		if err != nil {
			return nil, fmt.Errorf("mlsmpm/gpu: creating %s pipeline: %w", entry, err)
		}
		pipelines[entry] = pipe
	}
	m.clearGridPipeline = pipelines["clear_grid"]
	m.p2g1Pipeline = pipelines["p2g1"]
	m.p2g2Pipeline = pipelines["p2g2"]
	m.gridUpdatePipeline = pipelines["grid_update"]
	m.neighborDensityPipe = pipelines["neighbor_density"]
	m.vorticityCurlPipeline = pipelines["vorticity_curl"]
	m.vorticityConfinePipe = pipelines["vorticity_confine"]
	m.g2pPipeline = pipelines["g2p"]

	var err error
	m.ParticleBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "mlsmpm-particles",
		Size:  uint64(particleCount * particleStride),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("mlsmpm/gpu: allocating particle buffer: %w", err)
	}
	cellCount := gridSize * gridSize * gridSize
	m.GridBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "mlsmpm-grid",
		Size:  uint64(cellCount * cellStride),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("mlsmpm/gpu: allocating grid buffer: %w", err)
	}
	m.FieldsBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "mlsmpm-fields",
		Size:  uint64(core.MaxForceFields * fieldStride),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("mlsmpm/gpu: allocating fields buffer: %w", err)
	}

	for _, ub := range []struct {
		dst  **wgpu.Buffer
		size uint64
		name string
	}{
		{&m.ClearGridUniformBuf, 16, "clear-grid-uniforms"},
		{&m.P2G1UniformBuf, 16, "p2g1-uniforms"},
		{&m.P2G2UniformBuf, 16, "p2g2-uniforms"},
		{&m.GridUpdateUniformBuf, 128, "grid-update-uniforms"},
		{&m.NeighborDensityUBuf, 16, "neighbor-density-uniforms"},
		{&m.VorticityUniformBuf, 16, "vorticity-uniforms"},
		{&m.G2PUniformBuf, 96, "g2p-uniforms"},
	} {
		*ub.dst, err = device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: ub.name,
			Size:  ub.size,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("mlsmpm/gpu: allocating %s: %w", ub.name, err)
		}
	}

	// Readback buffer for the CFL v_max sample and NaN-degeneracy flag:
	// one f32 (v_max) and one u32 (nan-detected), same MapAsync/Poll/
	// GetMappedRange/Unmap idiom as the teacher's Hi-Z readback.
	m.ReduceReadbackBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "mlsmpm-reduce-readback",
		Size:  8,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, fmt.Errorf("mlsmpm/gpu: allocating readback buffer: %w", err)
	}

	return m, nil
}

func (m *Manager) workgroups1D(n int) uint32 {
	return uint32((n + 63) / 64)
}

func dispatch(device *wgpu.Device, pipeline *wgpu.ComputePipeline, bindGroups []*wgpu.BindGroup, workgroupsX uint32) error {
	encoder, err := device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("mlsmpm/gpu: creating command encoder: %w", err)
	}
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	for i, bg := range bindGroups {
		pass.SetBindGroup(uint32(i), bg, nil)
	}
	pass.DispatchWorkgroups(workgroupsX, 1, 1)
	pass.End()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("mlsmpm/gpu: finishing command buffer: %w", err)
	}
	device.GetQueue().Submit(cmd)
	return nil
}

// UploadParticles serializes the CPU particle store into ParticleBuf.
func (m *Manager) UploadParticles(particles *core.ParticleStore) error {
	buf := make([]byte, m.particleCount*particleStride)
	for i := 0; i < particles.Count; i++ {
		off := i * particleStride
		putVec3(buf[off:], particles.Position[i])
		putVec3(buf[off+16:], particles.Velocity[i])
		c := particles.C[i]
		putVec3(buf[off+32:], vecFromMat3Col(c, 0))
		putVec3(buf[off+48:], vecFromMat3Col(c, 1))
		putVec3(buf[off+64:], vecFromMat3Col(c, 2))
		f := particles.F[i]
		putVec3(buf[off+80:], vecFromMat3Col(f, 0))
		putVec3(buf[off+96:], vecFromMat3Col(f, 1))
		putVec3(buf[off+112:], vecFromMat3Col(f, 2))
		binary.LittleEndian.PutUint32(buf[off+124:], math.Float32bits(particles.Density[i]))
		binary.LittleEndian.PutUint32(buf[off+128:], math.Float32bits(particles.Age[i]))
		binary.LittleEndian.PutUint32(buf[off+132:], math.Float32bits(particles.Lifetime[i]))
		active := uint32(0)
		if particles.Active[i] {
			active = 1
		}
		binary.LittleEndian.PutUint32(buf[off+136:], active)
	}
	m.Device.GetQueue().WriteBuffer(m.ParticleBuf, 0, buf)
	return nil
}

// DispatchClearGrid runs K1.
func (m *Manager) DispatchClearGrid(bindGroups []*wgpu.BindGroup) error {
	n := m.gridSize * m.gridSize * m.gridSize
	return dispatch(m.Device, m.clearGridPipeline, bindGroups, m.workgroups1D(n))
}

// DispatchP2G1 runs K2.
func (m *Manager) DispatchP2G1(bindGroups []*wgpu.BindGroup) error {
	return dispatch(m.Device, m.p2g1Pipeline, bindGroups, m.workgroups1D(m.particleCount))
}

// DispatchP2G2 runs K3.
func (m *Manager) DispatchP2G2(bindGroups []*wgpu.BindGroup) error {
	return dispatch(m.Device, m.p2g2Pipeline, bindGroups, m.workgroups1D(m.particleCount))
}

// DispatchGridUpdate runs K4.
func (m *Manager) DispatchGridUpdate(bindGroups []*wgpu.BindGroup) error {
	n := m.gridSize * m.gridSize * m.gridSize
	return dispatch(m.Device, m.gridUpdatePipeline, bindGroups, m.workgroups1D(n))
}

// DispatchNeighborDensity runs K5.
func (m *Manager) DispatchNeighborDensity(bindGroups []*wgpu.BindGroup) error {
	return dispatch(m.Device, m.neighborDensityPipe, bindGroups, m.workgroups1D(m.particleCount))
}

// DispatchVorticity runs K6's two passes in order: curl must finish writing
// before confinement reads neighboring cells' curl magnitude.
func (m *Manager) DispatchVorticity(bindGroups []*wgpu.BindGroup) error {
	n := m.gridSize * m.gridSize * m.gridSize
	if err := dispatch(m.Device, m.vorticityCurlPipeline, bindGroups, m.workgroups1D(n)); err != nil {
		return err
	}
	return dispatch(m.Device, m.vorticityConfinePipe, bindGroups, m.workgroups1D(n))
}

// DispatchG2P runs K7.
func (m *Manager) DispatchG2P(bindGroups []*wgpu.BindGroup) error {
	return dispatch(m.Device, m.g2pPipeline, bindGroups, m.workgroups1D(m.particleCount))
}

// Step runs K1-K7 in spec order, gated by the same SurfaceTensionEnabled/
// VorticityEnabled flags sim/kernels.Step uses, given per-kernel bind
// groups built by the caller (bind-group layouts depend on buffer
// identities the caller owns).
func (m *Manager) Step(u kernels.Uniforms, bg map[string][]*wgpu.BindGroup) error {
	if err := m.DispatchClearGrid(bg["clear_grid"]); err != nil {
		return err
	}
	if err := m.DispatchP2G1(bg["p2g1"]); err != nil {
		return err
	}
	if err := m.DispatchP2G2(bg["p2g2"]); err != nil {
		return err
	}
	if err := m.DispatchGridUpdate(bg["grid_update"]); err != nil {
		return err
	}
	if u.SurfaceTensionEnabled {
		if err := m.DispatchNeighborDensity(bg["neighbor_density"]); err != nil {
			return err
		}
	}
	if u.VorticityEnabled {
		if err := m.DispatchVorticity(bg["vorticity"]); err != nil {
			return err
		}
	}
	return m.DispatchG2P(bg["g2p"])
}

// ReadVMaxAndDegeneracy records on encoder a copy of 8 bytes (v_max and the
// NaN flag) from source into the reduce-readback buffer.
// FetchVMaxAndDegeneracy then maps that buffer and reports the values,
// using the same MapAsync/Poll/GetMappedRange/Unmap sequence the teacher's
// Hi-Z readback uses.
func (m *Manager) ReadVMaxAndDegeneracy(encoder *wgpu.CommandEncoder, source *wgpu.Buffer, sourceOffset uint64) error {
	encoder.CopyBufferToBuffer(source, sourceOffset, m.ReduceReadbackBuf, 0, 8)
	return nil
}

func (m *Manager) FetchVMaxAndDegeneracy() (vMax float32, degenerate bool, err error) {
	if !m.mapped {
		var mapErr error
		m.ReduceReadbackBuf.MapAsync(wgpu.MapModeRead, 0, m.ReduceReadbackBuf.GetSize(), func(status wgpu.BufferMapAsyncStatus) {
			if status == wgpu.BufferMapAsyncStatusSuccess {
				m.mapped = true
			} else {
				mapErr = fmt.Errorf("mlsmpm/gpu: mapping readback buffer: status %d", status)
			}
		})
		if mapErr != nil {
			return 0, false, mapErr
		}
	}
	m.Device.Poll(false, nil)
	if !m.mapped {
		return 0, false, nil
	}

	size := m.ReduceReadbackBuf.GetSize()
	data := m.ReduceReadbackBuf.GetMappedRange(0, uint(size))
	vMax = math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
	degenerate = binary.LittleEndian.Uint32(data[4:8]) != 0

	m.ReduceReadbackBuf.Unmap()
	m.mapped = false
	return vMax, degenerate, nil
}

// Release frees every GPU resource this manager owns.
func (m *Manager) Release() {
	for _, buf := range []*wgpu.Buffer{
		m.ParticleBuf, m.GridBuf, m.FieldsBuf,
		m.ClearGridUniformBuf, m.P2G1UniformBuf, m.P2G2UniformBuf,
		m.GridUpdateUniformBuf, m.NeighborDensityUBuf, m.VorticityUniformBuf,
		m.G2PUniformBuf, m.ReduceReadbackBuf,
	} {
		if buf != nil {
			buf.Release()
		}
	}
	for _, p := range []*wgpu.ComputePipeline{
		m.clearGridPipeline, m.p2g1Pipeline, m.p2g2Pipeline, m.gridUpdatePipeline,
		m.neighborDensityPipe, m.vorticityCurlPipeline, m.vorticityConfinePipe, m.g2pPipeline,
	} {
		if p != nil {
			p.Release()
		}
	}
}

func putVec3(dst []byte, v mgl32.Vec3) {
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(v.X()))
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(v.Y()))
	binary.LittleEndian.PutUint32(dst[8:12], math.Float32bits(v.Z()))
}

// vecFromMat3Col pulls column col (0-2) out of an mgl32.Mat3, whose
// underlying [9]float32 is column-major, matching mgl32.Mat3.Mul3x1's
// expectations elsewhere in this module.
func vecFromMat3Col(m mgl32.Mat3, col int) mgl32.Vec3 {
	return mgl32.Vec3{m[col*3], m[col*3+1], m[col*3+2]}
}
