package mlsmpm

import (
	"io"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/mlsmpm/sim/core"
	"github.com/gekko3d/mlsmpm/sim/kernels"
)

// Simulator is C7: owns the particle/grid stores, the force-field and
// boundary descriptors, the adaptive scheduler, and the uniforms block,
// and drives the K1-K7 pipeline each Step (spec.md §4.7).
//
// The CPU reference kernels in sim/kernels are always the execution path;
// a GPU-backed Simulator would swap Step's body for sim/gpu dispatch calls
// but keep this exact same ownership and barrier discipline.
type Simulator struct {
	mu sync.Mutex

	logger Logger
	config Config

	particles *core.ParticleStore
	grid      *core.GridStore
	fields    *core.ForceFieldRegistry
	boundary  core.BoundaryDescriptor

	scheduler *Scheduler
	metrics   *Metrics

	simTime float64
	paused  bool
	faulted bool

	// preStepSnapshot holds a copy of particle dynamics taken at step
	// entry, restored on NaN detection (spec.md §4.7 failure handling).
	preStepSnapshot snapshotBuffer
}

type snapshotBuffer struct {
	positions  []mgl32.Vec3
	velocities []mgl32.Vec3
}

// NewSimulator validates cfg, allocates C1-C6, seeds the particle
// population and returns a ready-to-step Simulator (spec.md §6
// new_simulator(config) -> Simulator).
func NewSimulator(cfg Config, logger Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewNopLogger()
	}

	particles := core.NewParticleStore(int(cfg.ParticleCount))
	particles.Reset(int(cfg.ParticleCount), int(cfg.GridSize), nil, cfg.Material(), float32(math.Inf(1)))

	grid := core.NewGridStore(int(cfg.GridSize))
	fields := core.NewForceFieldRegistry(1)
	boundary := core.DefaultBoundary(int(cfg.GridSize))

	scheduler := NewScheduler()
	scheduler.CFLTarget = cfg.CFLTarget

	sim := &Simulator{
		logger:    logger,
		config:    cfg,
		particles: particles,
		grid:      grid,
		fields:    fields,
		boundary:  boundary,
		scheduler: scheduler,
		metrics:   NewMetrics(),
	}
	logger.Infof("simulator initialized: particles=%d grid=%d material=%s", cfg.ParticleCount, cfg.GridSize, cfg.Material())
	return sim, nil
}

// Step advances the simulation by approximately dtHint seconds, running
// one or more sub-steps as the adaptive scheduler dictates, and returns
// the total simulated time actually advanced (spec.md §4.6/§4.7).
func (s *Simulator) Step(dtHint float32) (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.faulted {
		return 0, &DeviceLostError{}
	}
	if s.paused {
		return 0, nil
	}

	snap := s.config.Snapshot()
	s.fields.Tick(dtHint)

	var dtUsed float32
	var subStepCount int

	if s.config.AdaptiveTimestep {
		vMax, vMean := s.scheduler.SampleVMax(s.particles)
		dtSafe := s.scheduler.Plan(vMax)
		steps, overrun := s.scheduler.SubSteps(dtHint*s.config.Speed, dtSafe)
		if overrun {
			s.metrics.RecordOverrun()
			s.logger.Warnf("step overrun: sub-step cap %d reached (dt_safe=%.6f)", s.scheduler.SubStepCap, dtSafe)
		}
		subStepCount = len(steps)
		for _, dt := range steps {
			s.runOneSubStep(dt, snap)
			dtUsed += dt
		}
		s.metrics.LastVMax, s.metrics.LastVMean = vMax, vMean
	} else {
		dt := dtHint * s.config.Speed
		subStepCount = 1
		s.runOneSubStep(dt, snap)
		dtUsed = dt
	}

	s.simTime += float64(dtUsed)
	vMax, vMean := s.scheduler.SampleVMax(s.particles)
	s.metrics.RecordStep(s.simTime, dtUsed, subStepCount, vMax, vMean, s.particles)

	return dtUsed, nil
}

// runOneSubStep saves a pre-step snapshot, runs K1-K7 once, then restores
// each particle found with a NaN velocity or det(F) <= 0 to its pre-step
// position and velocity and resets its F to identity (spec.md §4.7 failure
// handling, §7 NumericalDegeneracy policy). The sub-step is not re-run and
// dt is not halved.
func (s *Simulator) runOneSubStep(dt float32, snap ConfigSnapshot) {
	s.takeSnapshot()

	u := kernels.Uniforms{
		Dt:                    dt,
		GravityMode:           snap.Gravity,
		GravityStrength:       snap.Config.GravityStrength,
		TransferMode:          snap.Transfer,
		FlipRatio:             snap.Config.FlipRatio,
		VorticityEnabled:      snap.Config.VorticityEnabled,
		VorticityEpsilon:      snap.Config.VorticityEpsilon,
		SurfaceTensionEnabled: snap.Config.SurfaceTensionEnabled,
		SurfaceTensionCoeff:   snap.Config.SurfaceTensionCoeff,
		SimTime:               float32(s.simTime),
		Material:              snap.Material,
	}

	kernels.Step(s.particles, s.grid, s.fields, s.boundary, u)
	s.detectAndHandleDegeneracy()
}

func (s *Simulator) detectAndHandleDegeneracy() {
	for i := 0; i < s.particles.Count; i++ {
		if !s.particles.Live(i) {
			continue
		}
		v := s.particles.Velocity[i]
		if isNaNVec(v) || s.particles.F[i].Det() <= 0 {
			s.metrics.RecordDegeneracy()
			s.logger.Warnf("numerical degeneracy: particle %d reset", i)
			s.particles.F[i] = mgl32.Ident3()
			if i < len(s.preStepSnapshot.velocities) {
				s.particles.Velocity[i] = s.preStepSnapshot.velocities[i]
				s.particles.Position[i] = s.preStepSnapshot.positions[i]
			} else {
				s.particles.Velocity[i] = mgl32.Vec3{}
			}
		}
	}
}

// Reset re-seeds the particle population, optionally with a new count
// (spec.md §6 reset(count?)). count == 0 keeps the previously configured
// particleCount.
func (s *Simulator) Reset(count uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int(count)
	if n == 0 {
		n = int(s.config.ParticleCount)
	}
	if n > s.particles.Cap() {
		s.particles = core.NewParticleStore(n)
	}
	s.particles.Reset(n, int(s.config.GridSize), nil, s.config.Material(), float32(math.Inf(1)))
	s.grid.Clear()
	s.simTime = 0
	s.faulted = false
	s.logger.Infof("simulator reset: particles=%d", n)
}

// SetConfig applies patch after validating the merged result (spec.md §6
// set_config). Rejected patches leave the current config untouched.
func (s *Simulator) SetConfig(patch ConfigPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.config.Apply(patch)
	if err := merged.Validate(); err != nil {
		return err
	}
	s.config = merged
	s.scheduler.CFLTarget = merged.CFLTarget
	return nil
}

// SetForceFields replaces the active force-field list (spec.md §6).
func (s *Simulator) SetForceFields(fields []core.FieldDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields.Set(fields)
}

// SetBoundary swaps the active boundary descriptor (spec.md §6).
func (s *Simulator) SetBoundary(b core.BoundaryDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boundary = b
}

// ParticleReadonlyView returns a snapshot-safe read handle for renderers,
// valid until the next Step call (spec.md §5 "renderers observe particle
// state only between completed steps").
func (s *Simulator) ParticleReadonlyView() core.AttributeView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.particles.AttributeView()
}

// Metrics returns the live metrics accumulator. The lock is held only while
// fetching the pointer; reading its fields while another goroutine runs
// Step is not synchronized.
func (s *Simulator) Metrics() *Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// ExportTelemetry flushes the accumulated per-step metrics as CSV to w.
func (s *Simulator) ExportTelemetry(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics.ExportTelemetry(w)
}

// Pause stops Step from advancing until Resume is called.
func (s *Simulator) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume clears a prior Pause.
func (s *Simulator) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *Simulator) takeSnapshot() {
	n := s.particles.Count
	if cap(s.preStepSnapshot.positions) < n {
		s.preStepSnapshot.positions = make([]mgl32.Vec3, n)
		s.preStepSnapshot.velocities = make([]mgl32.Vec3, n)
	}
	s.preStepSnapshot.positions = s.preStepSnapshot.positions[:n]
	s.preStepSnapshot.velocities = s.preStepSnapshot.velocities[:n]
	copy(s.preStepSnapshot.positions, s.particles.Position[:n])
	copy(s.preStepSnapshot.velocities, s.particles.Velocity[:n])
}

func isNaNVec(v mgl32.Vec3) bool {
	return v.X() != v.X() || v.Y() != v.Y() || v.Z() != v.Z()
}
