package mlsmpm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/mlsmpm/sim/core"
)

func newTestSimulator(t *testing.T) *Simulator {
	t.Helper()
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	cfg.ParticleCount = 64
	cfg.GridSize = 16

	sim, err := NewSimulator(cfg, NewNopLogger())
	require.NoError(t, err)
	return sim
}

func TestNewSimulatorRejectsInvalidConfig(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	cfg.ParticleCount = 0

	_, err = NewSimulator(cfg, NewNopLogger())
	require.Error(t, err)
}

func TestStepAdvancesSimTimeByDtUsed(t *testing.T) {
	sim := newTestSimulator(t)
	dtUsed, err := sim.Step(0.016)
	require.NoError(t, err)
	assert.Greater(t, dtUsed, float32(0))
	assert.InDelta(t, float64(dtUsed), sim.simTime, 1e-6)
}

func TestPauseStopsAdvancement(t *testing.T) {
	sim := newTestSimulator(t)
	sim.Pause()
	dtUsed, err := sim.Step(0.016)
	require.NoError(t, err)
	assert.Equal(t, float32(0), dtUsed)

	sim.Resume()
	dtUsed, err = sim.Step(0.016)
	require.NoError(t, err)
	assert.Greater(t, dtUsed, float32(0))
}

func TestResetReseedsParticleCount(t *testing.T) {
	sim := newTestSimulator(t)
	_, err := sim.Step(0.016)
	require.NoError(t, err)

	sim.Reset(32)
	assert.Equal(t, 32, sim.particles.Count)
	assert.Equal(t, float64(0), sim.simTime)
}

func TestSetConfigRejectsInvalidPatch(t *testing.T) {
	sim := newTestSimulator(t)
	badFlip := float32(5)
	err := sim.SetConfig(ConfigPatch{FlipRatio: &badFlip})
	require.Error(t, err)
}

func TestSetConfigAppliesValidPatch(t *testing.T) {
	sim := newTestSimulator(t)
	newFlip := float32(0.25)
	require.NoError(t, sim.SetConfig(ConfigPatch{FlipRatio: &newFlip}))
	assert.Equal(t, float32(0.25), sim.config.FlipRatio)
}

func TestSetForceFieldsTruncatesToMax(t *testing.T) {
	sim := newTestSimulator(t)
	fields := make([]core.FieldDescriptor, core.MaxForceFields+3)
	for i := range fields {
		fields[i] = core.NewFieldDescriptor()
	}
	sim.SetForceFields(fields)
	assert.LessOrEqual(t, len(sim.fields.Fields), core.MaxForceFields)
}

func TestParticleReadonlyViewReflectsStepOutput(t *testing.T) {
	sim := newTestSimulator(t)
	_, err := sim.Step(0.016)
	require.NoError(t, err)

	view := sim.ParticleReadonlyView()
	assert.Equal(t, 64, view.Len())
}

func TestStepReturnsDeviceLostAfterFault(t *testing.T) {
	sim := newTestSimulator(t)
	sim.faulted = true
	_, err := sim.Step(0.016)
	require.Error(t, err)
	var target *DeviceLostError
	require.ErrorAs(t, err, &target)
}
