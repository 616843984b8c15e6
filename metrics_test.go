package mlsmpm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/mlsmpm/sim/core"
)

func TestRecordStepAccumulatesTelemetry(t *testing.T) {
	m := NewMetrics()
	particles := core.NewParticleStore(2)
	particles.Reset(2, 16, nil, core.Fluid, 1e9)

	m.RecordStep(0.01, 0.01, 1, 1.0, 0.5, particles)
	m.RecordStep(0.02, 0.01, 1, 1.2, 0.6, particles)

	assert.Equal(t, uint64(2), m.Step)
	assert.Equal(t, float32(1.2), m.LastVMax)
	assert.Len(t, m.records, 2)
}

func TestRecordDegeneracyAndOverrunCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordDegeneracy()
	m.RecordDegeneracy()
	m.RecordOverrun()

	assert.Equal(t, uint64(2), m.DegeneracyEvents)
	assert.Equal(t, uint64(1), m.OverrunEvents)
}

func TestVelocityMeanOverHistory(t *testing.T) {
	m := NewMetrics()
	particles := core.NewParticleStore(1)
	particles.Reset(1, 16, nil, core.Fluid, 1e9)

	m.RecordStep(0.01, 0.01, 1, 2.0, 2.0, particles)
	m.RecordStep(0.02, 0.01, 1, 4.0, 4.0, particles)

	assert.InDelta(t, 3.0, m.VelocityMean(), 1e-9)
}

func TestKineticEnergySpectrumLengthMatchesHistory(t *testing.T) {
	m := NewMetrics()
	particles := core.NewParticleStore(1)
	particles.Reset(1, 16, nil, core.Fluid, 1e9)

	for i := 0; i < 8; i++ {
		m.RecordStep(float64(i)*0.01, 0.01, 1, 1, 1, particles)
	}

	spectrum := m.KineticEnergySpectrum()
	assert.Len(t, spectrum, 8)
}

func TestExportTelemetryWritesCSV(t *testing.T) {
	m := NewMetrics()
	particles := core.NewParticleStore(1)
	particles.Reset(1, 16, nil, core.Fluid, 1e9)
	m.RecordStep(0.01, 0.01, 1, 1, 1, particles)

	var buf bytes.Buffer
	require.NoError(t, m.ExportTelemetry(&buf))

	assert.Contains(t, buf.String(), "step")
	assert.Contains(t, buf.String(), "kinetic_energy")
}
