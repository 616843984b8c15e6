package mlsmpm

import (
	"fmt"
	"io"
	"math"

	"github.com/gocarina/gocsv"
	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"

	"github.com/gekko3d/mlsmpm/sim/core"
)

// TelemetryRecord is one row of the CSV export: per-step solver health and
// performance snapshot (spec.md §7 "recoverable numerical events are
// counted and readable via a metrics view").
type TelemetryRecord struct {
	Step              uint64  `csv:"step"`
	SimTime           float64 `csv:"sim_time"`
	DtUsed            float64 `csv:"dt_used"`
	SubSteps          int     `csv:"sub_steps"`
	VMax              float64 `csv:"v_max"`
	VMean             float64 `csv:"v_mean"`
	KineticEnergy     float64 `csv:"kinetic_energy"`
	DegeneracyEvents  uint64  `csv:"degeneracy_events_total"`
	OverrunEvents     uint64  `csv:"overrun_events_total"`
}

// Metrics accumulates the counters and per-step samples spec.md §7 requires
// be surfaced without raising an error: NumericalDegeneracy and
// StepOverrun counts, the last step's dt/sub-step count, and a per-step
// telemetry log (one record per step, never trimmed) exportable to CSV.
type Metrics struct {
	Step uint64

	DegeneracyEvents uint64
	OverrunEvents    uint64

	LastDtUsed   float32
	LastSubSteps int
	LastVMax     float32
	LastVMean    float32

	records []TelemetryRecord
}

// NewMetrics returns a zeroed Metrics accumulator.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordDegeneracy increments the degeneracy counter (called by the
// driver when its post-step scan finds a live particle with a NaN
// velocity or det(F) <= 0). The resets G2P itself applies to F inside the
// kernel are not counted.
func (m *Metrics) RecordDegeneracy() {
	m.DegeneracyEvents++
}

// RecordOverrun increments the step-overrun counter.
func (m *Metrics) RecordOverrun() {
	m.OverrunEvents++
}

// RecordStep appends one telemetry row for the just-completed step.
func (m *Metrics) RecordStep(simTime float64, dtUsed float32, subSteps int, vMax, vMean float32, particles *core.ParticleStore) {
	m.Step++
	m.LastDtUsed = dtUsed
	m.LastSubSteps = subSteps
	m.LastVMax = vMax
	m.LastVMean = vMean

	m.records = append(m.records, TelemetryRecord{
		Step:             m.Step,
		SimTime:          float64(simTime),
		DtUsed:           float64(dtUsed),
		SubSteps:         subSteps,
		VMax:             float64(vMax),
		VMean:            float64(vMean),
		KineticEnergy:    float64(totalKineticEnergy(particles)),
		DegeneracyEvents: m.DegeneracyEvents,
		OverrunEvents:    m.OverrunEvents,
	})
}

func totalKineticEnergy(p *core.ParticleStore) float32 {
	if p == nil {
		return 0
	}
	var ke float32
	for i := 0; i < p.Count; i++ {
		if !p.Live(i) {
			continue
		}
		v := p.Velocity[i]
		ke += 0.5 * v.Dot(v)
	}
	return ke
}

// VelocityMean reports the mean of the sampled per-step v_max history
// using gonum/stat, a cheap health signal distinct from the per-step
// instantaneous mean already stored in LastVMean.
func (m *Metrics) VelocityMean() float64 {
	if len(m.records) == 0 {
		return 0
	}
	samples := make([]float64, len(m.records))
	for i, r := range m.records {
		samples[i] = r.VMax
	}
	return stat.Mean(samples, nil)
}

// KineticEnergySpectrum runs an FFT over the recorded kinetic-energy time
// series and returns the magnitude spectrum, a diagnostic for detecting
// periodic instability (e.g. a standing oscillation from an under-damped
// boundary) that a plain mean/variance view would miss.
func (m *Metrics) KineticEnergySpectrum() []float64 {
	n := len(m.records)
	if n == 0 {
		return nil
	}
	series := make([]complex128, n)
	for i, r := range m.records {
		series[i] = complex(r.KineticEnergy, 0)
	}
	spectrum := fft.FFT(series)
	mags := make([]float64, n)
	for i, c := range spectrum {
		mags[i] = realAbs(c)
	}
	return mags
}

func realAbs(c complex128) float64 {
	re, im := real(c), imag(c)
	return math.Sqrt(re*re + im*im)
}

// ExportTelemetry writes the accumulated per-step records as CSV to w,
// using gocarina/gocsv for marshaling (spec.md §6 "the host chooses how to
// expose it"). The caller owns w and its lifetime.
func (m *Metrics) ExportTelemetry(w io.Writer) error {
	if err := gocsv.Marshal(m.records, w); err != nil {
		return fmt.Errorf("mlsmpm: writing telemetry csv: %w", err)
	}
	return nil
}
