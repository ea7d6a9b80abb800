package filter

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/filter/svf"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

// StateVariable is the multimode TPT filter with a morphable output:
// lowpass, bandpass, highpass, notch.
//
// Parameters: Cutoff, Resonance, Mode.
type StateVariable struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	filters  []*svf.Filter
	cutoffSm *smooth.Smoother
}

// NewStateVariable creates an unprepared state-variable filter.
func NewStateVariable() *StateVariable {
	return &StateVariable{params: engine.NewParamSetFor(engine.StateVariableFilter, "Cutoff", "Resonance", "Mode")}
}

// Name implements engine.Engine.
func (s *StateVariable) Name() string { return "State Variable Filter" }

// NumParameters implements engine.Engine.
func (s *StateVariable) NumParameters() int { return s.params.Num() }

// ParameterName implements engine.Engine.
func (s *StateVariable) ParameterName(i int) string { return s.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (s *StateVariable) UpdateParameters(changes map[int]float64) { s.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (s *StateVariable) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (s *StateVariable) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("state variable filter sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("state variable filter max block must be > 0: %d", maxBlock)
	}

	s.sampleRate = sampleRate

	s.filters = s.filters[:0]
	for ch := 0; ch < engine.MaxChannels; ch++ {
		f, err := svf.New(sampleRate)
		if err != nil {
			return err
		}

		s.filters = append(s.filters, f)
	}

	var err error

	s.cutoffSm, err = smooth.New(30, sampleRate)
	if err != nil {
		return err
	}

	s.cutoffSm.Reset(s.params.Value(0))
	s.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (s *StateVariable) Reset() {
	for _, f := range s.filters {
		f.Reset()
	}

	if s.prepared {
		s.cutoffSm.Reset(s.params.Value(0))
	}
}

// Process implements engine.Engine.
func (s *StateVariable) Process(buf [][]float64) {
	if !s.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	s.cutoffSm.SetTarget(s.params.Value(0))

	q := 0.5 + s.params.Value(1)*s.params.Value(1)*19.5
	mode := svfMode(s.params.Value(2))

	for ch := 0; ch < nch; ch++ {
		s.filters[ch].SetQ(q)
		s.filters[ch].SetOutput(mode)
	}

	for i := range buf[0] {
		cutoff := filterMinFreq * math.Pow(filterMaxFreq/filterMinFreq, s.cutoffSm.Next())

		for ch := 0; ch < nch; ch++ {
			s.filters[ch].SetCutoff(cutoff)
			buf[ch][i] = s.filters[ch].ProcessSample(buf[ch][i])
		}
	}
}

// svfMode quantizes the mode knob into the four filter responses.
func svfMode(v float64) svf.Output {
	switch {
	case v < 0.25:
		return svf.Lowpass
	case v < 0.5:
		return svf.Bandpass
	case v < 0.75:
		return svf.Highpass
	default:
		return svf.Notch
	}
}
