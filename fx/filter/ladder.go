// Package filter implements the filter engines: the saturating ladder, the
// multimode state-variable filter, the vowel formant filter, the envelope
// follower filter, and the tuned comb resonator.
package filter

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"

	"github.com/cwbudde/algo-rack/dsp/filter/ladder"
)

const (
	filterMinFreq = 20.0
	filterMaxFreq = 18000.0
)

// Ladder is the four-pole saturating lowpass.
//
// Parameters: Cutoff, Resonance, Drive.
type Ladder struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	filters  []*ladder.Filter
	cutoffSm *smooth.Smoother
}

// NewLadder creates an unprepared ladder filter.
func NewLadder() *Ladder {
	return &Ladder{params: engine.NewParamSetFor(engine.LadderFilter, "Cutoff", "Resonance", "Drive")}
}

// Name implements engine.Engine.
func (l *Ladder) Name() string { return "Ladder Filter" }

// NumParameters implements engine.Engine.
func (l *Ladder) NumParameters() int { return l.params.Num() }

// ParameterName implements engine.Engine.
func (l *Ladder) ParameterName(i int) string { return l.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (l *Ladder) UpdateParameters(changes map[int]float64) { l.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (l *Ladder) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (l *Ladder) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("ladder filter sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("ladder filter max block must be > 0: %d", maxBlock)
	}

	l.sampleRate = sampleRate

	l.filters = l.filters[:0]
	for ch := 0; ch < engine.MaxChannels; ch++ {
		f, err := ladder.New(sampleRate)
		if err != nil {
			return err
		}

		l.filters = append(l.filters, f)
	}

	var err error

	// Smooth the cutoff in log space so sweeps feel even.
	l.cutoffSm, err = smooth.New(30, sampleRate)
	if err != nil {
		return err
	}

	l.cutoffSm.Reset(l.params.Value(0))
	l.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (l *Ladder) Reset() {
	for _, f := range l.filters {
		f.Reset()
	}

	if l.prepared {
		l.cutoffSm.Reset(l.params.Value(0))
	}
}

// Process implements engine.Engine.
func (l *Ladder) Process(buf [][]float64) {
	if !l.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	l.cutoffSm.SetTarget(l.params.Value(0))

	resonance := l.params.Value(1)
	drive := 1 + l.params.Value(2)*3

	for ch := 0; ch < nch; ch++ {
		l.filters[ch].SetResonance(resonance)
		l.filters[ch].SetDrive(drive)
	}

	for i := range buf[0] {
		cutoff := filterMinFreq * math.Pow(filterMaxFreq/filterMinFreq, l.cutoffSm.Next())

		for ch := 0; ch < nch; ch++ {
			l.filters[ch].SetCutoff(cutoff)
			buf[ch][i] = l.filters[ch].ProcessSample(buf[ch][i])
		}
	}
}
