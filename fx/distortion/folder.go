package distortion

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/oversample"
	"github.com/cwbudde/algo-rack/engine"
)

// Folder is a wavefolder. The signal is amplified and reflected back on
// itself every time it crosses the fold threshold, which generates dense
// harmonics even from a pure sine. Folding aliases badly, so the shaper
// runs at four times the host rate.
//
// Parameters: Fold, Symmetry, Output.
type Folder struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	os []*oversample.Oversampler
	dc []*core.DCBlocker
}

// NewFolder creates an unprepared wavefolder.
func NewFolder() *Folder {
	return &Folder{params: engine.NewParamSetFor(engine.WaveFolder, "Fold", "Symmetry", "Output")}
}

// Name implements engine.Engine.
func (f *Folder) Name() string { return "Wave Folder" }

// NumParameters implements engine.Engine.
func (f *Folder) NumParameters() int { return f.params.Num() }

// ParameterName implements engine.Engine.
func (f *Folder) ParameterName(i int) string { return f.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (f *Folder) UpdateParameters(changes map[int]float64) { f.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (f *Folder) LatencySamples() int {
	if len(f.os) > 0 {
		return f.os[0].Latency()
	}

	return 0
}

// Prepare implements engine.Engine.
func (f *Folder) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("wave folder sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("wave folder max block must be > 0: %d", maxBlock)
	}

	f.sampleRate = sampleRate
	f.os = f.os[:0]
	f.dc = f.dc[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		os, err := oversample.New(4, maxBlock)
		if err != nil {
			return fmt.Errorf("wave folder oversampler: %w", err)
		}

		dc, err := core.NewDCBlocker(0.9995)
		if err != nil {
			return fmt.Errorf("wave folder dc blocker: %w", err)
		}

		f.os = append(f.os, os)
		f.dc = append(f.dc, dc)
	}

	f.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (f *Folder) Reset() {
	for ch := range f.os {
		f.os[ch].Reset()
		f.dc[ch].Reset()
	}
}

// fold reflects x back into [-1, 1].
func fold(x float64) float64 {
	for x > 1 || x < -1 {
		if x > 1 {
			x = 2 - x
		} else {
			x = -2 - x
		}
	}

	return x
}

// Process implements engine.Engine.
func (f *Folder) Process(buf [][]float64) {
	if !f.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	gain := 1 + f.params.Value(0)*9
	offset := (f.params.Value(1) - 0.5) * 0.8
	output := core.DBToLinear((f.params.Value(2) - 0.5) * 24)

	for ch := 0; ch < nch; ch++ {
		f.os[ch].Process(buf[ch], func(up []float64) {
			for i := range up {
				up[i] = fold(up[i]*gain + offset)
			}
		})

		for i := range buf[ch] {
			buf[ch][i] = f.dc[ch].ProcessSample(buf[ch][i]) * output * 0.8
		}
	}
}
