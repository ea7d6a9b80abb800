// Package distortion implements the saturation and distortion engines. Each
// is a waveshaper with its own bias, tone shaping, and gain staging; the
// heavier shapers run inside an oversampler to keep aliasing down.
package distortion

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/oversample"
	"github.com/cwbudde/algo-rack/engine"
)

// Tube models a single triode stage: asymmetric soft clipping around a bias
// point, with the bias drifting against the signal envelope the way a
// cathode follower sags.
//
// Parameters: Drive, Bias, Output.
type Tube struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	os      []*oversample.Oversampler
	dc      []*core.DCBlocker
	sag []float64
}

// NewTube creates an unprepared tube preamp.
func NewTube() *Tube {
	return &Tube{params: engine.NewParamSetFor(engine.TubePreamp, "Drive", "Bias", "Output")}
}

// Name implements engine.Engine.
func (t *Tube) Name() string { return "Tube Preamp" }

// NumParameters implements engine.Engine.
func (t *Tube) NumParameters() int { return t.params.Num() }

// ParameterName implements engine.Engine.
func (t *Tube) ParameterName(i int) string { return t.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (t *Tube) UpdateParameters(changes map[int]float64) { t.params.Update(changes) }

// LatencySamples reports the oversampler delay.
func (t *Tube) LatencySamples() int {
	if len(t.os) > 0 {
		return t.os[0].Latency()
	}

	return 0
}

// Prepare implements engine.Engine.
func (t *Tube) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("tube preamp sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("tube preamp max block must be > 0: %d", maxBlock)
	}

	t.sampleRate = sampleRate

	t.os = t.os[:0]
	t.dc = t.dc[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		os, err := oversample.New(2, maxBlock)
		if err != nil {
			return err
		}

		dc, err := core.NewDCBlocker(0.9995)
		if err != nil {
			return err
		}

		t.os = append(t.os, os)
		t.dc = append(t.dc, dc)
	}

	t.sag = make([]float64, engine.MaxChannels)
	t.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (t *Tube) Reset() {
	for ch := range t.os {
		t.os[ch].Reset()
		t.dc[ch].Reset()
	}

	core.Zero(t.sag)
}

// Process implements engine.Engine.
func (t *Tube) Process(buf [][]float64) {
	if !t.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	drive := 1 + t.params.Value(0)*15
	output := core.DBToLinear((t.params.Value(2) - 0.5) * 24)
	bias := (t.params.Value(1) - 0.5) * 0.4
	sagCoeff := timeConstant(80, t.sampleRate*2)

	for ch := 0; ch < nch; ch++ {
		chIdx := ch

		t.os[ch].Process(buf[ch], func(up []float64) {
			for i := range up {
				x := up[i] * drive

				// Envelope sag shifts the operating point under load.
				level := math.Abs(x)
				t.sag[chIdx] += (level - t.sag[chIdx]) * sagCoeff

				shifted := x + bias - t.sag[chIdx]*0.1
				up[i] = triode(shifted) - triode(bias)
			}
		})

		for i := range buf[ch] {
			buf[ch][i] = t.dc[ch].ProcessSample(buf[ch][i]) * output
		}
	}
}

// triode is an asymmetric shaper: hard into cutoff, soft into saturation.
func triode(x float64) float64 {
	if x < 0 {
		return math.Tanh(1.5*x) / 1.5
	}

	return x / (1 + 0.6*x)
}

func timeConstant(ms, sampleRate float64) float64 {
	return 1 - math.Exp(-1/(ms*0.001*sampleRate))
}
