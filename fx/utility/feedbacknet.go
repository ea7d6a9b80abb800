package utility

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/delay"
	"github.com/cwbudde/algo-rack/engine"
)

const netLines = 4

// netTunings are mutually prime lengths at 44.1 kHz for the small network.
var netTunings = [netLines]int{1409, 1721, 2053, 2399}

// FeedbackNet is a four-line cross-coupled delay network somewhere between
// a multitap echo and a reverb. An orthogonal rotation feeds the lines
// into each other; the feedback knob scales the whole loop below unity and
// damping keeps the recirculation from whistling.
//
// Parameters: Time, Feedback, Damping, Mix.
type FeedbackNet struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	lines [netLines]*delay.Line
	damp  [netLines]lowpass1
	out   [netLines]float64
}

// NewFeedbackNet creates an unprepared feedback network.
func NewFeedbackNet() *FeedbackNet {
	return &FeedbackNet{params: engine.NewParamSetFor(engine.FeedbackNetwork, "Time", "Feedback", "Damping", "Mix")}
}

// Name implements engine.Engine.
func (f *FeedbackNet) Name() string { return "Feedback Network" }

// NumParameters implements engine.Engine.
func (f *FeedbackNet) NumParameters() int { return f.params.Num() }

// ParameterName implements engine.Engine.
func (f *FeedbackNet) ParameterName(i int) string { return f.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (f *FeedbackNet) UpdateParameters(changes map[int]float64) { f.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (f *FeedbackNet) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (f *FeedbackNet) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("feedback network sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("feedback network max block must be > 0: %d", maxBlock)
	}

	f.sampleRate = sampleRate

	for i, ref := range netTunings {
		// Time stretches up to 4x the reference length.
		length := int(float64(ref) * 4 * sampleRate / 44100)

		line, err := delay.New(length + 8)
		if err != nil {
			return fmt.Errorf("feedback network line %d: %w", i, err)
		}

		f.lines[i] = line
	}

	f.prepared = true
	f.Reset()

	return nil
}

// Reset implements engine.Engine.
func (f *FeedbackNet) Reset() {
	for i := range f.lines {
		if f.lines[i] != nil {
			f.lines[i].Reset()
		}

		f.damp[i].state = 0
		f.out[i] = 0
	}
}

// Process implements engine.Engine.
func (f *FeedbackNet) Process(buf [][]float64) {
	if !f.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > 2 {
		nch = 2
	}

	timeScale := 0.25 + f.params.Value(0)*3.75
	feedback := f.params.Value(1) * 0.95
	mix := f.params.Value(3)

	dampFreq := 18000 * math.Pow(0.05, f.params.Value(2))
	for i := range f.damp {
		f.damp[i].setCutoff(dampFreq, f.sampleRate)
	}

	var lineDelay [netLines]float64
	for i, ref := range netTunings {
		lineDelay[i] = core.Clamp(float64(ref)*timeScale*f.sampleRate/44100, 16, f.lines[i].MaxDelay())
	}

	n := len(buf[0])
	for i := 0; i < n; i++ {
		inL := buf[0][i]
		inR := inL
		if nch > 1 {
			inR = buf[1][i]
		}

		for l := range f.lines {
			f.out[l] = f.lines[l].ReadFractional(lineDelay[l])
		}

		// Orthogonal 4x4 rotation built from two 2x2 butterflies.
		a := (f.out[0] + f.out[1]) * math.Sqrt2 / 2
		b := (f.out[0] - f.out[1]) * math.Sqrt2 / 2
		c := (f.out[2] + f.out[3]) * math.Sqrt2 / 2
		d := (f.out[2] - f.out[3]) * math.Sqrt2 / 2

		mixed := [netLines]float64{c, d, b, a}

		for l := range f.lines {
			recirc := f.damp[l].process(mixed[l]) * feedback

			inject := inL
			if l&1 == 1 {
				inject = inR
			}

			f.lines[l].Write(core.SoftClip(recirc+inject*0.5, 0.9))
		}

		wetL := (f.out[0] + f.out[2]) * 0.7
		wetR := (f.out[1] + f.out[3]) * 0.7

		buf[0][i] = inL*(1-mix) + wetL*mix
		if nch > 1 {
			buf[1][i] = inR*(1-mix) + wetR*mix
		}
	}
}
