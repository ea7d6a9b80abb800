package reverb

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/delay"
	"github.com/cwbudde/algo-rack/engine"
)

const hallLines = 8

// hallTunings are mutually prime delay lengths at 44.1 kHz.
var hallTunings = [hallLines]int{1931, 2213, 2503, 2819, 3203, 3533, 3907, 4259}

// Hall is an eight-line feedback delay network with a Householder
// feedback matrix. The matrix is lossless, so the decay is set purely by
// the per-line gains and the damping lowpasses.
//
// Parameters: Size, Decay, Damping, Predelay, Mix.
type Hall struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	lines     [hallLines]*delay.Line
	dampState [hallLines]float64
	predelay  [reverbChannels]*delay.Line
	out       [hallLines]float64
}

// NewHall creates an unprepared hall reverb.
func NewHall() *Hall {
	return &Hall{params: engine.NewParamSetFor(engine.HallReverb, "Size", "Decay", "Damping", "Predelay", "Mix")}
}

// Name implements engine.Engine.
func (h *Hall) Name() string { return "Hall Reverb" }

// NumParameters implements engine.Engine.
func (h *Hall) NumParameters() int { return h.params.Num() }

// ParameterName implements engine.Engine.
func (h *Hall) ParameterName(i int) string { return h.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (h *Hall) UpdateParameters(changes map[int]float64) { h.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (h *Hall) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (h *Hall) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("hall reverb sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("hall reverb max block must be > 0: %d", maxBlock)
	}

	h.sampleRate = sampleRate

	for i, ref := range hallTunings {
		length := scaleLength(ref+ref/2, sampleRate, 0)

		line, err := delay.New(length + 8)
		if err != nil {
			return fmt.Errorf("hall reverb line %d: %w", i, err)
		}

		h.lines[i] = line
	}

	for ch := 0; ch < reverbChannels; ch++ {
		pd, err := delay.New(int(0.2*sampleRate)+8)
		if err != nil {
			return fmt.Errorf("hall reverb predelay: %w", err)
		}

		h.predelay[ch] = pd
	}

	h.prepared = true
	h.Reset()

	return nil
}

// Reset implements engine.Engine.
func (h *Hall) Reset() {
	for i := range h.lines {
		if h.lines[i] != nil {
			h.lines[i].Reset()
		}

		h.dampState[i] = 0
		h.out[i] = 0
	}

	for ch := range h.predelay {
		if h.predelay[ch] != nil {
			h.predelay[ch].Reset()
		}
	}
}

// Process implements engine.Engine.
func (h *Hall) Process(buf [][]float64) {
	if !h.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > reverbChannels {
		nch = reverbChannels
	}

	sizeScale := 0.6 + h.params.Value(0)*0.9
	rt60 := 0.4 + h.params.Value(1)*h.params.Value(1)*11.6
	damp := h.params.Value(2) * 0.7
	predelaySamp := 1 + h.params.Value(3)*0.15*h.sampleRate
	mix := h.params.Value(4)

	var lineDelay [hallLines]float64
	var lineGain [hallLines]float64

	for i, ref := range hallTunings {
		lineDelay[i] = core.Clamp(float64(ref)*sizeScale*h.sampleRate/44100, 16, h.lines[i].MaxDelay())
		lineGain[i] = feedbackForRT60(lineDelay[i], rt60, h.sampleRate)
	}

	n := len(buf[0])
	for i := 0; i < n; i++ {
		inL := buf[0][i]
		inR := inL
		if nch > 1 {
			inR = buf[1][i]
		}

		h.predelay[0].Write(inL)
		if nch > 1 {
			h.predelay[1].Write(inR)
		}

		feedL := h.predelay[0].ReadFractional(predelaySamp)
		feedR := feedL
		if nch > 1 {
			feedR = h.predelay[1].ReadFractional(predelaySamp)
		}

		// Read all lines, then Householder reflect: v - (2/N)·sum(v).
		sum := 0.0
		for l := range h.lines {
			h.out[l] = h.lines[l].ReadFractional(lineDelay[l])
			sum += h.out[l]
		}
		sum *= 2.0 / hallLines

		for l := range h.lines {
			refl := h.out[l] - sum

			// Damping lowpass inside the loop.
			h.dampState[l] = refl*(1-damp) + h.dampState[l]*damp

			inject := feedL
			if l&1 == 1 {
				inject = feedR
			}

			h.lines[l].Write(h.dampState[l]*lineGain[l] + inject*0.25)
		}

		wetL := (h.out[0] + h.out[2] + h.out[4] + h.out[6]) * 0.5
		wetR := (h.out[1] + h.out[3] + h.out[5] + h.out[7]) * 0.5

		buf[0][i] = inL*(1-mix) + wetL*mix
		if nch > 1 {
			buf[1][i] = inR*(1-mix) + wetR*mix
		}
	}
}
