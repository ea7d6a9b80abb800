package utility

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/engine"
)

const rotatorMaxStages = 6

// rotStage is a first-order allpass with a fixed coefficient per block.
type rotStage struct {
	x1 float64
	y1 float64
}

func (s *rotStage) process(x, coeff float64) float64 {
	y := -coeff*x + s.x1 + coeff*s.y1
	s.x1 = x
	s.y1 = y

	return y
}

// Rotator is a broadcast-style phase rotator: allpass stages shift the
// phase of asymmetric material (voice, brass) without touching the
// magnitude response, evening out peak headroom.
//
// Parameters: Frequency, Stages.
type Rotator struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	stages [engine.MaxChannels][rotatorMaxStages]rotStage
}

// NewRotator creates an unprepared phase rotator.
func NewRotator() *Rotator {
	return &Rotator{params: engine.NewParamSetFor(engine.PhaseRotator, "Frequency", "Stages")}
}

// Name implements engine.Engine.
func (r *Rotator) Name() string { return "Phase Rotator" }

// NumParameters implements engine.Engine.
func (r *Rotator) NumParameters() int { return r.params.Num() }

// ParameterName implements engine.Engine.
func (r *Rotator) ParameterName(i int) string { return r.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (r *Rotator) UpdateParameters(changes map[int]float64) { r.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (r *Rotator) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (r *Rotator) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("phase rotator sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("phase rotator max block must be > 0: %d", maxBlock)
	}

	r.sampleRate = sampleRate
	r.prepared = true
	r.Reset()

	return nil
}

// Reset implements engine.Engine.
func (r *Rotator) Reset() {
	for ch := range r.stages {
		for s := range r.stages[ch] {
			r.stages[ch][s] = rotStage{}
		}
	}
}

// Process implements engine.Engine.
func (r *Rotator) Process(buf [][]float64) {
	if !r.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	// Rotation center 50 Hz .. 2 kHz.
	freq := 50 * math.Pow(40, r.params.Value(0))
	t := math.Tan(math.Pi * freq / r.sampleRate)
	coeff := (1 - t) / (1 + t)

	numStages := 1 + int(r.params.Value(1)*float64(rotatorMaxStages-1)+0.5)

	for ch := 0; ch < nch; ch++ {
		for i := range buf[ch] {
			x := buf[ch][i]
			for s := 0; s < numStages; s++ {
				x = r.stages[ch][s].process(x, coeff)
			}

			buf[ch][i] = x
		}
	}
}
