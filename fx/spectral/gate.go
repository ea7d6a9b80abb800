package spectral

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

// Gate is a per-bin downward expander: bins whose magnitude stays under the
// threshold are attenuated toward the reduction floor, with a per-bin
// envelope so gating does not flutter frame to frame.
//
// Parameters: Threshold, Reduction, Smoothing, Mix.
type Gate struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	ffts  []*stft
	gains [][]float64

	mixSm *smooth.Smoother
}

// NewGate creates an unprepared spectral gate.
func NewGate() *Gate {
	return &Gate{params: engine.NewParamSetFor(engine.SpectralGate, "Threshold", "Reduction", "Smoothing", "Mix")}
}

// Name implements engine.Engine.
func (g *Gate) Name() string { return "Spectral Gate" }

// NumParameters implements engine.Engine.
func (g *Gate) NumParameters() int { return g.params.Num() }

// ParameterName implements engine.Engine.
func (g *Gate) ParameterName(i int) string { return g.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (g *Gate) UpdateParameters(changes map[int]float64) { g.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (g *Gate) LatencySamples() int { return stftSize - stftHop }

// Prepare implements engine.Engine.
func (g *Gate) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("spectral gate sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("spectral gate max block must be > 0: %d", maxBlock)
	}

	g.sampleRate = sampleRate

	g.ffts = g.ffts[:0]
	g.gains = g.gains[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		st, err := newSTFT()
		if err != nil {
			return err
		}

		g.ffts = append(g.ffts, st)
		g.gains = append(g.gains, make([]float64, stftBins))
	}

	var err error

	g.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	g.mixSm.Reset(g.params.Value(3))
	g.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (g *Gate) Reset() {
	for ch := range g.ffts {
		g.ffts[ch].reset()
		core.Zero(g.gains[ch])
	}

	if g.prepared {
		g.mixSm.Reset(g.params.Value(3))
	}
}

// Process implements engine.Engine.
func (g *Gate) Process(buf [][]float64) {
	if !g.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	// Threshold in absolute magnitude, mapped over a wide log range.
	threshold := math.Pow(10, -4+g.params.Value(0)*4) * stftSize * 0.25
	floor := core.DBToLinear(-60 * g.params.Value(1))

	// Smoothing sets the per-frame gain slew, fast to slow.
	slew := 0.2 + g.params.Value(2)*0.75

	g.mixSm.SetTarget(g.params.Value(3))

	for i := range buf[0] {
		mix := g.mixSm.Next()

		for ch := 0; ch < nch; ch++ {
			gains := g.gains[ch]
			dry := buf[ch][i]

			wet := g.ffts[ch].tick(dry, func(spec []complex128) {
				for k := range spec {
					target := floor
					if complexAbs(spec[k]) >= threshold {
						target = 1
					}

					gains[k] += (target - gains[k]) * (1 - slew)
					spec[k] *= complex(gains[k], 0)
				}
			})

			buf[ch][i] = dry*(1-mix) + wet*mix
		}
	}
}
