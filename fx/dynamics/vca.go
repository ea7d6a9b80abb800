package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

// VCA is a clean feed-forward compressor with adjustable times and ratio,
// stereo-linked detection, and makeup gain.
//
// Parameters: Threshold, Ratio, Attack, Release, Makeup.
type VCA struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	det      detector
	makeupSm *smooth.Smoother
}

// NewVCA creates an unprepared VCA compressor.
func NewVCA() *VCA {
	return &VCA{params: engine.NewParamSetFor(engine.VCACompressor, "Threshold", "Ratio", "Attack", "Release", "Makeup")}
}

// Name implements engine.Engine.
func (v *VCA) Name() string { return "VCA Compressor" }

// NumParameters implements engine.Engine.
func (v *VCA) NumParameters() int { return v.params.Num() }

// ParameterName implements engine.Engine.
func (v *VCA) ParameterName(i int) string { return v.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (v *VCA) UpdateParameters(changes map[int]float64) { v.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (v *VCA) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (v *VCA) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("vca compressor sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("vca compressor max block must be > 0: %d", maxBlock)
	}

	v.sampleRate = sampleRate
	v.det = newDetector(10, 100, sampleRate)

	var err error

	v.makeupSm, err = smooth.New(50, sampleRate)
	if err != nil {
		return err
	}

	v.makeupSm.Reset(v.params.Value(4))
	v.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (v *VCA) Reset() {
	v.det.reset()

	if v.prepared {
		v.makeupSm.Reset(v.params.Value(4))
	}
}

// Process implements engine.Engine.
func (v *VCA) Process(buf [][]float64) {
	if !v.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	thresholdDB := -60 + v.params.Value(0)*60
	ratio := 1 + v.params.Value(1)*v.params.Value(1)*19 // 1:1 up to 20:1
	attackMs := 0.1 * math.Pow(300, v.params.Value(2))  // 0.1..30 ms
	releaseMs := 20 * math.Pow(50, v.params.Value(3))   // 20..1000 ms

	v.det.setTimes(attackMs, releaseMs, v.sampleRate)
	v.makeupSm.SetTarget(v.params.Value(4))

	for i := range buf[0] {
		makeup := core.DBToLinear(v.makeupSm.Next() * 24)

		peak := 0.0
		for ch := 0; ch < nch; ch++ {
			if a := math.Abs(buf[ch][i]); a > peak {
				peak = a
			}
		}

		env := v.det.track(peak)
		levelDB := core.LinearToDB(math.Max(env, 1e-6))

		gain := core.DBToLinear(compressorGainDB(levelDB, thresholdDB, ratio, 6)) * makeup

		for ch := 0; ch < nch; ch++ {
			buf[ch][i] *= gain
		}
	}
}
