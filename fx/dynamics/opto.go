package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

// Opto models an optical compressor: slow program-dependent release, a soft
// wide knee, and a fixed low ratio. Channels are detected linked.
//
// Parameters: Reduction, Makeup, Mix.
type Opto struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	det      detector
	reducDB  float64 // smoothed gain reduction used for release scaling
	makeupSm *smooth.Smoother
	mixSm    *smooth.Smoother
}

// NewOpto creates an unprepared opto compressor.
func NewOpto() *Opto {
	return &Opto{params: engine.NewParamSetFor(engine.OptoCompressor, "Reduction", "Makeup", "Mix")}
}

// Name implements engine.Engine.
func (o *Opto) Name() string { return "Opto Compressor" }

// NumParameters implements engine.Engine.
func (o *Opto) NumParameters() int { return o.params.Num() }

// ParameterName implements engine.Engine.
func (o *Opto) ParameterName(i int) string { return o.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (o *Opto) UpdateParameters(changes map[int]float64) { o.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (o *Opto) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (o *Opto) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("opto compressor sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("opto compressor max block must be > 0: %d", maxBlock)
	}

	o.sampleRate = sampleRate
	o.det = newDetector(10, 60, sampleRate)

	var err error

	o.makeupSm, err = smooth.New(50, sampleRate)
	if err != nil {
		return err
	}

	o.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	o.makeupSm.Reset(o.params.Value(1))
	o.mixSm.Reset(o.params.Value(2))
	o.reducDB = 0
	o.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (o *Opto) Reset() {
	o.det.reset()
	o.reducDB = 0

	if o.prepared {
		o.makeupSm.Reset(o.params.Value(1))
		o.mixSm.Reset(o.params.Value(2))
	}
}

// Process implements engine.Engine.
func (o *Opto) Process(buf [][]float64) {
	if !o.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	// More reduction pulls the threshold down, up to -40 dB.
	thresholdDB := -o.params.Value(0) * 40

	o.makeupSm.SetTarget(o.params.Value(1))
	o.mixSm.SetTarget(o.params.Value(2))

	for i := range buf[0] {
		makeup := core.DBToLinear(o.makeupSm.Next() * 24)
		mix := o.mixSm.Next()

		// Linked detection over all channels.
		peak := 0.0
		for ch := 0; ch < nch; ch++ {
			if a := math.Abs(buf[ch][i]); a > peak {
				peak = a
			}
		}

		// The cell recovers slower the harder it has been driven.
		recovery := 60 + core.Clamp(o.reducDB, 0, 20)*45
		o.det.setTimes(10, recovery, o.sampleRate)

		env := o.det.track(peak)
		levelDB := core.LinearToDB(math.Max(env, 1e-6))

		gainDB := compressorGainDB(levelDB, thresholdDB, 3, 12)
		o.reducDB += (-gainDB - o.reducDB) * 0.001

		gain := core.DBToLinear(gainDB) * makeup

		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]
			buf[ch][i] = dry*(1-mix) + dry*gain*mix
		}
	}
}
