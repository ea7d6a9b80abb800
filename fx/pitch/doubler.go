package pitch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

const maxDetuneCents = 25.0

// Doubler thickens the input with two micro-detuned copies panned apart.
//
// Parameters: Detune, Width, Mix.
type Doubler struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	up    []*shifterCore
	down  []*shifterCore
	mixSm *smooth.Smoother
}

// NewDoubler creates an unprepared detune doubler.
func NewDoubler() *Doubler {
	return &Doubler{params: engine.NewParamSetFor(engine.DetuneDoubler, "Detune", "Width", "Mix")}
}

// Name implements engine.Engine.
func (d *Doubler) Name() string { return "Detune Doubler" }

// NumParameters implements engine.Engine.
func (d *Doubler) NumParameters() int { return d.params.Num() }

// ParameterName implements engine.Engine.
func (d *Doubler) ParameterName(i int) string { return d.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (d *Doubler) UpdateParameters(changes map[int]float64) { d.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (d *Doubler) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (d *Doubler) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("detune doubler sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("detune doubler max block must be > 0: %d", maxBlock)
	}

	d.sampleRate = sampleRate

	d.up = d.up[:0]
	d.down = d.down[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		up := newShifterCore(uint64(ch)*2 + 11)
		down := newShifterCore(uint64(ch)*2 + 12)

		// Short grains keep the doubled voices tight against the dry signal.
		up.setGrain(1024)
		down.setGrain(1024)

		d.up = append(d.up, up)
		d.down = append(d.down, down)
	}

	var err error

	d.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	d.mixSm.Reset(d.params.Value(2))
	d.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (d *Doubler) Reset() {
	for ch := range d.up {
		d.up[ch].reset()
		d.down[ch].reset()
	}

	if d.prepared {
		d.mixSm.Reset(d.params.Value(2))
	}
}

// Process implements engine.Engine.
func (d *Doubler) Process(buf [][]float64) {
	if !d.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	cents := d.params.Value(0) * maxDetuneCents
	upRatio := math.Pow(2, cents/1200)
	downRatio := math.Pow(2, -cents/1200)
	width := d.params.Value(1)

	for ch := 0; ch < nch; ch++ {
		d.up[ch].setRatio(upRatio)
		d.down[ch].setRatio(downRatio)
	}

	d.mixSm.SetTarget(d.params.Value(2))

	for i := range buf[0] {
		mix := d.mixSm.Next()

		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]

			up := d.up[ch].tick(dry)
			down := d.down[ch].tick(dry)

			// Width pans the sharp voice one way and the flat voice the
			// other on channel pairs.
			upGain, downGain := 0.5, 0.5
			if ch&1 == 0 {
				upGain += width * 0.5
				downGain -= width * 0.5
			} else {
				upGain -= width * 0.5
				downGain += width * 0.5
			}

			wet := up*upGain + down*downGain
			buf[ch][i] = dry*(1-mix) + (dry*0.7+wet)*mix
		}
	}
}
