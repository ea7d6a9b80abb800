package echo

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/delay"
	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

const (
	drumBaseSeconds  = 1.0
	drumMinSpeed     = 0.2
	drumMaxSpeed     = 2.0
	drumInertiaMs    = 500.0
	drumRippleHz     = 100.0
	drumRippleAmount = 0.002
)

// drumHeadFractions places the three playback heads around the drum,
// measured from the record head.
var drumHeadFractions = [3]float64{0.25, 0.5, 0.75}

// Drum models a magnetic drum echo: one rotating drum per channel with
// three playback heads, motor inertia on speed changes, and mains ripple
// bleeding into the rotation.
//
// Parameters: Speed, Head 1, Head 2, Head 3, Feedback, Sync, Mix.
type Drum struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool
	transport  engine.TransportInfo

	speedSm *smooth.Smoother
	fbSm    *smooth.Smoother
	mixSm   *smooth.Smoother

	lines     []*delay.Line
	headBumps [][3]*biquad.Section
	fbHP      []*core.DCBlocker

	ripplePhase float64
}

// NewDrum creates an unprepared magnetic drum echo.
func NewDrum() *Drum {
	return &Drum{
		params:    engine.NewParamSetFor(engine.MagneticDrumEcho, "Speed", "Head 1", "Head 2", "Head 3", "Feedback", "Sync", "Mix"),
		transport: engine.DefaultTransport(),
	}
}

// Name implements engine.Engine.
func (d *Drum) Name() string { return "Magnetic Drum Echo" }

// NumParameters implements engine.Engine.
func (d *Drum) NumParameters() int { return d.params.Num() }

// ParameterName implements engine.Engine.
func (d *Drum) ParameterName(i int) string { return d.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (d *Drum) UpdateParameters(changes map[int]float64) { d.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (d *Drum) LatencySamples() int { return 0 }

// SetTransportInfo implements engine.TempoSynced.
func (d *Drum) SetTransportInfo(info engine.TransportInfo) { d.transport = info }

// Prepare implements engine.Engine.
func (d *Drum) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("drum echo sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("drum echo max block must be > 0: %d", maxBlock)
	}

	d.sampleRate = sampleRate

	// Slowest rotation stretches the farthest head to 0.75 s / 0.2.
	capacity := int(math.Ceil(drumBaseSeconds / drumMinSpeed * sampleRate))

	d.lines = d.lines[:0]
	d.headBumps = d.headBumps[:0]
	d.fbHP = d.fbHP[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		line, err := delay.New(capacity)
		if err != nil {
			return err
		}

		hp, err := core.NewDCBlocker(feedbackCoefficient(sampleRate))
		if err != nil {
			return err
		}

		var bumps [3]*biquad.Section
		for h := range bumps {
			// Each head gets its own subtle voicing around 90..130 Hz.
			freq := 90.0 + 20*float64(h)
			bumps[h] = biquad.NewSection(design.Peak(freq, 2.5, 1.1, sampleRate))
		}

		d.lines = append(d.lines, line)
		d.headBumps = append(d.headBumps, bumps)
		d.fbHP = append(d.fbHP, hp)
	}

	var err error

	d.speedSm, err = smooth.New(drumInertiaMs, sampleRate)
	if err != nil {
		return err
	}

	d.fbSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	d.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	d.speedSm.Reset(d.targetSpeed())
	d.fbSm.Reset(d.params.Value(4) * maxFeedback)
	d.mixSm.Reset(d.params.Value(6))
	d.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (d *Drum) Reset() {
	for ch := range d.lines {
		d.lines[ch].Reset()
		d.fbHP[ch].Reset()

		for h := range d.headBumps[ch] {
			d.headBumps[ch][h].Reset()
		}
	}

	d.ripplePhase = 0

	if d.prepared {
		d.speedSm.Reset(d.targetSpeed())
		d.fbSm.Reset(d.params.Value(4) * maxFeedback)
		d.mixSm.Reset(d.params.Value(6))
	}
}

// Process implements engine.Engine.
func (d *Drum) Process(buf [][]float64) {
	if !d.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	d.speedSm.SetTarget(d.targetSpeed())
	d.fbSm.SetTarget(d.params.Value(4) * maxFeedback)
	d.mixSm.SetTarget(d.params.Value(6))

	headGains := [3]float64{d.params.Value(1), d.params.Value(2), d.params.Value(3)}
	rippleInc := 2 * math.Pi * drumRippleHz / d.sampleRate
	maxDelay := d.lines[0].MaxDelay()

	for i := range buf[0] {
		fb := d.fbSm.Next()
		mix := d.mixSm.Next()

		d.ripplePhase += rippleInc
		if d.ripplePhase > 2*math.Pi {
			d.ripplePhase -= 2 * math.Pi
		}

		speed := d.speedSm.Next() * (1 + drumRippleAmount*math.Sin(d.ripplePhase))
		if speed < drumMinSpeed*0.5 {
			speed = drumMinSpeed * 0.5
		}

		rotation := drumBaseSeconds / speed * d.sampleRate

		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]

			wet := 0.0
			for h, frac := range drumHeadFractions {
				if headGains[h] < 0.001 {
					continue
				}

				pos := core.Clamp(frac*rotation, 1, maxDelay)
				tap := d.lines[ch].ReadFractional(pos)
				wet += d.headBumps[ch][h].ProcessSample(tap) * headGains[h]
			}

			fbIn := d.fbHP[ch].ProcessSample(wet * fb)
			fbIn = core.SoftClip(fbIn, softClipThreshold)

			d.lines[ch].Write(core.Sanitize(dry + fbIn))

			buf[ch][i] = dry*(1-mix) + (dry+wet)*mix
		}
	}
}

// targetSpeed maps the speed knob into rotation speed, or derives it from
// the transport so the middle head lands on the selected division.
func (d *Drum) targetSpeed() float64 {
	if d.params.Bool(5) {
		div := engine.DivisionSamples(d.params.Value(0), d.transport, d.sampleRate)
		if div > 0 {
			speed := drumHeadFractions[1] * drumBaseSeconds * d.sampleRate / div
			return core.Clamp(speed, drumMinSpeed, drumMaxSpeed)
		}
	}

	return drumMinSpeed + d.params.Value(0)*(drumMaxSpeed-drumMinSpeed)
}
