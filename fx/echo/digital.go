// Package echo implements the tempo-synced delay family: digital and tape
// delays, bucket-brigade and magnetic-drum models, and the buffer repeat
// slicer. All of them share the division quantizer from the engine package
// and feed back through a subsonic highpass and a soft clipper so feedback
// can never run away.
package echo

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/delay"
	"github.com/cwbudde/algo-rack/dsp/oversample"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

const (
	maxDelaySeconds = 2.0
	headroomSeconds = 0.2

	// Feedback is limited below unity regardless of the knob so tails
	// always decay.
	maxFeedback = 0.95

	feedbackHighpassHz = 20.0
	softClipThreshold  = 0.9
)

// Digital is a clean feedback delay with one-pole damping and ping-pong
// crossfeed.
//
// Parameters: Time, Feedback, Damping, Crossfeed, Sync, Mix.
type Digital struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool
	transport  engine.TransportInfo

	timeSm *smooth.Smoother
	fbSm   *smooth.Smoother
	mixSm  *smooth.Smoother

	lines   []*delay.Line
	fbHP    []*core.DCBlocker
	dampLP  []float64
	lastOut []float64

	// The feedback clipper runs 4x oversampled. Its linear-phase filters
	// delay the loop, so the dry write is pre-delayed by the same amount and
	// the line read shortened to keep the echo time exact.
	fbClip  []*oversample.Oversampler
	preLine []*delay.Line
	fbLat   int
	clipBuf [1]float64
}

// NewDigital creates an unprepared digital delay.
func NewDigital() *Digital {
	return &Digital{
		params:    engine.NewParamSetFor(engine.DigitalDelay, "Time", "Feedback", "Damping", "Crossfeed", "Sync", "Mix"),
		transport: engine.DefaultTransport(),
	}
}

// Name implements engine.Engine.
func (d *Digital) Name() string { return "Digital Delay" }

// NumParameters implements engine.Engine.
func (d *Digital) NumParameters() int { return d.params.Num() }

// ParameterName implements engine.Engine.
func (d *Digital) ParameterName(i int) string { return d.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (d *Digital) UpdateParameters(changes map[int]float64) { d.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (d *Digital) LatencySamples() int { return 0 }

// SetTransportInfo implements engine.TempoSynced.
func (d *Digital) SetTransportInfo(info engine.TransportInfo) { d.transport = info }

// Prepare implements engine.Engine.
func (d *Digital) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("digital delay sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("digital delay max block must be > 0: %d", maxBlock)
	}

	d.sampleRate = sampleRate

	capacity := int(math.Ceil((maxDelaySeconds + headroomSeconds) * sampleRate))

	d.lines = d.lines[:0]
	d.fbHP = d.fbHP[:0]
	d.fbClip = d.fbClip[:0]
	d.preLine = d.preLine[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		line, err := delay.New(capacity)
		if err != nil {
			return err
		}

		hp, err := core.NewDCBlocker(feedbackCoefficient(sampleRate))
		if err != nil {
			return err
		}

		clip, err := oversample.New(4, 1)
		if err != nil {
			return err
		}

		d.fbLat = clip.Latency()

		pre, err := delay.New(d.fbLat + 1)
		if err != nil {
			return err
		}

		d.lines = append(d.lines, line)
		d.fbHP = append(d.fbHP, hp)
		d.fbClip = append(d.fbClip, clip)
		d.preLine = append(d.preLine, pre)
	}

	d.dampLP = make([]float64, engine.MaxChannels)
	d.lastOut = make([]float64, engine.MaxChannels)

	var err error

	d.timeSm, err = smooth.New(100, sampleRate)
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

	d.timeSm.Reset(d.delaySamples())
	d.fbSm.Reset(d.feedbackAmount())
	d.mixSm.Reset(d.params.Value(5))
	d.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (d *Digital) Reset() {
	for _, line := range d.lines {
		line.Reset()
	}

	for _, hp := range d.fbHP {
		hp.Reset()
	}

	for _, clip := range d.fbClip {
		clip.Reset()
	}

	for _, pre := range d.preLine {
		pre.Reset()
	}

	core.Zero(d.dampLP)
	core.Zero(d.lastOut)

	if d.prepared {
		d.timeSm.Reset(d.delaySamples())
		d.fbSm.Reset(d.feedbackAmount())
		d.mixSm.Reset(d.params.Value(5))
	}
}

// Process implements engine.Engine.
func (d *Digital) Process(buf [][]float64) {
	if !d.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	d.timeSm.SetTarget(d.delaySamples())
	d.fbSm.SetTarget(d.feedbackAmount())
	d.mixSm.SetTarget(d.params.Value(5))

	dampCoeff, dampOn := d.dampingCoeff()
	cross := d.params.Value(3)

	var reads [engine.MaxChannels]float64

	for i := range buf[0] {
		delaySamp := d.timeSm.Next()
		fb := d.fbSm.Next()
		mix := d.mixSm.Next()

		// The write side runs fbLat samples behind the input, so the read
		// offset shrinks by the same amount to land the echo on time.
		readSamp := delaySamp - float64(d.fbLat)
		if readSamp < 1 {
			readSamp = 1
		}

		for ch := 0; ch < nch; ch++ {
			reads[ch] = d.lines[ch].ReadFractional(readSamp)
		}

		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]

			// Ping-pong: blend the partner channel's history into this
			// channel's repeat.
			wet := reads[ch]
			if partner := ch ^ 1; partner < nch {
				wet = wet*(1-cross) + reads[partner]*cross
			}

			if dampOn {
				d.dampLP[ch] += dampCoeff * (wet - d.dampLP[ch])
				wet = d.dampLP[ch]
			}

			fbIn := d.fbHP[ch].ProcessSample(wet * fb)

			d.clipBuf[0] = fbIn
			d.fbClip[ch].Process(d.clipBuf[:], clipFeedback)
			fbIn = d.clipBuf[0]

			d.preLine[ch].Write(dry)
			late := d.preLine[ch].Read(d.fbLat + 1)

			d.lines[ch].Write(core.Sanitize(late + fbIn))

			buf[ch][i] = dry*(1-mix) + (dry+wet)*mix
		}
	}
}

func (d *Digital) delaySamples() float64 {
	if d.params.Bool(4) {
		samples := engine.DivisionSamples(d.params.Value(0), d.transport, d.sampleRate)
		return core.Clamp(samples, 1, d.maxDelay())
	}

	ms := 1 + d.params.Value(0)*1999
	return core.Clamp(ms*0.001*d.sampleRate, 1, d.maxDelay())
}

func (d *Digital) maxDelay() float64 {
	if len(d.lines) == 0 {
		return 1
	}

	return d.lines[0].MaxDelay()
}

func (d *Digital) feedbackAmount() float64 {
	return d.params.Value(1) * maxFeedback
}

func (d *Digital) dampingCoeff() (float64, bool) {
	v := d.params.Value(2)
	if v <= 0.001 {
		return 0, false
	}

	cutoff := 500 * math.Pow(40, 1-v) // 0..1 -> 20 kHz..500 Hz
	coeff := 1 - math.Exp(-2*math.Pi*cutoff/d.sampleRate)

	return coeff, true
}

func feedbackCoefficient(sampleRate float64) float64 {
	return core.Clamp(1-2*math.Pi*feedbackHighpassHz/sampleRate, 0.995, 0.9995)
}

func clipFeedback(up []float64) {
	for i := range up {
		up[i] = core.SoftClip(up[i], softClipThreshold)
	}
}
