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
	bbdStages = 1024
	bbdMinMs  = 20.0
	bbdMaxMs  = 1000.0

	bbdMinClockHz = 5000.0
	bbdMaxClockHz = 100000.0

	companderAttack  = 0.001
	companderRelease = 0.050
	companderFloor   = 1e-6
)

// BBD models a bucket-brigade delay: companding around the charge-transfer
// core, clock-proportional anti-alias and reconstruction filters, and an
// aging control that darkens the whole path.
//
// Parameters: Time, Feedback, Age, Mod Depth, Mod Rate, Sync, Mix.
type BBD struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool
	transport  engine.TransportInfo

	timeSm *smooth.Smoother
	fbSm   *smooth.Smoother
	mixSm  *smooth.Smoother

	lines   []*delay.Line
	antiIn  []*biquad.Section
	recon   []*biquad.Section
	fbHP    []*core.DCBlocker
	compEnv []float64
	expEnv  []float64

	emphasis   []*biquad.Section
	deEmphasis []*biquad.Section

	lfoPhase  float64
	lastClock float64

	attackCoeff  float64
	releaseCoeff float64
}

// NewBBD creates an unprepared bucket-brigade delay.
func NewBBD() *BBD {
	return &BBD{
		params:    engine.NewParamSetFor(engine.BucketBrigadeDelay, "Time", "Feedback", "Age", "Mod Depth", "Mod Rate", "Sync", "Mix"),
		transport: engine.DefaultTransport(),
	}
}

// Name implements engine.Engine.
func (b *BBD) Name() string { return "Bucket Brigade Delay" }

// NumParameters implements engine.Engine.
func (b *BBD) NumParameters() int { return b.params.Num() }

// ParameterName implements engine.Engine.
func (b *BBD) ParameterName(i int) string { return b.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (b *BBD) UpdateParameters(changes map[int]float64) { b.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (b *BBD) LatencySamples() int { return 0 }

// SetTransportInfo implements engine.TempoSynced.
func (b *BBD) SetTransportInfo(info engine.TransportInfo) { b.transport = info }

// Prepare implements engine.Engine.
func (b *BBD) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("bbd sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("bbd max block must be > 0: %d", maxBlock)
	}

	b.sampleRate = sampleRate
	capacity := int(math.Ceil((bbdMaxMs*0.001 + headroomSeconds) * sampleRate))

	b.lines = b.lines[:0]
	b.antiIn = b.antiIn[:0]
	b.recon = b.recon[:0]
	b.fbHP = b.fbHP[:0]
	b.emphasis = b.emphasis[:0]
	b.deEmphasis = b.deEmphasis[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		line, err := delay.New(capacity)
		if err != nil {
			return err
		}

		hp, err := core.NewDCBlocker(feedbackCoefficient(sampleRate))
		if err != nil {
			return err
		}

		b.lines = append(b.lines, line)
		b.fbHP = append(b.fbHP, hp)
		b.antiIn = append(b.antiIn, biquad.NewSection(biquad.Identity()))
		b.recon = append(b.recon, biquad.NewSection(biquad.Identity()))
		b.emphasis = append(b.emphasis, biquad.NewSection(biquad.Identity()))
		b.deEmphasis = append(b.deEmphasis, biquad.NewSection(biquad.Identity()))
	}

	b.compEnv = make([]float64, engine.MaxChannels)
	b.expEnv = make([]float64, engine.MaxChannels)

	b.attackCoeff = 1 - math.Exp(-1/(companderAttack*sampleRate))
	b.releaseCoeff = 1 - math.Exp(-1/(companderRelease*sampleRate))

	var err error

	b.timeSm, err = smooth.New(150, sampleRate)
	if err != nil {
		return err
	}

	b.fbSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	b.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	b.timeSm.Reset(b.delaySamples())
	b.fbSm.Reset(b.params.Value(1) * maxFeedback)
	b.mixSm.Reset(b.params.Value(6))
	b.lastClock = 0
	b.updateFilters()
	b.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (b *BBD) Reset() {
	for ch := range b.lines {
		b.lines[ch].Reset()
		b.antiIn[ch].Reset()
		b.recon[ch].Reset()
		b.fbHP[ch].Reset()
		b.emphasis[ch].Reset()
		b.deEmphasis[ch].Reset()
	}

	core.Zero(b.compEnv)
	core.Zero(b.expEnv)
	b.lfoPhase = 0

	if b.prepared {
		b.timeSm.Reset(b.delaySamples())
		b.fbSm.Reset(b.params.Value(1) * maxFeedback)
		b.mixSm.Reset(b.params.Value(6))
	}
}

// Process implements engine.Engine.
func (b *BBD) Process(buf [][]float64) {
	if !b.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	b.timeSm.SetTarget(b.delaySamples())
	b.fbSm.SetTarget(b.params.Value(1) * maxFeedback)
	b.mixSm.SetTarget(b.params.Value(6))
	b.updateFilters()

	modDepth := b.params.Value(3) * 0.001 * b.sampleRate
	modInc := 2 * math.Pi * (0.1 + b.params.Value(4)*7.9) / b.sampleRate

	for i := range buf[0] {
		base := b.timeSm.Next()
		fb := b.fbSm.Next()
		mix := b.mixSm.Next()

		b.lfoPhase += modInc
		if b.lfoPhase > 2*math.Pi {
			b.lfoPhase -= 2 * math.Pi
		}

		readPos := core.Clamp(base+modDepth*math.Sin(b.lfoPhase), 1, b.lines[0].MaxDelay())

		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]

			// Expand what comes off the line first, then filter it the
			// way the reconstruction stage would.
			raw := b.lines[ch].ReadFractional(readPos)
			b.trackEnv(&b.expEnv[ch], raw)
			wet := raw * math.Sqrt(b.expEnv[ch]+companderFloor)
			wet = b.recon[ch].ProcessSample(wet)
			wet = b.deEmphasis[ch].ProcessSample(wet)

			fbIn := b.fbHP[ch].ProcessSample(wet * fb)
			fbIn = core.SoftClip(fbIn, softClipThreshold)

			// Compress on the way in so the charge-transfer core sees a
			// tame level.
			in := b.emphasis[ch].ProcessSample(dry + fbIn)
			in = b.antiIn[ch].ProcessSample(in)
			b.trackEnv(&b.compEnv[ch], in)
			in /= math.Sqrt(b.compEnv[ch] + companderFloor)

			b.lines[ch].Write(core.Sanitize(core.SoftClip(in, softClipThreshold)))

			buf[ch][i] = dry*(1-mix) + (dry+wet)*mix
		}
	}
}

func (b *BBD) trackEnv(env *float64, x float64) {
	ax := math.Abs(x)

	coeff := b.releaseCoeff
	if ax > *env {
		coeff = b.attackCoeff
	}

	*env += coeff * (ax - *env)
	*env = core.FlushDenormals(*env)
}

// updateFilters recomputes the clock-proportional filters when the clock
// rate has moved more than a few percent.
func (b *BBD) updateFilters() {
	delaySec := b.timeSm.Target() / b.sampleRate
	if delaySec <= 0 {
		return
	}

	clock := core.Clamp(bbdStages/(2*delaySec), bbdMinClockHz, bbdMaxClockHz)
	if b.lastClock > 0 && math.Abs(clock-b.lastClock)/b.lastClock < 0.02 {
		return
	}

	b.lastClock = clock
	age := b.params.Value(2)

	// Aging pulls every corner down; a fresh unit sits near a third of
	// the clock, a worn one well below.
	aliasHz := core.Clamp(clock*(0.33-0.13*age), 500, b.sampleRate*0.45)
	reconHz := core.Clamp(clock*(0.30-0.12*age), 500, b.sampleRate*0.45)
	emphasisHz := core.Clamp(3000*(1-0.5*age), 500, b.sampleRate*0.45)

	anti := design.Lowpass(aliasHz, 0.9, b.sampleRate)
	recon := design.Lowpass(reconHz, 0.9, b.sampleRate)
	emph := design.HighShelf(emphasisHz, 4, 0.7, b.sampleRate)
	deEmph := design.HighShelf(emphasisHz, -4, 0.7, b.sampleRate)

	for ch := range b.antiIn {
		b.antiIn[ch].SetCoefficients(anti)
		b.recon[ch].SetCoefficients(recon)
		b.emphasis[ch].SetCoefficients(emph)
		b.deEmphasis[ch].SetCoefficients(deEmph)
	}
}

func (b *BBD) delaySamples() float64 {
	if b.params.Bool(5) {
		samples := engine.DivisionSamples(b.params.Value(0), b.transport, b.sampleRate)
		return core.Clamp(samples, bbdMinMs*0.001*b.sampleRate, b.maxDelay())
	}

	ms := bbdMinMs * math.Pow(bbdMaxMs/bbdMinMs, b.params.Value(0))

	return core.Clamp(ms*0.001*b.sampleRate, 1, b.maxDelay())
}

func (b *BBD) maxDelay() float64 {
	if len(b.lines) == 0 {
		return 1
	}

	return b.lines[0].MaxDelay()
}
