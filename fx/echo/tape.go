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
	tapeMinMs = 10.0
	tapeMaxMs = 2000.0

	wowRateHz     = 1.5
	flutterRateHz = 6.0
	scrapeRateHz  = 33.0
	driftRateHz   = 0.08

	headBumpHz     = 100.0
	headBumpGainDB = 3.0
)

// Tape models a worn tape echo: wow, flutter, scrape and drift modulate the
// read head, a head-bump EQ colors the repeats, and the feedback loop runs
// through an RC-coupled tube stage.
//
// Parameters: Time, Feedback, Wow & Flutter, Drive, Sync, Mix.
type Tape struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool
	transport  engine.TransportInfo

	timeSm *smooth.Smoother
	fbSm   *smooth.Smoother
	mixSm  *smooth.Smoother

	lines    []*delay.Line
	headBump []*biquad.Section
	inRC     []*core.DCBlocker
	outRC    []*core.DCBlocker
	fbHP     []*core.DCBlocker

	wowPhase     float64
	flutterPhase float64
	scrapePhase  float64
	drift        float64
	driftTarget  float64
	driftCount   int
	noiseState   uint64
}

// NewTape creates an unprepared tape echo.
func NewTape() *Tape {
	return &Tape{
		params:     engine.NewParamSetFor(engine.TapeEcho, "Time", "Feedback", "Wow & Flutter", "Drive", "Sync", "Mix"),
		transport:  engine.DefaultTransport(),
		noiseState: 0x9e3779b97f4a7c15,
	}
}

// Name implements engine.Engine.
func (t *Tape) Name() string { return "Tape Echo" }

// NumParameters implements engine.Engine.
func (t *Tape) NumParameters() int { return t.params.Num() }

// ParameterName implements engine.Engine.
func (t *Tape) ParameterName(i int) string { return t.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (t *Tape) UpdateParameters(changes map[int]float64) { t.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (t *Tape) LatencySamples() int { return 0 }

// SetTransportInfo implements engine.TempoSynced.
func (t *Tape) SetTransportInfo(info engine.TransportInfo) { t.transport = info }

// Prepare implements engine.Engine.
func (t *Tape) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("tape echo sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("tape echo max block must be > 0: %d", maxBlock)
	}

	t.sampleRate = sampleRate
	capacity := int(math.Ceil((maxDelaySeconds + headroomSeconds) * sampleRate))

	t.lines = t.lines[:0]
	t.headBump = t.headBump[:0]
	t.inRC = t.inRC[:0]
	t.outRC = t.outRC[:0]
	t.fbHP = t.fbHP[:0]

	bump := design.Peak(headBumpHz, headBumpGainDB, 1.0, sampleRate)

	for ch := 0; ch < engine.MaxChannels; ch++ {
		line, err := delay.New(capacity)
		if err != nil {
			return err
		}

		inRC, err := core.NewDCBlocker(0.995)
		if err != nil {
			return err
		}

		outRC, err := core.NewDCBlocker(0.9995)
		if err != nil {
			return err
		}

		hp, err := core.NewDCBlocker(feedbackCoefficient(sampleRate))
		if err != nil {
			return err
		}

		t.lines = append(t.lines, line)
		t.headBump = append(t.headBump, biquad.NewSection(bump))
		t.inRC = append(t.inRC, inRC)
		t.outRC = append(t.outRC, outRC)
		t.fbHP = append(t.fbHP, hp)
	}

	var err error

	t.timeSm, err = smooth.New(200, sampleRate)
	if err != nil {
		return err
	}

	t.fbSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	t.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	t.timeSm.Reset(t.delaySamples())
	t.fbSm.Reset(t.params.Value(1) * maxFeedback)
	t.mixSm.Reset(t.params.Value(5))
	t.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (t *Tape) Reset() {
	for ch := range t.lines {
		t.lines[ch].Reset()
		t.headBump[ch].Reset()
		t.inRC[ch].Reset()
		t.outRC[ch].Reset()
		t.fbHP[ch].Reset()
	}

	t.wowPhase = 0
	t.flutterPhase = 0
	t.scrapePhase = 0
	t.drift = 0
	t.driftTarget = 0
	t.driftCount = 0
	t.noiseState = 0x9e3779b97f4a7c15

	if t.prepared {
		t.timeSm.Reset(t.delaySamples())
		t.fbSm.Reset(t.params.Value(1) * maxFeedback)
		t.mixSm.Reset(t.params.Value(5))
	}
}

// Process implements engine.Engine.
func (t *Tape) Process(buf [][]float64) {
	if !t.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	t.timeSm.SetTarget(t.delaySamples())
	t.fbSm.SetTarget(t.params.Value(1) * maxFeedback)
	t.mixSm.SetTarget(t.params.Value(5))

	wobble := t.params.Value(2)
	drive := 1 + t.params.Value(3)*4

	wowInc := 2 * math.Pi * wowRateHz / t.sampleRate
	flutterInc := 2 * math.Pi * flutterRateHz / t.sampleRate
	scrapeInc := 2 * math.Pi * scrapeRateHz / t.sampleRate

	// Modulation depths in samples; scrape stays sub-sample.
	wowDepth := wobble * 0.0025 * t.sampleRate // up to 2.5 ms
	flutterDepth := wobble * 0.0006 * t.sampleRate
	scrapeDepth := wobble * 0.00008 * t.sampleRate

	for i := range buf[0] {
		base := t.timeSm.Next()
		fb := t.fbSm.Next()
		mix := t.mixSm.Next()

		t.wowPhase += wowInc
		t.flutterPhase += flutterInc
		t.scrapePhase += scrapeInc + (t.nextNoise()-0.5)*0.02

		// Drift ambles toward a new random offset every ~0.5 s.
		t.driftCount--
		if t.driftCount <= 0 {
			t.driftCount = int(t.sampleRate / (2 * driftRateHz))
			t.driftTarget = (t.nextNoise() - 0.5) * wobble * 0.002 * t.sampleRate
		}
		t.drift += (t.driftTarget - t.drift) * (1.0 / (0.5 * t.sampleRate))

		mod := wowDepth*math.Sin(t.wowPhase) +
			flutterDepth*math.Sin(t.flutterPhase) +
			scrapeDepth*math.Sin(t.scrapePhase) +
			t.drift

		readPos := core.Clamp(base+mod, 1, t.lines[0].MaxDelay())

		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]

			wet := t.lines[ch].ReadFractional(readPos)
			wet = t.headBump[ch].ProcessSample(wet)

			// Tube stage with RC coupling on both sides.
			sat := t.outRC[ch].ProcessSample(math.Tanh(t.inRC[ch].ProcessSample(wet) * drive))
			wet = sat / drive * (1 + 0.3*t.params.Value(3))

			fbIn := t.fbHP[ch].ProcessSample(wet * fb)
			fbIn = core.SoftClip(fbIn, softClipThreshold)

			t.lines[ch].Write(core.Sanitize(dry + fbIn))

			buf[ch][i] = dry*(1-mix) + (dry+wet)*mix
		}
	}

	if t.wowPhase > 2*math.Pi {
		t.wowPhase -= 2 * math.Pi
	}
	if t.flutterPhase > 2*math.Pi {
		t.flutterPhase -= 2 * math.Pi
	}
	if t.scrapePhase > 2*math.Pi {
		t.scrapePhase -= 2 * math.Pi
	}
}

func (t *Tape) delaySamples() float64 {
	if t.params.Bool(4) {
		samples := engine.DivisionSamples(t.params.Value(0), t.transport, t.sampleRate)
		return core.Clamp(samples, 1, t.maxDelay())
	}

	ms := tapeMinMs * math.Pow(tapeMaxMs/tapeMinMs, t.params.Value(0))

	return core.Clamp(ms*0.001*t.sampleRate, 1, t.maxDelay())
}

func (t *Tape) maxDelay() float64 {
	if len(t.lines) == 0 {
		return 1
	}

	return t.lines[0].MaxDelay()
}

// nextNoise returns uniform noise in [0, 1) from a splitmix64 stream.
func (t *Tape) nextNoise() float64 {
	t.noiseState += 0x9e3779b97f4a7c15
	z := t.noiseState
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31

	return float64(z>>11) / (1 << 53)
}
