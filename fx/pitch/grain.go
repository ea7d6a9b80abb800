// Package pitch implements the pitch family: a grain overlap-add shifter, an
// FFT phase-vocoder shifter, a detune doubler, a two-voice harmonizer, and a
// granular cloud. The grain engines share one delay-saw core; the spectral
// engines build on the algo-fft plans.
package pitch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/interp"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/dsp/window"
	"github.com/cwbudde/algo-rack/engine"
)

const (
	grainRingSize  = 8192
	grainRingMask  = grainRingSize - 1
	defaultGrain   = 2048
	grainGuard     = 64
	grainTableSize = 2048

	// Two half-phase grains under a Hann-Poisson window sum slightly hot.
	grainSumGain = 0.85

	// Wrap splice search: candidate span and correlation length in samples.
	wrapSearchMax = 256
	wrapCorrLen   = 64
)

// noiseSource is a splitmix64 stream shared by the grain engines.
type noiseSource uint64

func (n *noiseSource) next() float64 {
	*n += 0x9e3779b97f4a7c15
	z := uint64(*n)
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31

	return float64(z>>11) / (1 << 53)
}

type grainVoice struct {
	offset float64
}

// shifterCore is one channel of delay-saw pitch shifting: two grains read
// behind the write head, their delay ramping so the read speed is the pitch
// ratio, with a Hann-Poisson window hiding each wrap.
type shifterCore struct {
	ring   []float64
	write  int
	voices [2]grainVoice
	grain  float64
	ratio  float64
	noise  noiseSource
}

// grainWindow is the shared Hann-Poisson lookup. Read-only after init.
var grainWindow = window.HannPoisson(grainTableSize, 2)

func newShifterCore(seed uint64) *shifterCore {
	c := &shifterCore{
		ring:  make([]float64, grainRingSize),
		grain: defaultGrain,
		ratio: 1,
		noise: noiseSource(seed),
	}
	c.resetVoices()

	return c
}

func (c *shifterCore) resetVoices() {
	c.voices[0].offset = grainGuard + c.grain
	c.voices[1].offset = grainGuard + c.grain*0.5
}

func (c *shifterCore) reset() {
	core.Zero(c.ring)
	c.write = 0
	c.resetVoices()
}

func (c *shifterCore) setRatio(ratio float64) {
	c.ratio = core.Clamp(ratio, 0.25, 4)
}

func (c *shifterCore) setGrain(samples float64) {
	c.grain = core.Clamp(samples, 256, grainRingSize-2*grainGuard)
}

// tick writes one input sample and returns the wet shifted sample.
func (c *shifterCore) tick(x float64) float64 {
	c.ring[c.write] = x
	c.write = (c.write + 1) & grainRingMask

	step := 1 - c.ratio
	out := 0.0

	for v := range c.voices {
		voice := &c.voices[v]
		voice.offset += step

		// Wrap the saw once the window phase leaves [0, 1]; the window is
		// near zero there, and the splice search keeps the restart in phase
		// with the waveform so the jump does not drag the pitch.
		if voice.offset < grainGuard || voice.offset > grainGuard+c.grain {
			if step < 0 {
				voice.offset = c.alignWrap(voice.offset, grainGuard+c.grain, -1)
			} else {
				voice.offset = c.alignWrap(voice.offset, grainGuard, 1)
			}

			voice.offset = core.Clamp(voice.offset, 1, grainRingSize-2)
		}

		phase := (voice.offset - grainGuard) / c.grain
		phase = core.Clamp(phase, 0, 1)

		win := grainWindow[int(phase*float64(grainTableSize-1))]

		pos := float64(c.write) - voice.offset
		k := int(math.Floor(pos))
		frac := pos - float64(k)

		x0 := c.ring[k&grainRingMask]
		x1 := c.ring[(k+1)&grainRingMask]

		out += interp.Linear2(frac, x0, x1) * win
	}

	return out * grainSumGain
}

// alignWrap picks the new saw offset near target whose ring content best
// matches the waveform at the old read position, so the restarted grain sits
// an integer number of waveform periods away and the splice stays in phase.
// dir picks the side of target the candidates may sit on. On silence the
// match is meaningless and a couple of samples of jitter breaks the wrap
// periodicity instead.
func (c *shifterCore) alignWrap(old, target float64, dir int) float64 {
	span := wrapSearchMax
	if half := int(c.grain) / 2; half < span {
		span = half
	}

	oldPos := c.write - int(old)
	base := c.write - int(target)

	energy := 0.0
	for j := 0; j < wrapCorrLen; j++ {
		s := c.ring[(oldPos+j)&grainRingMask]
		energy += s * s
	}

	if energy < 1e-12 {
		return target + (c.noise.next()-0.5)*4
	}

	bestD := 0
	bestScore := math.Inf(-1)

	for d := 0; d <= span; d++ {
		cand := base - dir*d
		score := 0.0

		for j := 0; j < wrapCorrLen; j++ {
			score += c.ring[(oldPos+j)&grainRingMask] * c.ring[(cand+j)&grainRingMask]
		}

		if score > bestScore {
			bestScore = score
			bestD = d
		}
	}

	return target + float64(dir*bestD)
}

// Grain is the overlap-add pitch shifter.
//
// Parameters: Pitch, Grain, Mix.
type Grain struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	cores []*shifterCore
	mixSm *smooth.Smoother
}

// NewGrain creates an unprepared grain pitch shifter.
func NewGrain() *Grain {
	return &Grain{params: engine.NewParamSetFor(engine.PitchShifter, "Pitch", "Grain", "Mix")}
}

// Name implements engine.Engine.
func (g *Grain) Name() string { return "Pitch Shifter" }

// NumParameters implements engine.Engine.
func (g *Grain) NumParameters() int { return g.params.Num() }

// ParameterName implements engine.Engine.
func (g *Grain) ParameterName(i int) string { return g.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (g *Grain) UpdateParameters(changes map[int]float64) { g.params.Update(changes) }

// LatencySamples reports the average grain delay.
func (g *Grain) LatencySamples() int { return defaultGrain / 2 }

// Prepare implements engine.Engine.
func (g *Grain) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("pitch shifter sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("pitch shifter max block must be > 0: %d", maxBlock)
	}

	g.sampleRate = sampleRate

	g.cores = g.cores[:0]
	for ch := 0; ch < engine.MaxChannels; ch++ {
		g.cores = append(g.cores, newShifterCore(uint64(ch)*0x9e3779b9+1))
	}

	var err error

	g.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	g.mixSm.Reset(g.params.Value(2))
	g.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (g *Grain) Reset() {
	for _, c := range g.cores {
		c.reset()
	}

	if g.prepared {
		g.mixSm.Reset(g.params.Value(2))
	}
}

// Process implements engine.Engine.
func (g *Grain) Process(buf [][]float64) {
	if !g.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	ratio := math.Pow(2, semitones(g.params.Value(0))/12)
	grainLen := 1024 + g.params.Value(1)*3072

	for ch := 0; ch < nch; ch++ {
		g.cores[ch].setRatio(ratio)
		g.cores[ch].setGrain(grainLen)
	}

	g.mixSm.SetTarget(g.params.Value(2))

	for i := range buf[0] {
		mix := g.mixSm.Next()

		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]
			wet := g.cores[ch].tick(dry)
			buf[ch][i] = dry*(1-mix) + wet*mix
		}
	}
}

// semitones maps a normalized value to -12..+12.
func semitones(v float64) float64 {
	return (v - 0.5) * 24
}
