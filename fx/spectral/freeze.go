package spectral

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

// Freeze captures the magnitude spectrum of the moment the freeze switch
// engages and sustains it indefinitely, with a slow phase random walk so the
// held texture does not turn metallic. Shimmer feeds an octave-up copy of the
// held magnitudes back in.
//
// Parameters: Freeze, Blur, Shimmer, Mix.
type Freeze struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	ffts     []*stft
	frozen   [][]float64 // magnitudes per channel
	phases   [][]float64
	captured []bool

	noise uint64
	mixSm *smooth.Smoother
}

// NewFreeze creates an unprepared spectral freeze.
func NewFreeze() *Freeze {
	return &Freeze{
		params: engine.NewParamSetFor(engine.SpectralFreeze, "Freeze", "Blur", "Shimmer", "Mix"),
		noise:  0xda3e39cb94b95bdb,
	}
}

// Name implements engine.Engine.
func (f *Freeze) Name() string { return "Spectral Freeze" }

// NumParameters implements engine.Engine.
func (f *Freeze) NumParameters() int { return f.params.Num() }

// ParameterName implements engine.Engine.
func (f *Freeze) ParameterName(i int) string { return f.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (f *Freeze) UpdateParameters(changes map[int]float64) { f.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (f *Freeze) LatencySamples() int { return stftSize - stftHop }

// Prepare implements engine.Engine.
func (f *Freeze) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("spectral freeze sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("spectral freeze max block must be > 0: %d", maxBlock)
	}

	f.sampleRate = sampleRate

	f.ffts = f.ffts[:0]
	f.frozen = f.frozen[:0]
	f.phases = f.phases[:0]
	f.captured = make([]bool, engine.MaxChannels)

	for ch := 0; ch < engine.MaxChannels; ch++ {
		st, err := newSTFT()
		if err != nil {
			return err
		}

		f.ffts = append(f.ffts, st)
		f.frozen = append(f.frozen, make([]float64, stftBins))
		f.phases = append(f.phases, make([]float64, stftBins))
	}

	var err error

	f.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	f.mixSm.Reset(f.params.Value(3))
	f.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (f *Freeze) Reset() {
	for ch := range f.ffts {
		f.ffts[ch].reset()
		core.Zero(f.frozen[ch])
		core.Zero(f.phases[ch])
		f.captured[ch] = false
	}

	if f.prepared {
		f.mixSm.Reset(f.params.Value(3))
	}
}

// Process implements engine.Engine.
func (f *Freeze) Process(buf [][]float64) {
	if !f.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	frozen := f.params.Bool(0)
	blur := f.params.Value(1)
	shimmer := f.params.Value(2)

	f.mixSm.SetTarget(f.params.Value(3))

	for i := range buf[0] {
		mix := f.mixSm.Next()

		for ch := 0; ch < nch; ch++ {
			chIdx := ch
			dry := buf[ch][i]

			wet := f.ffts[ch].tick(dry, func(spec []complex128) {
				f.frameFor(chIdx, spec, frozen, blur, shimmer)
			})

			buf[ch][i] = dry*(1-mix) + wet*mix
		}
	}
}

// frameFor either captures the incoming frame or replaces it with the held
// spectrum.
func (f *Freeze) frameFor(ch int, spec []complex128, frozen bool, blur, shimmer float64) {
	mags := f.frozen[ch]
	phases := f.phases[ch]

	if !frozen {
		f.captured[ch] = false
		return
	}

	if !f.captured[ch] {
		for k := range spec {
			mags[k] = complexAbs(spec[k])
			phases[k] = math.Atan2(imag(spec[k]), real(spec[k]))
		}

		f.captured[ch] = true
	}

	if shimmer > 0.001 {
		// Fold an octave-up copy of the held magnitudes back in; the held
		// sound slowly brightens the way shimmer reverbs do.
		for k := len(mags) - 1; k >= 2; k-- {
			mags[k] += mags[k/2] * shimmer * 0.02
		}

		// Renormalize so repeated folding cannot grow without bound.
		scale := 1 / (1 + shimmer*0.02)
		for k := range mags {
			mags[k] *= scale
		}
	}

	expect := 2 * math.Pi * stftHop / stftSize

	for k := range spec {
		// Advance each bin at its own center frequency; the blur knob
		// widens a phase random walk on top.
		phases[k] += float64(k) * expect
		phases[k] += (f.nextNoise() - 0.5) * blur * 0.6
		phases[k] = math.Mod(phases[k], 2*math.Pi)

		spec[k] = complex(mags[k]*math.Cos(phases[k]), mags[k]*math.Sin(phases[k]))
	}
}

func (f *Freeze) nextNoise() float64 {
	f.noise += 0x9e3779b97f4a7c15
	z := f.noise
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31

	return float64(z>>11) / (1 << 53)
}

func complexAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
