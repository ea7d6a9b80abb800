package pitch

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/dsp/window"
	"github.com/cwbudde/algo-rack/engine"
)

const (
	vocoderFFTSize  = 4096
	vocoderHop      = 1024
	vocoderBins     = vocoderFFTSize/2 + 1
	envelopeRadius  = 16
	maxVocoderRatio = 4.0
)

// vocoderChannel holds the per-channel STFT state.
type vocoderChannel struct {
	inFIFO    []float64
	outFIFO   []float64
	outAccum  []float64
	lastPhase []float64
	sumPhase  []float64
	fill      int
}

// Spectral is the phase-vocoder pitch shifter with formant correction, a
// spectral gate, and a bounded feedback path.
//
// Parameters: Pitch, Formant, Gate, Feedback, Mix.
type Spectral struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	plan *algofft.Plan[complex128]
	win  []float64

	channels []*vocoderChannel

	// shared frame scratch
	freq    []complex128
	time    []complex128
	winBuf  []float64
	anaMag  []float64
	anaFreq []float64
	synMag  []float64
	synFreq []float64
	envelop []float64

	mixSm *smooth.Smoother
	fbSm  *smooth.Smoother
}

// NewSpectral creates an unprepared phase-vocoder shifter.
func NewSpectral() *Spectral {
	return &Spectral{params: engine.NewParamSetFor(engine.SpectralPitch, "Pitch", "Formant", "Gate", "Feedback", "Mix")}
}

// Name implements engine.Engine.
func (s *Spectral) Name() string { return "Spectral Pitch" }

// NumParameters implements engine.Engine.
func (s *Spectral) NumParameters() int { return s.params.Num() }

// ParameterName implements engine.Engine.
func (s *Spectral) ParameterName(i int) string { return s.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (s *Spectral) UpdateParameters(changes map[int]float64) { s.params.Update(changes) }

// LatencySamples reports the analysis frame minus one hop of lookahead.
func (s *Spectral) LatencySamples() int { return vocoderFFTSize - vocoderHop }

// Prepare implements engine.Engine.
func (s *Spectral) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("spectral pitch sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("spectral pitch max block must be > 0: %d", maxBlock)
	}

	plan, err := algofft.NewPlan64(vocoderFFTSize)
	if err != nil {
		return fmt.Errorf("spectral pitch FFT plan: %w", err)
	}

	s.plan = plan
	s.sampleRate = sampleRate
	s.win = window.Hann(vocoderFFTSize)

	s.channels = s.channels[:0]
	for ch := 0; ch < engine.MaxChannels; ch++ {
		s.channels = append(s.channels, &vocoderChannel{
			inFIFO:    make([]float64, vocoderFFTSize),
			outFIFO:   make([]float64, vocoderHop),
			outAccum:  make([]float64, vocoderFFTSize),
			lastPhase: make([]float64, vocoderBins),
			sumPhase:  make([]float64, vocoderBins),
		})
	}

	s.freq = make([]complex128, vocoderFFTSize)
	s.time = make([]complex128, vocoderFFTSize)
	s.winBuf = make([]float64, vocoderFFTSize)
	s.anaMag = make([]float64, vocoderBins)
	s.anaFreq = make([]float64, vocoderBins)
	s.synMag = make([]float64, vocoderBins)
	s.synFreq = make([]float64, vocoderBins)
	s.envelop = make([]float64, vocoderBins)

	s.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	s.fbSm, err = smooth.New(50, sampleRate)
	if err != nil {
		return err
	}

	s.mixSm.Reset(s.params.Value(4))
	s.fbSm.Reset(s.feedbackAmount())
	s.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (s *Spectral) Reset() {
	for _, ch := range s.channels {
		core.Zero(ch.inFIFO)
		core.Zero(ch.outFIFO)
		core.Zero(ch.outAccum)
		core.Zero(ch.lastPhase)
		core.Zero(ch.sumPhase)
		ch.fill = 0
	}

	if s.prepared {
		s.mixSm.Reset(s.params.Value(4))
		s.fbSm.Reset(s.feedbackAmount())
	}
}

// Process implements engine.Engine.
func (s *Spectral) Process(buf [][]float64) {
	if !s.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	ratio := core.Clamp(math.Pow(2, semitones(s.params.Value(0))/12), 1/maxVocoderRatio, maxVocoderRatio)
	formant := 0.5 + s.params.Value(1)*1.5
	gate := s.params.Value(2)

	s.mixSm.SetTarget(s.params.Value(4))
	s.fbSm.SetTarget(s.feedbackAmount())

	for i := range buf[0] {
		mix := s.mixSm.Next()
		fb := s.fbSm.Next()

		for ch := 0; ch < nch; ch++ {
			st := s.channels[ch]
			dry := buf[ch][i]

			wet := st.outFIFO[st.fill]
			st.inFIFO[vocoderFFTSize-vocoderHop+st.fill] = core.Sanitize(dry + core.SoftClip(wet*fb, 0.9))
			st.fill++

			if st.fill >= vocoderHop {
				st.fill = 0
				s.processFrame(st, ratio, formant, gate)
			}

			buf[ch][i] = dry*(1-mix) + wet*mix
		}
	}
}

// processFrame runs one analysis/synthesis hop for a channel.
func (s *Spectral) processFrame(st *vocoderChannel, ratio, formant, gate float64) {
	copy(s.winBuf, st.inFIFO)
	window.ApplyInPlace(s.winBuf, s.win)

	for i := 0; i < vocoderFFTSize; i++ {
		s.time[i] = complex(s.winBuf[i], 0)
	}

	if err := s.plan.Forward(s.freq, s.time); err != nil {
		return
	}

	// Analysis: magnitude plus true instantaneous frequency from the phase
	// delta against the previous frame.
	freqPerBin := s.sampleRate / vocoderFFTSize
	expect := 2 * math.Pi * float64(vocoderHop) / float64(vocoderFFTSize)

	for k := 0; k < vocoderBins; k++ {
		re := real(s.freq[k])
		im := imag(s.freq[k])

		mag := math.Hypot(re, im)
		phase := math.Atan2(im, re)

		delta := phase - st.lastPhase[k]
		st.lastPhase[k] = phase

		delta -= float64(k) * expect
		delta = principalAngle(delta)

		s.anaMag[k] = mag
		s.anaFreq[k] = (float64(k) + delta/expect) * freqPerBin
	}

	s.applyFormantWarp(formant)
	s.applyGate(gate)

	// Pitch shift: move bins to k*ratio with frequency scaled alike.
	for k := range s.synMag {
		s.synMag[k] = 0
		s.synFreq[k] = 0
	}

	for k := 0; k < vocoderBins; k++ {
		idx := int(float64(k) * ratio)
		if idx >= vocoderBins {
			break
		}

		s.synMag[idx] += s.anaMag[k]
		s.synFreq[idx] = s.anaFreq[k] * ratio
	}

	// Synthesis: accumulate phase per bin and rebuild the spectrum.
	for k := 0; k < vocoderBins; k++ {
		deviation := s.synFreq[k]/freqPerBin - float64(k)
		phaseAdv := (float64(k) + deviation) * expect

		st.sumPhase[k] += phaseAdv
		st.sumPhase[k] = principalAngle(st.sumPhase[k])

		s.freq[k] = complex(s.synMag[k]*math.Cos(st.sumPhase[k]), s.synMag[k]*math.Sin(st.sumPhase[k]))
	}

	for k := vocoderBins; k < vocoderFFTSize; k++ {
		s.freq[k] = complex(real(s.freq[vocoderFFTSize-k]), -imag(s.freq[vocoderFFTSize-k]))
	}

	if err := s.plan.Inverse(s.time, s.freq); err != nil {
		return
	}

	// Hann analysis and synthesis at 75% overlap sums to 3/2.
	const overlapGain = 2.0 / 3.0

	for i := 0; i < vocoderFFTSize; i++ {
		st.outAccum[i] += real(s.time[i]) * s.win[i] * overlapGain
	}

	copy(st.outFIFO, st.outAccum[:vocoderHop])
	copy(st.outAccum, st.outAccum[vocoderHop:])
	core.Zero(st.outAccum[vocoderFFTSize-vocoderHop:])

	copy(st.inFIFO, st.inFIFO[vocoderHop:])
}

// applyFormantWarp divides out the spectral envelope and re-applies it warped
// by the formant scalar, preserving timbre independently of pitch.
func (s *Spectral) applyFormantWarp(formant float64) {
	if math.Abs(formant-1) < 1e-3 {
		return
	}

	smoothSpectrum(s.anaMag, s.envelop)

	for k := 0; k < vocoderBins; k++ {
		src := int(float64(k) / formant)
		if src >= vocoderBins {
			src = vocoderBins - 1
		}

		if s.envelop[k] > 1e-12 {
			s.anaMag[k] *= s.envelop[src] / s.envelop[k]
		}
	}
}

// applyGate zeroes bins below a threshold relative to the frame peak.
func (s *Spectral) applyGate(gate float64) {
	if gate <= 0.001 {
		return
	}

	peak := 0.0
	for _, m := range s.anaMag {
		if m > peak {
			peak = m
		}
	}

	threshold := peak * gate * gate

	for k := range s.anaMag {
		if s.anaMag[k] < threshold {
			s.anaMag[k] = 0
		}
	}
}

// smoothSpectrum writes a moving-average magnitude envelope into dst.
func smoothSpectrum(mag, dst []float64) {
	n := len(mag)

	for k := 0; k < n; k++ {
		lo := k - envelopeRadius
		if lo < 0 {
			lo = 0
		}

		hi := k + envelopeRadius
		if hi >= n {
			hi = n - 1
		}

		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += mag[j]
		}

		dst[k] = sum / float64(hi-lo+1)
	}
}

func (s *Spectral) feedbackAmount() float64 {
	return s.params.Value(3) * 0.85
}

// principalAngle wraps an angle into (-pi, pi].
func principalAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)

	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a < -math.Pi {
		a += 2 * math.Pi
	}

	return a
}
