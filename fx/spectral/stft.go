// Package spectral implements the STFT engines: spectral freeze and the
// per-bin spectral gate. Both run a Hann-windowed overlap-add pipeline over
// algo-fft plans, one frame per hop.
package spectral

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/window"
)

const (
	stftSize = 2048
	stftHop  = 512
	stftBins = stftSize/2 + 1

	// Hann squared at 75% overlap sums to 3/2.
	stftOverlapGain = 2.0 / 3.0
)

// stft is one channel of streaming analysis/resynthesis. The caller feeds a
// sample at a time; every hop the frame callback rewrites the half spectrum
// in place.
type stft struct {
	plan *algofft.Plan[complex128]
	win  []float64

	inFIFO   []float64
	outFIFO  []float64
	outAccum []float64
	winBuf   []float64
	fill     int

	freq []complex128
	time []complex128
}

func newSTFT() (*stft, error) {
	plan, err := algofft.NewPlan64(stftSize)
	if err != nil {
		return nil, fmt.Errorf("stft plan: %w", err)
	}

	return &stft{
		plan:     plan,
		win:      window.Hann(stftSize),
		inFIFO:   make([]float64, stftSize),
		outFIFO:  make([]float64, stftHop),
		outAccum: make([]float64, stftSize),
		winBuf:   make([]float64, stftSize),
		freq:     make([]complex128, stftSize),
		time:     make([]complex128, stftSize),
	}, nil
}

func (s *stft) reset() {
	core.Zero(s.inFIFO)
	core.Zero(s.outFIFO)
	core.Zero(s.outAccum)
	s.fill = 0
}

// latency is one full frame: a sample entering the analysis FIFO leaves the
// resynthesis FIFO stftSize ticks later. The frame fires on the last tick of
// a hop and its oldest accumulator positions drain over the following hop.
func (s *stft) latency() int { return stftSize }

// tick pushes one input sample and returns the resynthesized sample. frame
// is invoked once per hop with the packed half spectrum.
func (s *stft) tick(x float64, frame func(spec []complex128)) float64 {
	out := s.outFIFO[s.fill]
	s.inFIFO[stftSize-stftHop+s.fill] = x
	s.fill++

	if s.fill >= stftHop {
		s.fill = 0
		s.processFrame(frame)
	}

	return out
}

func (s *stft) processFrame(frame func(spec []complex128)) {
	copy(s.winBuf, s.inFIFO)
	window.ApplyInPlace(s.winBuf, s.win)

	for i := 0; i < stftSize; i++ {
		s.time[i] = complex(s.winBuf[i], 0)
	}

	if err := s.plan.Forward(s.freq, s.time); err != nil {
		return
	}

	frame(s.freq[:stftBins])

	for k := stftBins; k < stftSize; k++ {
		c := s.freq[stftSize-k]
		s.freq[k] = complex(real(c), -imag(c))
	}

	if err := s.plan.Inverse(s.time, s.freq); err != nil {
		return
	}

	for i := 0; i < stftSize; i++ {
		s.outAccum[i] += real(s.time[i]) * s.win[i] * stftOverlapGain
	}

	copy(s.outFIFO, s.outAccum[:stftHop])
	copy(s.outAccum, s.outAccum[stftHop:])
	core.Zero(s.outAccum[stftSize-stftHop:])

	copy(s.inFIFO, s.inFIFO[stftHop:])
}
