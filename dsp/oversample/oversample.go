// Package oversample provides 2x and 4x oversampling around nonlinear
// processors using Kaiser-windowed half-band FIR filters designed at
// construction time. The up/down pair is linear phase; its fixed latency is
// reported so the host can compensate.
package oversample

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/window"
)

// halfbandTaps is the FIR length per stage. An even tap-count delta keeps
// the total base-rate latency an integer for both 2x and 4x.
const halfbandTaps = 65

// Oversampler runs a caller-supplied processor at 2x or 4x the base rate.
type Oversampler struct {
	factor   int
	maxBlock int
	stages   []*stage
	bufs     [][]float64
}

// New creates an oversampler with the given integer factor (2 or 4) sized
// for blocks up to maxBlock base-rate samples.
func New(factor, maxBlock int) (*Oversampler, error) {
	if factor != 2 && factor != 4 {
		return nil, fmt.Errorf("oversample factor must be 2 or 4: %d", factor)
	}

	if maxBlock <= 0 {
		return nil, fmt.Errorf("oversample max block must be > 0: %d", maxBlock)
	}

	numStages := 1
	if factor == 4 {
		numStages = 2
	}

	o := &Oversampler{factor: factor, maxBlock: maxBlock}
	rate := 2

	for i := 0; i < numStages; i++ {
		o.stages = append(o.stages, newStage())
		o.bufs = append(o.bufs, make([]float64, maxBlock*rate))
		rate *= 2
	}

	return o, nil
}

// Factor returns the oversampling factor.
func (o *Oversampler) Factor() int {
	return o.factor
}

// Latency returns the base-rate latency of the full up/down path.
func (o *Oversampler) Latency() int {
	// Each stage pair contributes (taps-1) samples at its own high rate,
	// which is (taps-1)/2^(stage+1) samples at the base rate.
	latency := 0
	for i := range o.stages {
		latency += (halfbandTaps - 1) >> (i + 1)
	}

	return latency
}

// Reset clears all filter state.
func (o *Oversampler) Reset() {
	for _, s := range o.stages {
		s.reset()
	}
}

// Process upsamples buf, invokes fn on the oversampled block, and
// downsamples the result back into buf. fn must process in place. Blocks
// larger than the construction-time maximum are split; the stage filters
// carry state across the splits, so the result is identical.
func (o *Oversampler) Process(buf []float64, fn func(up []float64)) {
	for len(buf) > o.maxBlock {
		o.processChunk(buf[:o.maxBlock], fn)
		buf = buf[o.maxBlock:]
	}

	if len(buf) > 0 {
		o.processChunk(buf, fn)
	}
}

func (o *Oversampler) processChunk(buf []float64, fn func(up []float64)) {
	src := buf
	for i, s := range o.stages {
		dst := o.bufs[i][:len(src)*2]
		s.upsample(dst, src)
		src = dst
	}

	fn(src)

	for i := len(o.stages) - 1; i >= 0; i-- {
		var dst []float64
		if i == 0 {
			dst = buf
		} else {
			dst = o.bufs[i-1][:len(src)/2]
		}

		o.stages[i].downsample(dst, src)
		src = dst
	}
}

type stage struct {
	phase0 []float64 // even taps of the half-band prototype
	phase1 []float64 // odd taps
	upHist []float64
	dnTaps []float64
	dnHist []float64
	upPos  int
	dnPos  int
}

func newStage() *stage {
	taps := designHalfband()

	s := &stage{
		dnTaps: taps,
		dnHist: make([]float64, len(taps)),
	}

	for i, c := range taps {
		if i%2 == 0 {
			s.phase0 = append(s.phase0, 2*c)
		} else {
			s.phase1 = append(s.phase1, 2*c)
		}
	}

	hist := len(s.phase0)
	if len(s.phase1) > hist {
		hist = len(s.phase1)
	}

	s.upHist = make([]float64, hist)

	return s
}

func (s *stage) reset() {
	core.Zero(s.upHist)
	core.Zero(s.dnHist)
	s.upPos = 0
	s.dnPos = 0
}

// upsample writes 2*len(src) samples into dst.
func (s *stage) upsample(dst, src []float64) {
	for i, x := range src {
		s.upHist[s.upPos] = x

		dst[2*i] = s.firAt(s.phase0)
		dst[2*i+1] = s.firAt(s.phase1)

		s.upPos++
		if s.upPos >= len(s.upHist) {
			s.upPos = 0
		}
	}
}

// downsample writes len(src)/2 samples into dst. The decimator keeps the
// even output phase of the anti-alias FIR so the up/down pair stays aligned
// on whole base-rate samples.
func (s *stage) downsample(dst, src []float64) {
	n := len(s.dnHist)

	for i := 0; i < len(src); i += 2 {
		even := s.dnPos
		s.dnHist[s.dnPos] = src[i]
		s.dnPos++
		if s.dnPos >= n {
			s.dnPos = 0
		}

		acc := 0.0
		idx := even

		for _, c := range s.dnTaps {
			acc += c * s.dnHist[idx]
			idx--
			if idx < 0 {
				idx = n - 1
			}
		}

		dst[i/2] = acc

		s.dnHist[s.dnPos] = src[i+1]
		s.dnPos++
		if s.dnPos >= n {
			s.dnPos = 0
		}
	}
}

func (s *stage) firAt(phase []float64) float64 {
	acc := 0.0
	idx := s.upPos

	for _, c := range phase {
		acc += c * s.upHist[idx]
		idx--
		if idx < 0 {
			idx = len(s.upHist) - 1
		}
	}

	return acc
}

// designHalfband builds a Kaiser-windowed sinc lowpass with cutoff at a
// quarter of the stage's high rate.
func designHalfband() []float64 {
	taps := make([]float64, halfbandTaps)
	win := window.Kaiser(halfbandTaps, 8.0)
	center := (halfbandTaps - 1) / 2

	for i := range taps {
		k := i - center
		taps[i] = sinc(float64(k)*0.5) * 0.5 * win[i]
	}

	return taps
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}

	px := math.Pi * x

	return math.Sin(px) / px
}
