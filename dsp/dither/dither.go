// Package dither quantizes floating point audio to a fixed bit depth
// with optional dither noise and first-order error feedback. The WAV
// encoder runs every 16-bit sample through it.
package dither

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Type selects the probability distribution of the dither noise.
type Type int

const (
	// None applies plain rounding.
	None Type = iota
	// Rectangular uses a uniform PDF of one quantization step.
	Rectangular
	// Triangular uses a TPDF of two steps, the usual choice for audio.
	Triangular

	typeCount
)

var typeNames = [typeCount]string{"None", "Rectangular", "Triangular"}

func (t Type) String() string {
	if t >= 0 && t < typeCount {
		return typeNames[t]
	}

	return fmt.Sprintf("Type(%d)", t)
}

// Valid reports whether t is a known dither type.
func (t Type) Valid() bool { return t >= 0 && t < typeCount }

// Quantizer converts samples in [-1, 1] to integers of a given bit depth.
type Quantizer struct {
	bitDepth int
	dither   Type
	shape    bool
	rng      *rand.Rand

	scale   float64
	inv     float64
	limitLo int
	limitHi int

	lastErr float64
}

// Option configures a Quantizer.
type Option func(*Quantizer) error

// WithDither selects the dither distribution. The default is Triangular.
func WithDither(t Type) Option {
	return func(q *Quantizer) error {
		if !t.Valid() {
			return fmt.Errorf("dither: unknown type %d", int(t))
		}

		q.dither = t

		return nil
	}
}

// WithNoiseShaping enables first-order error feedback, pushing the
// quantization noise away from low frequencies.
func WithNoiseShaping(on bool) Option {
	return func(q *Quantizer) error {
		q.shape = on
		return nil
	}
}

// WithSeed makes the dither sequence reproducible.
func WithSeed(seed uint64) Option {
	return func(q *Quantizer) error {
		q.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		return nil
	}
}

// NewQuantizer creates a quantizer for bit depths 2..32.
func NewQuantizer(bitDepth int, opts ...Option) (*Quantizer, error) {
	if bitDepth < 2 || bitDepth > 32 {
		return nil, fmt.Errorf("dither: bit depth must be in 2..32: %d", bitDepth)
	}

	q := &Quantizer{
		bitDepth: bitDepth,
		dither:   Triangular,
		scale:    math.Exp2(float64(bitDepth-1)) - 1,
	}
	q.inv = 1 / q.scale
	q.limitHi = int(q.scale)
	q.limitLo = -q.limitHi - 1

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(q); err != nil {
			return nil, err
		}
	}

	if q.rng == nil {
		q.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return q, nil
}

// Reset clears the error feedback state.
func (q *Quantizer) Reset() { q.lastErr = 0 }

// ProcessInteger quantizes one sample to the integer range of the bit
// depth, clipping at the rails.
func (q *Quantizer) ProcessInteger(input float64) int {
	scaled := input * q.scale

	if q.shape {
		scaled -= q.lastErr
	}

	switch q.dither {
	case Rectangular:
		scaled += q.rng.Float64() - 0.5
	case Triangular:
		scaled += q.rng.Float64() - q.rng.Float64()
	}

	v := int(math.Round(scaled))

	if q.shape {
		q.lastErr = float64(v) - scaled
	}

	if v > q.limitHi {
		v = q.limitHi
	} else if v < q.limitLo {
		v = q.limitLo
	}

	return v
}

// Process quantizes one sample and returns it rescaled to [-1, 1].
func (q *Quantizer) Process(input float64) float64 {
	return float64(q.ProcessInteger(input)) * q.inv
}
