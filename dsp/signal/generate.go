// Package signal generates deterministic test signals: tones, sweeps,
// impulses and seeded noise. The command-line tools use it to synthesize
// input when no file is given.
package signal

import (
	"fmt"
	"math"
	"math/rand"
)

// Generator creates deterministic signals at a fixed sample rate.
type Generator struct {
	sampleRate float64
	seed       int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets the random seed for noise generation.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.seed = seed }
}

// NewGenerator creates a generator for the given sample rate.
func NewGenerator(sampleRate float64, opts ...Option) (*Generator, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("signal: sample rate must be > 0: %f", sampleRate)
	}

	g := &Generator{sampleRate: sampleRate, seed: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g, nil
}

// Sine generates a sine wave.
func (g *Generator) Sine(freqHz, amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("signal: sine samples must be > 0: %d", samples)
	}

	out := make([]float64, samples)
	step := 2 * math.Pi * freqHz / g.sampleRate

	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}

	return out, nil
}

// Impulse generates a single spike at sample zero.
func (g *Generator) Impulse(amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("signal: impulse samples must be > 0: %d", samples)
	}

	out := make([]float64, samples)
	out[0] = amplitude

	return out, nil
}

// Sweep generates an exponential sine sweep from startHz to endHz.
func (g *Generator) Sweep(startHz, endHz, amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("signal: sweep samples must be > 0: %d", samples)
	}

	if startHz <= 0 || endHz <= 0 {
		return nil, fmt.Errorf("signal: sweep frequencies must be > 0: %f..%f", startHz, endHz)
	}

	out := make([]float64, samples)

	duration := float64(samples) / g.sampleRate
	ratio := endHz / startHz
	k := duration / math.Log(ratio)

	for i := range out {
		t := float64(i) / g.sampleRate
		phase := 2 * math.Pi * startHz * k * (math.Exp(t/k) - 1)
		out[i] = amplitude * math.Sin(phase)
	}

	return out, nil
}

// WhiteNoise generates seeded uniform noise in [-amplitude, amplitude].
func (g *Generator) WhiteNoise(amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("signal: noise samples must be > 0: %d", samples)
	}

	if amplitude < 0 {
		return nil, fmt.Errorf("signal: noise amplitude must be >= 0: %f", amplitude)
	}

	out := make([]float64, samples)
	rng := rand.New(rand.NewSource(g.seed))

	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out, nil
}

// Normalize scales data to the target peak and returns a new slice. A
// silent input stays silent.
func Normalize(data []float64, targetPeak float64) ([]float64, error) {
	if targetPeak < 0 {
		return nil, fmt.Errorf("signal: normalize target peak must be >= 0: %f", targetPeak)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("signal: normalize input must not be empty")
	}

	maxAbs := 0.0
	for _, v := range data {
		if av := math.Abs(v); av > maxAbs {
			maxAbs = av
		}
	}

	out := make([]float64, len(data))
	if maxAbs == 0 || targetPeak == 0 {
		return out, nil
	}

	scale := targetPeak / maxAbs
	for i, v := range data {
		out[i] = v * scale
	}

	return out, nil
}
