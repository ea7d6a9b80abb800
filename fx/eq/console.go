package eq

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/engine"
)

const (
	consoleLowFreq  = 80.0
	consoleHighFreq = 12000.0
	consoleHPFFreq  = 100.0
	consoleGainDB   = 15.0
	consoleMidMin   = 200.0
	consoleMidMax   = 5000.0
)

// Console is a three-band channel strip EQ: fixed low and high shelves, a
// sweepable mid bell, and a switchable 100 Hz highpass.
//
// Parameters: Low, Mid Gain, Mid Freq, High, HPF.
type Console struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	chains []*biquad.Chain

	lastSettings [5]float64
	haveCoeffs   bool
}

// NewConsole creates an unprepared console EQ.
func NewConsole() *Console {
	return &Console{params: engine.NewParamSetFor(engine.ConsoleEQ, "Low", "Mid Gain", "Mid Freq", "High", "HPF")}
}

// Name implements engine.Engine.
func (c *Console) Name() string { return "Console EQ" }

// NumParameters implements engine.Engine.
func (c *Console) NumParameters() int { return c.params.Num() }

// ParameterName implements engine.Engine.
func (c *Console) ParameterName(i int) string { return c.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (c *Console) UpdateParameters(changes map[int]float64) { c.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (c *Console) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (c *Console) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("console eq sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("console eq max block must be > 0: %d", maxBlock)
	}

	c.sampleRate = sampleRate

	c.chains = c.chains[:0]
	for ch := 0; ch < engine.MaxChannels; ch++ {
		c.chains = append(c.chains, biquad.NewChain(
			biquad.Identity(), biquad.Identity(), biquad.Identity(), biquad.Identity(),
		))
	}

	c.haveCoeffs = false
	c.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (c *Console) Reset() {
	for _, chain := range c.chains {
		chain.Reset()
	}
}

// Process implements engine.Engine.
func (c *Console) Process(buf [][]float64) {
	if !c.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	c.updateCoefficients()

	for ch := 0; ch < nch; ch++ {
		c.chains[ch].ProcessBlock(buf[ch])
	}
}

func (c *Console) updateCoefficients() {
	var settings [5]float64
	for i := range settings {
		settings[i] = c.params.Value(i)
	}

	if c.haveCoeffs && settingsClose(c.lastSettings[:], settings[:]) {
		return
	}

	c.lastSettings = settings
	c.haveCoeffs = true

	lowDB := (settings[0] - 0.5) * 2 * consoleGainDB
	midDB := (settings[1] - 0.5) * 2 * consoleGainDB
	midFreq := consoleMidMin * math.Pow(consoleMidMax/consoleMidMin, settings[2])
	highDB := (settings[3] - 0.5) * 2 * consoleGainDB

	coeffs := [4]biquad.Coefficients{
		biquad.Identity(),
		biquad.Identity(),
		biquad.Identity(),
		biquad.Identity(),
	}

	if settings[4] >= 0.5 {
		coeffs[0] = design.Highpass(consoleHPFFreq, math.Sqrt2/2, c.sampleRate)
	}

	if math.Abs(lowDB) >= 0.01 {
		coeffs[1] = design.LowShelf(consoleLowFreq, lowDB, 0.71, c.sampleRate)
	}

	if math.Abs(midDB) >= 0.01 {
		coeffs[2] = design.Peak(midFreq, midDB, 0.9, c.sampleRate)
	}

	if math.Abs(highDB) >= 0.01 {
		coeffs[3] = design.HighShelf(consoleHighFreq, highDB, 0.71, c.sampleRate)
	}

	for _, chain := range c.chains {
		for b := 0; b < 4; b++ {
			chain.Section(b).SetCoefficients(coeffs[b])
		}
	}
}
