package pitch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/interp"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

const (
	cloudRecordSeconds = 2.0
	cloudMaxVoices     = 16
	cloudChannels      = 2
	cloudMinGrainMs    = 20.0
	cloudMaxGrainMs    = 400.0
	cloudSpreadSemis   = 12.0
)

type cloudGrain struct {
	active bool
	pos    float64 // read position behind the write head, in samples
	ratio  float64
	age    float64
	length float64
	gainL  float64
	gainR  float64
}

// Cloud scatters windowed grains read from the recent past, each with random
// pitch, position, and pan. Density is a Poisson spawn rate.
//
// Parameters: Density, Size, Pitch Spread, Scatter, Feedback, Mix.
type Cloud struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	record [cloudChannels][]float64
	write  int
	grains [cloudMaxVoices]cloudGrain
	noise  noiseSource

	mixSm *smooth.Smoother
	fbSm  *smooth.Smoother
}

// NewCloud creates an unprepared granular cloud.
func NewCloud() *Cloud {
	return &Cloud{
		params: engine.NewParamSetFor(engine.GranularCloud, "Density", "Size", "Pitch Spread", "Scatter", "Feedback", "Mix"),
		noise:  0x853c49e6748fea9b,
	}
}

// Name implements engine.Engine.
func (c *Cloud) Name() string { return "Granular Cloud" }

// NumParameters implements engine.Engine.
func (c *Cloud) NumParameters() int { return c.params.Num() }

// ParameterName implements engine.Engine.
func (c *Cloud) ParameterName(i int) string { return c.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (c *Cloud) UpdateParameters(changes map[int]float64) { c.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (c *Cloud) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (c *Cloud) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("granular cloud sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("granular cloud max block must be > 0: %d", maxBlock)
	}

	c.sampleRate = sampleRate

	recordLen := int(cloudRecordSeconds * sampleRate)
	for ch := 0; ch < cloudChannels; ch++ {
		c.record[ch] = make([]float64, recordLen)
	}

	var err error

	c.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	c.fbSm, err = smooth.New(50, sampleRate)
	if err != nil {
		return err
	}

	c.mixSm.Reset(c.params.Value(5))
	c.fbSm.Reset(c.params.Value(4) * 0.7)
	c.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (c *Cloud) Reset() {
	for ch := 0; ch < cloudChannels; ch++ {
		core.Zero(c.record[ch])
	}

	for g := range c.grains {
		c.grains[g].active = false
	}

	c.write = 0
	c.noise = 0x853c49e6748fea9b

	if c.prepared {
		c.mixSm.Reset(c.params.Value(5))
		c.fbSm.Reset(c.params.Value(4) * 0.7)
	}
}

// Process implements engine.Engine.
func (c *Cloud) Process(buf [][]float64) {
	if !c.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > cloudChannels {
		nch = cloudChannels
	}

	density := c.params.Value(0)
	// Up to ~80 grains per second at full density.
	spawnProb := density * density * 80 / c.sampleRate

	c.mixSm.SetTarget(c.params.Value(5))
	c.fbSm.SetTarget(c.params.Value(4) * 0.7)

	recordLen := len(c.record[0])

	for i := range buf[0] {
		mix := c.mixSm.Next()
		fb := c.fbSm.Next()

		var wetL, wetR float64
		for g := range c.grains {
			c.tickGrain(&c.grains[g], &wetL, &wetR, nch)
		}

		if c.noise.next() < spawnProb {
			c.spawnGrain()
		}

		for ch := 0; ch < nch; ch++ {
			wet := wetL
			if ch == 1 {
				wet = wetR
			}

			dry := buf[ch][i]
			c.record[ch][c.write] = core.Sanitize(dry + core.SoftClip(wet*fb, 0.9))
			buf[ch][i] = dry*(1-mix) + wet*mix
		}

		c.write++
		if c.write >= recordLen {
			c.write = 0
		}
	}
}

func (c *Cloud) tickGrain(g *cloudGrain, wetL, wetR *float64, nch int) {
	if !g.active {
		return
	}

	phase := g.age / g.length
	if phase >= 1 {
		g.active = false
		return
	}

	win := grainWindow[int(phase*float64(grainTableSize-1))]

	recordLen := len(c.record[0])
	pos := float64(c.write) - g.pos

	k := int(math.Floor(pos))
	frac := pos - float64(k)

	k %= recordLen
	if k < 0 {
		k += recordLen
	}

	k1 := k + 1
	if k1 >= recordLen {
		k1 = 0
	}

	sample := interp.Linear2(frac, c.record[0][k], c.record[0][k1])
	if nch > 1 {
		sample = 0.5 * (sample + interp.Linear2(frac, c.record[1][k], c.record[1][k1]))
	}

	*wetL += sample * win * g.gainL
	*wetR += sample * win * g.gainR

	// The read head trails the write head, so a ratio above one closes in
	// on it; the scatter offset keeps it from overrunning.
	g.pos += 1 - g.ratio
	g.age++
}

func (c *Cloud) spawnGrain() {
	var g *cloudGrain
	for i := range c.grains {
		if !c.grains[i].active {
			g = &c.grains[i]
			break
		}
	}

	if g == nil {
		return
	}

	sizeMs := cloudMinGrainMs + c.params.Value(1)*(cloudMaxGrainMs-cloudMinGrainMs)
	length := sizeMs * 0.001 * c.sampleRate

	semis := (c.noise.next() - 0.5) * 2 * c.params.Value(2) * cloudSpreadSemis
	ratio := math.Pow(2, semis/12)

	// Start far enough back that an upward grain cannot cross the write
	// head before it dies.
	minBack := length*math.Max(ratio-1, 0) + 2
	maxBack := float64(len(c.record[0])) - length - 2
	back := minBack + c.noise.next()*c.params.Value(3)*(maxBack-minBack)

	pan := c.noise.next()

	g.pos = core.Clamp(back, 2, maxBack)
	g.ratio = ratio
	g.age = 0
	g.length = length
	g.gainL = math.Cos(pan * math.Pi / 2)
	g.gainR = math.Sin(pan * math.Pi / 2)
	g.active = true
}
