package echo

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/interp"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

const (
	repeatRecordSeconds   = 4.0
	repeatMaxSliceSeconds = 1.0
	repeatMaxPlayers      = 6
	repeatSliceChannels   = 2
	repeatMinPlayerGain   = 0.02

	// divisionHysteresis keeps the division bucket from chattering when
	// the knob parks on a boundary.
	divisionHysteresis = 0.03
)

type slicePlayer struct {
	active  bool
	length  int
	pos     float64
	ratio   float64
	reverse bool
	gain    float64
	decay   float64
	data    [repeatSliceChannels][]float64
}

// Repeat is a beat slicer: it records continuously and, on division
// boundaries, probabilistically spawns players that re-pitch, reverse, and
// decay short slices of the recent past.
//
// Parameters: Division, Probability, Pitch, Reverse, Decay, Stutter, Mix.
type Repeat struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool
	transport  engine.TransportInfo

	mixSm *smooth.Smoother

	record  [repeatSliceChannels][]float64
	write   int
	players [repeatMaxPlayers]slicePlayer

	divIdx        int
	samplesToBeat float64
	stutterPhase  float64
	noiseState    uint64
}

// NewRepeat creates an unprepared buffer repeat.
func NewRepeat() *Repeat {
	return &Repeat{
		params:     engine.NewParamSetFor(engine.BufferRepeat, "Division", "Probability", "Pitch", "Reverse", "Decay", "Stutter", "Mix"),
		transport:  engine.DefaultTransport(),
		noiseState: 0x2545f4914f6cdd1d,
	}
}

// Name implements engine.Engine.
func (r *Repeat) Name() string { return "Buffer Repeat" }

// NumParameters implements engine.Engine.
func (r *Repeat) NumParameters() int { return r.params.Num() }

// ParameterName implements engine.Engine.
func (r *Repeat) ParameterName(i int) string { return r.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (r *Repeat) UpdateParameters(changes map[int]float64) { r.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (r *Repeat) LatencySamples() int { return 0 }

// SetTransportInfo implements engine.TempoSynced.
func (r *Repeat) SetTransportInfo(info engine.TransportInfo) { r.transport = info }

// Prepare implements engine.Engine.
func (r *Repeat) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("buffer repeat sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("buffer repeat max block must be > 0: %d", maxBlock)
	}

	r.sampleRate = sampleRate

	recordLen := int(repeatRecordSeconds * sampleRate)
	sliceLen := int(repeatMaxSliceSeconds * sampleRate)

	for ch := 0; ch < repeatSliceChannels; ch++ {
		r.record[ch] = make([]float64, recordLen)
	}

	for p := range r.players {
		for ch := 0; ch < repeatSliceChannels; ch++ {
			r.players[p].data[ch] = make([]float64, sliceLen)
		}
	}

	var err error

	r.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	r.mixSm.Reset(r.params.Value(6))
	r.divIdx = engine.DivisionIndex(r.params.Value(0))
	r.samplesToBeat = 0
	r.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (r *Repeat) Reset() {
	for ch := 0; ch < repeatSliceChannels; ch++ {
		core.Zero(r.record[ch])
	}

	for p := range r.players {
		r.players[p].active = false
	}

	r.write = 0
	r.samplesToBeat = 0
	r.stutterPhase = 0
	r.noiseState = 0x2545f4914f6cdd1d

	if r.prepared {
		r.mixSm.Reset(r.params.Value(6))
		r.divIdx = engine.DivisionIndex(r.params.Value(0))
	}
}

// Process implements engine.Engine.
func (r *Repeat) Process(buf [][]float64) {
	if !r.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > repeatSliceChannels {
		nch = repeatSliceChannels
	}

	r.mixSm.SetTarget(r.params.Value(6))
	r.updateDivision()

	interval := engine.DivisionSamples(normalizedForDivision(r.divIdx), r.transport, r.sampleRate)
	if interval < 1 {
		interval = 1
	}

	stutterDepth := r.params.Value(5)
	stutterInc := 2 * math.Pi / interval * 2 // gate runs at twice the division rate

	recordLen := len(r.record[0])

	for i := range buf[0] {
		mix := r.mixSm.Next()

		for ch := 0; ch < nch; ch++ {
			r.record[ch][r.write] = buf[ch][i]
		}

		r.write++
		if r.write >= recordLen {
			r.write = 0
		}

		r.samplesToBeat--
		if r.samplesToBeat <= 0 {
			r.samplesToBeat += interval
			r.maybeSpawn(int(interval), nch)
		}

		wet := [repeatSliceChannels]float64{}
		for p := range r.players {
			r.tickPlayer(&r.players[p], &wet, nch)
		}

		r.stutterPhase += stutterInc
		if r.stutterPhase > 2*math.Pi {
			r.stutterPhase -= 2 * math.Pi
		}

		gate := 1 - stutterDepth*0.5*(1+math.Sin(r.stutterPhase))

		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]
			buf[ch][i] = (dry*(1-mix) + (dry+wet[ch])*mix) * gate
		}
	}
}

func (r *Repeat) tickPlayer(p *slicePlayer, wet *[repeatSliceChannels]float64, nch int) {
	if !p.active {
		return
	}

	idx := p.pos
	if p.reverse {
		idx = float64(p.length-1) - p.pos
	}

	k := int(idx)
	frac := idx - float64(k)

	for ch := 0; ch < nch; ch++ {
		data := p.data[ch]

		x0 := data[k]
		x1 := x0
		if k+1 < p.length {
			x1 = data[k+1]
		}

		wet[ch] += interp.Linear2(frac, x0, x1) * p.gain
	}

	p.pos += p.ratio
	if p.pos >= float64(p.length-1) {
		p.pos = 0
		p.gain *= p.decay

		if p.gain < repeatMinPlayerGain {
			p.active = false
		}
	}
}

// maybeSpawn rolls the probability knob and, on success, captures the most
// recent division worth of audio into a free player.
func (r *Repeat) maybeSpawn(interval, nch int) {
	if r.nextNoise() > r.params.Value(1) {
		return
	}

	var p *slicePlayer
	for i := range r.players {
		if !r.players[i].active {
			p = &r.players[i]
			break
		}
	}

	if p == nil {
		return
	}

	length := interval
	if maxLen := len(p.data[0]); length > maxLen {
		length = maxLen
	}

	if length < 16 {
		return
	}

	recordLen := len(r.record[0])
	start := r.write - length
	if start < 0 {
		start += recordLen
	}

	for ch := 0; ch < nch; ch++ {
		src := r.record[ch]
		dst := p.data[ch]

		for j := 0; j < length; j++ {
			idx := start + j
			if idx >= recordLen {
				idx -= recordLen
			}
			dst[j] = src[idx]
		}
	}

	semis := (r.params.Value(2) - 0.5) * 24
	p.ratio = math.Pow(2, semis/12)
	p.reverse = r.nextNoise() < r.params.Value(3)
	p.gain = 0.9
	p.decay = 0.3 + r.params.Value(4)*0.65
	p.length = length
	p.pos = 0
	p.active = true
}

// updateDivision applies hysteresis so the bucket only changes once the
// knob has clearly left the previous bucket.
func (r *Repeat) updateDivision() {
	v := r.params.Value(0)
	idx := engine.DivisionIndex(v)

	if idx == r.divIdx {
		return
	}

	bucket := 1.0 / float64(len(engine.SyncDivisions))
	center := (float64(r.divIdx) + 0.5) * bucket

	if math.Abs(v-center) > bucket/2+divisionHysteresis {
		r.divIdx = idx
	}
}

// normalizedForDivision returns a knob value that maps back to the given
// division bucket.
func normalizedForDivision(idx int) float64 {
	return (float64(idx) + 0.5) / float64(len(engine.SyncDivisions))
}

func (r *Repeat) nextNoise() float64 {
	r.noiseState += 0x9e3779b97f4a7c15
	z := r.noiseState
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31

	return float64(z>>11) / (1 << 53)
}
