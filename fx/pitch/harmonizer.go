package pitch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

// Harmonizer layers two independently pitched voices over the dry signal,
// each with its own level, intervals quantized to semitones.
//
// Parameters: Voice 1, Voice 2, Level 1, Level 2, Mix.
type Harmonizer struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	voice1 []*shifterCore
	voice2 []*shifterCore

	lvl1Sm *smooth.Smoother
	lvl2Sm *smooth.Smoother
	mixSm  *smooth.Smoother
}

// NewHarmonizer creates an unprepared harmonizer.
func NewHarmonizer() *Harmonizer {
	return &Harmonizer{params: engine.NewParamSetFor(engine.Harmonizer, "Voice 1", "Voice 2", "Level 1", "Level 2", "Mix")}
}

// Name implements engine.Engine.
func (h *Harmonizer) Name() string { return "Harmonizer" }

// NumParameters implements engine.Engine.
func (h *Harmonizer) NumParameters() int { return h.params.Num() }

// ParameterName implements engine.Engine.
func (h *Harmonizer) ParameterName(i int) string { return h.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (h *Harmonizer) UpdateParameters(changes map[int]float64) { h.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (h *Harmonizer) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (h *Harmonizer) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("harmonizer sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("harmonizer max block must be > 0: %d", maxBlock)
	}

	h.sampleRate = sampleRate

	h.voice1 = h.voice1[:0]
	h.voice2 = h.voice2[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		h.voice1 = append(h.voice1, newShifterCore(uint64(ch)*2+101))
		h.voice2 = append(h.voice2, newShifterCore(uint64(ch)*2+102))
	}

	var err error

	h.lvl1Sm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	h.lvl2Sm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	h.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	h.lvl1Sm.Reset(h.params.Value(2))
	h.lvl2Sm.Reset(h.params.Value(3))
	h.mixSm.Reset(h.params.Value(4))
	h.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (h *Harmonizer) Reset() {
	for ch := range h.voice1 {
		h.voice1[ch].reset()
		h.voice2[ch].reset()
	}

	if h.prepared {
		h.lvl1Sm.Reset(h.params.Value(2))
		h.lvl2Sm.Reset(h.params.Value(3))
		h.mixSm.Reset(h.params.Value(4))
	}
}

// Process implements engine.Engine.
func (h *Harmonizer) Process(buf [][]float64) {
	if !h.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	ratio1 := math.Pow(2, quantizedSemitones(h.params.Value(0))/12)
	ratio2 := math.Pow(2, quantizedSemitones(h.params.Value(1))/12)

	for ch := 0; ch < nch; ch++ {
		h.voice1[ch].setRatio(ratio1)
		h.voice2[ch].setRatio(ratio2)
	}

	h.lvl1Sm.SetTarget(h.params.Value(2))
	h.lvl2Sm.SetTarget(h.params.Value(3))
	h.mixSm.SetTarget(h.params.Value(4))

	for i := range buf[0] {
		lvl1 := h.lvl1Sm.Next()
		lvl2 := h.lvl2Sm.Next()
		mix := h.mixSm.Next()

		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]
			wet := h.voice1[ch].tick(dry)*lvl1 + h.voice2[ch].tick(dry)*lvl2
			buf[ch][i] = dry*(1-mix) + (dry+wet)*mix
		}
	}
}

// quantizedSemitones maps a normalized value to whole semitones in -12..+12.
func quantizedSemitones(v float64) float64 {
	return math.Round(semitones(v))
}
