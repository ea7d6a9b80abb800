package pitch

import "math"

// Shifter is a single-channel grain pitch shifter for embedding inside
// other engines (the shimmer reverb feeds its tank through one). It is
// the same dual-grain core the Pitch Shifter engine uses, without the
// parameter plumbing.
type Shifter struct {
	core *shifterCore
}

// NewShifter creates a shifter at the given interval in semitones.
func NewShifter(semitones float64, seed uint64) *Shifter {
	s := &Shifter{core: newShifterCore(seed)}
	s.SetSemitones(semitones)

	return s
}

// SetSemitones retunes the shifter.
func (s *Shifter) SetSemitones(semitones float64) {
	s.core.setRatio(math.Pow(2, semitones/12))
}

// Tick writes one sample and returns the shifted output.
func (s *Shifter) Tick(x float64) float64 {
	return s.core.tick(x)
}

// Reset clears the ring and grain phases.
func (s *Shifter) Reset() {
	s.core.reset()
}
