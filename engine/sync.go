package engine

// SyncDivisions lists the nine musical divisions a synced time knob selects,
// as beat factors relative to a quarter note in 4/4: 1/64 bar up to 4 bars.
var SyncDivisions = [9]float64{0.0625, 0.125, 0.25, 0.5, 1, 2, 4, 8, 16}

// SyncDivisionNames mirrors SyncDivisions for display.
var SyncDivisionNames = [9]string{
	"1/64", "1/32", "1/16", "1/8", "1/4", "1/2", "1 bar", "2 bars", "4 bars",
}

// DivisionIndex quantizes a normalized time knob into a division bucket.
func DivisionIndex(t float64) int {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	idx := int(t * float64(len(SyncDivisions)))
	if idx >= len(SyncDivisions) {
		idx = len(SyncDivisions) - 1
	}

	return idx
}

// DivisionSamples converts a normalized time knob into a delay in samples
// given the transport tempo. Zero or negative BPM falls back to the default
// transport so the math never divides by zero.
func DivisionSamples(t float64, info TransportInfo, sampleRate float64) float64 {
	bpm := info.BPM
	if bpm <= 0 {
		bpm = DefaultTransport().BPM
	}

	beat := 60.0 / bpm * sampleRate

	return beat * SyncDivisions[DivisionIndex(t)]
}
