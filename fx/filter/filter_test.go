package filter

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-rack/engine"
)

const testSampleRate = 48000.0

func prepareEngine(t *testing.T, e engine.Engine, params map[int]float64) {
	t.Helper()

	e.UpdateParameters(params)

	if err := e.Prepare(testSampleRate, 512); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
}

func sineRMS(e engine.Engine, freq float64) float64 {
	length := int(testSampleRate / 2)
	buf := [][]float64{make([]float64, length)}

	for i := range buf[0] {
		buf[0][i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
	}

	e.Process(buf)

	var sum float64
	for _, v := range buf[0][length/2:] {
		sum += v * v
	}

	return math.Sqrt(sum / float64(length/2))
}

func TestFormantOrderingAcrossGrid(t *testing.T) {
	for vi := 0; vi <= 20; vi++ {
		for si := 0; si <= 20; si++ {
			pos := float64(vi) / 20
			shift := float64(si) / 20

			bands := currentFormants(pos, shift)

			if !(bands[0].freq < bands[1].freq && bands[1].freq < bands[2].freq) {
				t.Fatalf("formants out of order at pos=%.2f shift=%.2f: %.1f %.1f %.1f",
					pos, shift, bands[0].freq, bands[1].freq, bands[2].freq)
			}

			if bands[0].freq < 80 || bands[0].freq > 1000 {
				t.Fatalf("F1 out of range at pos=%.2f shift=%.2f: %.1f", pos, shift, bands[0].freq)
			}

			if bands[1].freq < 200 || bands[1].freq > 4000 {
				t.Fatalf("F2 out of range at pos=%.2f shift=%.2f: %.1f", pos, shift, bands[1].freq)
			}

			if bands[2].freq < 1000 || bands[2].freq > 8000 {
				t.Fatalf("F3 out of range at pos=%.2f shift=%.2f: %.1f", pos, shift, bands[2].freq)
			}
		}
	}
}

func TestFormantNeutralShiftIsUnity(t *testing.T) {
	// shift = 0.5 multiplies by exactly 1.
	bands := currentFormants(0, 0.5)

	if math.Abs(bands[0].freq-730) > 1e-9 {
		t.Errorf("F1 at neutral shift = %f, want 730", bands[0].freq)
	}
}

func TestLadderAttenuatesAboveCutoff(t *testing.T) {
	l := NewLadder()
	prepareEngine(t, l, map[int]float64{
		0: 0.5, // ~600 Hz cutoff
		1: 0,
		2: 0,
	})

	low := sineRMS(l, 100)
	l.Reset()
	high := sineRMS(l, 8000)

	if high > low*0.1 {
		t.Errorf("8 kHz RMS %f vs 100 Hz RMS %f, want > 20 dB separation", high, low)
	}
}

func TestStateVariableModes(t *testing.T) {
	tests := []struct {
		name     string
		mode     float64
		loudFreq float64
		quietFreq float64
	}{
		{name: "lowpass", mode: 0, loudFreq: 100, quietFreq: 10000},
		{name: "highpass", mode: 0.6, loudFreq: 10000, quietFreq: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStateVariable()
			prepareEngine(t, s, map[int]float64{
				0: 0.5, // ~600 Hz
				1: 0.2,
				2: tt.mode,
			})

			loud := sineRMS(s, tt.loudFreq)
			s.Reset()
			quiet := sineRMS(s, tt.quietFreq)

			if quiet > loud*0.2 {
				t.Errorf("stop band RMS %f vs pass band RMS %f", quiet, loud)
			}
		})
	}
}

func TestEnvelopeFilterOpensWithLevel(t *testing.T) {
	e := NewEnvelope()
	prepareEngine(t, e, map[int]float64{
		0: 1,   // high sensitivity
		1: 1,   // full range
		2: 0.3,
		3: 0,   // fast
		4: 0,   // upward sweep
	})

	// A loud 2 kHz tone should pass once the envelope opens the filter; a
	// quiet one stays behind the closed 120 Hz base cutoff.
	length := int(testSampleRate / 2)

	loud := [][]float64{make([]float64, length)}
	for i := range loud[0] {
		loud[0][i] = 0.9 * math.Sin(2*math.Pi*2000*float64(i)/testSampleRate)
	}
	e.Process(loud)

	e.Reset()

	quiet := [][]float64{make([]float64, length)}
	for i := range quiet[0] {
		quiet[0][i] = 0.01 * math.Sin(2*math.Pi*2000*float64(i)/testSampleRate)
	}
	e.Process(quiet)

	rmsOf := func(s []float64) float64 {
		var sum float64
		for _, v := range s {
			sum += v * v
		}
		return math.Sqrt(sum / float64(len(s)))
	}

	loudRatio := rmsOf(loud[0][length/2:]) / (0.9 / math.Sqrt2)
	quietRatio := rmsOf(quiet[0][length/2:]) / (0.01 / math.Sqrt2)

	if loudRatio < 0.5 {
		t.Errorf("loud tone passed at ratio %f, want filter open", loudRatio)
	}

	if quietRatio > 0.2 {
		t.Errorf("quiet tone passed at ratio %f, want filter closed", quietRatio)
	}
}

func TestCombRingsAtTunedFrequency(t *testing.T) {
	c := NewComb()

	// Tune to 440 Hz.
	freqParam := math.Log(440.0/combMinFreq) / math.Log(combMaxFreq/combMinFreq)
	prepareEngine(t, c, map[int]float64{
		0: freqParam,
		1: 1, // max resonance
		2: 0, // bright
		3: 1, // wet
	})

	// Excite with an impulse and verify a decaying ring.
	length := int(testSampleRate / 2)
	buf := [][]float64{make([]float64, length)}
	buf[0][0] = 1

	c.Process(buf)

	var early, late float64
	for i := 1000; i < 5000; i++ {
		early += buf[0][i] * buf[0][i]
	}
	for i := length - 5000; i < length-1000; i++ {
		late += buf[0][i] * buf[0][i]
	}

	if early < 1e-4 {
		t.Fatalf("comb did not ring, early energy %g", early)
	}

	if late >= early {
		t.Errorf("ring did not decay: early %g late %g", early, late)
	}
}
