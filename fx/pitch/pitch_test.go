package pitch

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-rack/dsp/spectrum"
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

func processSine(e engine.Engine, freq float64, channels, length int) [][]float64 {
	buf := make([][]float64, channels)
	for ch := range buf {
		buf[ch] = make([]float64, length)
		for i := range buf[ch] {
			buf[ch][i] = math.Sin(2 * math.Pi * freq * float64(i) / testSampleRate)
		}
	}

	for start := 0; start < length; start += 512 {
		end := start + 512
		if end > length {
			end = length
		}

		block := make([][]float64, channels)
		for ch := range buf {
			block[ch] = buf[ch][start:end]
		}

		e.Process(block)
	}

	return buf
}

func checkFinite(t *testing.T, buf [][]float64) {
	t.Helper()

	for ch := range buf {
		for i, v := range buf[ch] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("non-finite sample %f at channel %d index %d", v, ch, i)
			}
		}
	}
}

func dominantFrequency(t *testing.T, samples []float64) float64 {
	t.Helper()

	freq, err := spectrum.PeakFrequency(samples, testSampleRate)
	if err != nil {
		t.Fatalf("PeakFrequency() error = %v", err)
	}

	return freq
}

func TestGrainShiftsOctaveUp(t *testing.T) {
	g := NewGrain()
	prepareEngine(t, g, map[int]float64{
		0: 1,   // +12 semitones
		1: 0.5, // default grain
		2: 1,   // fully wet
	})

	length := int(testSampleRate)
	buf := processSine(g, 440, 1, length)
	checkFinite(t, buf)

	got := dominantFrequency(t, buf[0][length-16384:])
	if math.Abs(got-880)/880 > 0.02 {
		t.Errorf("dominant frequency = %f Hz, want 880 +/- 2%%", got)
	}
}

func TestGrainUnisonPassesPitch(t *testing.T) {
	g := NewGrain()
	prepareEngine(t, g, map[int]float64{0: 0.5, 2: 1})

	length := int(testSampleRate)
	buf := processSine(g, 440, 1, length)

	got := dominantFrequency(t, buf[0][length-16384:])
	if math.Abs(got-440)/440 > 0.02 {
		t.Errorf("dominant frequency = %f Hz, want 440 +/- 2%%", got)
	}
}

func TestGrainLatencyReported(t *testing.T) {
	g := NewGrain()
	if got := g.LatencySamples(); got != 1024 {
		t.Errorf("LatencySamples() = %d, want 1024", got)
	}
}

func TestSpectralShiftsOctaveUp(t *testing.T) {
	s := NewSpectral()
	prepareEngine(t, s, map[int]float64{
		0: 1,         // +12 semitones
		1: 1.0 / 3.0, // neutral formant
		2: 0,         // gate off
		3: 0,         // feedback off
		4: 1,         // fully wet
	})

	length := int(2 * testSampleRate)
	buf := processSine(s, 440, 1, length)
	checkFinite(t, buf)

	got := dominantFrequency(t, buf[0][length-16384:])
	if math.Abs(got-880)/880 > 0.02 {
		t.Errorf("dominant frequency = %f Hz, want 880 +/- 2%%", got)
	}
}

func TestSpectralUnisonPreservesPitch(t *testing.T) {
	s := NewSpectral()
	prepareEngine(t, s, map[int]float64{
		0: 0.5,
		1: 1.0 / 3.0,
		2: 0,
		3: 0,
		4: 1,
	})

	length := int(2 * testSampleRate)
	buf := processSine(s, 440, 1, length)

	got := dominantFrequency(t, buf[0][length-16384:])
	if math.Abs(got-440)/440 > 0.02 {
		t.Errorf("dominant frequency = %f Hz, want 440 +/- 2%%", got)
	}
}

func TestSpectralLatencyReported(t *testing.T) {
	s := NewSpectral()
	if got := s.LatencySamples(); got != 3072 {
		t.Errorf("LatencySamples() = %d, want 3072", got)
	}
}

func TestHarmonizerSilentVoicesPassDry(t *testing.T) {
	h := NewHarmonizer()
	prepareEngine(t, h, map[int]float64{
		0: 1, // +12, but level 0
		1: 0, // -12, but level 0
		2: 0,
		3: 0,
		4: 1,
	})

	length := 8192
	buf := processSine(h, 440, 1, length)

	for i := 0; i < length; i++ {
		want := math.Sin(2 * math.Pi * 440 * float64(i) / testSampleRate)
		if math.Abs(buf[0][i]-want) > 1e-9 {
			t.Fatalf("sample %d = %f, want %f", i, buf[0][i], want)
		}
	}
}

func TestHarmonizerAddsUpperVoice(t *testing.T) {
	h := NewHarmonizer()
	prepareEngine(t, h, map[int]float64{
		0: 1, // +12 semitones
		2: 1, // level 1 full
		3: 0,
		4: 1,
	})

	length := int(testSampleRate)
	buf := processSine(h, 440, 1, length)
	checkFinite(t, buf)

	// Subtract the dry sine; the residual is the harmonized voice.
	residual := make([]float64, 16384)
	for i := range residual {
		j := length - 16384 + i
		residual[i] = buf[0][j] - math.Sin(2*math.Pi*440*float64(j)/testSampleRate)
	}

	got := dominantFrequency(t, residual)
	if math.Abs(got-880)/880 > 0.01 {
		t.Errorf("harmony voice frequency = %f Hz, want 880 +/- 1%%", got)
	}
}

func TestShifterCoreSpliceStaysInPhase(t *testing.T) {
	c := newShifterCore(1)
	c.setRatio(2)

	const freq = 440.0

	n := int(testSampleRate)
	out := make([]float64, n)

	for i := 0; i < n; i++ {
		out[i] = c.tick(math.Sin(2 * math.Pi * freq * float64(i) / testSampleRate))
	}

	got := dominantFrequency(t, out[n-16384:])
	if math.Abs(got-2*freq)/(2*freq) > 0.01 {
		t.Errorf("shifted frequency = %f Hz, want %f +/- 1%%", got, 2*freq)
	}
}

func TestDoublerStereoSpread(t *testing.T) {
	d := NewDoubler()
	prepareEngine(t, d, map[int]float64{
		0: 1, // full detune
		1: 1, // full width
		2: 1, // fully wet
	})

	length := int(testSampleRate / 2)
	buf := processSine(d, 440, 2, length)
	checkFinite(t, buf)

	var diff float64
	for i := length / 2; i < length; i++ {
		d := buf[0][i] - buf[1][i]
		diff += d * d
	}

	if diff < 1e-3 {
		t.Errorf("channel difference energy = %g, want decorrelated channels", diff)
	}
}

func TestCloudProducesGrains(t *testing.T) {
	c := NewCloud()
	prepareEngine(t, c, map[int]float64{
		0: 1,   // max density
		1: 0.5,
		2: 0.5,
		3: 0.5,
		4: 0,
		5: 1, // fully wet
	})

	length := int(2 * testSampleRate)
	buf := processSine(c, 220, 2, length)
	checkFinite(t, buf)

	var energy float64
	for _, v := range buf[0][length/2:] {
		energy += v * v
	}

	if energy < 1e-2 {
		t.Errorf("grain energy = %g, want audible grains at full density", energy)
	}
}

func TestCloudResetSilences(t *testing.T) {
	c := NewCloud()
	prepareEngine(t, c, map[int]float64{0: 1, 5: 1})

	processSine(c, 220, 2, int(testSampleRate))
	c.Reset()

	buf := [][]float64{make([]float64, 8192), make([]float64, 8192)}
	c.Process(buf)

	for ch := range buf {
		for i, v := range buf[ch] {
			if math.Abs(v) > 1e-12 {
				t.Fatalf("grain survived Reset at channel %d index %d: %f", ch, i, v)
			}
		}
	}
}
