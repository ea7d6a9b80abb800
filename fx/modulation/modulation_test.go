package modulation

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

func processSine(e engine.Engine, channels, length int, freq, amp float64) [][]float64 {
	buf := make([][]float64, channels)
	for ch := range buf {
		buf[ch] = make([]float64, length)
		for i := range buf[ch] {
			buf[ch][i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
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

func rms(samples []float64) float64 {
	sum := 0.0
	for _, v := range samples {
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(samples)))
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

func TestTremoloFullDepthDipsToSilence(t *testing.T) {
	trem := NewTremolo()
	// Rate knob 0.5 is 1.4 Hz, slow enough to resolve in half a second.
	prepareEngine(t, trem, map[int]float64{0: 0.5, 1: 1, 2: 0, 3: 0})

	buf := [][]float64{make([]float64, 48000)}
	for i := range buf[0] {
		buf[0][i] = 1
	}
	trem.Process(buf)

	lo, hi := 1.0, 0.0
	for _, v := range buf[0] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	if lo > 0.05 {
		t.Fatalf("trough gain = %f, want near 0", lo)
	}

	if hi < 0.95 {
		t.Fatalf("crest gain = %f, want near 1", hi)
	}
}

func TestTremoloZeroDepthIsTransparent(t *testing.T) {
	trem := NewTremolo()
	prepareEngine(t, trem, map[int]float64{0: 0.5, 1: 0})

	out := processSine(trem, 2, 4096, 440, 0.5)

	for i, v := range out[0] {
		want := 0.5 * math.Sin(2*math.Pi*440*float64(i)/testSampleRate)
		if math.Abs(v-want) > 1e-12 {
			t.Fatalf("sample %d = %f, want %f", i, v, want)
		}
	}
}

func TestHarmonicTremoloModulates(t *testing.T) {
	trem := NewHarmonicTremolo()
	prepareEngine(t, trem, map[int]float64{0: 0.5, 1: 1, 2: 0.5})

	out := processSine(trem, 1, 48000, 150, 0.5)
	checkFinite(t, out)

	// RMS over quarter-second windows should swing with the LFO.
	lo, hi := math.Inf(1), 0.0
	for start := 12000; start+6000 <= 48000; start += 6000 {
		w := rms(out[0][start : start+6000])
		if w < lo {
			lo = w
		}
		if w > hi {
			hi = w
		}
	}

	if hi < lo*1.1 {
		t.Fatalf("window rms range %f..%f, want audible modulation", lo, hi)
	}
}

func TestChorusMixZeroIsTransparent(t *testing.T) {
	ch := NewChorus()
	prepareEngine(t, ch, map[int]float64{0: 0.5, 1: 0.5, 2: 1, 3: 0})

	out := processSine(ch, 2, 4096, 440, 0.5)

	for i, v := range out[0] {
		want := 0.5 * math.Sin(2*math.Pi*440*float64(i)/testSampleRate)
		if math.Abs(v-want) > 1e-12 {
			t.Fatalf("sample %d = %f, want %f", i, v, want)
		}
	}
}

func TestChorusWetDiffersAcrossChannels(t *testing.T) {
	ch := NewChorus()
	prepareEngine(t, ch, map[int]float64{0: 0.6, 1: 0.8, 2: 1, 3: 1})

	out := processSine(ch, 2, 16384, 440, 0.5)
	checkFinite(t, out)

	diff := 0.0
	for i := 4096; i < 16384; i++ {
		diff += math.Abs(out[0][i] - out[1][i])
	}

	if diff < 1 {
		t.Fatalf("channel difference = %f, want decorrelated outputs", diff)
	}
}

func TestResonantChorusStaysBounded(t *testing.T) {
	rc := NewResonantChorus()
	prepareEngine(t, rc, map[int]float64{0: 0.7, 1: 1, 2: 1, 3: 1})

	out := processSine(rc, 2, 48000, 330, 0.9)
	checkFinite(t, out)

	for chn := range out {
		for i, v := range out[chn] {
			if math.Abs(v) > 4 {
				t.Fatalf("excessive output %f at channel %d index %d", v, chn, i)
			}
		}
	}
}

func TestPhaserMixZeroIsTransparent(t *testing.T) {
	ph := NewPhaser()
	prepareEngine(t, ph, map[int]float64{0: 0.5, 1: 1, 2: 0.5, 3: 0.5, 4: 0})

	out := processSine(ph, 1, 4096, 440, 0.5)

	for i, v := range out[0] {
		want := 0.5 * math.Sin(2*math.Pi*440*float64(i)/testSampleRate)
		if math.Abs(v-want) > 1e-12 {
			t.Fatalf("sample %d = %f, want %f", i, v, want)
		}
	}
}

func TestPhaserSweepsNotches(t *testing.T) {
	ph := NewPhaser()
	prepareEngine(t, ph, map[int]float64{0: 0.6, 1: 1, 2: 1, 3: 0.4, 4: 1})

	out := processSine(ph, 2, 48000, 700, 0.5)
	checkFinite(t, out)

	// The notch sweeping across 700 Hz changes the level over time.
	lo, hi := math.Inf(1), 0.0
	for start := 4800; start+4800 <= 48000; start += 4800 {
		w := rms(out[0][start : start+4800])
		if w < lo {
			lo = w
		}
		if w > hi {
			hi = w
		}
	}

	if hi < lo*1.05 {
		t.Fatalf("window rms range %f..%f, want swept response", lo, hi)
	}
}

func TestRingModProducesSidebands(t *testing.T) {
	rm := NewRingMod()

	// Carrier knob solves 20*200^v = 110 Hz.
	carrier := math.Log(110.0/20.0) / math.Log(200)
	prepareEngine(t, rm, map[int]float64{0: carrier, 1: 0, 2: 1})

	out := processSine(rm, 1, 32768, 440, 0.8)
	checkFinite(t, out)

	peak, err := spectrum.PeakFrequency(out[0][16384:], testSampleRate)
	if err != nil {
		t.Fatalf("PeakFrequency() error = %v", err)
	}

	if math.Abs(peak-440) < 20 {
		t.Fatalf("peak = %f Hz, carrier should have removed 440", peak)
	}

	nearLower := math.Abs(peak-330) < 15
	nearUpper := math.Abs(peak-550) < 15
	if !nearLower && !nearUpper {
		t.Fatalf("peak = %f Hz, want a 330 or 550 sideband", peak)
	}
}

func TestFreqShifterShiftsBy100Hz(t *testing.T) {
	fs := NewFreqShifter()
	prepareEngine(t, fs, map[int]float64{0: 1, 1: 1, 2: 0, 3: 0, 4: 0})

	out := processSine(fs, 1, 32768, 440, 0.5)
	checkFinite(t, out)

	peak, err := spectrum.PeakFrequency(out[0][16384:], testSampleRate)
	if err != nil {
		t.Fatalf("PeakFrequency() error = %v", err)
	}

	if math.Abs(peak-540) > 540*0.02 {
		t.Fatalf("peak = %f Hz, want 540 +-2%%", peak)
	}
}

func TestFreqShifterShortCircuitsAtZero(t *testing.T) {
	fs := NewFreqShifter()
	prepareEngine(t, fs, map[int]float64{0: 0.5, 1: 0.5, 2: 0.5, 3: 0, 4: 0})

	out := processSine(fs, 1, 4096, 440, 0.5)

	for i := 64; i < 4096; i++ {
		want := 0.5 * math.Sin(2*math.Pi*440*float64(i-16)/testSampleRate)
		if math.Abs(out[0][i]-want) > 1e-9 {
			t.Fatalf("sample %d = %f, want delayed dry %f", i, out[0][i], want)
		}
	}
}

func TestFreqShifterLatencyReported(t *testing.T) {
	fs := NewFreqShifter()
	prepareEngine(t, fs, nil)

	if got := fs.LatencySamples(); got != 16 {
		t.Fatalf("LatencySamples() = %d, want 16", got)
	}
}

func TestAutoPanSweepsOpposedChannels(t *testing.T) {
	ap := NewAutoPan()
	prepareEngine(t, ap, map[int]float64{0: 0.5, 1: 1, 2: 0, 3: 0})

	buf := make([][]float64, 2)
	for ch := range buf {
		buf[ch] = make([]float64, 48000)
		for i := range buf[ch] {
			buf[ch][i] = 1
		}
	}
	ap.Process(buf)
	checkFinite(t, buf)

	leftLo, leftHi := math.Inf(1), 0.0
	for _, v := range buf[0] {
		if v < leftLo {
			leftLo = v
		}
		if v > leftHi {
			leftHi = v
		}
	}

	if leftLo > 0.1 || leftHi < 1.2 {
		t.Fatalf("left gain range %f..%f, want full sweep", leftLo, leftHi)
	}

	// Opposite phase: where left peaks, right should dip.
	for i := range buf[0] {
		if buf[0][i] > 1.35 && buf[1][i] > 0.5 {
			t.Fatalf("sample %d left %f right %f, want opposed pan", i, buf[0][i], buf[1][i])
		}
	}
}

func TestRotaryModulatesLevel(t *testing.T) {
	rot := NewRotary()
	prepareEngine(t, rot, map[int]float64{0: 1, 1: 0.3, 2: 0.8, 3: 1})

	out := processSine(rot, 2, 48000, 1500, 0.5)
	checkFinite(t, out)

	lo, hi := math.Inf(1), 0.0
	for start := 9600; start+2400 <= 48000; start += 2400 {
		w := rms(out[0][start : start+2400])
		if w < lo {
			lo = w
		}
		if w > hi {
			hi = w
		}
	}

	if hi < lo*1.05 {
		t.Fatalf("window rms range %f..%f, want rotor modulation", lo, hi)
	}
}

func TestDimensionDecorrelatesChannels(t *testing.T) {
	dim := NewDimension()
	prepareEngine(t, dim, map[int]float64{0: 0.8, 1: 0.5, 2: 1})

	out := processSine(dim, 2, 16384, 440, 0.5)
	checkFinite(t, out)

	side := 0.0
	for i := 4096; i < 16384; i++ {
		side += math.Abs(out[0][i] - out[1][i])
	}

	if side < 1 {
		t.Fatalf("side energy = %f, want widened image", side)
	}
}

func TestModulationEnginesResetToSilence(t *testing.T) {
	engines := []engine.Engine{
		NewTremolo(), NewHarmonicTremolo(), NewChorus(), NewResonantChorus(),
		NewPhaser(), NewRingMod(), NewFreqShifter(), NewRotary(),
		NewAutoPan(), NewDimension(),
	}

	for _, e := range engines {
		t.Run(e.Name(), func(t *testing.T) {
			prepareEngine(t, e, map[int]float64{0: 0.7, 1: 0.7})

			out := processSine(e, 2, 4096, 220, 0.8)
			checkFinite(t, out)

			e.Reset()

			silence := make([][]float64, 2)
			for ch := range silence {
				silence[ch] = make([]float64, 1024)
			}
			e.Process(silence)

			for ch := range silence {
				if got := rms(silence[ch]); got > 1e-6 {
					t.Fatalf("channel %d rms after reset = %g, want silence", ch, got)
				}
			}
		})
	}
}
