package eq

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

// measureGainDB runs a sine through the engine and compares steady-state RMS
// against the input.
func measureGainDB(e engine.Engine, freq, amplitude float64) float64 {
	length := int(testSampleRate / 2)
	buf := [][]float64{make([]float64, length)}

	for i := range buf[0] {
		buf[0][i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
	}

	e.Process(buf)

	var sum float64
	for _, v := range buf[0][length/2:] {
		sum += v * v
	}

	out := math.Sqrt(sum / float64(length/2))
	in := amplitude / math.Sqrt2

	return 20 * math.Log10(out/in)
}

// flatParametric returns settings with every band at 0 dB and drive off.
func flatParametric() map[int]float64 {
	return map[int]float64{
		0: 0.5, 1: 0.5,
		2: 0.5, 3: 0.5,
		4: 0.5, 5: 0.5,
		6: 0.5, 7: 0.5,
		8: 0.5,
		9: 0,
	}
}

// freqParam inverts the 20 Hz..20 kHz log mapping.
func freqParam(freq float64) float64 {
	return math.Log(freq/eqMinFreq) / math.Log(eqMaxFreq/eqMinFreq)
}

func TestParametricFlatIsTransparent(t *testing.T) {
	p := NewParametric()
	prepareEngine(t, p, flatParametric())

	for _, freq := range []float64{50, 440, 1000, 8000} {
		if got := measureGainDB(p, freq, 0.1); math.Abs(got) > 0.1 {
			t.Errorf("flat gain at %.0f Hz = %.2f dB, want 0", freq, got)
		}

		p.Reset()
	}
}

func TestParametricLowShelfBoost(t *testing.T) {
	params := flatParametric()
	params[0] = freqParam(100)  // low shelf at 100 Hz
	params[1] = 0.5 + 6.0/30.0 // +6 dB

	p := NewParametric()
	prepareEngine(t, p, params)

	if got := measureGainDB(p, 50, 0.1); math.Abs(got-6) > 1.0 {
		t.Errorf("50 Hz gain = %.2f dB, want +6 +/- 1", got)
	}

	p.Reset()

	if got := measureGainDB(p, 1000, 0.1); math.Abs(got) > 0.5 {
		t.Errorf("1 kHz gain = %.2f dB, want 0 +/- 0.5", got)
	}
}

func TestParametricPeakCutAndBoost(t *testing.T) {
	tests := []struct {
		name   string
		gain   float64
		wantDB float64
	}{
		{name: "boost", gain: 0.5 + 12.0/30.0, wantDB: 12},
		{name: "cut", gain: 0.5 - 12.0/30.0, wantDB: -12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := flatParametric()
			params[2] = freqParam(1000) // peak 1 at 1 kHz
			params[3] = tt.gain

			p := NewParametric()
			prepareEngine(t, p, params)

			if got := measureGainDB(p, 1000, 0.05); math.Abs(got-tt.wantDB) > 0.5 {
				t.Errorf("1 kHz gain = %.2f dB, want %.0f +/- 0.5", got, tt.wantDB)
			}
		})
	}
}

func TestParametricDriveEngagesOversampling(t *testing.T) {
	params := flatParametric()
	params[9] = 1

	p := NewParametric()
	prepareEngine(t, p, params)

	if got := p.LatencySamples(); got != 32 {
		t.Errorf("LatencySamples() with drive = %d, want 32", got)
	}

	params[9] = 0
	p.UpdateParameters(params)

	if got := p.LatencySamples(); got != 0 {
		t.Errorf("LatencySamples() without drive = %d, want 0", got)
	}
}

func TestParametricOutputIsBounded(t *testing.T) {
	params := flatParametric()
	params[1] = 1 // +15 dB low shelf
	params[0] = freqParam(100)
	params[9] = 1 // full drive

	p := NewParametric()
	prepareEngine(t, p, params)

	length := 48000
	buf := [][]float64{make([]float64, length)}
	for i := range buf[0] {
		buf[0][i] = 0.9 * math.Sin(2*math.Pi*60*float64(i)/testSampleRate)
	}

	p.Process(buf)

	for i, v := range buf[0] {
		if math.Abs(v) > 1 {
			t.Fatalf("sample %d = %f, limiter let output exceed 1", i, v)
		}

		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite sample at %d", i)
		}
	}
}

func TestConsoleMidBell(t *testing.T) {
	c := NewConsole()
	prepareEngine(t, c, map[int]float64{
		0: 0.5,
		1: 0.5 + 9.0/30.0, // +9 dB mid
		2: 0.5,            // ~1 kHz
		3: 0.5,
		4: 0, // HPF off
	})

	midFreq := consoleMidMin * math.Pow(consoleMidMax/consoleMidMin, 0.5)

	if got := measureGainDB(c, midFreq, 0.05); math.Abs(got-9) > 0.75 {
		t.Errorf("mid gain = %.2f dB, want +9 +/- 0.75", got)
	}
}

func TestConsoleHighpassCutsLows(t *testing.T) {
	c := NewConsole()
	prepareEngine(t, c, map[int]float64{
		0: 0.5, 1: 0.5, 2: 0.5, 3: 0.5,
		4: 1, // HPF on
	})

	if got := measureGainDB(c, 25, 0.1); got > -18 {
		t.Errorf("25 Hz gain with HPF = %.2f dB, want strong attenuation", got)
	}

	c.Reset()

	if got := measureGainDB(c, 1000, 0.1); math.Abs(got) > 0.5 {
		t.Errorf("1 kHz gain with HPF = %.2f dB, want ~0", got)
	}
}
