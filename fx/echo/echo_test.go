package echo

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

func processImpulse(e engine.Engine, channels, length int) [][]float64 {
	buf := make([][]float64, channels)
	for ch := range buf {
		buf[ch] = make([]float64, length)
	}

	for ch := range buf {
		buf[ch][0] = 1
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

func peakIndex(samples []float64, from int) (int, float64) {
	best := from
	bestAbs := 0.0

	for i := from; i < len(samples); i++ {
		if a := math.Abs(samples[i]); a > bestAbs {
			bestAbs = a
			best = i
		}
	}

	return best, bestAbs
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

func TestDigitalDelayTiming(t *testing.T) {
	tests := []struct {
		name    string
		delayMs float64
	}{
		{name: "100ms", delayMs: 100},
		{name: "250ms", delayMs: 250},
		{name: "500ms", delayMs: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDigital()
			prepareEngine(t, d, map[int]float64{
				0: (tt.delayMs - 1) / 1999, // time
				1: 0,                       // feedback
				2: 0,                       // damping
				3: 0,                       // crossfeed
				4: 0,                       // sync off
				5: 1,                       // mix
			})

			want := int(tt.delayMs * 0.001 * testSampleRate)
			buf := processImpulse(d, 1, want+4800)

			if buf[0][0] < 0.99 {
				t.Errorf("dry impulse = %f, want ~1", buf[0][0])
			}

			got, amp := peakIndex(buf[0], 16)
			if got < want-1 || got > want+1 {
				t.Errorf("echo at sample %d, want %d +/- 1", got, want)
			}

			if amp < 0.9 {
				t.Errorf("echo amplitude = %f, want > 0.9", amp)
			}
		})
	}
}

func TestDigitalTempoSync(t *testing.T) {
	d := NewDigital()
	d.SetTransportInfo(engine.TransportInfo{BPM: 120, TimeSigNum: 4, TimeSigDen: 4, IsPlaying: true})
	prepareEngine(t, d, map[int]float64{
		0: 0.5, // quarter note bucket
		1: 0,
		4: 1, // sync on
		5: 1,
	})

	// One beat at 120 BPM is 500 ms.
	want := int(0.5 * testSampleRate)
	buf := processImpulse(d, 1, want+2400)

	got, _ := peakIndex(buf[0], 16)
	if got < want-1 || got > want+1 {
		t.Errorf("synced echo at sample %d, want %d +/- 1", got, want)
	}
}

func TestDigitalFeedbackDecays(t *testing.T) {
	d := NewDigital()
	prepareEngine(t, d, map[int]float64{
		0: (50.0 - 1) / 1999,
		1: 1, // full knob, internally capped below unity
		5: 1,
	})

	period := int(0.05 * testSampleRate)
	buf := processImpulse(d, 1, period*12)

	prev := math.Inf(1)

	for rep := 1; rep <= 10; rep++ {
		center := rep * period
		_, amp := peakIndex(buf[0][center-4:center+5], 0)

		if amp >= prev {
			t.Fatalf("repeat %d amplitude %f did not decay from %f", rep, amp, prev)
		}

		prev = amp
	}

	if prev <= 0 {
		t.Error("expected audible repeats with full feedback")
	}
}

func TestDigitalFeedbackClipLimitsHotLoop(t *testing.T) {
	d := NewDigital()
	prepareEngine(t, d, map[int]float64{
		0: (50.0 - 1) / 1999,
		1: 1,
		5: 1,
	})

	period := int(0.05 * testSampleRate)
	length := period * 6

	buf := [][]float64{make([]float64, length)}
	buf[0][0] = 10 // far above the clip threshold

	d.Process(buf)
	checkFinite(t, buf)

	// The first repeat is the delayed input itself; the second has been
	// around the feedback loop once and comes out soft-clipped.
	_, first := peakIndex(buf[0][period-4:period+5], 0)
	_, second := peakIndex(buf[0][2*period-4:2*period+5], 0)

	if first < 5 {
		t.Errorf("first repeat amplitude = %f, want the hot input passed through", first)
	}

	if second > 1.6 {
		t.Errorf("second repeat amplitude = %f, want limited by the feedback clipper", second)
	}

	if second < 0.5 {
		t.Errorf("second repeat amplitude = %f, want an audible clipped repeat", second)
	}
}

func TestDigitalPingPongCrossfeed(t *testing.T) {
	d := NewDigital()
	prepareEngine(t, d, map[int]float64{
		0: (100.0 - 1) / 1999,
		1: 0,
		3: 1, // full crossfeed
		5: 1,
	})

	length := int(0.1*testSampleRate) + 2400
	buf := make([][]float64, 2)
	for ch := range buf {
		buf[ch] = make([]float64, length)
	}
	buf[0][0] = 1 // left only

	d.Process(buf)

	want := int(0.1 * testSampleRate)
	_, leftAmp := peakIndex(buf[0][16:], 0)
	rightIdx, rightAmp := peakIndex(buf[1], 0)

	if rightAmp < 0.9 {
		t.Errorf("right channel echo amplitude = %f, want > 0.9", rightAmp)
	}

	if rightIdx < want-1 || rightIdx > want+1 {
		t.Errorf("right channel echo at %d, want %d +/- 1", rightIdx, want)
	}

	if leftAmp > 0.1 {
		t.Errorf("left channel echo amplitude = %f, want near 0 with full crossfeed", leftAmp)
	}
}

func TestTapeStaysFiniteUnderFullDrive(t *testing.T) {
	e := NewTape()
	prepareEngine(t, e, map[int]float64{
		0: 0.3,
		1: 1, // feedback
		2: 1, // wow and flutter
		3: 1, // drive
		5: 1, // mix
	})

	buf := processImpulse(e, 2, int(2*testSampleRate))
	checkFinite(t, buf)
}

func TestTapeEchoArrivesLate(t *testing.T) {
	e := NewTape()
	prepareEngine(t, e, map[int]float64{
		0: 0.5,
		1: 0,
		2: 0,
		3: 0,
		5: 1,
	})

	buf := processImpulse(e, 1, int(testSampleRate))

	// The echo is filtered, so only check that delayed energy exists well
	// after the dry impulse.
	_, amp := peakIndex(buf[0], 4800)
	if amp < 0.1 {
		t.Errorf("tape echo amplitude = %f, want > 0.1", amp)
	}
}

func TestBBDEcho(t *testing.T) {
	e := NewBBD()
	prepareEngine(t, e, map[int]float64{
		0: 0.5,
		1: 0,
		2: 0, // age
		3: 0, // mod depth
		6: 1, // mix
	})

	buf := processImpulse(e, 1, int(2*testSampleRate))
	checkFinite(t, buf)

	// The clock filters smear the impulse, so check delayed energy rather
	// than a single peak.
	var energy float64
	for _, v := range buf[0][2400:] {
		energy += v * v
	}

	if energy < 1e-3 {
		t.Errorf("bucket brigade echo energy = %g, want > 1e-3", energy)
	}
}

func TestDrumHeads(t *testing.T) {
	e := NewDrum()
	prepareEngine(t, e, map[int]float64{
		0: 1, // full speed, one rotation per 0.5 s
		1: 1, // head 1
		2: 0,
		3: 0,
		4: 0, // feedback
		5: 0, // sync off
		6: 1, // mix
	})

	// Head 1 sits a quarter rotation behind the write head.
	want := int(0.25 / 2.0 * testSampleRate)
	buf := processImpulse(e, 1, want+9600)
	checkFinite(t, buf)

	got, amp := peakIndex(buf[0], 96)
	if amp < 0.1 {
		t.Fatalf("drum echo amplitude = %f, want > 0.1", amp)
	}

	tol := int(0.005 * testSampleRate)
	if got < want-tol || got > want+tol {
		t.Errorf("drum echo at %d, want %d +/- %d", got, want, tol)
	}
}

func TestRepeatSpawnsSlices(t *testing.T) {
	e := NewRepeat()
	e.SetTransportInfo(engine.TransportInfo{BPM: 120, TimeSigNum: 4, TimeSigDen: 4, IsPlaying: true})
	prepareEngine(t, e, map[int]float64{
		0: 0.5, // quarter note
		1: 1,   // always spawn
		2: 0.5, // unison pitch
		3: 0,   // no reverse
		4: 0.5,
		5: 0, // no stutter
		6: 1, // mix
	})

	length := int(2 * testSampleRate)
	buf := make([][]float64, 1)
	buf[0] = make([]float64, length)

	for i := range buf[0] {
		buf[0][i] = math.Sin(2 * math.Pi * 220 * float64(i) / testSampleRate)
	}

	e.Process(buf)
	checkFinite(t, buf)

	// With guaranteed spawns and full mix the second beat carries the
	// replayed slice on top of the input, so its energy exceeds the dry
	// signal's.
	beat := int(0.5 * testSampleRate)

	var energy float64
	for i := beat; i < 2*beat; i++ {
		energy += buf[0][i] * buf[0][i]
	}

	dryEnergy := float64(beat) * 0.5 // mean square of a unit sine
	if energy < dryEnergy*1.2 {
		t.Errorf("slice energy %f, want > %f", energy, dryEnergy*1.2)
	}
}

func TestRepeatZeroProbabilityPassesDry(t *testing.T) {
	e := NewRepeat()
	prepareEngine(t, e, map[int]float64{
		1: 0, // never spawn
		5: 0, // no stutter
		6: 0, // fully dry
	})

	length := 4096
	buf := [][]float64{make([]float64, length)}
	want := make([]float64, length)

	for i := range buf[0] {
		buf[0][i] = math.Sin(2 * math.Pi * 100 * float64(i) / testSampleRate)
		want[i] = buf[0][i]
	}

	e.Process(buf)

	for i := range want {
		if math.Abs(buf[0][i]-want[i]) > 1e-9 {
			t.Fatalf("sample %d changed: got %f, want %f", i, buf[0][i], want[i])
		}
	}
}

func TestEchoEnginesResetClearTails(t *testing.T) {
	engines := []engine.Engine{NewDigital(), NewTape(), NewBBD(), NewDrum(), NewRepeat()}

	for _, e := range engines {
		t.Run(e.Name(), func(t *testing.T) {
			mixIdx := e.NumParameters() - 1
			prepareEngine(t, e, map[int]float64{mixIdx: 1})

			processImpulse(e, 2, 8192)
			e.Reset()

			buf := [][]float64{make([]float64, 8192), make([]float64, 8192)}
			e.Process(buf)

			for ch := range buf {
				for i, v := range buf[ch] {
					if math.Abs(v) > 1e-12 {
						t.Fatalf("tail survived Reset at channel %d index %d: %f", ch, i, v)
					}
				}
			}
		})
	}
}
