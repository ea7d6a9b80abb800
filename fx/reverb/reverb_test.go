package reverb

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

func TestPlateBuildsAndDecays(t *testing.T) {
	plate := NewPlate()
	prepareEngine(t, plate, map[int]float64{0: 0.5, 1: 0.3, 2: 0.3, 3: 1})

	out := processImpulse(plate, 2, 96000)
	checkFinite(t, out)

	early := rms(out[0][4800:14400])
	late := rms(out[0][72000:96000])

	if early < 1e-4 {
		t.Fatalf("early tail rms = %g, want audible reverb", early)
	}

	if late > early*0.5 {
		t.Fatalf("late tail rms = %g vs early %g, want decay", late, early)
	}
}

func TestPlateMixZeroIsTransparent(t *testing.T) {
	plate := NewPlate()
	prepareEngine(t, plate, map[int]float64{0: 0.5, 1: 0.8, 2: 0.3, 3: 0})

	out := processImpulse(plate, 1, 4096)

	if out[0][0] != 1 {
		t.Fatalf("sample 0 = %f, want dry impulse", out[0][0])
	}

	for i := 1; i < 4096; i++ {
		if out[0][i] != 0 {
			t.Fatalf("sample %d = %f, want pure dry", i, out[0][i])
		}
	}
}

func TestSpringRingsAfterImpulse(t *testing.T) {
	spring := NewSpring()
	prepareEngine(t, spring, map[int]float64{0: 0.5, 1: 0.6, 2: 0.5, 3: 1})

	out := processImpulse(spring, 2, 48000)
	checkFinite(t, out)

	if tail := rms(out[0][4800:24000]); tail < 1e-4 {
		t.Fatalf("tail rms = %g, want spring ringing", tail)
	}
}

func TestHallDecayKnobLengthensTail(t *testing.T) {
	short := NewHall()
	prepareEngine(t, short, map[int]float64{0: 0.5, 1: 0.05, 2: 0.3, 3: 0, 4: 1})
	shortOut := processImpulse(short, 2, 96000)

	long := NewHall()
	prepareEngine(t, long, map[int]float64{0: 0.5, 1: 0.9, 2: 0.3, 3: 0, 4: 1})
	longOut := processImpulse(long, 2, 96000)

	checkFinite(t, longOut)

	shortTail := rms(shortOut[0][48000:96000])
	longTail := rms(longOut[0][48000:96000])

	if longTail < shortTail*4 {
		t.Fatalf("long tail rms %g vs short %g, want clearly longer decay", longTail, shortTail)
	}
}

func TestHallStaysBoundedAtMaxSettings(t *testing.T) {
	hall := NewHall()
	prepareEngine(t, hall, map[int]float64{0: 1, 1: 1, 2: 0, 3: 1, 4: 1})

	out := processImpulse(hall, 2, 96000)
	checkFinite(t, out)

	for ch := range out {
		for i, v := range out[ch] {
			if math.Abs(v) > 4 {
				t.Fatalf("excessive output %f at channel %d index %d", v, ch, i)
			}
		}
	}
}

func TestShimmerStableAtFullRegeneration(t *testing.T) {
	sh := NewShimmer()
	prepareEngine(t, sh, map[int]float64{0: 0.8, 1: 1, 2: 1, 3: 1})

	out := processImpulse(sh, 2, 96000)
	checkFinite(t, out)

	if tail := rms(out[0][9600:48000]); tail < 1e-4 {
		t.Fatalf("tail rms = %g, want shimmer tail", tail)
	}

	for ch := range out {
		for i, v := range out[ch] {
			if math.Abs(v) > 4 {
				t.Fatalf("excessive output %f at channel %d index %d", v, ch, i)
			}
		}
	}
}

func TestGatedCutsTailAfterHold(t *testing.T) {
	gated := NewGated()
	prepareEngine(t, gated, map[int]float64{0: 0, 1: 0.3, 2: 0.5, 3: 1})

	out := processImpulse(gated, 2, 48000)
	checkFinite(t, out)

	during := rms(out[0][480:2400])
	after := rms(out[0][24000:48000])

	if during < 1e-4 {
		t.Fatalf("gated burst rms = %g, want dense early reverb", during)
	}

	if after > during*0.01 {
		t.Fatalf("post-gate rms = %g vs burst %g, want hard cut", after, during)
	}
}

func TestReverbEnginesResetToSilence(t *testing.T) {
	engines := []engine.Engine{
		NewPlate(), NewSpring(), NewHall(), NewShimmer(), NewGated(),
	}

	for _, e := range engines {
		t.Run(e.Name(), func(t *testing.T) {
			prepareEngine(t, e, map[int]float64{0: 0.6, 1: 0.8, 2: 0.5, 3: 1})

			out := processImpulse(e, 2, 24000)
			checkFinite(t, out)

			e.Reset()

			silence := make([][]float64, 2)
			for ch := range silence {
				silence[ch] = make([]float64, 2048)
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
