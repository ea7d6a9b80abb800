package rack

import (
	"fmt"
	"math"
	"testing"

	"github.com/cwbudde/algo-rack/dsp/spectrum"
	"github.com/cwbudde/algo-rack/engine"
)

const (
	hostSampleRate = 48000.0
	hostBlock      = 512
)

func newTestHost(t *testing.T) *Host {
	t.Helper()

	h := NewHost()
	if err := h.Prepare(hostSampleRate, hostBlock); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	return h
}

// runChain pushes a long buffer through the host block by block.
func runChain(h *Host, buf [][]float64) {
	n := len(buf[0])

	for start := 0; start < n; start += hostBlock {
		end := start + hostBlock
		if end > n {
			end = n
		}

		block := make([][]float64, len(buf))
		for ch := range buf {
			block[ch] = buf[ch][start:end]
		}

		h.Process(block)
	}
}

func setSlotParam(t *testing.T, h *Host, slot, param int, v float64) {
	t.Helper()

	if err := h.Store().Set(fmt.Sprintf("slot%d_param%d", slot, param), v); err != nil {
		t.Fatalf("Set(slot%d_param%d) error = %v", slot, param, err)
	}
}

// warmUp runs one silent block so the engines pick up the store values,
// then resets them so smoothers snap instead of gliding.
func warmUp(h *Host) {
	silence := [][]float64{make([]float64, hostBlock), make([]float64, hostBlock)}
	h.Process(silence)
	h.Reset()
}

func stereoSine(n int, freq, amp float64) [][]float64 {
	buf := [][]float64{make([]float64, n), make([]float64, n)}
	for i := 0; i < n; i++ {
		s := amp * math.Sin(2*math.Pi*freq*float64(i)/hostSampleRate)
		buf[0][i] = s
		buf[1][i] = s
	}

	return buf
}

func peakIn(samples []float64, lo, hi int) (pos int, level float64) {
	if lo < 0 {
		lo = 0
	}

	if hi > len(samples) {
		hi = len(samples)
	}

	for i := lo; i < hi; i++ {
		if a := math.Abs(samples[i]); a > level {
			level = a
			pos = i
		}
	}

	return pos, level
}

func amplitudeIn(samples []float64, lo, hi int) float64 {
	_, level := peakIn(samples, lo, hi)
	return level
}

func TestHostEmptyChainIsTransparent(t *testing.T) {
	h := newTestHost(t)

	buf := stereoSine(48000, 1000, 0.5)
	want := make([]float64, len(buf[0]))
	copy(want, buf[0])

	runChain(h, buf)

	for i, v := range buf[0] {
		if math.Abs(v-want[i]) > 1e-6 {
			t.Fatalf("sample %d: got %v, want %v", i, v, want[i])
		}
	}
}

func TestHostDigitalDelayEchoTiming(t *testing.T) {
	h := newTestHost(t)

	if err := h.SetSlotEngine(1, engine.DigitalDelay); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	setSlotParam(t, h, 1, 1, 0.5) // ~1000 ms
	setSlotParam(t, h, 1, 2, 0)   // no feedback
	setSlotParam(t, h, 1, 3, 0)   // no damping
	setSlotParam(t, h, 1, 4, 0)   // no crossfeed
	setSlotParam(t, h, 1, 5, 0)   // sync off
	setSlotParam(t, h, 1, 6, 1)   // full wet

	warmUp(h)

	buf := [][]float64{make([]float64, 96000), make([]float64, 96000)}
	buf[0][0] = 0.5
	buf[1][0] = 0.5

	runChain(h, buf)

	// Time knob 0.5 commands 1 + 0.5*1999 = 1000.5 ms.
	want := int(math.Round((1 + 0.5*1999) * 0.001 * hostSampleRate))

	pos, level := peakIn(buf[0], 1000, len(buf[0]))
	if pos < want-3 || pos > want+3 {
		t.Fatalf("echo at sample %d, want %d +- 3", pos, want)
	}

	if level < 0.3 {
		t.Fatalf("echo level = %v, want > 0.3", level)
	}

	// No feedback, so nothing after the first repeat.
	if _, tail := peakIn(buf[0], want+2000, len(buf[0])); tail > 1e-3 {
		t.Fatalf("unexpected second repeat, level %v", tail)
	}
}

func TestHostParametricEQLowShelfBoost(t *testing.T) {
	h := newTestHost(t)

	if err := h.SetSlotEngine(1, engine.ParametricEQ); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	// Low shelf at 100 Hz (20*1000^v = 100), +6 dB ((v-0.5)*30 = 6).
	setSlotParam(t, h, 1, 1, math.Log(100.0/20.0)/math.Log(1000))
	setSlotParam(t, h, 1, 2, 0.7)
	setSlotParam(t, h, 1, 10, 0) // no drive

	warmUp(h)

	low := stereoSine(48000, 50, 0.1)
	runChain(h, low)

	if amp := amplitudeIn(low[0], 24000, 48000); amp < 0.15 || amp > 0.23 {
		t.Fatalf("50 Hz amplitude = %v, want about 0.2 (+6 dB)", amp)
	}

	h.Reset()

	mid := stereoSine(48000, 1000, 0.1)
	runChain(h, mid)

	if amp := amplitudeIn(mid[0], 24000, 48000); amp < 0.093 || amp > 0.106 {
		t.Fatalf("1 kHz amplitude = %v, want 0.1 within 0.5 dB", amp)
	}
}

func TestHostPitchShifterOctaveUp(t *testing.T) {
	h := newTestHost(t)

	if err := h.SetSlotEngine(1, engine.PitchShifter); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	setSlotParam(t, h, 1, 1, 1) // +12 semitones
	setSlotParam(t, h, 1, 3, 1) // full wet

	warmUp(h)

	buf := stereoSine(96000, 440, 0.4)
	runChain(h, buf)

	freq, err := spectrum.PeakFrequency(buf[0][48000:], hostSampleRate)
	if err != nil {
		t.Fatalf("PeakFrequency() error = %v", err)
	}

	if freq < 880*0.98 || freq > 880*1.02 {
		t.Fatalf("dominant frequency = %v Hz, want 880 +- 2%%", freq)
	}

	if got := h.Latency(); got != 1024 {
		t.Fatalf("Latency() = %d, want 1024", got)
	}
}

func TestHostSyncedFeedbackDecays(t *testing.T) {
	h := newTestHost(t)

	if err := h.SetSlotEngine(1, engine.DigitalDelay); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	setSlotParam(t, h, 1, 1, 0.5) // quarter note
	setSlotParam(t, h, 1, 2, 1)   // feedback at the 0.95 ceiling
	setSlotParam(t, h, 1, 3, 0)
	setSlotParam(t, h, 1, 4, 0)
	setSlotParam(t, h, 1, 5, 1) // sync on
	setSlotParam(t, h, 1, 6, 1)

	h.SetTransport(engine.TransportInfo{BPM: 120, TimeSigNum: 4, TimeSigDen: 4})
	warmUp(h)

	buf := [][]float64{make([]float64, 96000), make([]float64, 96000)}
	buf[0][0] = 0.5
	buf[1][0] = 0.5

	runChain(h, buf)

	// Quarter note at 120 BPM is 500 ms: repeats at 24000, 48000, 72000.
	prev := math.Inf(1)
	for _, center := range []int{24000, 48000, 72000} {
		pos, level := peakIn(buf[0], center-200, center+200)
		if pos < center-3 || pos > center+3 {
			t.Fatalf("repeat at sample %d, want %d +- 3", pos, center)
		}

		if level > prev*0.96 {
			t.Fatalf("repeat at %d did not decay: %v after %v", center, level, prev)
		}

		prev = level
	}

	for i, v := range buf[0] {
		if math.Abs(v) > 1 {
			t.Fatalf("sample %d out of range: %v", i, v)
		}
	}
}

func TestHostSoloGatesOtherSlots(t *testing.T) {
	h := newTestHost(t)

	if err := h.SetSlotEngine(1, engine.BitCrusher); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	if err := h.SetSlotEngine(2, engine.MuffFuzz); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	if err := h.SetSlotEngine(3, engine.GainUtility); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	if err := h.Store().Set("slot3_solo", 1); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	warmUp(h)

	buf := stereoSine(4800, 440, 0.5)
	want := make([]float64, len(buf[0]))
	copy(want, buf[0])

	runChain(h, buf)

	// Only the unity gain slot runs, leaving the signal at the output
	// trim level.
	for i, v := range buf[0] {
		if math.Abs(v-want[i]*0.99) > 1e-6 {
			t.Fatalf("sample %d: got %v, want %v", i, v, want[i]*0.99)
		}
	}

	if a := h.SlotActivity(1); a != 0 {
		t.Fatalf("gated slot 1 activity = %v, want 0", a)
	}

	if a := h.SlotActivity(2); a != 0 {
		t.Fatalf("gated slot 2 activity = %v, want 0", a)
	}
}

func TestHostBypassSkipsSlot(t *testing.T) {
	h := newTestHost(t)

	if err := h.SetSlotEngine(1, engine.MuffFuzz); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	if err := h.Store().Set("slot1_bypass", 1); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	buf := stereoSine(4800, 440, 0.5)
	want := make([]float64, len(buf[0]))
	copy(want, buf[0])

	runChain(h, buf)

	for i, v := range buf[0] {
		if math.Abs(v-want[i]) > 1e-6 {
			t.Fatalf("bypassed slot altered sample %d: got %v, want %v", i, v, want[i])
		}
	}
}

func TestHostMasterBypassIsTransparent(t *testing.T) {
	h := newTestHost(t)

	if err := h.SetSlotEngine(1, engine.MuffFuzz); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	if err := h.Store().Set("masterBypass", 1); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	buf := stereoSine(4800, 440, 0.5)
	want := make([]float64, len(buf[0]))
	copy(want, buf[0])

	runChain(h, buf)

	for i, v := range buf[0] {
		if v != want[i] {
			t.Fatalf("master bypass altered sample %d", i)
		}
	}
}

func TestHostSwapAppliesDefaults(t *testing.T) {
	h := newTestHost(t)

	setSlotParam(t, h, 1, 2, 0.9)

	if err := h.SetSlotEngine(1, engine.DigitalDelay); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	if got := h.SlotEngine(1); got != engine.DigitalDelay {
		t.Fatalf("SlotEngine() = %v", got)
	}

	if got := h.Store().EngineChoice(1); got != engine.DigitalDelay {
		t.Fatalf("EngineChoice() = %v", got)
	}

	// Feedback takes the catalog value, not the old knob position.
	if got := h.Store().SlotParam(1, 2); got != 0.35 {
		t.Fatalf("slot1_param2 = %v, want 0.35", got)
	}

	// Unlisted parameters land on 0.5.
	if got := h.Store().SlotParam(1, 9); got != 0.5 {
		t.Fatalf("slot1_param9 = %v, want 0.5", got)
	}
}

func TestHostSwapRejectsUnknownEngine(t *testing.T) {
	h := newTestHost(t)

	if err := h.SetSlotEngine(1, engine.TapeSaturator); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	if err := h.SetSlotEngine(1, engine.ID(99)); err == nil {
		t.Fatal("SetSlotEngine(99) should fail")
	}

	// The old engine and choice survive the failed swap.
	if got := h.SlotEngine(1); got != engine.TapeSaturator {
		t.Fatalf("SlotEngine() = %v, want Tape Saturator", got)
	}

	if got := h.Store().EngineChoice(1); got != engine.TapeSaturator {
		t.Fatalf("EngineChoice() = %v, want Tape Saturator", got)
	}
}

func TestHostLatencyIsChainMax(t *testing.T) {
	var reported []int

	h := NewHost(WithLatencyCallback(func(samples int) {
		reported = append(reported, samples)
	}))

	if err := h.Prepare(hostSampleRate, hostBlock); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if err := h.SetSlotEngine(1, engine.WaveFolder); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	if got := h.Latency(); got != 48 {
		t.Fatalf("Latency() = %d, want 48", got)
	}

	if err := h.SetSlotEngine(2, engine.PitchShifter); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	if got := h.Latency(); got != 1024 {
		t.Fatalf("Latency() = %d, want 1024", got)
	}

	if err := h.SetSlotEngine(2, engine.None); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	if got := h.Latency(); got != 48 {
		t.Fatalf("Latency() = %d, want 48 after removal", got)
	}

	want := []int{48, 1024, 48}
	if len(reported) != len(want) {
		t.Fatalf("callback fired %d times, want %d", len(reported), len(want))
	}

	for i := range want {
		if reported[i] != want[i] {
			t.Fatalf("callback %d reported %d, want %d", i, reported[i], want[i])
		}
	}
}

func TestHostClearsInvalidBlocks(t *testing.T) {
	h := newTestHost(t)

	over := [][]float64{make([]float64, hostBlock*2)}
	for i := range over[0] {
		over[0][i] = 0.5
	}

	h.Process(over)

	for i, v := range over[0] {
		if v != 0 {
			t.Fatalf("oversized block sample %d not cleared: %v", i, v)
		}
	}
}

func TestHostStateRoundTrip(t *testing.T) {
	a := newTestHost(t)

	if err := a.SetSlotEngine(1, engine.TapeSaturator); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	setSlotParam(t, a, 1, 1, 0.8)

	data, err := a.State()
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}

	b := newTestHost(t)
	if err := b.SetState(data); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	if got := b.SlotEngine(1); got != engine.TapeSaturator {
		t.Fatalf("SlotEngine() = %v, want Tape Saturator", got)
	}

	// Saved knob positions win over install defaults.
	if got := b.Store().SlotParam(1, 1); got != 0.8 {
		t.Fatalf("slot1_param1 = %v, want 0.8", got)
	}
}

func TestHostFreshStartLoadsEmptyChain(t *testing.T) {
	a := newTestHost(t)

	if err := a.SetSlotEngine(1, engine.TapeSaturator); err != nil {
		t.Fatalf("SetSlotEngine() error = %v", err)
	}

	setSlotParam(t, a, 1, 1, 0.8)

	data, err := a.State()
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}

	b := NewHost(WithFreshStart())
	if err := b.Prepare(hostSampleRate, hostBlock); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if err := b.SetState(data); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	if got := b.SlotEngine(1); got != engine.None {
		t.Fatalf("SlotEngine() = %v, want None", got)
	}

	// Knob values restore even though the engines do not.
	if got := b.Store().SlotParam(1, 1); got != 0.8 {
		t.Fatalf("slot1_param1 = %v, want 0.8", got)
	}
}
