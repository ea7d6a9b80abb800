package rack

import (
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/engine"
)

// maxBlockSamples is the defensive upper bound on a single Process call.
const maxBlockSamples = 8192

// softClipKnee is where the output stage starts shaving peaks.
const softClipKnee = 0.98

type slotState struct {
	id  engine.ID
	eng engine.Engine
}

// slotKeys caches the per-slot store key names so the audio thread never
// formats strings.
var slotKeys = func() (k [NumSlots]struct{ bypass, solo, mix string }) {
	for i := range k {
		k[i].bypass = fmt.Sprintf("slot%d_bypass", i+1)
		k[i].solo = fmt.Sprintf("slot%d_solo", i+1)
		k[i].mix = fmt.Sprintf("slot%d_mix", i+1)
	}

	return k
}()

var slotParamKeys = func() (k [NumSlots][SlotParams]string) {
	for s := range k {
		for p := range k[s] {
			k[s][p] = fmt.Sprintf("slot%d_param%d", s+1, p+1)
		}
	}

	return k
}()

// Option configures a Host at construction.
type Option func(*Host)

// WithFreshStart makes SetState ignore saved engine choices, loading all
// slots as None. Parameter values still restore.
func WithFreshStart() Option {
	return func(h *Host) { h.freshStart = true }
}

// WithLatencyCallback registers a function invoked (from the install
// path, never the audio thread) whenever the aggregate latency changes.
func WithLatencyCallback(fn func(samples int)) Option {
	return func(h *Host) { h.onLatency = fn }
}

// Host owns the six slots and runs the serial chain. A single mutex
// guards the engine pointers; the audio thread holds it only around each
// slot's update+process pair, and the install path only around the
// pointer swap, so steady-state processing never waits on allocation.
type Host struct {
	store *Store

	sampleRate float64
	maxBlock   int
	prepared   bool
	freshStart bool

	mu    sync.Mutex
	slots [NumSlots]slotState

	transport engine.TransportInfo

	// Audio-thread scratch, sized in Prepare.
	dry    [engine.MaxChannels][]float64
	master [engine.MaxChannels][]float64

	paramScratch [NumSlots]map[int]float64

	activity [NumSlots]float64
	inPeak   float64
	outPeak  float64
	latency  int

	onLatency func(samples int)
}

// NewHost creates a host around its own Store. Call Prepare before
// Process.
func NewHost(opts ...Option) *Host {
	h := &Host{
		store:     NewStore(),
		transport: engine.DefaultTransport(),
	}

	for i := range h.paramScratch {
		h.paramScratch[i] = make(map[int]float64, SlotParams)
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Store exposes the parameter table. UI and host automation write only
// through it.
func (h *Host) Store() *Store { return h.store }

// Prepare sizes the scratch buffers and prepares every installed engine.
func (h *Host) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("rack: sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 || maxBlock > maxBlockSamples {
		return fmt.Errorf("rack: max block must be in 1..%d: %d", maxBlockSamples, maxBlock)
	}

	h.sampleRate = sampleRate
	h.maxBlock = maxBlock

	for ch := 0; ch < engine.MaxChannels; ch++ {
		h.dry[ch] = make([]float64, maxBlock)
		h.master[ch] = make([]float64, maxBlock)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for k := range h.slots {
		if h.slots[k].eng == nil {
			continue
		}

		if err := h.slots[k].eng.Prepare(sampleRate, maxBlock); err != nil {
			return fmt.Errorf("rack: slot %d (%s): %w", k+1, h.slots[k].id, err)
		}
	}

	h.prepared = true
	h.recomputeLatencyLocked()

	return nil
}

// Reset clears every installed engine's state and the meters.
func (h *Host) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for k := range h.slots {
		if h.slots[k].eng != nil {
			h.slots[k].eng.Reset()
		}

		h.activity[k] = 0
	}

	h.inPeak = 0
	h.outPeak = 0
}

// SetTransport forwards host tempo and position; engines that sync pick
// it up on the next block.
func (h *Host) SetTransport(info engine.TransportInfo) {
	if info.BPM <= 0 {
		info = engine.DefaultTransport()
	}

	h.transport = info
}

// Latency returns the aggregate chain latency in samples: the maximum
// across installed engines, since slots report independently and the
// host does not add compensation delays between them.
func (h *Host) Latency() int { return h.latency }

// SlotActivity returns the last block's mean wet/dry difference for a
// 1-based slot, a cheap UI meter.
func (h *Host) SlotActivity(slot int) float64 {
	if slot < 1 || slot > NumSlots {
		return 0
	}

	return h.activity[slot-1]
}

// Peaks returns the input and output peak levels of the last block.
func (h *Host) Peaks() (in, out float64) { return h.inPeak, h.outPeak }

// clear zeroes the buffer, the defensive path for invalid call shapes.
func clear(buf [][]float64) {
	for ch := range buf {
		core.Zero(buf[ch])
	}
}

// Process runs one block through the chain in place.
func (h *Host) Process(buf [][]float64) {
	if len(buf) == 0 {
		return
	}

	n := len(buf[0])
	if !h.prepared || n <= 0 || n > h.maxBlock || len(buf) > engine.MaxChannels {
		clear(buf)
		return
	}

	nch := len(buf)

	h.inPeak = blockPeak(buf)

	if h.store.GetBool("masterBypass") {
		h.outPeak = h.inPeak
		return
	}

	// Master dry capture for the global wet/dry blend.
	for ch := 0; ch < nch; ch++ {
		copy(h.master[ch][:n], buf[ch])
	}

	anySoloed := false
	for k := 0; k < NumSlots; k++ {
		if h.store.GetBool(slotKeys[k].solo) {
			anySoloed = true
			break
		}
	}

	processedAny := false

	for k := 0; k < NumSlots; k++ {
		bypassed := h.store.GetBool(slotKeys[k].bypass)
		soloed := h.store.GetBool(slotKeys[k].solo)

		if bypassed || (anySoloed && !soloed) {
			h.activity[k] = 0
			continue
		}

		params := h.paramScratch[k]
		for p := 0; p < SlotParams; p++ {
			params[p] = h.store.Get(slotParamKeys[k][p])
		}

		mix := h.store.Get(slotKeys[k].mix)

		for ch := 0; ch < nch; ch++ {
			copy(h.dry[ch][:n], buf[ch])
		}

		h.mu.Lock()
		eng := h.slots[k].eng
		if eng != nil {
			if ts, ok := eng.(engine.TempoSynced); ok {
				ts.SetTransportInfo(h.transport)
			}

			eng.UpdateParameters(params)
			eng.Process(buf)
		}
		h.mu.Unlock()

		if eng == nil {
			h.activity[k] = 0
			continue
		}

		processedAny = true

		diff := 0.0
		for ch := 0; ch < nch; ch++ {
			wet := buf[ch]
			dry := h.dry[ch][:n]

			for i := 0; i < n; i++ {
				blended := dry[i]*(1-mix) + wet[i]*mix
				diff += math.Abs(blended - dry[i])
				wet[i] = blended
			}
		}

		h.activity[k] = diff / float64(n*nch)
	}

	masterGain := core.DBToLinear((h.store.Get("masterGain") - 0.5) * 24)
	masterMix := h.store.Get("masterMix")

	trim := 1.0
	if processedAny {
		trim = 0.99
	}

	for ch := 0; ch < nch; ch++ {
		wet := buf[ch]
		dry := h.master[ch][:n]

		for i := 0; i < n; i++ {
			v := (dry[i]*(1-masterMix) + wet[i]*masterMix) * masterGain * trim

			if a := math.Abs(v); a > softClipKnee {
				v = math.Copysign(softClipKnee+(1-softClipKnee)*math.Tanh((a-softClipKnee)/(1-softClipKnee)), v)
			}

			wet[i] = core.HardLimit(v, softClipKnee)
		}
	}

	h.outPeak = blockPeak(buf)
}

func blockPeak(buf [][]float64) float64 {
	peak := 0.0
	for ch := range buf {
		for _, v := range buf[ch] {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
	}

	return peak
}

// recomputeLatencyLocked scans the installed engines. Callers hold mu.
func (h *Host) recomputeLatencyLocked() {
	maxLatency := 0
	for k := range h.slots {
		if h.slots[k].eng == nil {
			continue
		}

		if l := h.slots[k].eng.LatencySamples(); l > maxLatency {
			maxLatency = l
		}
	}

	if maxLatency != h.latency {
		h.latency = maxLatency

		if h.onLatency != nil {
			h.onLatency(maxLatency)
		}
	}
}
