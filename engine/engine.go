// Package engine defines the contract every slot algorithm implements, the
// closed engine enumeration, and the factory that instantiates engines.
package engine

// MaxSlotParams is the number of parameter knobs a slot exposes. Engines may
// consume fewer; unused indices report an empty name.
const MaxSlotParams = 15

// MaxChannels is the most channels an engine must tolerate. The core path is
// mono/stereo; engines treat extra channels independently.
const MaxChannels = 8

// Engine is the uniform polymorphic contract for all slot algorithms.
//
// Prepare may allocate and is never called concurrently with Process.
// Process and UpdateParameters may race with each other; implementations
// funnel parameter targets through atomic stores and smoothers. Process must
// not allocate, block, or panic.
type Engine interface {
	// Name returns the stable human-readable identity.
	Name() string

	// Prepare readies the engine for the given format. Called off the hot
	// path before the first Process and after any format change.
	Prepare(sampleRate float64, maxBlock int) error

	// Reset clears delay lines, integrators, and phases without
	// reallocating.
	Reset()

	// Process filters buf (planar, channels x samples) in place.
	Process(buf [][]float64)

	// UpdateParameters absorbs a sparse set of normalized [0,1] parameter
	// changes, keyed by parameter index.
	UpdateParameters(changes map[int]float64)

	// NumParameters returns the number of parameters the engine consumes.
	NumParameters() int

	// ParameterName returns the display name of parameter i, or "" when
	// the index is unused.
	ParameterName(i int) string

	// LatencySamples returns the latency this engine introduces. It may
	// change only as a result of Prepare.
	LatencySamples() int
}

// TempoSynced is implemented by engines that derive timing from the host
// transport.
type TempoSynced interface {
	SetTransportInfo(info TransportInfo)
}

// SupportsTempoSync reports whether e consumes host transport.
func SupportsTempoSync(e Engine) bool {
	_, ok := e.(TempoSynced)
	return ok
}

// TransportInfo carries host timing for tempo-synced engines. It is updated
// once per block before processing.
type TransportInfo struct {
	BPM         float64
	TimeSigNum  int
	TimeSigDen  int
	IsPlaying   bool
	PPQPosition float64
}

// DefaultTransport is the fallback used when the host provides no transport,
// so sync-division math stays defined.
func DefaultTransport() TransportInfo {
	return TransportInfo{BPM: 120, TimeSigNum: 4, TimeSigDen: 4}
}
