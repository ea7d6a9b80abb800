package engine

// defaultOverrides holds the per-engine parameter values that differ from
// the neutral 0.5 an engine install writes first. The overlay makes a
// freshly chosen engine audible but safe: compressors land with no gain
// reduction, delays with moderate feedback, wet effects at a useful blend.
var defaultOverrides = map[ID]map[int]float64{
	OptoCompressor:   {1: 0, 2: 1},
	VCACompressor:    {0: 1, 4: 0},
	NoiseGate:        {0: 0},
	MasteringLimiter: {0: 1, 2: 0},
	DynamicEQ:        {1: 1},

	ParametricEQ: {9: 0},
	ConsoleEQ:    {4: 0},

	LadderFilter:        {0: 1, 1: 0.2, 2: 0},
	StateVariableFilter: {0: 1, 1: 0.2},
	EnvelopeFilter:      {1: 0.4},
	CombResonator:       {1: 0.4, 3: 0.5},

	TubePreamp:         {0: 0.25},
	TapeSaturator:      {0: 0.3},
	WaveFolder:         {0: 0.2},
	HarmonicExciter:    {1: 0.3, 2: 1},
	BitCrusher:         {0: 0.3, 1: 0.2, 2: 1},
	MultibandSaturator: {0: 0.3, 1: 0.3, 2: 0.3},
	MuffFuzz:           {0: 0.4},
	RodentDistortion:   {0: 0.4, 1: 0.3},
	KStyleOverdrive:    {0: 0.35},

	ClassicTremolo:    {1: 0.7, 2: 0, 3: 0},
	HarmonicTremolo:   {1: 0.7},
	ClassicChorus:     {1: 0.4, 2: 0.7, 3: 0.5},
	ResonantChorus:    {1: 0.4, 2: 0.3, 3: 0.5},
	AnalogPhaser:      {1: 0.8, 3: 0.3, 4: 0.5},
	RingModulator:     {2: 1},
	FrequencyShifter:  {3: 0, 4: 0},
	RotarySpeaker:     {1: 0.2, 3: 1},
	AutoPan:           {1: 0.8, 3: 0},
	DimensionExpander: {0: 0.6, 2: 0.7},

	DigitalDelay:       {0: 0.25, 1: 0.35, 2: 0, 3: 0, 4: 0, 5: 0.3},
	TapeEcho:           {0: 0.4, 1: 0.4, 2: 0.3, 3: 0.2, 4: 0, 5: 0.3},
	MagneticDrumEcho:   {0: 0.5, 1: 0.8, 2: 0.5, 3: 0.3, 4: 0.35, 5: 0, 6: 0.3},
	BucketBrigadeDelay: {0: 0.4, 1: 0.4, 2: 0.3, 3: 0.3, 4: 0.3, 5: 0, 6: 0.3},
	BufferRepeat:       {1: 0.7, 3: 0.2, 4: 0.5, 5: 0, 6: 0.5},

	PlateReverb:   {1: 0.4, 2: 0.3, 3: 0.3},
	SpringReverb:  {1: 0.5, 3: 0.3},
	HallReverb:    {1: 0.5, 2: 0.3, 3: 0.1, 4: 0.3},
	ShimmerReverb: {1: 0.6, 2: 0.5, 3: 0.3},
	GatedReverb:   {0: 0.4, 1: 0.3, 3: 0.4},

	PitchShifter:  {2: 1},
	SpectralPitch: {1: 1.0 / 3, 2: 0, 3: 0, 4: 1},
	DetuneDoubler: {0: 0.3, 1: 0.7, 2: 0.5},
	Harmonizer:    {2: 0, 3: 0, 4: 0.5},
	GranularCloud: {0: 0.5, 1: 0.5, 2: 0.2, 4: 0, 5: 0.5},

	SpectralFreeze: {0: 0, 1: 0, 2: 0, 3: 1},
	SpectralGate:   {0: 0.3, 3: 1},

	StereoWidener:  {0: 0.5, 1: 0.3},
	MonoMaker:      {0: 0.4, 1: 1},
	GainUtility:    {2: 0},
	PhaseRotator:   {1: 0.5},
	ChaosModulator:  {1: 0.5, 3: 0.3},
	FeedbackNetwork: {0: 0.4, 1: 0.5, 2: 0.3, 3: 0.4},
}

// mixIndices maps each engine to its wet/dry parameter, -1 when the
// engine is inherently full-wet (EQs, dynamics, utilities).
var mixIndices = map[ID]int{
	OptoCompressor:     2,
	HarmonicExciter:    2,
	BitCrusher:         2,
	CombResonator:      3,
	ClassicChorus:      3,
	ResonantChorus:     3,
	AnalogPhaser:       4,
	RingModulator:      2,
	RotarySpeaker:      3,
	DimensionExpander:  2,
	DigitalDelay:       5,
	TapeEcho:           5,
	MagneticDrumEcho:   6,
	BucketBrigadeDelay: 6,
	BufferRepeat:       6,
	PlateReverb:        3,
	SpringReverb:       3,
	HallReverb:         4,
	ShimmerReverb:      3,
	GatedReverb:        3,
	PitchShifter:       2,
	SpectralPitch:      4,
	DetuneDoubler:      2,
	Harmonizer:         4,
	GranularCloud:      5,
	SpectralFreeze:     3,
	SpectralGate:       3,
	FeedbackNetwork:    3,
}

// Defaults returns the parameter overlay applied when an engine is
// installed: 0.5 for every slot knob, then these entries on top. The
// returned map is shared; callers must not mutate it.
func Defaults(id ID) map[int]float64 {
	return defaultOverrides[id]
}

// NewParamSetFor creates a parameter set seeded the way an install leaves
// it: every target at 0.5 with the engine's overrides applied on top. A
// bare engine then starts from the same working state as a hosted one, so
// switches such as Sync default off rather than half-engaged.
func NewParamSetFor(id ID, names ...string) *ParamSet {
	p := NewParamSet(names...)
	p.Update(Defaults(id))

	return p
}

// MixParamIndex returns the engine-local index of the wet/dry parameter,
// or -1 when the engine has none.
func MixParamIndex(id ID) int {
	if idx, ok := mixIndices[id]; ok {
		return idx
	}

	return -1
}
