package engine

// ID identifies an engine type. The set is closed; the host's choice
// parameter index equals the ID.
type ID int

// The full engine enumeration. None is a passthrough slot.
const (
	None ID = iota
	OptoCompressor
	VCACompressor
	TransientShaper
	NoiseGate
	MasteringLimiter
	DynamicEQ
	ParametricEQ
	ConsoleEQ
	LadderFilter
	StateVariableFilter
	FormantFilter
	EnvelopeFilter
	CombResonator
	TubePreamp
	TapeSaturator
	WaveFolder
	HarmonicExciter
	BitCrusher
	MultibandSaturator
	MuffFuzz
	RodentDistortion
	KStyleOverdrive
	ClassicTremolo
	HarmonicTremolo
	ClassicChorus
	ResonantChorus
	AnalogPhaser
	RingModulator
	FrequencyShifter
	RotarySpeaker
	AutoPan
	DimensionExpander
	DigitalDelay
	TapeEcho
	MagneticDrumEcho
	BucketBrigadeDelay
	BufferRepeat
	PlateReverb
	SpringReverb
	HallReverb
	ShimmerReverb
	GatedReverb
	PitchShifter
	SpectralPitch
	DetuneDoubler
	Harmonizer
	GranularCloud
	SpectralFreeze
	SpectralGate
	MidSideProcessor
	StereoWidener
	MonoMaker
	GainUtility
	PhaseRotator
	ChaosModulator
	FeedbackNetwork

	// NumIDs is one past the last valid ID.
	NumIDs
)

var idNames = [NumIDs]string{
	None:                "None",
	OptoCompressor:      "Opto Compressor",
	VCACompressor:       "VCA Compressor",
	TransientShaper:     "Transient Shaper",
	NoiseGate:           "Noise Gate",
	MasteringLimiter:    "Mastering Limiter",
	DynamicEQ:           "Dynamic EQ",
	ParametricEQ:        "Parametric EQ",
	ConsoleEQ:           "Console EQ",
	LadderFilter:        "Ladder Filter",
	StateVariableFilter: "State Variable Filter",
	FormantFilter:       "Formant Filter",
	EnvelopeFilter:      "Envelope Filter",
	CombResonator:       "Comb Resonator",
	TubePreamp:          "Tube Preamp",
	TapeSaturator:       "Tape Saturator",
	WaveFolder:          "Wave Folder",
	HarmonicExciter:     "Harmonic Exciter",
	BitCrusher:          "Bit Crusher",
	MultibandSaturator:  "Multiband Saturator",
	MuffFuzz:            "Muff Fuzz",
	RodentDistortion:    "Rodent Distortion",
	KStyleOverdrive:     "K-Style Overdrive",
	ClassicTremolo:      "Classic Tremolo",
	HarmonicTremolo:     "Harmonic Tremolo",
	ClassicChorus:       "Classic Chorus",
	ResonantChorus:      "Resonant Chorus",
	AnalogPhaser:        "Analog Phaser",
	RingModulator:       "Ring Modulator",
	FrequencyShifter:    "Frequency Shifter",
	RotarySpeaker:       "Rotary Speaker",
	AutoPan:             "Auto-Pan",
	DimensionExpander:   "Dimension Expander",
	DigitalDelay:        "Digital Delay",
	TapeEcho:            "Tape Echo",
	MagneticDrumEcho:    "Magnetic Drum Echo",
	BucketBrigadeDelay:  "Bucket Brigade Delay",
	BufferRepeat:        "Buffer Repeat",
	PlateReverb:         "Plate Reverb",
	SpringReverb:        "Spring Reverb",
	HallReverb:          "Hall Reverb",
	ShimmerReverb:       "Shimmer Reverb",
	GatedReverb:         "Gated Reverb",
	PitchShifter:        "Pitch Shifter",
	SpectralPitch:       "Spectral Pitch",
	DetuneDoubler:       "Detune Doubler",
	Harmonizer:          "Harmonizer",
	GranularCloud:       "Granular Cloud",
	SpectralFreeze:      "Spectral Freeze",
	SpectralGate:        "Spectral Gate",
	MidSideProcessor:    "Mid-Side Processor",
	StereoWidener:       "Stereo Widener",
	MonoMaker:           "Mono Maker",
	GainUtility:         "Gain Utility",
	PhaseRotator:        "Phase Rotator",
	ChaosModulator:      "Chaos Modulator",
	FeedbackNetwork:     "Feedback Network",
}

// Valid reports whether id is inside the closed enumeration.
func (id ID) Valid() bool {
	return id >= None && id < NumIDs
}

func (id ID) String() string {
	if !id.Valid() {
		return "Unknown"
	}

	return idNames[id]
}

// Names returns the display names of all engines indexed by ID, suitable for
// building the host's choice parameter.
func Names() []string {
	names := make([]string, NumIDs)
	for i := range idNames {
		names[i] = idNames[i]
	}

	return names
}
