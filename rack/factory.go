// Package rack hosts the six-slot serial effects chain: the parameter
// store, the engine factory, the audio-thread dispatch loop and the
// hot-swap install path.
package rack

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-rack/engine"
	"github.com/cwbudde/algo-rack/fx/distortion"
	"github.com/cwbudde/algo-rack/fx/dynamics"
	"github.com/cwbudde/algo-rack/fx/echo"
	"github.com/cwbudde/algo-rack/fx/eq"
	"github.com/cwbudde/algo-rack/fx/filter"
	"github.com/cwbudde/algo-rack/fx/modulation"
	"github.com/cwbudde/algo-rack/fx/pitch"
	"github.com/cwbudde/algo-rack/fx/reverb"
	"github.com/cwbudde/algo-rack/fx/spectral"
	"github.com/cwbudde/algo-rack/fx/utility"
)

// ErrUnknownEngine is returned for IDs outside the closed enumeration.
// Callers treat the slot as empty.
var ErrUnknownEngine = errors.New("rack: unknown engine id")

// NewEngine constructs an unprepared engine for the given ID. None
// returns (nil, nil): an empty slot, not an error.
func NewEngine(id engine.ID) (engine.Engine, error) {
	switch id {
	case engine.None:
		return nil, nil
	case engine.OptoCompressor:
		return dynamics.NewOpto(), nil
	case engine.VCACompressor:
		return dynamics.NewVCA(), nil
	case engine.TransientShaper:
		return dynamics.NewTransient(), nil
	case engine.NoiseGate:
		return dynamics.NewGate(), nil
	case engine.MasteringLimiter:
		return dynamics.NewLimiter(), nil
	case engine.DynamicEQ:
		return dynamics.NewDynamicEQ(), nil
	case engine.ParametricEQ:
		return eq.NewParametric(), nil
	case engine.ConsoleEQ:
		return eq.NewConsole(), nil
	case engine.LadderFilter:
		return filter.NewLadder(), nil
	case engine.StateVariableFilter:
		return filter.NewStateVariable(), nil
	case engine.FormantFilter:
		return filter.NewFormant(), nil
	case engine.EnvelopeFilter:
		return filter.NewEnvelope(), nil
	case engine.CombResonator:
		return filter.NewComb(), nil
	case engine.TubePreamp:
		return distortion.NewTube(), nil
	case engine.TapeSaturator:
		return distortion.NewTape(), nil
	case engine.WaveFolder:
		return distortion.NewFolder(), nil
	case engine.HarmonicExciter:
		return distortion.NewExciter(), nil
	case engine.BitCrusher:
		return distortion.NewCrusher(), nil
	case engine.MultibandSaturator:
		return distortion.NewMultiband(), nil
	case engine.MuffFuzz:
		return distortion.NewMuff(), nil
	case engine.RodentDistortion:
		return distortion.NewRodent(), nil
	case engine.KStyleOverdrive:
		return distortion.NewKStyle(), nil
	case engine.ClassicTremolo:
		return modulation.NewTremolo(), nil
	case engine.HarmonicTremolo:
		return modulation.NewHarmonicTremolo(), nil
	case engine.ClassicChorus:
		return modulation.NewChorus(), nil
	case engine.ResonantChorus:
		return modulation.NewResonantChorus(), nil
	case engine.AnalogPhaser:
		return modulation.NewPhaser(), nil
	case engine.RingModulator:
		return modulation.NewRingMod(), nil
	case engine.FrequencyShifter:
		return modulation.NewFreqShifter(), nil
	case engine.RotarySpeaker:
		return modulation.NewRotary(), nil
	case engine.AutoPan:
		return modulation.NewAutoPan(), nil
	case engine.DimensionExpander:
		return modulation.NewDimension(), nil
	case engine.DigitalDelay:
		return echo.NewDigital(), nil
	case engine.TapeEcho:
		return echo.NewTape(), nil
	case engine.MagneticDrumEcho:
		return echo.NewDrum(), nil
	case engine.BucketBrigadeDelay:
		return echo.NewBBD(), nil
	case engine.BufferRepeat:
		return echo.NewRepeat(), nil
	case engine.PlateReverb:
		return reverb.NewPlate(), nil
	case engine.SpringReverb:
		return reverb.NewSpring(), nil
	case engine.HallReverb:
		return reverb.NewHall(), nil
	case engine.ShimmerReverb:
		return reverb.NewShimmer(), nil
	case engine.GatedReverb:
		return reverb.NewGated(), nil
	case engine.PitchShifter:
		return pitch.NewGrain(), nil
	case engine.SpectralPitch:
		return pitch.NewSpectral(), nil
	case engine.DetuneDoubler:
		return pitch.NewDoubler(), nil
	case engine.Harmonizer:
		return pitch.NewHarmonizer(), nil
	case engine.GranularCloud:
		return pitch.NewCloud(), nil
	case engine.SpectralFreeze:
		return spectral.NewFreeze(), nil
	case engine.SpectralGate:
		return spectral.NewGate(), nil
	case engine.MidSideProcessor:
		return utility.NewMidSide(), nil
	case engine.StereoWidener:
		return utility.NewWidener(), nil
	case engine.MonoMaker:
		return utility.NewMonoMaker(), nil
	case engine.GainUtility:
		return utility.NewGain(), nil
	case engine.PhaseRotator:
		return utility.NewRotator(), nil
	case engine.ChaosModulator:
		return utility.NewChaos(), nil
	case engine.FeedbackNetwork:
		return utility.NewFeedbackNet(), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownEngine, int(id))
	}
}
