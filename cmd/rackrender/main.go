// Command rackrender runs the effects chain offline over a WAV file or a
// synthesized test signal and writes the result as 16-bit WAV.
//
// Examples:
//
//	rackrender -i guitar.wav -o wet.wav -e "1=Tape Echo" -s slot1_mix=0.4
//	rackrender --impulse -e 1=40 -o plate.wav
//	rackrender --tone 440 -e "1=Pitch Shifter" -s slot1_param1=1 --spectrum
//	rackrender --state chain.json -i dry.wav -o wet.wav
package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/cwbudde/algo-rack/dsp/signal"
	"github.com/cwbudde/algo-rack/dsp/spectrum"
	"github.com/cwbudde/algo-rack/engine"
	"github.com/cwbudde/algo-rack/internal/wave"
	"github.com/cwbudde/algo-rack/rack"
)

type cli struct {
	Input  string `short:"i" type:"existingfile" optional:"" help:"Input WAV file. Omitted, a test signal is synthesized."`
	Output string `short:"o" default:"out.wav" help:"Output WAV path."`

	State     string `type:"existingfile" optional:"" help:"Chain state JSON to load before rendering."`
	SaveState string `optional:"" help:"Write the final chain state JSON to this path."`

	Engine []string `short:"e" help:"Install an engine: slot=id or slot=name, e.g. 1=33 or '2=Plate Reverb'."`
	Set    []string `short:"s" help:"Store override: key=value, e.g. slot1_mix=0.5."`

	Tone     float64 `default:"440" help:"Test tone frequency in Hz."`
	Impulse  bool    `help:"Synthesize an impulse instead of a tone."`
	Sweep    bool    `help:"Synthesize a 20 Hz..20 kHz sweep instead of a tone."`
	Noise    bool    `help:"Synthesize white noise instead of a tone."`
	Duration float64 `default:"2" help:"Synthesized input length in seconds."`
	Rate     int     `default:"48000" help:"Sample rate for synthesized input."`
	Block    int     `default:"512" help:"Processing block size."`
	BPM      float64 `default:"120" help:"Transport tempo for synced engines."`

	Spectrum bool `help:"Print the dominant output frequency."`
	List     bool `help:"List engine IDs and exit."`
}

func main() {
	var args cli

	ctx := kong.Parse(&args,
		kong.Name("rackrender"),
		kong.Description("Offline renderer for the six-slot effects chain."),
		kong.UsageOnError(),
	)

	ctx.FatalIfErrorf(run(&args))
}

func run(args *cli) error {
	if args.List {
		for id := engine.ID(0); id < engine.NumIDs; id++ {
			fmt.Printf("%2d  %s\n", int(id), id)
		}

		return nil
	}

	input, err := loadInput(args)
	if err != nil {
		return err
	}

	h := rack.NewHost()
	if err := h.Prepare(float64(input.SampleRate), args.Block); err != nil {
		return err
	}

	h.SetTransport(engine.TransportInfo{BPM: args.BPM, TimeSigNum: 4, TimeSigDen: 4})

	if args.State != "" {
		data, err := os.ReadFile(args.State)
		if err != nil {
			return err
		}

		if err := h.SetState(data); err != nil {
			return err
		}
	}

	for _, spec := range args.Engine {
		slot, id, err := parseEngineArg(spec)
		if err != nil {
			return err
		}

		if err := h.SetSlotEngine(slot, id); err != nil {
			return err
		}
	}

	for _, kv := range args.Set {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("bad --set %q, want key=value", kv)
		}

		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("bad --set value %q: %w", value, err)
		}

		if err := h.Store().Set(key, v); err != nil {
			return err
		}
	}

	if err := h.SyncEngines(); err != nil {
		return err
	}

	render(h, input.Channels, args.Block)

	inPeak, outPeak := h.Peaks()
	fmt.Printf("rendered %d frames at %d Hz\n", input.Frames(), input.SampleRate)
	fmt.Printf("peak in %.1f dBFS, peak out %.1f dBFS, latency %d samples\n",
		dbfs(inPeak), dbfs(outPeak), h.Latency())

	for slot := 1; slot <= rack.NumSlots; slot++ {
		if id := h.SlotEngine(slot); id != engine.None {
			fmt.Printf("slot %d: %s (activity %.4f)\n", slot, id, h.SlotActivity(slot))
		}
	}

	if args.Spectrum {
		freq, err := spectrum.PeakFrequency(input.Channels[0], float64(input.SampleRate))
		if err != nil {
			return err
		}

		fmt.Printf("dominant output frequency %.1f Hz\n", freq)
	}

	if err := wave.WriteFile(args.Output, input); err != nil {
		return err
	}

	if args.SaveState != "" {
		data, err := h.State()
		if err != nil {
			return err
		}

		if err := os.WriteFile(args.SaveState, data, 0o644); err != nil {
			return err
		}
	}

	return nil
}

func loadInput(args *cli) (*wave.File, error) {
	if args.Input != "" {
		return wave.ReadFile(args.Input)
	}

	if args.Duration <= 0 || args.Duration > 600 {
		return nil, fmt.Errorf("duration must be in (0, 600] seconds: %f", args.Duration)
	}

	gen, err := signal.NewGenerator(float64(args.Rate))
	if err != nil {
		return nil, err
	}

	n := int(args.Duration * float64(args.Rate))

	var mono []float64

	switch {
	case args.Impulse:
		mono, err = gen.Impulse(0.9, n)
	case args.Sweep:
		mono, err = gen.Sweep(20, 20000, 0.5, n)
	case args.Noise:
		mono, err = gen.WhiteNoise(0.5, n)
	default:
		mono, err = gen.Sine(args.Tone, 0.5, n)
	}

	if err != nil {
		return nil, err
	}

	right := make([]float64, n)
	copy(right, mono)

	return &wave.File{
		SampleRate: args.Rate,
		Channels:   [][]float64{mono, right},
	}, nil
}

func render(h *rack.Host, channels [][]float64, block int) {
	n := len(channels[0])

	for start := 0; start < n; start += block {
		end := start + block
		if end > n {
			end = n
		}

		chunk := make([][]float64, len(channels))
		for ch := range channels {
			chunk[ch] = channels[ch][start:end]
		}

		h.Process(chunk)
	}
}

// parseEngineArg accepts "slot=id" with a numeric or display-name engine.
func parseEngineArg(spec string) (int, engine.ID, error) {
	slotStr, engStr, ok := strings.Cut(spec, "=")
	if !ok {
		return 0, 0, fmt.Errorf("bad --engine %q, want slot=engine", spec)
	}

	slot, err := strconv.Atoi(strings.TrimSpace(slotStr))
	if err != nil || slot < 1 || slot > rack.NumSlots {
		return 0, 0, fmt.Errorf("bad slot in --engine %q", spec)
	}

	engStr = strings.TrimSpace(engStr)

	if n, err := strconv.Atoi(engStr); err == nil {
		id := engine.ID(n)
		if !id.Valid() {
			return 0, 0, fmt.Errorf("engine id out of range in --engine %q", spec)
		}

		return slot, id, nil
	}

	for id := engine.ID(0); id < engine.NumIDs; id++ {
		if strings.EqualFold(id.String(), engStr) {
			return slot, id, nil
		}
	}

	return 0, 0, fmt.Errorf("unknown engine %q", engStr)
}

func dbfs(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(v)
}
