// Command rackplay streams audio through the effects chain to the sound
// card. Engines can be swapped from a schedule while playback runs, which
// exercises the lock-free-for-audio swap path.
//
// Examples:
//
//	rackplay -i loop.wav -e "1=Tape Echo" --loop
//	rackplay --tone 220 -e 1=9 --swap "1=Ladder Filter@0" --swap "1=Plate Reverb@4"
package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/oto/v2"

	"github.com/cwbudde/algo-rack/dsp/signal"
	"github.com/cwbudde/algo-rack/engine"
	"github.com/cwbudde/algo-rack/internal/wave"
	"github.com/cwbudde/algo-rack/rack"
)

type cli struct {
	Input string `short:"i" type:"existingfile" optional:"" help:"Input WAV file. Omitted, a test tone plays."`

	State  string   `type:"existingfile" optional:"" help:"Chain state JSON to load."`
	Engine []string `short:"e" help:"Install an engine: slot=id or slot=name."`
	Set    []string `short:"s" help:"Store override: key=value."`
	Swap   []string `help:"Scheduled swap: slot=engine@seconds, applied during playback."`

	Tone     float64 `default:"220" help:"Test tone frequency in Hz."`
	Duration float64 `default:"10" help:"Playback length in seconds for synthesized input."`
	Rate     int     `default:"48000" help:"Sample rate for synthesized input."`
	Block    int     `default:"512" help:"Processing block size."`
	BPM      float64 `default:"120" help:"Transport tempo for synced engines."`
	Loop     bool    `help:"Loop the input until interrupted."`
}

type swapEvent struct {
	at   time.Duration
	slot int
	id   engine.ID
}

func main() {
	var args cli

	ctx := kong.Parse(&args,
		kong.Name("rackplay"),
		kong.Description("Realtime player for the six-slot effects chain."),
		kong.UsageOnError(),
	)

	ctx.FatalIfErrorf(run(&args))
}

func run(args *cli) error {
	src, err := loadInput(args)
	if err != nil {
		return err
	}

	h := rack.NewHost()
	if err := h.Prepare(float64(src.SampleRate), args.Block); err != nil {
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

		fmt.Printf("slot %d: %s\n", slot, id)
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

	swaps, err := parseSwaps(args.Swap)
	if err != nil {
		return err
	}

	otoCtx, ready, err := oto.NewContext(src.SampleRate, 2, 0)
	if err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	stream := &chainStream{
		host:  h,
		src:   src,
		block: args.Block,
		loop:  args.Loop,
	}

	player := otoCtx.NewPlayer(stream)
	player.Play()

	start := time.Now()
	for _, ev := range swaps {
		time.Sleep(time.Until(start.Add(ev.at)))

		if err := h.SetSlotEngine(ev.slot, ev.id); err != nil {
			fmt.Fprintf(os.Stderr, "swap failed: %v\n", err)
			continue
		}

		fmt.Printf("%6.2fs  slot %d -> %s (latency %d samples)\n",
			time.Since(start).Seconds(), ev.slot, ev.id, h.Latency())
	}

	for player.IsPlaying() {
		time.Sleep(50 * time.Millisecond)
	}

	return player.Close()
}

// chainStream pulls source audio through the host block by block and
// serves it to oto as interleaved float32 little endian.
type chainStream struct {
	host  *rack.Host
	src   *wave.File
	block int
	loop  bool

	pos     int
	pending []byte
	scratch [][]float64
}

func (s *chainStream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		if err := s.fill(); err != nil {
			return 0, err
		}
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]

	return n, nil
}

func (s *chainStream) fill() error {
	frames := s.src.Frames()

	if s.pos >= frames {
		if !s.loop {
			return io.EOF
		}

		s.pos = 0
	}

	end := s.pos + s.block
	if end > frames {
		end = frames
	}

	n := end - s.pos

	if s.scratch == nil {
		s.scratch = [][]float64{make([]float64, s.block), make([]float64, s.block)}
	}

	left := s.src.Channels[0]
	right := left
	if len(s.src.Channels) > 1 {
		right = s.src.Channels[1]
	}

	copy(s.scratch[0][:n], left[s.pos:end])
	copy(s.scratch[1][:n], right[s.pos:end])
	s.pos = end

	chunk := [][]float64{s.scratch[0][:n], s.scratch[1][:n]}
	s.host.Process(chunk)

	buf := make([]byte, n*2*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(float32(chunk[0][i])))
		binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(float32(chunk[1][i])))
	}

	s.pending = buf

	return nil
}

func loadInput(args *cli) (*wave.File, error) {
	if args.Input != "" {
		return wave.ReadFile(args.Input)
	}

	if args.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive: %f", args.Duration)
	}

	gen, err := signal.NewGenerator(float64(args.Rate))
	if err != nil {
		return nil, err
	}

	n := int(args.Duration * float64(args.Rate))

	mono, err := gen.Sine(args.Tone, 0.4, n)
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

func parseEngineArg(spec string) (int, engine.ID, error) {
	slotStr, engStr, ok := strings.Cut(spec, "=")
	if !ok {
		return 0, 0, fmt.Errorf("bad engine spec %q, want slot=engine", spec)
	}

	slot, err := strconv.Atoi(strings.TrimSpace(slotStr))
	if err != nil || slot < 1 || slot > rack.NumSlots {
		return 0, 0, fmt.Errorf("bad slot in %q", spec)
	}

	engStr = strings.TrimSpace(engStr)

	if n, err := strconv.Atoi(engStr); err == nil {
		id := engine.ID(n)
		if !id.Valid() {
			return 0, 0, fmt.Errorf("engine id out of range in %q", spec)
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

func parseSwaps(specs []string) ([]swapEvent, error) {
	events := make([]swapEvent, 0, len(specs))

	for _, spec := range specs {
		engSpec, atStr, ok := strings.Cut(spec, "@")
		if !ok {
			return nil, fmt.Errorf("bad --swap %q, want slot=engine@seconds", spec)
		}

		slot, id, err := parseEngineArg(engSpec)
		if err != nil {
			return nil, err
		}

		secs, err := strconv.ParseFloat(strings.TrimSpace(atStr), 64)
		if err != nil || secs < 0 {
			return nil, fmt.Errorf("bad --swap time %q", atStr)
		}

		events = append(events, swapEvent{
			at:   time.Duration(secs * float64(time.Second)),
			slot: slot,
			id:   id,
		})
	}

	sort.Slice(events, func(i, j int) bool { return events[i].at < events[j].at })

	return events, nil
}
