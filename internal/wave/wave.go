// Package wave reads and writes RIFF/WAVE files in the two layouts the
// command-line tools need: 16-bit PCM and 32-bit float. Multi-channel
// data is deinterleaved into one slice per channel.
package wave

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cwbudde/algo-rack/dsp/dither"
)

const (
	formatPCM   = 1
	formatFloat = 3

	maxChannels = 64
	maxDataSize = 1 << 31
)

// File is decoded audio plus the rate it was sampled at.
type File struct {
	SampleRate int
	Channels   [][]float64
}

// Frames reports the per-channel sample count.
func (f *File) Frames() int {
	if len(f.Channels) == 0 {
		return 0
	}

	return len(f.Channels[0])
}

type riffHeader struct {
	ChunkID   [4]byte
	ChunkSize uint32
	Format    [4]byte
}

type fmtChunk struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// ReadFile decodes a WAV file from disk.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses a RIFF/WAVE stream. Chunks other than fmt and data are
// skipped.
func Decode(r io.Reader) (*File, error) {
	var hdr riffHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("wave: read header: %w", err)
	}

	if string(hdr.ChunkID[:]) != "RIFF" || string(hdr.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("wave: not a RIFF/WAVE stream")
	}

	var (
		format  fmtChunk
		haveFmt bool
	)

	for {
		var chunkID [4]byte
		if err := binary.Read(r, binary.LittleEndian, &chunkID); err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("wave: no data chunk")
			}

			return nil, fmt.Errorf("wave: read chunk id: %w", err)
		}

		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("wave: read chunk size: %w", err)
		}

		switch string(chunkID[:]) {
		case "fmt ":
			if err := binary.Read(r, binary.LittleEndian, &format); err != nil {
				return nil, fmt.Errorf("wave: read fmt chunk: %w", err)
			}

			haveFmt = true

			if rest := int64(size) - 16; rest > 0 {
				if err := skip(r, rest); err != nil {
					return nil, err
				}
			}
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("wave: data chunk before fmt chunk")
			}

			return decodeData(r, format, size)
		default:
			// Chunks are word aligned.
			if err := skip(r, int64(size)+int64(size&1)); err != nil {
				return nil, err
			}
		}
	}
}

func skip(r io.Reader, n int64) error {
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("wave: skip chunk: %w", err)
	}

	return nil
}

func decodeData(r io.Reader, format fmtChunk, size uint32) (*File, error) {
	nch := int(format.NumChannels)
	if nch < 1 || nch > maxChannels {
		return nil, fmt.Errorf("wave: unsupported channel count %d", nch)
	}

	if size > maxDataSize {
		return nil, fmt.Errorf("wave: data chunk too large: %d", size)
	}

	bytesPerSample := int(format.BitsPerSample) / 8
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("wave: zero bits per sample")
	}

	frames := int(size) / (bytesPerSample * nch)

	raw := make([]byte, int(size))
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("wave: read data: %w", err)
	}

	out := &File{SampleRate: int(format.SampleRate)}
	for ch := 0; ch < nch; ch++ {
		out.Channels = append(out.Channels, make([]float64, frames))
	}

	switch {
	case format.AudioFormat == formatPCM && format.BitsPerSample == 16:
		for i := 0; i < frames; i++ {
			for ch := 0; ch < nch; ch++ {
				off := (i*nch + ch) * 2
				v := int16(binary.LittleEndian.Uint16(raw[off:]))
				out.Channels[ch][i] = float64(v) / 32768
			}
		}
	case format.AudioFormat == formatPCM && format.BitsPerSample == 24:
		for i := 0; i < frames; i++ {
			for ch := 0; ch < nch; ch++ {
				off := (i*nch + ch) * 3
				v := int32(raw[off]) | int32(raw[off+1])<<8 | int32(raw[off+2])<<16
				v = v << 8 >> 8 // sign extend
				out.Channels[ch][i] = float64(v) / 8388608
			}
		}
	case format.AudioFormat == formatFloat && format.BitsPerSample == 32:
		for i := 0; i < frames; i++ {
			for ch := 0; ch < nch; ch++ {
				off := (i*nch + ch) * 4
				bits := binary.LittleEndian.Uint32(raw[off:])
				out.Channels[ch][i] = float64(math.Float32frombits(bits))
			}
		}
	default:
		return nil, fmt.Errorf("wave: unsupported format %d at %d bits",
			format.AudioFormat, format.BitsPerSample)
	}

	return out, nil
}

// WriteFile encodes 16-bit PCM to disk.
func WriteFile(path string, f *File) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Encode(out, f); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// Encode writes 16-bit PCM with TPDF dither. Samples outside [-1, 1]
// clip at the rails. The dither seed is fixed so output is reproducible.
func Encode(w io.Writer, f *File) error {
	nch := len(f.Channels)
	if nch == 0 {
		return fmt.Errorf("wave: no channels")
	}

	frames := f.Frames()
	dataSize := uint32(frames * nch * 2)

	if err := writeHeader(w, f.SampleRate, nch, 16, formatPCM, dataSize); err != nil {
		return err
	}

	quants := make([]*dither.Quantizer, nch)
	for ch := range quants {
		q, err := dither.NewQuantizer(16, dither.WithSeed(uint64(0x77a5+ch)))
		if err != nil {
			return err
		}

		quants[ch] = q
	}

	buf := make([]byte, frames*nch*2)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < nch; ch++ {
			s := int16(quants[ch].ProcessInteger(f.Channels[ch][i]))
			binary.LittleEndian.PutUint16(buf[(i*nch+ch)*2:], uint16(s))
		}
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("wave: write data: %w", err)
	}

	return nil
}

func writeHeader(w io.Writer, sampleRate, nch, bits int, audioFormat uint16, dataSize uint32) error {
	hdr := riffHeader{ChunkSize: 36 + dataSize}
	copy(hdr.ChunkID[:], "RIFF")
	copy(hdr.Format[:], "WAVE")

	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("wave: write header: %w", err)
	}

	if _, err := w.Write([]byte("fmt ")); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(16)); err != nil {
		return err
	}

	chunk := fmtChunk{
		AudioFormat:   audioFormat,
		NumChannels:   uint16(nch),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * nch * bits / 8),
		BlockAlign:    uint16(nch * bits / 8),
		BitsPerSample: uint16(bits),
	}

	if err := binary.Write(w, binary.LittleEndian, chunk); err != nil {
		return fmt.Errorf("wave: write fmt chunk: %w", err)
	}

	if _, err := w.Write([]byte("data")); err != nil {
		return err
	}

	return binary.Write(w, binary.LittleEndian, dataSize)
}
