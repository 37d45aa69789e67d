package gosfzplayer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/GeoffreyPlitt/debuggo"
	"github.com/go-audio/riff"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

var decoderDebug = debuggo.Debug("sfizz:pcmdecoder")

// FileInformation describes a decoded sample file's shape: everything
// a Region and Voice need to know to play it, independent of how it
// was decoded.
type FileInformation struct {
	SampleRate float32
	Channels   int
	Frames     uint32
	HasLoop    bool
	LoopStart  uint32
	LoopEnd    uint32
}

// pcmDecoder turns a sample file on disk into de-interleaved per-channel
// float32 buffers plus its FileInformation. Implementations never touch
// the audio thread; they run on the FilePool's background loader
// goroutines or synchronously during preload.
//
// maxFrames bounds how many PCM frames decode actually reads and
// converts; 0 means the whole file. FileInformation.Frames and loop
// points always describe the whole file, read from its header/metadata
// chunks, regardless of how much PCM data was actually decoded — a
// bounded decode still reports accurate totals.
type pcmDecoder interface {
	decode(path string, maxFrames uint32) (channels [][]float32, info FileInformation, err error)
}

func decoderFor(path string) (pcmDecoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return wavDecoder{}, nil
	case ".flac":
		return flacDecoder{}, nil
	default:
		return nil, fmt.Errorf("sfizz: unsupported sample format %q", filepath.Ext(path))
	}
}

type wavDecoder struct{}

// decode reads path's fmt/data/smpl chunks in a single pass using
// go-audio/riff directly, rather than go-audio/wav's higher-level
// FullPCMBuffer, so that a bounded maxFrames can stop short of reading
// the entire data chunk: the sample pool's synchronous preload never
// needs more than preload_size+max_offset frames, and having the data
// chunk's declared size up front lets FileInformation.Frames report
// the true total regardless of how much PCM was actually decoded.
func (wavDecoder) decode(path string, maxFrames uint32) ([][]float32, FileInformation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, FileInformation{}, err
	}
	defer f.Close()

	parser := riff.New(f)
	if err := parser.ParseHeaders(); err != nil {
		return nil, FileInformation{}, fmt.Errorf("sfizz: reading RIFF header of %s: %w", path, err)
	}

	var fmtHeader struct {
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}
	haveFmt := false
	var out [][]float32
	info := FileInformation{}

	for {
		chunk, err := parser.NextChunk()
		if err != nil {
			break
		}

		switch chunk.ID {
		case [4]byte{'f', 'm', 't', ' '}:
			if err := binary.Read(chunk, binary.LittleEndian, &fmtHeader); err != nil {
				return nil, FileInformation{}, fmt.Errorf("sfizz: reading fmt chunk of %s: %w", path, err)
			}
			haveFmt = true

		case [4]byte{'d', 'a', 't', 'a'}:
			if !haveFmt {
				return nil, FileInformation{}, fmt.Errorf("sfizz: %s has a data chunk before its fmt chunk", path)
			}
			channels := int(fmtHeader.NumChannels)
			if channels < 1 {
				channels = 1
			}
			blockAlign := int(fmtHeader.BlockAlign)
			if blockAlign < 1 {
				blockAlign = channels * int(fmtHeader.BitsPerSample) / 8
			}
			totalFrames := uint32(chunk.Size) / uint32(blockAlign)
			info.Frames = totalFrames

			readFrames := totalFrames
			if maxFrames > 0 && maxFrames < readFrames {
				readFrames = maxFrames
			}

			out = make([][]float32, channels)
			for c := range out {
				out[c] = make([]float32, 0, readFrames)
			}
			scale := pcmScale(int(fmtHeader.BitsPerSample))
			limited := io.LimitReader(chunk, int64(readFrames)*int64(blockAlign))
			if err := decodeWavPCM(limited, out, channels, int(fmtHeader.BitsPerSample), scale); err != nil {
				return nil, FileInformation{}, fmt.Errorf("sfizz: decoding PCM in %s: %w", path, err)
			}

		case [4]byte{'s', 'm', 'p', 'l'}:
			if start, end, ok := parseSmplChunk(chunk); ok {
				info.HasLoop = true
				info.LoopStart = start
				info.LoopEnd = end
			}
		}

		chunk.Drain()
	}

	if !haveFmt || out == nil {
		return nil, FileInformation{}, fmt.Errorf("sfizz: %s is missing a fmt or data chunk", path)
	}

	info.SampleRate = float32(fmtHeader.SampleRate)
	info.Channels = len(out)

	return out, info, nil
}

// decodeWavPCM reads interleaved PCM samples from r, converting each to
// float32 and appending to the matching channel in out, until r is
// exhausted.
func decodeWavPCM(r io.Reader, out [][]float32, channels, bitsPerSample int, scale float32) error {
	bytesPerSample := bitsPerSample / 8
	buf := make([]byte, bytesPerSample)
	for {
		for c := 0; c < channels; c++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					return nil
				}
				return err
			}

			var v int32
			switch bytesPerSample {
			case 1:
				v = int32(int8(buf[0]))
			case 2:
				v = int32(int16(binary.LittleEndian.Uint16(buf)))
			case 3:
				raw := int32(buf[0]) | int32(buf[1])<<8 | int32(buf[2])<<16
				if raw&0x800000 != 0 {
					raw |= ^0xFFFFFF
				}
				v = raw
			case 4:
				v = int32(binary.LittleEndian.Uint32(buf))
			default:
				return fmt.Errorf("sfizz: unsupported WAV bit depth %d", bitsPerSample)
			}
			out[c] = append(out[c], float32(v)/scale)
		}
	}
}

func pcmScale(bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return 128
	case 24:
		return 8388608
	case 32:
		return 2147483648
	default:
		return 32768
	}
}

// parseSmplChunk extracts the first loop's start/end frame from a
// `smpl` chunk, the mechanism SFZ's `loop_mode=loop_continuous` relies
// on when the SFZ file itself doesn't specify loop_start/loop_end.
func parseSmplChunk(chunk *riff.Chunk) (start, end uint32, ok bool) {
	var header struct {
		Manufacturer, Product            uint32
		SamplePeriod                     uint32
		MIDIUnityNote, MIDIPitchFraction uint32
		SMPTEFormat, SMPTEOffset         uint32
		NumSampleLoops, SamplerDataBytes uint32
	}
	if err := binary.Read(chunk, binary.LittleEndian, &header); err != nil {
		return 0, 0, false
	}
	if header.NumSampleLoops == 0 {
		return 0, 0, false
	}

	var loop struct {
		CuePointID, Type    uint32
		Start, End          uint32
		Fraction, PlayCount uint32
	}
	if err := binary.Read(chunk, binary.LittleEndian, &loop); err != nil {
		return 0, 0, false
	}
	return loop.Start, loop.End, true
}

type flacDecoder struct{}

// decode stops parsing frames once maxFrames have been decoded, the
// same bound the WAV path applies, so a synchronous preload never
// parses more of the file than it needs to. FLAC's STREAMINFO block
// gives the stream's total sample count up front, so
// FileInformation.Frames is still accurate even when decode stops
// early.
func (flacDecoder) decode(path string, maxFrames uint32) ([][]float32, FileInformation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, FileInformation{}, err
	}
	defer f.Close()

	stream, err := flac.NewSeek(f)
	if err != nil {
		return nil, FileInformation{}, fmt.Errorf("sfizz: opening FLAC %s: %w", path, err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	scale := float32(int64(1) << (info.BitsPerSample - 1))

	out := make([][]float32, channels)
	totalFrames := uint32(info.NSamples)
	var decoded uint32

	for {
		if maxFrames > 0 && decoded >= maxFrames {
			break
		}
		fr, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, FileInformation{}, fmt.Errorf("sfizz: decoding FLAC %s: %w", path, err)
		}
		decoded += uint32(appendFlacFrame(out, fr, channels, scale))
	}

	if totalFrames == 0 {
		// Unknown-length stream (legal per the FLAC format, though rare
		// in practice): falls back to however much was actually
		// decoded, which undercounts Frames if maxFrames cut decoding
		// short. Every encoder seen in practice populates NSamples.
		totalFrames = decoded
	}

	return out, FileInformation{
		SampleRate: float32(info.SampleRate),
		Channels:   channels,
		Frames:     totalFrames,
	}, nil
}

func appendFlacFrame(out [][]float32, fr *frame.Frame, channels int, scale float32) int {
	n := len(fr.Subframes[0].Samples)
	for ch := 0; ch < channels; ch++ {
		src := fr.Subframes[ch].Samples
		for i := 0; i < n; i++ {
			out[ch] = append(out[ch], float32(src[i])/scale)
		}
	}
	return n
}
