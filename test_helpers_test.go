package gosfzplayer

import (
	"encoding/binary"
	"math"
	"os"
	"testing"
)

// writeTestWAV writes data as a 16-bit PCM mono WAV file, the same
// hand-rolled RIFF writer the render tests always used, so decoder
// tests never depend on a round trip through an encoder library.
func writeTestWAV(t *testing.T, path string, data []float32, sampleRate int) {
	t.Helper()

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating test WAV %s: %v", path, err)
	}
	defer file.Close()

	const numChannels = 1
	const bitsPerSample = 16
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := len(data) * blockAlign

	file.WriteString("RIFF")
	binary.Write(file, binary.LittleEndian, uint32(36+dataSize))
	file.WriteString("WAVE")

	file.WriteString("fmt ")
	binary.Write(file, binary.LittleEndian, uint32(16))
	binary.Write(file, binary.LittleEndian, uint16(1))
	binary.Write(file, binary.LittleEndian, uint16(numChannels))
	binary.Write(file, binary.LittleEndian, uint32(sampleRate))
	binary.Write(file, binary.LittleEndian, uint32(byteRate))
	binary.Write(file, binary.LittleEndian, uint16(blockAlign))
	binary.Write(file, binary.LittleEndian, uint16(bitsPerSample))

	file.WriteString("data")
	binary.Write(file, binary.LittleEndian, uint32(dataSize))

	for _, s := range data {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		binary.Write(file, binary.LittleEndian, int16(s*32767))
	}
}

// writeTestWAVWithLoop writes the same 16-bit PCM mono WAV as
// writeTestWAV, followed by a minimal smpl chunk declaring one sample
// loop from loopStart to loopEnd.
func writeTestWAVWithLoop(t *testing.T, path string, data []float32, sampleRate int, loopStart, loopEnd uint32) {
	t.Helper()

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating test WAV %s: %v", path, err)
	}
	defer file.Close()

	const numChannels = 1
	const bitsPerSample = 16
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := len(data) * blockAlign
	const smplChunkSize = 9*4 + 6*4 // header fields + one loop record

	file.WriteString("RIFF")
	binary.Write(file, binary.LittleEndian, uint32(36+dataSize+8+smplChunkSize))
	file.WriteString("WAVE")

	file.WriteString("fmt ")
	binary.Write(file, binary.LittleEndian, uint32(16))
	binary.Write(file, binary.LittleEndian, uint16(1))
	binary.Write(file, binary.LittleEndian, uint16(numChannels))
	binary.Write(file, binary.LittleEndian, uint32(sampleRate))
	binary.Write(file, binary.LittleEndian, uint32(byteRate))
	binary.Write(file, binary.LittleEndian, uint16(blockAlign))
	binary.Write(file, binary.LittleEndian, uint16(bitsPerSample))

	file.WriteString("data")
	binary.Write(file, binary.LittleEndian, uint32(dataSize))
	for _, s := range data {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		binary.Write(file, binary.LittleEndian, int16(s*32767))
	}

	file.WriteString("smpl")
	binary.Write(file, binary.LittleEndian, uint32(smplChunkSize))
	binary.Write(file, binary.LittleEndian, [9]uint32{0, 0, 0, 60, 0, 0, 0, 1, 0}) // manufacturer..numSampleLoops=1, samplerData=0
	binary.Write(file, binary.LittleEndian, [6]uint32{0, 0, loopStart, loopEnd, 0, 0})
}

// sineWave returns n samples of a sine wave at freqHz, sampled at
// sampleRate, used by decoder and render tests that need real-looking
// PCM data rather than silence.
func sineWave(n int, freqHz, sampleRate float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freqHz * float64(i) / sampleRate))
	}
	return out
}

// createTestSfzFile writes content to a temp .sfz file and returns its
// path plus a cleanup func.
func createTestSfzFile(t *testing.T, content string) (string, func()) {
	t.Helper()
	f, err := os.CreateTemp("", "test_*.sfz")
	if err != nil {
		t.Fatalf("creating temp SFZ file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		t.Fatalf("writing temp SFZ file: %v", err)
	}
	f.Close()
	return f.Name(), func() { os.Remove(f.Name()) }
}

// testHost is a minimal VoiceHost for unit tests that don't need a full
// BasicHost: a fixed sample rate/block size, a fresh MidiState, and an
// already-running FilePool.
type testHost struct {
	sampleRate float32
	blockSize  int
	midi       *MidiState
	pool       *FilePool
	cfg        HostConfig
}

func newTestHost(sampleRate float32, blockSize int) *testHost {
	cfg := DefaultHostConfig()
	return &testHost{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		midi:       NewMidiState(),
		pool:       NewFilePool(1, cfg.MaxVoices),
		cfg:        cfg,
	}
}

func (h *testHost) SampleRate() float32   { return h.sampleRate }
func (h *testHost) SamplesPerBlock() int  { return h.blockSize }
func (h *testHost) MidiState() *MidiState { return h.midi }
func (h *testHost) FilePool() *FilePool   { return h.pool }
func (h *testHost) Config() HostConfig    { return h.cfg }
