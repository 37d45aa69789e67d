package gosfzplayer

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestBasicHost(t *testing.T, blockSize int) *BasicHost {
	cfg := DefaultHostConfig()
	cfg.MaxVoices = 8
	cfg.NumBackgroundThreads = 1
	host := NewBasicHost(cfg, 44100, blockSize)
	t.Cleanup(host.Close)
	return host
}

func TestHostNoteOnGeneratorRegionStartsVoice(t *testing.T) {
	host := newTestBasicHost(t, 64)

	r := NewRegion()
	r.Sample = "*sine"
	host.SetRegions([]*Region{r})

	host.NoteOn(0, 60, 100)
	if got := host.NumPlayingVoices(); got != 1 {
		t.Fatalf("NumPlayingVoices() = %d, want 1", got)
	}
}

func TestHostRenderBlockMixesGeneratorOutput(t *testing.T) {
	host := newTestBasicHost(t, 64)

	r := NewRegion()
	r.Sample = "*sine"
	host.SetRegions([]*Region{r})
	host.NoteOn(0, 60, 100)

	out := NewAudioView([][]float32{make([]float32, 64), make([]float32, 64)})
	scratch := NewAudioView([][]float32{make([]float32, 64), make([]float32, 64)})
	host.RenderBlock(out, scratch)

	silent := true
	for _, s := range out.Channel(0) {
		if s != 0 {
			silent = false
			break
		}
	}
	if silent {
		t.Error("rendering a block with one active generator voice should produce nonzero output")
	}
}

func TestHostNoteOffReleasesMatchingVoice(t *testing.T) {
	host := newTestBasicHost(t, 64)

	r := NewRegion()
	r.Sample = "*sine"
	r.AmplitudeEG.Release = 1.0
	host.SetRegions([]*Region{r})

	host.NoteOn(0, 60, 100)
	out := NewAudioView([][]float32{make([]float32, 64), make([]float32, 64)})
	scratch := NewAudioView([][]float32{make([]float32, 64), make([]float32, 64)})
	host.RenderBlock(out, scratch)

	host.NoteOff(0, 60, 0)

	found := false
	for _, v := range host.voices {
		if v.CanBeStolen() {
			found = true
		}
	}
	if !found {
		t.Error("expected one voice to be in its release segment after NoteOff")
	}
}

func TestHostVoiceStealingPicksReleasingVoice(t *testing.T) {
	host := newTestBasicHost(t, 64)
	host.config.MaxVoices = 1
	host.voices = host.voices[:1]

	r := NewRegion()
	r.Sample = "*sine"
	r.AmplitudeEG.Release = 5.0
	host.SetRegions([]*Region{r})

	host.NoteOn(0, 60, 100)
	out := NewAudioView([][]float32{make([]float32, 64), make([]float32, 64)})
	scratch := NewAudioView([][]float32{make([]float32, 64), make([]float32, 64)})
	host.RenderBlock(out, scratch)

	host.NoteOff(0, 60, 0)
	host.RenderBlock(out, scratch)

	host.NoteOn(0, 64, 100)
	if got := host.NumPlayingVoices(); got != 1 {
		t.Fatalf("NumPlayingVoices() = %d, want 1 (the lone voice should be stolen, not dropped)", got)
	}
}

func TestHostOutOfRangeNoteOnDoesNotStartVoice(t *testing.T) {
	host := newTestBasicHost(t, 64)

	r := NewRegion()
	r.Sample = "*sine"
	r.KeyRange = Range[uint8]{60, 60}
	host.SetRegions([]*Region{r})

	host.NoteOn(0, 61, 100)
	if got := host.NumPlayingVoices(); got != 0 {
		t.Errorf("NumPlayingVoices() = %d, want 0 for a non-matching note", got)
	}
}

func TestHostSampleBackedVoiceEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	writeTestWAV(t, path, sineWave(2000, 220, 44100), 44100)

	host := newTestBasicHost(t, 128)
	host.filePool.SetRootDirectory(dir)

	r := NewRegion()
	r.Sample = "tone.wav"
	r.ApplyOpcode("end", "1999")
	host.SetRegions([]*Region{r})

	host.NoteOn(0, 60, 100)
	host.filePool.WaitForBackgroundLoading()

	out := NewAudioView([][]float32{make([]float32, 128), make([]float32, 128)})
	scratch := NewAudioView([][]float32{make([]float32, 128), make([]float32, 128)})
	host.RenderBlock(out, scratch)

	if host.NumPlayingVoices() != 1 {
		t.Fatalf("NumPlayingVoices() = %d, want 1", host.NumPlayingVoices())
	}
}

func TestHostLargeOffsetPreloadsEnoughToAvoidImmediateRelease(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	writeTestWAV(t, path, sineWave(20000, 220, 44100), 44100)

	host := newTestBasicHost(t, 128)
	host.filePool.SetRootDirectory(dir)
	host.filePool.SetPreloadSize(1000)

	r := NewRegion()
	r.Sample = "tone.wav"
	r.ApplyOpcode("offset", "15000")
	host.SetRegions([]*Region{r})

	host.NoteOn(0, 60, 100)

	out := NewAudioView([][]float32{make([]float32, 128), make([]float32, 128)})
	scratch := NewAudioView([][]float32{make([]float32, 128), make([]float32, 128)})
	host.RenderBlock(out, scratch)

	if host.NumPlayingVoices() != 1 {
		t.Fatalf("NumPlayingVoices() = %d, want 1 (voice should not self-release on its first block because the region's offset= opcode exceeds the default preload window)", host.NumPlayingVoices())
	}
}

func TestHostControlChangeReachesActiveVoices(t *testing.T) {
	host := newTestBasicHost(t, 64)

	r := NewRegion()
	r.Sample = "*sine"
	r.ApplyOpcode("amplitude_oncc1", "50")
	host.SetRegions([]*Region{r})

	host.NoteOn(0, 60, 100)
	host.ControlChange(0, 1, 100)

	if got := host.midiState.CCValue(1); got != 100 {
		t.Errorf("CCValue(1) = %d, want 100", got)
	}
}

func TestHostSustainPedalLatchDefersRelease(t *testing.T) {
	host := newTestBasicHost(t, 64)

	r := NewRegion()
	r.Sample = "*sine"
	r.AmplitudeEG.Release = 1.0
	host.SetRegions([]*Region{r})

	host.ControlChange(0, SustainCC, 127)
	host.NoteOn(0, 60, 100)

	out := NewAudioView([][]float32{make([]float32, 64), make([]float32, 64)})
	scratch := NewAudioView([][]float32{make([]float32, 64), make([]float32, 64)})
	host.RenderBlock(out, scratch)

	host.NoteOff(0, 60, 0)
	if host.NumPlayingVoices() != 1 {
		t.Error("note-off while sustain is held should not release the voice")
	}

	host.ControlChange(0, SustainCC, 0)
	found := false
	for _, v := range host.voices {
		if v.CanBeStolen() {
			found = true
		}
	}
	if !found {
		t.Error("lifting the sustain pedal after note-off should release the held voice")
	}
}

func TestHostCloseStopsBackgroundLoaders(t *testing.T) {
	cfg := DefaultHostConfig()
	cfg.NumBackgroundThreads = 1
	host := NewBasicHost(cfg, 44100, 64)
	done := make(chan struct{})
	go func() {
		host.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return promptly")
	}
}
