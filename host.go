package gosfzplayer

import (
	"sync"

	"github.com/GeoffreyPlitt/debuggo"
)

var hostDebug = debuggo.Debug("sfizz:host")

// BasicHost is the reference VoiceHost: a fixed pool of voices, a
// shared MidiState, and a FilePool, driven one audio block at a time
// by RenderBlock. It owns region matching and voice stealing; a
// transport-specific front end (JACK, a demo CLI, a plugin shim) need
// only translate its own MIDI events into calls on this type.
type BasicHost struct {
	mu sync.Mutex

	config     HostConfig
	sampleRate float32
	blockSize  int

	regions   []*Region
	voices    []*Voice
	midiState *MidiState
	filePool  *FilePool
}

// NewBasicHost creates a host with cfg.MaxVoices idle voices and
// cfg.NumBackgroundThreads file-loading goroutines already running.
func NewBasicHost(cfg HostConfig, sampleRate float32, blockSize int) *BasicHost {
	h := &BasicHost{
		config:     cfg,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		midiState:  NewMidiState(),
		filePool:   NewFilePool(cfg.NumBackgroundThreads, cfg.MaxVoices),
	}
	h.filePool.SetOversamplingFactor(cfg.DefaultOversamplingFactor)
	h.voices = make([]*Voice, cfg.MaxVoices)
	for i := range h.voices {
		h.voices[i] = NewVoice(h)
	}
	return h
}

// SampleRate implements VoiceHost.
func (h *BasicHost) SampleRate() float32 { return h.sampleRate }

// SamplesPerBlock implements VoiceHost.
func (h *BasicHost) SamplesPerBlock() int { return h.blockSize }

// MidiState implements VoiceHost.
func (h *BasicHost) MidiState() *MidiState { return h.midiState }

// FilePool implements VoiceHost.
func (h *BasicHost) FilePool() *FilePool { return h.filePool }

// Config implements VoiceHost.
func (h *BasicHost) Config() HostConfig { return h.config }

// Close stops the host's background file loader goroutines.
func (h *BasicHost) Close() {
	h.filePool.Close()
}

// SetRegions replaces the host's region list, as loaded from an SFZ
// file. Not safe to call while a render is in flight.
func (h *BasicHost) SetRegions(regions []*Region) {
	h.mu.Lock()
	h.regions = regions
	h.mu.Unlock()
}

// NumPlayingVoices reports how many voices are currently sounding.
func (h *BasicHost) NumPlayingVoices() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, v := range h.voices {
		if !v.IsFree() {
			n++
		}
	}
	return n
}

// findFreeVoice returns an idle voice, or steals the quietest
// releasing voice if the pool is full. Matches the source engine's
// policy of only stealing voices that are already releasing.
func (h *BasicHost) findFreeVoice() *Voice {
	for _, v := range h.voices {
		if v.IsFree() {
			return v
		}
	}

	var quietest *Voice
	var quietestPower float32
	for _, v := range h.voices {
		if !v.CanBeStolen() {
			continue
		}
		power := v.MeanSquaredAverage()
		if quietest == nil || power < quietestPower {
			quietest = v
			quietestPower = power
		}
	}
	if quietest != nil {
		quietest.Reset()
	}
	return quietest
}

// NoteOn dispatches a note-on event to every matching region at
// sample-accurate delay within the block about to be rendered.
func (h *BasicHost) NoteOn(delay int, note int, velocity uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.midiState.NoteOnEvent(note, velocity)

	for _, region := range h.regions {
		if !region.MatchesNoteOn(note, velocity) {
			continue
		}
		voice := h.findFreeVoice()
		if voice == nil {
			hostDebug("no free voice for note %d, dropping", note)
			continue
		}
		if region.HasOffBy {
			for _, other := range h.voices {
				if other != voice {
					other.CheckOffGroup(delay, region.Group)
				}
			}
		}
		if err := voice.StartVoice(region, delay, note, velocity, TriggerNoteOn); err != nil {
			hostDebug("failed to start voice for %s: %v", region.Sample, err)
		}
	}
}

// NoteOff dispatches a note-off event to every voice currently playing
// that note, and to release-triggered regions that match it.
func (h *BasicHost) NoteOff(delay int, note int, velocity uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.midiState.NoteOffEvent(note, velocity)

	for _, v := range h.voices {
		v.RegisterNoteOff(delay, note, velocity)
	}

	for _, region := range h.regions {
		if !region.MatchesNoteOff(note) {
			continue
		}
		voice := h.findFreeVoice()
		if voice == nil {
			continue
		}
		if err := voice.StartVoice(region, delay, note, velocity, TriggerNoteOff); err != nil {
			hostDebug("failed to start release voice for %s: %v", region.Sample, err)
		}
	}
}

// ControlChange dispatches a CC event to the shared MidiState and to
// every active voice.
func (h *BasicHost) ControlChange(delay int, ccNumber int, ccValue uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.midiState.CCEvent(h.config.SustainCC, ccNumber, ccValue)
	for _, v := range h.voices {
		v.RegisterCC(delay, ccNumber, ccValue)
	}
}

// PitchWheel dispatches a pitch bend event to the shared MidiState and
// to every active voice.
func (h *BasicHost) PitchWheel(delay int, value int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.midiState.PitchBendEvent(value)
	for _, v := range h.voices {
		v.RegisterPitchWheel(delay, value)
	}
}

// RenderBlock mixes every active voice's output into out, which must
// have exactly SamplesPerBlock frames, then runs the file pool's
// per-block promise cleanup. Intended to be called once per audio
// callback from the render thread.
func (h *BasicHost) RenderBlock(out AudioView[float32], scratch AudioView[float32]) {
	out.Fill(0)

	h.mu.Lock()
	voices := h.voices
	h.mu.Unlock()

	for _, v := range voices {
		if v.IsFree() {
			continue
		}
		v.RenderBlock(scratch)
		out.Add(scratch)
	}

	h.filePool.CleanupPromises()
}
