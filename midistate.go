package gosfzplayer

import "time"

// MidiState tracks the live MIDI controller state a region's triggers
// and modulation opcodes are evaluated against. It is owned by the
// host and updated from the same thread that drives voice rendering;
// nothing in it needs to be safe for concurrent access.
type MidiState struct {
	lastNoteVelocities [128]uint8
	noteOnTimes        [128]time.Time
	activeNotes        int

	cc          [NumCCs]uint8
	pitchBend   int
	aftertouch  uint8
	sustainedCC bool
}

// NewMidiState returns a MidiState with every controller at its
// power-on default.
func NewMidiState() *MidiState {
	m := &MidiState{}
	m.Reset()
	return m
}

// NoteOnEvent records a note-on so later NoteDuration/NoteVelocity
// queries can answer against it.
func (m *MidiState) NoteOnEvent(noteNumber int, velocity uint8) {
	if noteNumber < 0 || noteNumber >= 128 {
		return
	}
	m.lastNoteVelocities[noteNumber] = velocity
	m.noteOnTimes[noteNumber] = time.Now()
	m.activeNotes++
}

// NoteOffEvent records a note-off.
func (m *MidiState) NoteOffEvent(noteNumber int, velocity uint8) {
	_ = velocity
	if noteNumber < 0 || noteNumber >= 128 {
		return
	}
	if m.activeNotes > 0 {
		m.activeNotes--
	}
}

// NoteDuration returns the time elapsed since noteNumber's last note-on.
func (m *MidiState) NoteDuration(noteNumber int) float32 {
	if noteNumber < 0 || noteNumber >= 128 {
		return 0
	}
	if m.noteOnTimes[noteNumber].IsZero() {
		return 0
	}
	return float32(time.Since(m.noteOnTimes[noteNumber]).Seconds())
}

// NoteVelocity returns the velocity noteNumber was last struck with.
func (m *MidiState) NoteVelocity(noteNumber int) uint8 {
	if noteNumber < 0 || noteNumber >= 128 {
		return 0
	}
	return m.lastNoteVelocities[noteNumber]
}

// ActiveNotes returns the number of notes currently held down.
func (m *MidiState) ActiveNotes() int {
	return m.activeNotes
}

// PitchBendEvent records a pitch bend value in [-8192, 8192].
func (m *MidiState) PitchBendEvent(value int) {
	m.pitchBend = clampInt(value, -8192, 8192)
}

// PitchBend returns the current raw pitch bend value.
func (m *MidiState) PitchBend() int {
	return m.pitchBend
}

// AftertouchEvent records a channel aftertouch value.
func (m *MidiState) AftertouchEvent(value uint8) {
	m.aftertouch = value
}

// Aftertouch returns the current channel aftertouch value.
func (m *MidiState) Aftertouch() uint8 {
	return m.aftertouch
}

// CCEvent records a controller change and, for the sustain controller,
// updates the latched pedal-down state used by the release path.
func (m *MidiState) CCEvent(sustainCC int, ccNumber int, ccValue uint8) {
	if ccNumber < 0 || ccNumber >= NumCCs {
		return
	}
	m.cc[ccNumber] = ccValue
	if ccNumber == sustainCC {
		m.sustainedCC = ccValue >= HalfCCThreshold
	}
}

// CCValue returns the current value of a controller.
func (m *MidiState) CCValue(ccNumber int) uint8 {
	if ccNumber < 0 || ccNumber >= NumCCs {
		return 0
	}
	return m.cc[ccNumber]
}

// CCArray returns the full 128-entry controller table.
func (m *MidiState) CCArray() [NumCCs]uint8 {
	return m.cc
}

// SustainPedalDown reports whether the last-seen sustain CC value was
// at or above the half threshold.
func (m *MidiState) SustainPedalDown() bool {
	return m.sustainedCC
}

// Reset clears every controller, note-on record, and pitch/aftertouch
// value back to power-on defaults.
func (m *MidiState) Reset() {
	for i := range m.lastNoteVelocities {
		m.lastNoteVelocities[i] = 0
		m.noteOnTimes[i] = time.Time{}
	}
	for i := range m.cc {
		m.cc[i] = 0
	}
	m.pitchBend = 0
	m.aftertouch = 0
	m.activeNotes = 0
	m.sustainedCC = false
}

// ResetAllControllers implements CC121 (reset all controllers): it
// clears CC and pitch bend state but leaves note-on bookkeeping intact.
func (m *MidiState) ResetAllControllers() {
	for i := range m.cc {
		m.cc[i] = 0
	}
	m.pitchBend = 0
	m.sustainedCC = false
}
