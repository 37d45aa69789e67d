//go:build jack
// +build jack

package gosfzplayer

import (
	"fmt"
	"sync"

	"github.com/GeoffreyPlitt/debuggo"
	"github.com/xthexder/go-jack"
)

var jackDebug = debuggo.Debug("sfizz:jack")

// JackClient drives an SfzPlayer's BasicHost from a real JACK audio
// client: a left and a right output port, one MIDI input port, and a process
// callback that translates raw MIDI bytes into host events before
// rendering the block.
type JackClient struct {
	client        *jack.Client
	player        *SfzPlayer
	leftOutPort   *jack.Port
	rightOutPort  *jack.Port
	midiInPort    *jack.Port
	sampleRate    uint32
	bufferSize    uint32
	mu            sync.Mutex

	outBuf        AudioView[float32]
	renderScratch AudioView[float32]
	reverb        *Freeverb
}

// NewJackClient opens a JACK client named clientName and wires it to
// player's host. The host's sample rate and block size are overridden
// to match whatever JACK actually grants on open.
func NewJackClient(player *SfzPlayer, clientName string) (*JackClient, error) {
	jackDebug("opening JACK client %s", clientName)

	client, err := jack.ClientOpen(clientName, jack.NoStartServer)
	if err != nil {
		return nil, fmt.Errorf("sfizz: opening JACK client: %w", err)
	}

	jc := &JackClient{
		client:     client,
		player:     player,
		sampleRate: uint32(client.GetSampleRate()),
		bufferSize: uint32(client.GetBufferSize()),
	}

	leftOut, err := client.PortRegister("out_left", jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("sfizz: registering left output port: %w", err)
	}
	jc.leftOutPort = leftOut

	rightOut, err := client.PortRegister("out_right", jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("sfizz: registering right output port: %w", err)
	}
	jc.rightOutPort = rightOut

	midiIn, err := client.PortRegister("midi_in", jack.DEFAULT_MIDI_TYPE, jack.PortIsInput, 0)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("sfizz: registering MIDI input port: %w", err)
	}
	jc.midiInPort = midiIn

	jc.outBuf = NewAudioView([][]float32{
		make([]float32, jc.bufferSize),
		make([]float32, jc.bufferSize),
	})
	jc.renderScratch = NewAudioView([][]float32{
		make([]float32, jc.bufferSize),
		make([]float32, jc.bufferSize),
	})

	jc.reverb = NewFreeverb(player.Host().Config(), int(jc.sampleRate))
	jc.reverb.SetWet(0)
	jc.reverb.SetDry(1)

	client.SetProcessCallback(jc.processCallback)

	jackDebug("JACK client ready: %d Hz, %d frame buffer", jc.sampleRate, jc.bufferSize)
	return jc, nil
}

// SetReverbMix sets the demo reverb's wet/dry balance, both in [0,1].
// A wet level of 0 (the default) leaves the rendered output untouched.
func (jc *JackClient) SetReverbMix(wet, dry float64) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	jc.reverb.SetWet(wet)
	jc.reverb.SetDry(dry)
}

// Start activates the client, beginning audio and MIDI processing.
func (jc *JackClient) Start() error {
	if err := jc.client.Activate(); err != nil {
		return fmt.Errorf("sfizz: activating JACK client: %w", err)
	}
	return nil
}

// Stop deactivates the client.
func (jc *JackClient) Stop() error {
	if err := jc.client.Deactivate(); err != nil {
		return fmt.Errorf("sfizz: deactivating JACK client: %w", err)
	}
	return nil
}

// Close deactivates and closes the client connection.
func (jc *JackClient) Close() error {
	if err := jc.client.Close(); err != nil {
		return fmt.Errorf("sfizz: closing JACK client: %w", err)
	}
	return nil
}

func (jc *JackClient) processCallback(nframes uint32) int {
	jc.mu.Lock()
	defer jc.mu.Unlock()

	jc.processMidiEvents(jc.midiInPort.GetBuffer(nframes))

	left := jack.GetAudioSamples(jc.leftOutPort.GetBuffer(nframes), nframes)
	right := jack.GetAudioSamples(jc.rightOutPort.GetBuffer(nframes), nframes)

	out := jc.outBuf.First(int(nframes))
	scratch := jc.renderScratch.First(int(nframes))
	jc.player.Host().RenderBlock(out, scratch)

	jc.reverb.ProcessBlock(out)

	outL := out.Channel(0)
	outR := out.Channel(1)
	for i := uint32(0); i < nframes; i++ {
		left[i] = jack.AudioSample(outL[i])
		right[i] = jack.AudioSample(outR[i])
	}

	return 0
}

func (jc *JackClient) processMidiEvents(midiBuffer *jack.PortBuffer) {
	host := jc.player.Host()
	count := jack.MidiGetEventCount(midiBuffer)

	for i := uint32(0); i < count; i++ {
		event, err := jack.MidiEventGet(midiBuffer, i)
		if err != nil || len(event.Buffer) < 1 {
			continue
		}

		delay := int(event.Time)
		status := event.Buffer[0]

		switch status & 0xF0 {
		case 0x90:
			if len(event.Buffer) >= 3 {
				note, velocity := int(event.Buffer[1]), event.Buffer[2]
				if velocity > 0 {
					host.NoteOn(delay, note, velocity)
				} else {
					host.NoteOff(delay, note, 0)
				}
			}
		case 0x80:
			if len(event.Buffer) >= 3 {
				host.NoteOff(delay, int(event.Buffer[1]), event.Buffer[2])
			}
		case 0xB0:
			if len(event.Buffer) >= 3 {
				host.ControlChange(delay, int(event.Buffer[1]), event.Buffer[2])
			}
		case 0xE0:
			if len(event.Buffer) >= 3 {
				value := int(event.Buffer[1]) | int(event.Buffer[2])<<7
				host.PitchWheel(delay, value-8192)
			}
		}
	}
}
