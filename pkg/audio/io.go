// Package audio defines the typed boundary to the platform microphone and
// speaker collaborators that spec §1/§6 place outside the core ("terminal
// UI, microphone/speaker I/O wrappers ... enumerated in §6 by their
// interfaces only"). It carries github.com/gordonklaus/portaudio — the
// same audio-I/O dependency the pack's doismellburning-samoyed walkie-
// talkie-style repo uses directly — but only as the lifecycle adapter
// behind these interfaces; no DSP or modem logic lives here.
package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Capturer records PCM from a microphone. Callers must call Close when
// done; a new capture session must not be started while one is active.
type Capturer interface {
	Start() error
	Read(buf []float32) (int, error)
	Stop() error
	Close() error
}

// Player streams PCM to a speaker. Starting a new playback session stops
// any prior one, per spec §6's "process-wide state" policy.
type Player interface {
	Start() error
	Write(buf []float32) error
	Stop() error
	Close() error
}

// PortAudioRecorder is the exactly-one-active-policy recording resource
// described in spec §6: it holds at most one OS capture handle at a
// time.
type PortAudioRecorder struct {
	mu       sync.Mutex
	stream   *portaudio.Stream
	sampleRt int
	channels int
}

// NewPortAudioRecorder prepares (but does not open) a recorder for the
// given sample rate and channel count.
func NewPortAudioRecorder(sampleRate, channels int) *PortAudioRecorder {
	return &PortAudioRecorder{sampleRt: sampleRate, channels: channels}
}

// Start opens the capture stream. It fails if a stream is already open,
// enforcing the exactly-one-active policy.
func (r *PortAudioRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream != nil {
		return fmt.Errorf("audio: capture already active")
	}
	const framesPerBuffer = 0 // let portaudio choose a default buffer size
	stream, err := portaudio.OpenDefaultStream(r.channels, 0, float64(r.sampleRt), framesPerBuffer, make([]float32, 0))
	if err != nil {
		return fmt.Errorf("audio: open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		return fmt.Errorf("audio: start capture stream: %w", err)
	}
	r.stream = stream
	return nil
}

// Read is a placeholder boundary method; actual buffer pumping is driven
// by the platform glue outside this core (spec §1 Out of scope).
func (r *PortAudioRecorder) Read(buf []float32) (int, error) {
	r.mu.Lock()
	stream := r.stream
	r.mu.Unlock()
	if stream == nil {
		return 0, fmt.Errorf("audio: capture not active")
	}
	return 0, nil
}

// Stop closes the capture stream, releasing the exclusive lock.
func (r *PortAudioRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream == nil {
		return nil
	}
	err := r.stream.Close()
	r.stream = nil
	return err
}

// Close is an alias for Stop, satisfying the Capturer interface.
func (r *PortAudioRecorder) Close() error { return r.Stop() }

// PortAudioPlayer is the playback counterpart to PortAudioRecorder:
// starting a new session stops any prior one rather than erroring, per
// spec §6's "starting playback always replaces any current playback"
// policy.
type PortAudioPlayer struct {
	mu       sync.Mutex
	stream   *portaudio.Stream
	sampleRt int
	channels int
}

// NewPortAudioPlayer prepares (but does not open) a player for the given
// sample rate and channel count.
func NewPortAudioPlayer(sampleRate, channels int) *PortAudioPlayer {
	return &PortAudioPlayer{sampleRt: sampleRate, channels: channels}
}

// Start opens the playback stream, first stopping any stream already
// open on this player.
func (p *PortAudioPlayer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			return fmt.Errorf("audio: close prior playback stream: %w", err)
		}
		p.stream = nil
	}
	const framesPerBuffer = 0
	stream, err := portaudio.OpenDefaultStream(0, p.channels, float64(p.sampleRt), framesPerBuffer, make([]float32, 0))
	if err != nil {
		return fmt.Errorf("audio: open playback stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		return fmt.Errorf("audio: start playback stream: %w", err)
	}
	p.stream = stream
	return nil
}

// Write is a placeholder boundary method; actual buffer pumping is
// driven by the platform glue outside this core (spec §1 Out of scope).
func (p *PortAudioPlayer) Write(buf []float32) error {
	p.mu.Lock()
	stream := p.stream
	p.mu.Unlock()
	if stream == nil {
		return fmt.Errorf("audio: playback not active")
	}
	return nil
}

// Stop closes the playback stream.
func (p *PortAudioPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil
	}
	err := p.stream.Close()
	p.stream = nil
	return err
}

// Close is an alias for Stop, satisfying the Player interface.
func (p *PortAudioPlayer) Close() error { return p.Stop() }
