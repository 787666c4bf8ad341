// Package voice treats the Opus codec as an opaque packet
// boundary — the core only ever sees encoded packet bytes and a sample
// count, never codec internals (spec §1, §9 "Opus opacity"). It wraps
// github.com/hraban/opus, the pairing adopted from the pack's
// other_examples manifest rubiojr-lunartlk (portaudio + hraban/opus).
package voice

import (
	"fmt"

	"github.com/hraban/opus"
)

// Packetiser turns PCM float32 samples into Opus packets.
type Packetiser struct {
	enc *opus.Encoder
}

// NewPacketiser constructs an encoder for the given sample rate and
// channel count, using voice-optimised settings.
func NewPacketiser(sampleRate, channels int) (*Packetiser, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("voice: new encoder: %w", err)
	}
	return &Packetiser{enc: enc}, nil
}

// Encode compresses one frame of PCM into an Opus packet.
func (p *Packetiser) Encode(pcm []float32) ([]byte, error) {
	out := make([]byte, 4000)
	n, err := p.enc.EncodeFloat32(pcm, out)
	if err != nil {
		return nil, fmt.Errorf("voice: encode: %w", err)
	}
	return out[:n], nil
}

// Depacketiser turns Opus packets back into PCM float32 samples.
type Depacketiser struct {
	dec            *opus.Decoder
	samplesPerChan int
}

// NewDepacketiser constructs a decoder for the given sample rate and
// channel count. samplesPerChan bounds the per-frame PCM buffer (e.g.
// 960 for 20ms at 48kHz).
func NewDepacketiser(sampleRate, channels, samplesPerChan int) (*Depacketiser, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("voice: new decoder: %w", err)
	}
	return &Depacketiser{dec: dec, samplesPerChan: samplesPerChan}, nil
}

// Decode expands one Opus packet into PCM. A nil packet signals packet
// loss concealment for one frame, per the underlying libopus contract.
func (d *Depacketiser) Decode(packet []byte) ([]float32, error) {
	out := make([]float32, d.samplesPerChan*4)
	n, err := d.dec.DecodeFloat32(packet, out)
	if err != nil {
		return nil, fmt.Errorf("voice: decode: %w", err)
	}
	return out[:n], nil
}
