package ogg

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
)

const defaultVendor = "wata"

// OggOpusMuxer assembles Opus packets into an Ogg Opus bitstream: one
// BOS page for OpusHead, one page for OpusTags, then one page per audio
// packet, with the final audio page carrying the EOS flag. It is
// stateful and not safe for concurrent use — one instance owns one
// logical stream, matching spec §5's "non-shareable across tasks" policy.
type OggOpusMuxer struct {
	inputSampleRate uint32
	channels        int
	preSkip         uint16

	serial   uint32
	sequence uint32
	granule  uint64

	buf            bytes.Buffer
	headersWritten bool
	lastAudioPage  pageLocation
	finalized      bool
}

type pageLocation struct {
	offset, length int
	valid          bool
}

// NewOggOpusMuxer creates a muxer for a stream at inputSampleRate Hz with
// the given channel count. preSkip defaults to 312 when 0 is passed, the
// value spec §4.3 uses as the default.
func NewOggOpusMuxer(inputSampleRate uint32, channels int, preSkip uint16) *OggOpusMuxer {
	if inputSampleRate == 0 {
		inputSampleRate = 16000
	}
	if preSkip == 0 {
		preSkip = 312
	}
	return &OggOpusMuxer{
		inputSampleRate: inputSampleRate,
		channels:        channels,
		preSkip:         preSkip,
		serial:          randomSerial(),
	}
}

// randomSerial derives the bitstream serial number from a random UUIDv4
// rather than a raw crypto/rand read, so every muxer instance's serial
// traces back to a single globally-unique id the way the rest of the
// pack mints stream/session identifiers.
func randomSerial() uint32 {
	id := uuid.New()
	return binary.LittleEndian.Uint32(id[:4])
}

// WriteHeaders emits the BOS OpusHead page (sequence 0, granule 0) and the
// OpusTags page (sequence 1, no flags, granule 0). It is a no-op if
// already called.
func (m *OggOpusMuxer) WriteHeaders() {
	if m.headersWritten {
		return
	}
	head := BuildOpusHead(m.channels, m.preSkip, m.inputSampleRate)
	m.writePage(head, 0, FlagBOS)
	tags := BuildOpusTags(defaultVendor)
	m.writePage(tags, 0, 0)
	m.headersWritten = true
}

// AddPacket appends one Opus packet as its own page. samplesAtInputRate is
// the number of PCM samples (at the muxer's input rate) this packet
// represents; the granule position advances by that many samples
// converted to the fixed 48kHz Ogg Opus clock.
func (m *OggOpusMuxer) AddPacket(packet []byte, samplesAtInputRate int) {
	if !m.headersWritten {
		m.WriteHeaders()
	}
	advance := roundDiv(uint64(samplesAtInputRate)*48000, uint64(m.inputSampleRate))
	m.granule += advance
	m.writePage(packet, m.granule, 0)
}

func roundDiv(num, den uint64) uint64 {
	return (num + den/2) / den
}

// writePage appends a page and records the location of the most recent
// audio page (sequence >= 2) so Finalize can rewrite it in place.
func (m *OggOpusMuxer) writePage(payload []byte, granule uint64, flags byte) {
	offset := m.buf.Len()
	page := CreatePage(payload, granule, m.serial, m.sequence, flags)
	m.buf.Write(page)
	if m.sequence >= 2 {
		m.lastAudioPage = pageLocation{offset: offset, length: len(page), valid: true}
	}
	m.sequence++
}

// Finalize closes the stream. If lastPacket is non-nil it is appended as
// one final page with the EOS flag and the granule advanced by samples.
// If lastPacket is nil, the most recently emitted audio page is rewritten
// in place with the EOS flag set (same sequence number and granule, CRC
// recomputed), matching spec §4.3's "no trailing packet" branch.
func (m *OggOpusMuxer) Finalize(lastPacket []byte, samples int) {
	if m.finalized {
		return
	}
	m.finalized = true
	if lastPacket != nil {
		advance := roundDiv(uint64(samples)*48000, uint64(m.inputSampleRate))
		m.granule += advance
		page := CreatePage(lastPacket, m.granule, m.serial, m.sequence, FlagEOS)
		m.sequence++
		m.buf.Write(page)
		return
	}
	if !m.lastAudioPage.valid {
		return
	}
	raw := m.buf.Bytes()[m.lastAudioPage.offset : m.lastAudioPage.offset+m.lastAudioPage.length]
	payload, granule, serial, seq := rebuildPageParts(raw)
	newPage := CreatePage(payload, granule, serial, seq, FlagEOS)
	copy(m.buf.Bytes()[m.lastAudioPage.offset:], newPage)
}

func rebuildPageParts(raw []byte) (payload []byte, granule uint64, serial, seq uint32) {
	p, _, err := ParsePage(raw)
	if err != nil {
		return nil, 0, 0, 0
	}
	return p.Payload, p.GranulePos, p.SerialNumber, p.SequenceNumber
}

// MuxPackets is the convenience wrapper: writes headers, adds all but the
// last packet (each attributed samplesPerPacket samples), and finalizes
// with the last packet.
func (m *OggOpusMuxer) MuxPackets(packets [][]byte, samplesPerPacket int) []byte {
	m.WriteHeaders()
	if len(packets) == 0 {
		m.Finalize(nil, 0)
		return m.Bytes()
	}
	for _, pkt := range packets[:len(packets)-1] {
		m.AddPacket(pkt, samplesPerPacket)
	}
	m.Finalize(packets[len(packets)-1], samplesPerPacket)
	return m.Bytes()
}

// Bytes returns the muxed stream built so far.
func (m *OggOpusMuxer) Bytes() []byte {
	return m.buf.Bytes()
}
