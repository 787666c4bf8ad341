// Package ogg implements a bit-exact Ogg container codec: page framing,
// CRC-32, segment tables, and an Opus mux/demux built on top. Grounded on
// pkg/connector/audioconvert.go's hand-rolled OGG Opus reader/writer
// (oggCRC, writeOGGPage, readOGGPackets), generalized here from a one-shot
// CAF-remux helper into the full page/mux/demux contract.
package ogg

import (
	"encoding/binary"
	"errors"
)

const (
	headerFixedSize = 27 // magic(4) version(1) flags(1) granule(8) serial(4) seq(4) crc(4) segcount(1)

	// Flags bitset values, per spec §3.
	FlagContinued byte = 0x01
	FlagBOS       byte = 0x02
	FlagEOS       byte = 0x04
)

// ErrInvalidMagic is returned when a page does not begin with "OggS".
var ErrInvalidMagic = errors.New("ogg: invalid page magic")

// ErrTruncatedPage is returned when a page's header or segment data runs
// past the end of the buffer.
var ErrTruncatedPage = errors.New("ogg: truncated page")

// Page is the in-memory form of one Ogg page (header + segment table +
// payload), mirroring the wire layout in spec §3.
type Page struct {
	Version        byte
	Flags          byte
	GranulePos     uint64
	SerialNumber   uint32
	SequenceNumber uint32
	CRC            uint32
	SegmentTable   []byte
	Payload        []byte
}

// segmentTable computes the Ogg segment table for a payload of length n:
// repeated 255s while >=255 bytes remain, then one final segment with the
// remainder (0-254); for a length that is an exact multiple of 255 the
// final segment is 0.
func segmentTable(n int) []byte {
	table := make([]byte, 0, n/255+1)
	for n >= 255 {
		table = append(table, 255)
		n -= 255
	}
	table = append(table, byte(n))
	return table
}

// CreatePage emits the wire bytes for one Ogg page carrying payload, with
// the given granule position, serial number, sequence number and flags.
func CreatePage(payload []byte, granule uint64, serial, sequence uint32, flags byte) []byte {
	table := segmentTable(len(payload))
	buf := make([]byte, headerFixedSize+len(table)+len(payload))

	copy(buf[0:4], "OggS")
	buf[4] = 0 // version
	buf[5] = flags
	binary.LittleEndian.PutUint64(buf[6:14], granule)
	binary.LittleEndian.PutUint32(buf[14:18], serial)
	binary.LittleEndian.PutUint32(buf[18:22], sequence)
	// bytes 22:26 (CRC) stay zero until computed below.
	buf[26] = byte(len(table))
	copy(buf[27:27+len(table)], table)
	copy(buf[27+len(table):], payload)

	checksum := crc32(buf)
	binary.LittleEndian.PutUint32(buf[22:26], checksum)
	return buf
}

// ParsePage reads one page starting at the beginning of data, returning
// the parsed Page and the number of bytes consumed.
func ParsePage(data []byte) (*Page, int, error) {
	if len(data) < headerFixedSize {
		return nil, 0, ErrTruncatedPage
	}
	if string(data[0:4]) != "OggS" {
		return nil, 0, ErrInvalidMagic
	}
	segCount := int(data[26])
	if len(data) < headerFixedSize+segCount {
		return nil, 0, ErrTruncatedPage
	}
	table := data[headerFixedSize : headerFixedSize+segCount]
	payloadLen := 0
	for _, s := range table {
		payloadLen += int(s)
	}
	payloadStart := headerFixedSize + segCount
	if len(data) < payloadStart+payloadLen {
		return nil, 0, ErrTruncatedPage
	}

	p := &Page{
		Version:        data[4],
		Flags:          data[5],
		GranulePos:     binary.LittleEndian.Uint64(data[6:14]),
		SerialNumber:   binary.LittleEndian.Uint32(data[14:18]),
		SequenceNumber: binary.LittleEndian.Uint32(data[18:22]),
		CRC:            binary.LittleEndian.Uint32(data[22:26]),
		SegmentTable:   append([]byte(nil), table...),
		Payload:        append([]byte(nil), data[payloadStart:payloadStart+payloadLen]...),
	}
	return p, payloadStart + payloadLen, nil
}

// VerifyCRC recomputes the CRC over the page's wire bytes with the CRC
// field zeroed and compares it to the stored value.
func VerifyCRC(pageBytes []byte) bool {
	if len(pageBytes) < headerFixedSize {
		return false
	}
	stored := binary.LittleEndian.Uint32(pageBytes[22:26])
	cp := append([]byte(nil), pageBytes...)
	binary.LittleEndian.PutUint32(cp[22:26], 0)
	return crc32(cp) == stored
}
