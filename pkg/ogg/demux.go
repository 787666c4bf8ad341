package ogg

import "errors"

// ErrMuxMismatch is logged (not returned) when the first two packets are
// not OpusHead/OpusTags; demuxing continues regardless per spec §4.3,
// which prioritises robustness over strictness here.
var ErrMuxMismatch = errors.New("ogg: first packets are not OpusHead/OpusTags")

// OggDemuxer extracts Opus packets from a buffer of concatenated Ogg
// pages. Packets may span segments and pages; a segment of length
// exactly 255 continues into the next segment (possibly on the next
// page), and a segment of length < 255 closes the current packet.
type OggDemuxer struct {
	Warnings []error
}

// Demux walks data producing all packets, drops empty packets, checks the
// first two against OpusHead/OpusTags (recording a warning on mismatch
// rather than failing), and returns only the audio packets that follow.
func (d *OggDemuxer) Demux(data []byte) [][]byte {
	packets := d.readPackets(data)

	nonEmpty := packets[:0]
	for _, p := range packets {
		if len(p) > 0 {
			nonEmpty = append(nonEmpty, p)
		}
	}
	packets = nonEmpty

	if len(packets) < 2 {
		d.Warnings = append(d.Warnings, ErrMuxMismatch)
		return nil
	}
	if !isOpusHead(packets[0]) || !isOpusTags(packets[1]) {
		d.Warnings = append(d.Warnings, ErrMuxMismatch)
	}
	return packets[2:]
}

func isOpusHead(p []byte) bool {
	return len(p) >= 8 && string(p[:8]) == "OpusHead"
}

func isOpusTags(p []byte) bool {
	return len(p) >= 8 && string(p[:8]) == "OpusTags"
}

// readPackets walks the page stream, reassembling packets across page and
// segment boundaries. A page with an invalid magic at the scan offset
// terminates the walk (the partial pending packet, if any, is dropped —
// the stream is presumed corrupt from that point on).
func (d *OggDemuxer) readPackets(data []byte) [][]byte {
	var packets [][]byte
	var current []byte
	offset := 0

	for offset < len(data) {
		page, consumed, err := ParsePage(data[offset:])
		if err != nil {
			if !errors.Is(err, ErrTruncatedPage) {
				d.Warnings = append(d.Warnings, err)
				current = nil
			}
			break
		}

		segStart := 0
		for _, segSize := range page.SegmentTable {
			current = append(current, page.Payload[segStart:segStart+int(segSize)]...)
			segStart += int(segSize)
			if segSize < 255 {
				packets = append(packets, current)
				current = nil
			}
		}
		offset += consumed
	}

	if current != nil {
		packets = append(packets, current)
	}
	return packets
}
