package ogg

import "encoding/binary"

// BuildOpusHead constructs the 19-byte OpusHead packet per spec §3:
// magic, version 1, channel count, pre-skip, input sample rate, output
// gain fixed at 0, mapping family fixed at 0 (mono/stereo).
func BuildOpusHead(channels int, preSkip uint16, inputSampleRate uint32) []byte {
	head := make([]byte, 19)
	copy(head[0:8], "OpusHead")
	head[8] = 1
	head[9] = byte(channels)
	binary.LittleEndian.PutUint16(head[10:12], preSkip)
	binary.LittleEndian.PutUint32(head[12:16], inputSampleRate)
	binary.LittleEndian.PutUint16(head[16:18], 0) // output gain
	head[18] = 0                                  // mapping family
	return head
}

// BuildOpusTags constructs an OpusTags packet with the given vendor string
// and zero comments, per spec §3.
func BuildOpusTags(vendor string) []byte {
	buf := make([]byte, 0, 8+4+len(vendor)+4)
	buf = append(buf, "OpusTags"...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(vendor)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, vendor...)
	var zero [4]byte
	buf = append(buf, zero[:]...) // comment count = 0
	return buf
}
