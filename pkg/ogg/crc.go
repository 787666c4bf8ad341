package ogg

// crcTable is the CRC-32 lookup table for Ogg pages: polynomial
// 0x04C11DB7, normal (non-reflected) form, initial value 0, no final XOR.
// Grounded on pkg/connector/audioconvert.go's oggCRCTable/oggCRC, which
// this package generalizes from a one-off CAF-remux helper into the
// full page codec.
var crcTable = func() *[256]uint32 {
	var t [256]uint32
	for i := 0; i < 256; i++ {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ 0x04C11DB7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return &t
}()

// crc32 computes the Ogg page CRC over data. Verified against the spec's
// fixture: crc32([]byte("Hello World")) == 835807244.
func crc32(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}
