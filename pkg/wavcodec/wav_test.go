package wavcodec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip16Bit(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1, 0.25}
	encoded := Encode(samples, 16000, 1)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, 16000, decoded.SampleRate)
	assert.Equal(t, 1, decoded.Channels)
	assert.Equal(t, 16, decoded.BitDepth)
	require.Len(t, decoded.Samples, len(samples))
	for i, s := range samples {
		assert.InDelta(t, s, decoded.Samples[i], 1.0/32767)
	}
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	encoded := Encode([]float32{2.0, -2.0}, 8000, 1)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, decoded.Samples[0], 1.0/32767)
	assert.InDelta(t, -1.0, decoded.Samples[1], 1.0/32767)
}

func TestDecodeRejectsNonPCM(t *testing.T) {
	encoded := Encode([]float32{0.1}, 8000, 1)
	// flip the audio format field (offset 20-21) to something other than 1 (PCM).
	encoded[20] = 2
	encoded[21] = 0
	_, err := Decode(encoded)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	bad := []byte("NOTRIFFxxxxWAVE")
	_, err := Decode(bad)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestDecode8Bit(t *testing.T) {
	header := Encode(nil, 8000, 1)
	// Hand-build an 8-bit PCM file: unsigned bytes, 128 = silence.
	data := []byte{128, 255, 0, 192}
	header[34] = 8 // bits per sample
	header[32] = 1 // block align
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(data)))
	buf := append(append([]byte{}, header[:headerSize]...), data...)
	decoded, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.BitDepth)
	require.Len(t, decoded.Samples, 4)
	assert.InDelta(t, 0, decoded.Samples[0], 1e-6)
	assert.InDelta(t, 1.0-1.0/128, decoded.Samples[1], 1e-6)
}

func TestDecode24And32Bit(t *testing.T) {
	// 24-bit: two samples, little-endian packed 3-byte two's complement.
	data24 := []byte{0x00, 0x00, 0x00, 0xFF, 0xFF, 0x7F} // 0, then max positive
	header := Encode(nil, 16000, 1)
	header[34] = 24
	header[32] = 3
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(data24)))
	buf := append(append([]byte{}, header[:headerSize]...), data24...)
	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, decoded.Samples, 2)
	assert.InDelta(t, 0, decoded.Samples[0], 1e-6)
	assert.InDelta(t, 1.0, decoded.Samples[1], 1e-4)

	// 32-bit: two samples, little-endian two's complement.
	data32 := []byte{0x00, 0x00, 0x00, 0x80, 0xFF, 0xFF, 0xFF, 0x7F} // min, then max positive
	header32 := Encode(nil, 16000, 1)
	header32[34] = 32
	header32[32] = 4
	binary.LittleEndian.PutUint32(header32[40:44], uint32(len(data32)))
	buf32 := append(append([]byte{}, header32[:headerSize]...), data32...)
	decoded32, err := Decode(buf32)
	require.NoError(t, err)
	require.Len(t, decoded32.Samples, 2)
	assert.InDelta(t, -1.0, decoded32.Samples[0], 1e-6)
	assert.InDelta(t, 1.0, decoded32.Samples[1], 1e-6)
}
