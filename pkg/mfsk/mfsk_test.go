package mfsk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeCompactRoundTrip(t *testing.T) {
	creds := OnboardingCredentials{
		Homeserver: "https://matrix.org",
		Username:   "alice",
		Password:   "walkietalkie123",
		Room:       "!family:matrix.org",
	}
	payload, err := Serialize(creds)
	require.NoError(t, err)
	assert.Equal(t, byte(OnboardingMagic), payload[0])

	got, err := Deserialize(payload)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestSerializeJSONFallback(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	creds := OnboardingCredentials{Homeserver: string(long), Username: "u", Password: "p", Room: "r"}
	payload, err := Serialize(creds)
	require.NoError(t, err)
	assert.NotEqual(t, byte(OnboardingMagic), payload[0])

	got, err := Deserialize(payload)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestDeserializeMalformedJSON(t *testing.T) {
	_, err := Deserialize([]byte("{not json"))
	assert.ErrorIs(t, err, ErrDeserialisation)
}

func TestNibbleMappingRoundTrip(t *testing.T) {
	data := []byte{0x00, 0xFF, 0x3C, 0x91}
	symbols := bytesToSymbols(data)
	require.Len(t, symbols, 8)
	assert.Equal(t, []int{0x0, 0x0, 0xF, 0xF, 0x3, 0xC, 0x9, 0x1}, symbols)

	back, err := symbolsToBytes(symbols)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestEncodedLengthFormula(t *testing.T) {
	assert.Equal(t, 0, encodedLength(0))
	assert.Equal(t, 2, encodedLength(1))
	assert.Equal(t, 126, encodedLength(63))
	assert.Equal(t, 510, encodedLength(255))
}

func TestRSEncodeDecodeCleanRoundTrip(t *testing.T) {
	data := []byte("walkie talkie credential payload")
	encoded, err := rsEncode(data)
	require.NoError(t, err)
	assert.Len(t, encoded, 2*len(data))

	decoded, err := rsDecode(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestRSDecodeDetectsCorruption(t *testing.T) {
	data := []byte("credential")
	encoded, err := rsEncode(data)
	require.NoError(t, err)
	encoded[0] ^= 0xFF
	_, err = rsDecode(encoded)
	assert.ErrorIs(t, err, ErrTooManyErrors)
}

func TestRSEncodeRejectsOversizePayload(t *testing.T) {
	_, err := rsEncode(make([]byte, 256))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestFrameAssembleParseRoundTrip(t *testing.T) {
	payload := []byte("hi")
	encoded, err := rsEncode(payload)
	require.NoError(t, err)
	symbols, err := assembleFrame(encoded, len(payload))
	require.NoError(t, err)

	assert.Equal(t, preambleSymbols, symbols[:5])
	assert.Equal(t, syncSymbols, symbols[5:9])

	parsed, err := parseFrame(symbols)
	require.NoError(t, err)
	assert.Equal(t, encoded, parsed.rsEncoded)
}

func TestParseFrameSyncNotFound(t *testing.T) {
	_, err := parseFrame([]int{0, 1, 2, 3, 4, 5})
	assert.ErrorIs(t, err, ErrSyncNotFound)
}

func TestParseFrameTruncated(t *testing.T) {
	symbols := append(append([]int{}, syncSymbols...), 0x0) // length byte incomplete
	_, err := parseFrame(symbols)
	assert.ErrorIs(t, err, ErrFrameTruncated)
}

func TestGoertzelPowerPeaksAtToneFrequency(t *testing.T) {
	cfg := DefaultConfig()
	n := cfg.samplesPerTone()
	sym := Modulate([]int{3}, cfg)[:n]

	powers := toneMagnitudes(sym, 0, n, cfg)
	assert.Equal(t, 3, argmax(powers))
}

func TestModemCleanChannelRoundTrip(t *testing.T) {
	creds := OnboardingCredentials{
		Homeserver: "https://matrix.org",
		Username:   "alice",
		Password:   "walkietalkie123",
		Room:       "!family:matrix.org",
	}
	cfg := DefaultConfig()

	samples, err := Encode(creds, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	decoded, err := Decode(samples, cfg)
	require.NoError(t, err)
	assert.Equal(t, creds, decoded)
}
