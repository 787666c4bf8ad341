package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResampleEmptyInput(t *testing.T) {
	out, err := Resample(nil, 16000, 8000)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestResampleSameRateIsCopyNotAlias(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out, err := Resample(in, 16000, 16000)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	out[0] = 99
	assert.NotEqual(t, in[0], out[0])
}

func TestResampleInvalidRates(t *testing.T) {
	_, err := Resample([]float32{1}, 0, 100)
	assert.ErrorIs(t, err, ErrInvalidSampleRate)
	_, err = Resample([]float32{1}, 100, -1)
	assert.ErrorIs(t, err, ErrInvalidSampleRate)
}

func TestResampleOutputLength(t *testing.T) {
	in := make([]float32, 441)
	out, err := Resample(in, 44100, 16000)
	require.NoError(t, err)
	expected := (len(in)*16000 + 44100 - 1) / 44100
	assert.Len(t, out, expected)
}

func TestResampleFirstSampleExact(t *testing.T) {
	in := []float32{0.5, -0.25, 0.75, 1.0}
	out, err := Resample(in, 8000, 16000)
	require.NoError(t, err)
	assert.Equal(t, in[0], out[0])
}

func TestResampleStaysWithinBounds(t *testing.T) {
	in := []float32{0.1, 0.9, 0.2, 0.8, 0.3}
	out, err := Resample(in, 8000, 11025)
	require.NoError(t, err)
	min32, max32 := in[0], in[0]
	for _, v := range in {
		if v < min32 {
			min32 = v
		}
		if v > max32 {
			max32 = v
		}
	}
	for _, v := range out {
		assert.GreaterOrEqual(t, v, min32-1e-6)
		assert.LessOrEqual(t, v, max32+1e-6)
	}
}

func TestResampleSinePreservesSmoothness(t *testing.T) {
	n := 4410
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * float64(i) / 441))
	}
	out, err := Resample(in, 44100, 16000)
	require.NoError(t, err)
	for i := 1; i < len(out); i++ {
		diff := math.Abs(float64(out[i] - out[i-1]))
		assert.Less(t, diff, 0.5)
	}
}
