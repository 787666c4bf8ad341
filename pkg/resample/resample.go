// Package resample converts PCM sample buffers between sample rates using
// linear interpolation. It is the innermost, leaf-level component of the
// audio pipeline: the Ogg/Opus voice path (cmd/wata's encode-ogg) resamples
// into the rate its downstream encoder expects.
package resample

import "errors"

// ErrInvalidSampleRate is returned when either sample rate is not strictly
// positive.
var ErrInvalidSampleRate = errors.New("resample: sample rate must be positive")

// Resample converts input, tagged at fromHz, to a buffer at toHz using
// linear interpolation between neighbouring samples. An empty or nil input
// always yields an empty, non-nil output. When fromHz == toHz
// the result is a fresh copy of input, never an alias of it.
func Resample(input []float32, fromHz, toHz int) ([]float32, error) {
	if fromHz <= 0 || toHz <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if len(input) == 0 {
		return []float32{}, nil
	}
	if fromHz == toHz {
		out := make([]float32, len(input))
		copy(out, input)
		return out, nil
	}

	outLen := ceilDiv(len(input)*toHz, fromHz)
	out := make([]float32, outLen)
	last := len(input) - 1

	for i := 0; i < outLen; i++ {
		p := float64(i) * float64(fromHz) / float64(toHz)
		k := int(p)
		f := p - float64(k)
		if k > last {
			k = last
		}
		k2 := k + 1
		if k2 > last {
			k2 = last
		}
		out[i] = float32(float64(input[k])*(1-f) + float64(input[k2])*f)
	}
	out[0] = input[0]
	return out, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
