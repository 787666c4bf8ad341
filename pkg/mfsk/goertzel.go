package mfsk

import "math"

// goertzelPower computes the squared magnitude of the DFT bin nearest
// frequency f over N samples of x starting at s, per spec §4.4's
// Goertzel algorithm. No square root is taken since comparisons between
// candidate tones are purely relative.
func goertzelPower(x []float32, s, n int, f float64, sampleRate int) float64 {
	k := math.Round(float64(n) * f / float64(sampleRate))
	omega := 2 * math.Pi * k / float64(n)
	c := 2 * math.Cos(omega)

	var s1, s2 float64
	end := s + n
	if end > len(x) {
		end = len(x)
	}
	for i := s; i < end; i++ {
		s0 := float64(x[i]) + c*s1 - s2
		s2 = s1
		s1 = s0
	}
	return s1*s1 + s2*s2 - c*s1*s2
}

// toneMagnitudes computes the Goertzel power for every configured tone
// frequency over n samples of x starting at s.
func toneMagnitudes(x []float32, s, n int, cfg Config) []float64 {
	mags := make([]float64, cfg.NumTones)
	for t := 0; t < cfg.NumTones; t++ {
		mags[t] = goertzelPower(x, s, n, cfg.toneFrequency(t), cfg.SampleRateHz)
	}
	return mags
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
