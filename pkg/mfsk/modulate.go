package mfsk

import "math"

const toneAmplitude = 0.8
const raisedCosineRolloff = 0.1

// Modulate renders a symbol stream to PCM float32 audio. Each symbol is a
// sinusoid at base+symbol*spacing Hz, shaped by a raised-cosine envelope
// over the first/last 10% of its active samples, held for
// ToneDurationMs, followed by silence for the remaining guard interval.
// Phase is carried across symbols so consecutive tones don't click.
//
// Grounded on doismellburning-samoyed's gen_tone.go tone-phase-accumulator
// design (tone_phase carried across calls so symbol boundaries don't
// discontinue), reimplemented with float64 phase accumulation instead of
// the teacher's fixed-point C uint32 accumulator.
func Modulate(symbols []int, cfg Config) []float32 {
	toneSamples := cfg.samplesPerTone()
	symbolSamples := cfg.samplesPerSymbol()
	guardSamples := symbolSamples - toneSamples

	out := make([]float32, 0, len(symbols)*symbolSamples)
	phase := 0.0

	for _, sym := range symbols {
		freq := cfg.toneFrequency(sym)
		angularStep := 2 * math.Pi * freq / float64(cfg.SampleRateHz)
		rampLen := int(float64(toneSamples) * raisedCosineRolloff)

		for i := 0; i < toneSamples; i++ {
			env := envelope(i, toneSamples, rampLen)
			sample := float32(toneAmplitude * env * math.Sin(phase))
			out = append(out, sample)
			phase += angularStep
		}
		for i := 0; i < guardSamples; i++ {
			out = append(out, 0)
		}
	}
	return out
}

// envelope computes the raised-cosine amplitude multiplier for sample i
// of n, ramping 0->1 over the first rampLen samples and 1->0 over the
// last rampLen samples.
func envelope(i, n, rampLen int) float64 {
	if rampLen <= 0 {
		return 1
	}
	if i < rampLen {
		return 0.5 * (1 - math.Cos(math.Pi*float64(i)/float64(rampLen)))
	}
	if i >= n-rampLen {
		j := n - 1 - i
		return 0.5 * (1 - math.Cos(math.Pi*float64(j)/float64(rampLen)))
	}
	return 1
}
