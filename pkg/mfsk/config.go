// Package mfsk implements the 16-tone MFSK modem: serialising an
// onboarding credential record, protecting it with Reed-Solomon FEC,
// modulating it to audio, and the inverse demodulation pipeline. Tone
// synthesis and the windowed-Goertzel demodulation design are grounded on
// doismellburning-samoyed's gen_tone.go/dsp.go/demod.go (reimplemented as
// plain Go math rather than the teacher's cgo float-array style); the
// systematic RS(255,k) layout is grounded on the same repo's fx25.go, but
// implemented with github.com/klauspost/reedsolomon instead of cgo — see
// DESIGN.md.
package mfsk

// Config enumerates the MFSK modem's tunable parameters, matching spec
// §3's "MFSK modem config".
type Config struct {
	SampleRateHz       int
	SymbolDurationMs   float64
	ToneDurationMs     float64
	BaseFrequencyHz    float64
	FrequencySpacingHz float64
	NumTones           int
}

// DefaultConfig returns the spec's default modem configuration.
func DefaultConfig() Config {
	return Config{
		SampleRateHz:       16000,
		SymbolDurationMs:   35,
		ToneDurationMs:     25,
		BaseFrequencyHz:    1500,
		FrequencySpacingHz: 125,
		NumTones:           16,
	}
}

func (c Config) samplesPerSymbol() int {
	return int(float64(c.SampleRateHz) * c.SymbolDurationMs / 1000)
}

func (c Config) samplesPerTone() int {
	return int(float64(c.SampleRateHz) * c.ToneDurationMs / 1000)
}

func (c Config) toneFrequency(symbol int) float64 {
	return c.BaseFrequencyHz + float64(symbol)*c.FrequencySpacingHz
}
