package mfsk

import "fmt"

// Encode runs the full sender chain from spec §2: serialise the
// credentials, RS-encode, assemble the frame, and modulate to audio at
// cfg.SampleRateHz.
func Encode(creds OnboardingCredentials, cfg Config) ([]float32, error) {
	payload, err := Serialize(creds)
	if err != nil {
		return nil, fmt.Errorf("mfsk: serialise: %w", err)
	}
	if len(payload) > 255 {
		return nil, ErrPayloadTooLarge
	}
	encoded, err := rsEncode(payload)
	if err != nil {
		return nil, fmt.Errorf("mfsk: rs encode: %w", err)
	}
	symbols, err := assembleFrame(encoded, len(payload))
	if err != nil {
		return nil, fmt.Errorf("mfsk: assemble frame: %w", err)
	}
	return Modulate(symbols, cfg), nil
}

// Decode runs the full receiver chain from spec §2: locate the signal,
// acquire sync, slice symbols, parse the frame, RS-decode, and
// deserialise back to credentials.
func Decode(samples []float32, cfg Config) (OnboardingCredentials, error) {
	var zero OnboardingCredentials

	region := detectSignalBoundary(samples, cfg)
	syncOffset := acquireSync(samples, region, cfg)
	symbols := sliceSymbols(samples, syncOffset, cfg)

	frame, err := parseFrame(symbols)
	if err != nil {
		return zero, err
	}
	payload, err := rsDecode(frame.rsEncoded)
	if err != nil {
		return zero, err
	}
	creds, err := Deserialize(payload)
	if err != nil {
		return zero, err
	}
	return creds, nil
}
