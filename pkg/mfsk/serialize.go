package mfsk

import (
	"encoding/json"
	"errors"
	"fmt"
)

// OnboardingMagic discriminates the compact binary onboarding payload
// from the JSON fallback, per spec §3.
const OnboardingMagic = 0xB1

// ErrDeserialisation is returned when a payload is neither the compact
// binary shape nor valid UTF-8 JSON.
var ErrDeserialisation = errors.New("mfsk: malformed payload")

// OnboardingCredentials is the compact binary form described in spec §3:
// a homeserver URL, username, password and room id/alias to join.
type OnboardingCredentials struct {
	Homeserver string `json:"homeserver"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Room       string `json:"room"`
}

// Serialize encodes creds as the compact binary onboarding form when every
// field fits in one byte of length; JSON as UTF-8 text otherwise.
func Serialize(creds OnboardingCredentials) ([]byte, error) {
	fields := [][]byte{[]byte(creds.Homeserver), []byte(creds.Username), []byte(creds.Password), []byte(creds.Room)}
	fitsCompact := true
	for _, f := range fields {
		if len(f) > 255 {
			fitsCompact = false
			break
		}
	}
	if fitsCompact {
		return serializeCompact(fields), nil
	}
	return serializeJSON(creds)
}

func serializeCompact(fields [][]byte) []byte {
	out := make([]byte, 0, 1+4+sumLen(fields))
	out = append(out, OnboardingMagic)
	for _, f := range fields {
		out = append(out, byte(len(f)))
		out = append(out, f...)
	}
	return out
}

func sumLen(fields [][]byte) int {
	n := 0
	for _, f := range fields {
		n += len(f)
	}
	return n
}

// serializeJSON is the fallback used when a field doesn't fit the
// compact form's one-byte length prefix (255 bytes). JSON text has no
// such per-field cap.
func serializeJSON(creds OnboardingCredentials) ([]byte, error) {
	return json.Marshal(creds)
}

// Deserialize decodes a payload produced by Serialize. The leading byte
// discriminates: OnboardingMagic selects the compact binary form,
// anything else is parsed as UTF-8 JSON.
func Deserialize(payload []byte) (OnboardingCredentials, error) {
	var creds OnboardingCredentials
	if len(payload) > 0 && payload[0] == OnboardingMagic {
		return deserializeCompact(payload)
	}
	if err := json.Unmarshal(payload, &creds); err != nil {
		return creds, fmt.Errorf("%w: %v", ErrDeserialisation, err)
	}
	return creds, nil
}

func deserializeCompact(payload []byte) (OnboardingCredentials, error) {
	var creds OnboardingCredentials
	pos := 1
	values := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		if pos >= len(payload) {
			return creds, fmt.Errorf("%w: truncated field %d", ErrDeserialisation, i)
		}
		n := int(payload[pos])
		pos++
		if pos+n > len(payload) {
			return creds, fmt.Errorf("%w: truncated field %d", ErrDeserialisation, i)
		}
		values = append(values, string(payload[pos:pos+n]))
		pos += n
	}
	creds.Homeserver, creds.Username, creds.Password, creds.Room = values[0], values[1], values[2], values[3]
	return creds, nil
}
