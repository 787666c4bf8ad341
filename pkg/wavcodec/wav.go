// Package wavcodec encodes and decodes canonical PCM/WAV files. It follows
// the teacher's binary.Write/binary.Read style for fixed-layout container
// formats (see pkg/connector/audioconvert.go's CAF reader/writer for the
// idiom this mirrors: plain encoding/binary, no reflection-based codec).
package wavcodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrUnsupportedFormat is returned when the WAV audio format is not PCM or
// the bit depth is not one this codec decodes.
var ErrUnsupportedFormat = errors.New("wavcodec: unsupported format")

// ErrInvalidMagic is returned when the RIFF/WAVE magic bytes don't match.
var ErrInvalidMagic = errors.New("wavcodec: invalid RIFF/WAVE magic")

// ErrTruncated is returned when a required chunk is missing or short.
var ErrTruncated = errors.New("wavcodec: truncated file")

const (
	formatPCM  = 1
	headerSize = 44
)

// Encode writes a canonical 44-byte RIFF/WAVE/fmt/data header followed by
// signed 16-bit little-endian PCM. Samples are clamped to [-1, 1] and
// scaled by 32767 with round-to-nearest.
func Encode(samples []float32, sampleRate int, channels int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, headerSize+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	byteRate := sampleRate * channels * 2
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	blockAlign := channels * 2
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		scaled := int16(math.RoundToEven(v * 32767))
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:headerSize+i*2+2], uint16(scaled))
	}
	return buf
}

// Decoded holds PCM decoded to float32 samples in [-1, 1] plus the format
// metadata recovered from the fmt chunk.
type Decoded struct {
	Samples    []float32
	SampleRate int
	Channels   int
	BitDepth   int
}

// Decode validates the RIFF/WAVE magics, requires a PCM fmt chunk, walks
// chunks to find data, and decodes 8/16/24/32-bit samples to floats.
func Decode(data []byte) (*Decoded, error) {
	if len(data) < 12 {
		return nil, ErrTruncated
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrInvalidMagic
	}

	var (
		sampleRate, channels, bitDepth int
		audioFormat                    uint16
		dataBytes                      []byte
		sawFmt                         bool
	)

	r := bytes.NewReader(data[12:])
	for {
		var id [4]byte
		if _, err := r.Read(id[:]); err != nil {
			break
		}
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, ErrTruncated
		}
		body := make([]byte, size)
		if _, err := fullRead(r, body); err != nil {
			return nil, ErrTruncated
		}
		if size%2 == 1 {
			r.Seek(1, io.SeekCurrent) //nolint:errcheck // chunk padding byte, absence is non-fatal
		}

		switch string(id[:]) {
		case "fmt ":
			if len(body) < 16 {
				return nil, ErrTruncated
			}
			audioFormat = binary.LittleEndian.Uint16(body[0:2])
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitDepth = int(binary.LittleEndian.Uint16(body[14:16]))
			sawFmt = true
		case "data":
			dataBytes = body
		}
	}

	if !sawFmt {
		return nil, ErrTruncated
	}
	if audioFormat != formatPCM {
		return nil, fmt.Errorf("%w: audio format %d is not PCM", ErrUnsupportedFormat, audioFormat)
	}
	if dataBytes == nil {
		return nil, ErrTruncated
	}

	samples, err := decodeSamples(dataBytes, bitDepth)
	if err != nil {
		return nil, err
	}

	return &Decoded{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
	}, nil
}

func fullRead(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func decodeSamples(data []byte, bitDepth int) ([]float32, error) {
	switch bitDepth {
	case 8:
		out := make([]float32, len(data))
		for i, b := range data {
			out[i] = float32(int(b)-128) / 128
		}
		return out, nil
	case 16:
		n := len(data) / 2
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
			out[i] = float32(v) / 32768
		}
		return out, nil
	case 24:
		n := len(data) / 3
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			b0, b1, b2 := data[i*3], data[i*3+1], data[i*3+2]
			v := int32(b0) | int32(b1)<<8 | int32(b2)<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			out[i] = float32(v) / 8388608
		}
		return out, nil
	case 32:
		n := len(data) / 4
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
			out[i] = float32(float64(v) / 2147483648)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFormat, bitDepth)
	}
}
