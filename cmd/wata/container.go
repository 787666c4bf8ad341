package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/adriaanm/wata/internal/logutil"
	"github.com/adriaanm/wata/pkg/ogg"
	"github.com/adriaanm/wata/pkg/resample"
	"github.com/adriaanm/wata/pkg/voice"
	"github.com/adriaanm/wata/pkg/wavcodec"
)

const opusFrameSamples = 960 // 20ms at 48kHz, libopus's native voice frame size

var encodeWavCommand = &cli.Command{
	Name:  "encode-ogg",
	Usage: "resample and Opus-encode a WAV file into an Ogg Opus container",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "in", Required: true},
		&cli.StringFlag{Name: "out", Required: true},
	},
	Action: func(c *cli.Context) error {
		cfg := loadConfigOrExit(c)
		log := logutil.New(rootLogger(c, cfg)).With().Str("command", "encode-ogg").Logger()

		data, err := os.ReadFile(c.String("in"))
		if err != nil {
			return fmt.Errorf("read %s: %w", c.String("in"), err)
		}
		decoded, err := wavcodec.Decode(data)
		if err != nil {
			return fmt.Errorf("decode wav: %w", err)
		}

		const opusRate = 48000
		pcm, err := resample.Resample(decoded.Samples, decoded.SampleRate, opusRate)
		if err != nil {
			return fmt.Errorf("resample: %w", err)
		}
		log.Debug().Int("in_rate", decoded.SampleRate).Int("out_samples", len(pcm)).Msg("resampled")

		packetiser, err := voice.NewPacketiser(opusRate, decoded.Channels)
		if err != nil {
			return fmt.Errorf("new packetiser: %w", err)
		}

		mux := ogg.NewOggOpusMuxer(uint32(opusRate), decoded.Channels, 0)
		mux.WriteHeaders()

		var lastPacket []byte
		lastSamples := 0
		for offset := 0; offset < len(pcm); offset += opusFrameSamples {
			end := offset + opusFrameSamples
			frame := pcm[offset:min(end, len(pcm))]
			if len(frame) < opusFrameSamples {
				padded := make([]float32, opusFrameSamples)
				copy(padded, frame)
				frame = padded
			}
			packet, err := packetiser.Encode(frame)
			if err != nil {
				return fmt.Errorf("opus encode: %w", err)
			}
			if lastPacket != nil {
				mux.AddPacket(lastPacket, lastSamples)
			}
			lastPacket, lastSamples = packet, len(frame)
		}
		if lastPacket != nil {
			mux.Finalize(lastPacket, lastSamples)
		}

		if err := os.WriteFile(c.String("out"), mux.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", c.String("out"), err)
		}
		fmt.Fprintf(os.Stderr, "[+] wrote %s\n", c.String("out"))
		return nil
	},
}

var decodeWavCommand = &cli.Command{
	Name:  "decode-ogg",
	Usage: "Opus-decode an Ogg Opus container back into a WAV file",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "in", Required: true},
		&cli.StringFlag{Name: "out", Required: true},
	},
	Action: func(c *cli.Context) error {
		cfg := loadConfigOrExit(c)
		log := logutil.New(rootLogger(c, cfg)).With().Str("command", "decode-ogg").Logger()

		data, err := os.ReadFile(c.String("in"))
		if err != nil {
			return fmt.Errorf("read %s: %w", c.String("in"), err)
		}

		demuxer := &ogg.OggDemuxer{}
		packets := demuxer.Demux(data)
		for _, w := range demuxer.Warnings {
			log.Warn().Err(w).Msg("ogg demux warning")
		}

		const opusRate = 48000
		const channels = 1
		depacketiser, err := voice.NewDepacketiser(opusRate, channels, opusFrameSamples)
		if err != nil {
			return fmt.Errorf("new depacketiser: %w", err)
		}

		var pcm []float32
		for _, packet := range packets {
			frame, err := depacketiser.Decode(packet)
			if err != nil {
				return fmt.Errorf("opus decode: %w", err)
			}
			pcm = append(pcm, frame...)
		}
		log.Debug().Int("packets", len(packets)).Int("samples", len(pcm)).Msg("decoded ogg opus")

		wav := wavcodec.Encode(pcm, opusRate, channels)
		if err := os.WriteFile(c.String("out"), wav, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", c.String("out"), err)
		}
		fmt.Fprintf(os.Stderr, "[+] wrote %s\n", c.String("out"))
		return nil
	},
}
