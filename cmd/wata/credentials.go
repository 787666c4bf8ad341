package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/adriaanm/wata/internal/logutil"
	"github.com/adriaanm/wata/pkg/mfsk"
	"github.com/adriaanm/wata/pkg/wavcodec"
)

// prompt mirrors the teacher's login_cli.go stdin prompt helpers; wata
// has no password-masking terminal dependency, so the password is read
// through prompt as a plain line too.
func prompt(label string) string {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptCredentials() mfsk.OnboardingCredentials {
	return mfsk.OnboardingCredentials{
		Homeserver: prompt("Homeserver URL"),
		Username:   prompt("Username"),
		Password:   prompt("Password"),
		Room:       prompt("Room ID or alias"),
	}
}

var sendCredentialsCommand = &cli.Command{
	Name:  "send-credentials",
	Usage: "encode Matrix credentials as an audio clip a nearby device can hear",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "homeserver"},
		&cli.StringFlag{Name: "username"},
		&cli.StringFlag{Name: "password"},
		&cli.StringFlag{Name: "room"},
		&cli.StringFlag{Name: "out", Value: "credentials.wav", Usage: "output WAV path"},
	},
	Action: func(c *cli.Context) error {
		cfg := loadConfigOrExit(c)
		log := logutil.New(rootLogger(c, cfg)).With().Str("command", "send-credentials").Logger()

		profile, err := cfg.ResolveProfile(c.String("profile"))
		if err != nil {
			return err
		}

		creds := mfsk.OnboardingCredentials{
			Homeserver: firstNonEmpty(c.String("homeserver"), profile.Homeserver),
			Username:   firstNonEmpty(c.String("username"), profile.Username),
			Password:   firstNonEmpty(c.String("password"), profile.Password),
			Room:       firstNonEmpty(c.String("room"), profile.DefaultRoom),
		}
		if creds.Homeserver == "" {
			creds = promptCredentials()
		}

		return writeCredentialsWAV(log, creds, c.String("out"))
	},
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeCredentialsWAV(log zerolog.Logger, creds mfsk.OnboardingCredentials, outPath string) error {
	modemCfg := mfsk.DefaultConfig()
	samples, err := mfsk.Encode(creds, modemCfg)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	log.Debug().Int("samples", len(samples)).Msg("modulated credential tones")

	wav := wavcodec.Encode(samples, modemCfg.SampleRateHz, 1)
	if err := os.WriteFile(outPath, wav, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Fprintf(os.Stderr, "[+] wrote %s\n", outPath)
	return nil
}

var receiveCredentialsCommand = &cli.Command{
	Name:  "receive-credentials",
	Usage: "decode Matrix credentials from a recorded audio clip",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "in", Value: "credentials.wav", Usage: "input WAV path"},
	},
	Action: func(c *cli.Context) error {
		cfg := loadConfigOrExit(c)
		log := logutil.New(rootLogger(c, cfg)).With().Str("command", "receive-credentials").Logger()

		data, err := os.ReadFile(c.String("in"))
		if err != nil {
			return fmt.Errorf("read %s: %w", c.String("in"), err)
		}
		decoded, err := wavcodec.Decode(data)
		if err != nil {
			return fmt.Errorf("decode wav: %w", err)
		}

		modemCfg := mfsk.DefaultConfig()
		modemCfg.SampleRateHz = decoded.SampleRate
		creds, err := mfsk.Decode(decoded.Samples, modemCfg)
		if err != nil {
			return fmt.Errorf("decode credentials: %w", err)
		}
		log.Info().Str("homeserver", creds.Homeserver).Str("room", creds.Room).Msg("recovered credentials")

		fmt.Printf("homeserver: %s\nusername: %s\nroom: %s\n", creds.Homeserver, creds.Username, creds.Room)
		return nil
	},
}
