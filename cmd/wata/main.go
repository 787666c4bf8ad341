// wata - acoustic credential onboarding and container tooling for a
// walkie-talkie style Matrix client.
//
// This is the CLI surface over pkg/mfsk, pkg/wavcodec, pkg/resample and
// pkg/ogg: turn a set of Matrix credentials into an audio clip another
// device's microphone can hear (the send-credentials subcommand), and the
// reverse (receive-credentials). Structured the way the teacher's
// cmd/mautrix-imessage/main.go wires a connector into a runnable binary,
// but driven by urfave/cli/v2 flags directly rather than the bridge
// framework's mxmain.BridgeMain, since wata has no bridge to run.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/adriaanm/wata/internal/config"
	"github.com/adriaanm/wata/internal/logutil"
)

var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "wata",
		Usage:   "acoustic Matrix credential exchange and container tooling",
		Version: fmt.Sprintf("%s (%s, %s)", Tag, Commit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.yaml", Usage: "path to config file"},
			&cli.StringFlag{Name: "profile", Usage: "named credential profile to use instead of prompting"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Commands: []*cli.Command{
			sendCredentialsCommand,
			receiveCredentialsCommand,
			encodeWavCommand,
			decodeWavCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "[!] %v\n", err)
		os.Exit(1)
	}
}

func loadConfigOrExit(c *cli.Context) *config.Config {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "[*] no usable config at %s (%v), using defaults\n", c.String("config"), err)
		return &config.Config{}
	}
	return cfg
}

func rootLogger(c *cli.Context, cfg *config.Config) (logOpts logutil.Options) {
	return logutil.Options{Debug: c.Bool("debug") || cfg.Logging.Debug, JSON: cfg.Logging.JSON}
}
