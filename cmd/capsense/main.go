package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"
)

var version string
var commit string
var date string

func main() {
	os.Exit(run())
}

func run() int {
	app := cli.NewApp()
	app.Name = "capsense"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "MPR121 capacitive touch controller cli"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "enable verbose logging and bus traffic dumps",
		},
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Usage:   "bus adapter: mcp2221, generic, gobot or sim",
			Value:   adapterMCP2221,
			EnvVars: []string{"CAPSENSE_ADAPTER"},
		},
		&cli.StringFlag{
			Name:    "device",
			Usage:   "I2C device for the generic adapter",
			Value:   "/dev/i2c-1",
			EnvVars: []string{"CAPSENSE_DEVICE"},
		},
		&cli.IntFlag{
			Name:  "bus",
			Usage: "I2C bus number for the gobot adapter (-1 for the board default)",
			Value: -1,
		},
		&cli.StringFlag{
			Name:    "address",
			Usage:   "chip address in hex (5a-5d)",
			Value:   "5c",
			EnvVars: []string{"CAPSENSE_ADDRESS"},
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "YAML profile applied after the handshake",
			EnvVars: []string{"CAPSENSE_PROFILE"},
		},
		&cli.IntFlag{
			Name:  "speed",
			Usage: "bus frequency in kHz",
			Value: 100,
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stderr, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.EnvColorProfile())
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Commands = cli.Commands{
		&touchCmd,
		&usbCmd,
		&mcp2221Cmd,
	}
	err := app.Run(os.Args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			log.Printf("unexpected error: %v", err)
			return exerr.ExitCode()
		}
		log.Printf("unexpected error: %v", err)
		return 1
	}
	return 0
}
