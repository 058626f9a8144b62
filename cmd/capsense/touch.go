package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mklimuk/capsense/cmd/capsense/console"
	"github.com/mklimuk/capsense/mpr121"
	"github.com/urfave/cli/v2"
)

var touchCmd = cli.Command{
	Name:  "touch",
	Usage: "read and configure the touch controller",
	Subcommands: cli.Commands{
		&touchReadCmd,
		&touchWatchCmd,
		&touchStatusCmd,
		&touchShellCmd,
		&touchDecodeCmd,
	},
}

var touchReadCmd = cli.Command{
	Name:  "read",
	Usage: "print one snapshot of all electrodes",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "output format: table, yaml or cbor",
			Value:   formatTable,
		},
		&cli.BoolFlag{
			Name:  "run",
			Usage: "enter run mode and wait one sample period before reading",
		},
	},
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		dev, cleanup, err := openDevice(c)
		if err != nil {
			return exitError("could not open device", err)
		}
		defer cleanup()
		if c.Bool("run") && !dev.IsRunning() {
			if err := dev.Run(ctx); err != nil {
				return exitError("could not start sampling", err)
			}
			period, err := dev.SamplePeriod(ctx)
			if err != nil {
				return exitError("could not read sample period", err)
			}
			time.Sleep(2 * period.Duration())
		}
		snap, err := dev.Step(ctx)
		if err != nil {
			return exitError("could not read electrodes", err)
		}
		if err := writeSnapshot(console.Writer(), c.String("format"), snap); err != nil {
			return exitError("output error", err)
		}
		return nil
	},
}

var touchWatchCmd = cli.Command{
	Name:  "watch",
	Usage: "poll the controller and print touch and release events",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Value:   100 * time.Millisecond,
		},
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Usage:   "stop after n polls (0 polls until interrupted)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "output format: events or cbor (one snapshot per poll)",
			Value:   formatEvents,
		},
	},
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(commandContext(c), os.Interrupt, syscall.SIGTERM)
		defer stop()
		emit, err := newPollWriter(console.Writer(), c.String("format"))
		if err != nil {
			return exitError("invalid format", err)
		}
		// keep stdout a clean stream when it carries CBOR
		info := console.PInfof
		if c.String("format") == formatCBOR {
			info = func(_ string, msg string, args ...interface{}) { slog.Info(fmt.Sprintf(msg, args...)) }
		}
		dev, cleanup, err := openDevice(c)
		if err != nil {
			return exitError("could not open device", err)
		}
		defer cleanup()
		if !dev.IsRunning() {
			if err := dev.Run(ctx); err != nil {
				return exitError("could not start sampling", err)
			}
		}
		info(console.PictoPin, "watching electrodes on %#02x every %s", dev.Address(), c.Duration("interval"))
		polls, err := watch(ctx, dev, c.Duration("interval"), c.Int("count"), emit)
		if err != nil {
			return exitError("polling failed", err)
		}
		info(console.PictoFinish, "%d polls", polls)
		return nil
	},
}

// watch polls sensor every interval and hands each snapshot to emit until
// ctx is done or count polls have been made. It returns the number of
// successful polls.
func watch(ctx context.Context, sensor mpr121.TouchSensor, interval time.Duration, count int, emit pollWriter) (int, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("%w: interval %s", mpr121.ErrInvalidArgument, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	polls := 0
	for count <= 0 || polls < count {
		snap, err := sensor.Step(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return polls, nil
			}
			return polls, err
		}
		polls++
		if err := emit(snap); err != nil {
			return polls, fmt.Errorf("could not write snapshot: %w", err)
		}
		if count > 0 && polls >= count {
			break
		}
		select {
		case <-ctx.Done():
			return polls, nil
		case <-ticker.C:
		}
	}
	return polls, nil
}

var touchDecodeCmd = cli.Command{
	Name:      "decode",
	Usage:     "print a CBOR snapshot stream recorded with watch --format cbor",
	ArgsUsage: "[file]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "output format: events, table or yaml",
			Value:   formatEvents,
		},
	},
	Action: func(c *cli.Context) error {
		var in io.Reader = os.Stdin
		if path := c.Args().First(); path != "" && path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return exitError("could not open stream", err)
			}
			defer func() { _ = f.Close() }()
			in = f
		}
		n, err := decodeStream(in, console.Writer(), c.String("format"))
		if err != nil {
			return exitError(fmt.Sprintf("could not decode snapshot %d", n+1), err)
		}
		console.PInfof(console.PictoFinish, "%d snapshots", n)
		return nil
	},
}

var touchStatusCmd = cli.Command{
	Name:  "status",
	Usage: "show the handshake result and device configuration",
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		dev, cleanup, handshakeErr := openHandle(c)
		if dev == nil {
			return exitError("could not open device", handshakeErr)
		}
		defer cleanup()
		if err := writeStatus(ctx, console.Writer(), dev); err != nil {
			return exitError("could not read status", err)
		}
		if handshakeErr != nil {
			return exitError("handshake failed", handshakeErr)
		}
		return nil
	},
}

// writeStatus prints the handle state. The sample period is only read back
// from an initialized device.
func writeStatus(ctx context.Context, w io.Writer, dev *mpr121.Device) error {
	fault := "none"
	if code, ok := dev.LastFault(); ok {
		fault = console.Red(code.String())
	}
	period := "-"
	if dev.IsInited() {
		p, err := dev.SamplePeriod(ctx)
		if err != nil {
			return err
		}
		period = p.String()
	}
	tw := tabwriter.NewWriter(w, 4, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "address\t%#02x\n", dev.Address())
	_, _ = fmt.Fprintf(tw, "state\t%s\n", dev.State())
	_, _ = fmt.Fprintf(tw, "inited\t%t\n", dev.IsInited())
	_, _ = fmt.Fprintf(tw, "running\t%t\n", dev.IsRunning())
	_, _ = fmt.Fprintf(tw, "last fault\t%s\n", fault)
	_, _ = fmt.Fprintf(tw, "sample period\t%s\n", period)
	return tw.Flush()
}
