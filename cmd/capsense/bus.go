package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mklimuk/capsense"
	"github.com/mklimuk/capsense/adapter"
	"github.com/mklimuk/capsense/cmd/capsense/console"
	"github.com/mklimuk/capsense/i2c"
	"github.com/mklimuk/capsense/mpr121"
	"github.com/mklimuk/capsense/snsctx"
	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
)

const (
	adapterMCP2221 = "mcp2221"
	adapterGeneric = "generic"
	adapterGobot   = "gobot"
	adapterSim     = "sim"
)

func commandContext(c *cli.Context) context.Context {
	return snsctx.SetVerbose(c.Context, c.Bool("verbose"))
}

// openBus opens the transport selected with --adapter. The returned close
// function releases adapter resources and never fails.
func openBus(c *cli.Context, address byte) (capsense.I2CBus, func(), error) {
	ctx := commandContext(c)
	switch name := c.String("adapter"); name {
	case adapterMCP2221:
		bridge := adapter.NewMCP2221()
		if err := bridge.Init(); err != nil {
			return nil, nil, fmt.Errorf("could not initialize mcp2221: %w", err)
		}
		if err := bridge.SetSpeed(ctx, c.Int("speed")); err != nil {
			return nil, nil, fmt.Errorf("could not set mcp2221 speed: %w", err)
		}
		return bridge, func() {}, nil
	case adapterGeneric:
		bus, err := i2c.NewGenericBus(c.String("device"))
		if err != nil {
			return nil, nil, err
		}
		if err := bus.SetSpeed(c.Int("speed")); err != nil {
			slog.Warn("could not set bus speed", "device", c.String("device"), "error", err)
		}
		return bus, func() {
			if err := bus.Close(); err != nil {
				slog.Warn("could not close bus", "error", err)
			}
		}, nil
	case adapterGobot:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		bus := i2c.NewGobotBus(npi, c.Int("bus"))
		return bus, func() {
			if err := bus.Close(); err != nil {
				slog.Warn("could not close gobot connections", "error", err)
			}
			if err := npi.I2cBusAdaptor.Finalize(); err != nil {
				slog.Warn("could not finalize adaptor", "error", err)
			}
		}, nil
	case adapterSim:
		sim := mpr121.NewSimulator(address)
		sim.Sweep = true
		return sim, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown adapter %q", name)
	}
}

// loadProfile returns the profile named by --profile, nil when unset.
func loadProfile(c *cli.Context) (*mpr121.Profile, error) {
	path := c.String("profile")
	if path == "" {
		return nil, nil
	}
	return mpr121.LoadProfileFile(path)
}

// deviceAddress resolves the chip address; an explicit --address wins over
// the profile.
func deviceAddress(c *cli.Context, profile *mpr121.Profile) (byte, error) {
	if profile != nil && profile.Address != "" && !c.IsSet("address") {
		return profile.DeviceAddress()
	}
	return mpr121.ParseAddress(c.String("address"))
}

// openDevice opens the bus, performs the handshake and applies the profile.
// The returned cleanup closes the device and the bus.
func openDevice(c *cli.Context) (*mpr121.Device, func(), error) {
	dev, cleanup, err := openHandle(c)
	if err != nil && cleanup != nil {
		cleanup()
	}
	if err != nil {
		return nil, nil, err
	}
	return dev, cleanup, nil
}

// openHandle is openDevice for commands that query a faulted handle. When the
// handshake fails the handle and its cleanup are returned with the fault.
func openHandle(c *cli.Context) (*mpr121.Device, func(), error) {
	profile, err := loadProfile(c)
	if err != nil {
		return nil, nil, err
	}
	address, err := deviceAddress(c, profile)
	if err != nil {
		return nil, nil, err
	}
	bus, closeBus, err := openBus(c, address)
	if err != nil {
		return nil, nil, err
	}
	return setupDevice(commandContext(c), bus, closeBus, address, profile)
}

func setupDevice(ctx context.Context, bus capsense.I2CBus, closeBus func(), address byte, profile *mpr121.Profile) (*mpr121.Device, func(), error) {
	dev, err := mpr121.New(ctx, bus, mpr121.WithAddress(address))
	cleanup := func() {
		if err := dev.Close(ctx); err != nil {
			slog.Warn("could not close device", "error", err)
		}
		closeBus()
	}
	if err != nil {
		return dev, cleanup, err
	}
	if profile != nil {
		if err := profile.Apply(ctx, dev); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("could not apply profile: %w", err)
		}
	}
	return dev, cleanup, nil
}

// exitError maps driver errors to CLI exit codes.
func exitError(msg string, err error) cli.ExitCoder {
	if code, ok := mpr121.AsFault(err); ok {
		return console.Exit(console.ExitFault, "%s: %s (%s)", msg, console.Red(err), code)
	}
	if errors.Is(err, mpr121.ErrInvalidArgument) {
		return console.Exit(console.ExitUsage, "%s: %s", msg, console.Red(err))
	}
	return console.Exit(console.ExitFailure, "%s: %s", msg, console.Red(err))
}
