package i2c

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mklimuk/capsense"
	"github.com/mklimuk/capsense/snsctx"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var _ capsense.I2CBus = &GenericBus{}
var _ capsense.RegisterReader = &GenericBus{}

type GenericBus struct {
	bus i2c.BusCloser
}

func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return &GenericBus{
		bus: bus,
	}, nil
}

// SetSpeed changes the bus clock; kHz is the target frequency in kilohertz.
func (b *GenericBus) SetSpeed(kHz int) error {
	err := b.bus.SetSpeed(physic.Frequency(kHz) * physic.KiloHertz)
	if err != nil {
		return fmt.Errorf("could not set i2c bus speed to %d kHz: %w", kHz, err)
	}
	return nil
}

func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	snsctx.Dump(ctx, "i2c read", address, buffer)
	return nil
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	snsctx.Dump(ctx, "i2c write", address, buffer)
	err := b.bus.Tx(uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

// ReadRegister writes the register pointer and reads the response with a
// repeated start.
func (b *GenericBus) ReadRegister(ctx context.Context, address byte, register byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), []byte{register}, buffer)
	if err != nil {
		return fmt.Errorf("could not read register %#02x from i2c bus %x: %w", register, address, err)
	}
	snsctx.Dump(ctx, "i2c register read", address, buffer)
	return nil
}

func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}
