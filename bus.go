package capsense

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// RegisterReader is implemented by transports able to select a register and
// read it back in a single transaction (repeated start). Drivers fall back to
// a pointer write followed by a separate read when the bus does not implement it.
type RegisterReader interface {
	ReadRegister(ctx context.Context, address byte, register byte, buffer []byte) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
}
