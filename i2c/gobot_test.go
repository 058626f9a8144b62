package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gobot.io/x/gobot/v2/drivers/i2c"
)

type fakeConnection struct {
	i2c.Connection
	regs    map[byte][]byte
	written [][]byte
	readN   int
	closed  bool
}

func (c *fakeConnection) Write(b []byte) (int, error) {
	c.written = append(c.written, append([]byte(nil), b...))
	return len(b), nil
}

func (c *fakeConnection) Read(b []byte) (int, error) {
	n := len(b)
	if c.readN >= 0 && c.readN < n {
		n = c.readN
	}
	for i := 0; i < n; i++ {
		b[i] = byte(i + 1)
	}
	return n, nil
}

func (c *fakeConnection) ReadBlockData(reg uint8, b []byte) error {
	data, ok := c.regs[reg]
	if !ok {
		return errors.New("remote I/O error")
	}
	copy(b, data)
	return nil
}

func (c *fakeConnection) Close() error {
	c.closed = true
	return nil
}

type fakeConnector struct {
	i2c.Connector
	opened map[int]*fakeConnection
	buses  []int
}

func (f *fakeConnector) DefaultI2cBus() int {
	return 2
}

func (f *fakeConnector) GetI2cConnection(address int, busNr int) (i2c.Connection, error) {
	if address == 0x77 {
		return nil, errors.New("no such device")
	}
	f.buses = append(f.buses, busNr)
	conn := &fakeConnection{regs: map[byte][]byte{0x5D: {0x24}}, readN: -1}
	f.opened[address] = conn
	return conn, nil
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{opened: make(map[int]*fakeConnection)}
}

func TestGobotBus_ConnectionPerAddress(t *testing.T) {
	connector := newFakeConnector()
	bus := NewGobotBus(connector, -1)
	ctx := context.Background()

	require.NoError(t, bus.WriteToAddr(ctx, 0x5C, []byte{0x80, 0x63}))
	require.NoError(t, bus.WriteToAddr(ctx, 0x5C, []byte{0x5E, 0x00}))
	require.NoError(t, bus.WriteToAddr(ctx, 0x5A, []byte{0x5E, 0x00}))

	assert.Len(t, connector.opened, 2)
	assert.Equal(t, []int{2, 2}, connector.buses)
	assert.Equal(t, [][]byte{{0x80, 0x63}, {0x5E, 0x00}}, connector.opened[0x5C].written)

	buf := make([]byte, 3)
	require.NoError(t, bus.ReadFromAddr(ctx, 0x5C, buf))
	assert.Equal(t, []byte{1, 2, 3}, buf)

	require.NoError(t, bus.Close())
	assert.True(t, connector.opened[0x5C].closed)
	assert.True(t, connector.opened[0x5A].closed)
}

func TestGobotBus_Errors(t *testing.T) {
	connector := newFakeConnector()
	bus := NewGobotBus(connector, 1)
	ctx := context.Background()

	assert.ErrorContains(t, bus.WriteToAddr(ctx, 0x77, []byte{0x00}), "no such device")

	require.NoError(t, bus.WriteToAddr(ctx, 0x5C, []byte{0x00}))
	assert.Equal(t, []int{1}, connector.buses)
	connector.opened[0x5C].readN = 1
	assert.ErrorContains(t, bus.ReadFromAddr(ctx, 0x5C, make([]byte, 2)), "short read")
}

func TestGobotBus_ReadRegister(t *testing.T) {
	bus := NewGobotBus(newFakeConnector(), -1)
	ctx := context.Background()
	buf := make([]byte, 1)
	require.NoError(t, bus.ReadRegister(ctx, 0x5C, 0x5D, buf))
	assert.Equal(t, []byte{0x24}, buf)
	assert.ErrorContains(t, bus.ReadRegister(ctx, 0x5C, 0x00, buf), "remote I/O error")
	assert.NoError(t, bus.Release(ctx))
}
