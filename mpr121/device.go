// Package mpr121 drives the NXP/Freescale MPR121 12-channel capacitive touch
// sensor controller over I2C.
//
// A Device owns one chip on one bus. Construction performs a soft reset
// handshake and applies the default configuration; afterwards the chip sits
// in stop mode until Run is called. Every operation is synchronous and blocks
// on the underlying transport.
//
// Typical usage:
//
//	dev, err := mpr121.New(ctx, bus)
//	if err != nil {
//		code, _ := mpr121.AsFault(err)
//		...
//	}
//	_ = dev.Run(ctx)
//	snap, err := dev.Step(ctx)
//
// Datasheet: https://www.nxp.com/docs/en/data-sheet/MPR121.pdf
package mpr121

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/capsense"
	"github.com/mklimuk/capsense/snsctx"
)

// State is the lifecycle state of a Device.
type State int

const (
	Uninitialized State = iota
	Inited
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Inited:
		return "inited"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "uninitialized"
	}
}

var errClosed = errors.New("device handle closed")

type Opts struct {
	Address    byte
	ResetDelay time.Duration
}

type Opt func(*Opts)

// WithAddress sets the bus address; the chip answers on 0x5A-0x5D.
func WithAddress(address byte) Opt {
	return func(o *Opts) {
		o.Address = address
	}
}

// WithResetDelay sets how long to wait after the soft reset before reading
// the chip back.
func WithResetDelay(delay time.Duration) Opt {
	return func(o *Opts) {
		o.ResetDelay = delay
	}
}

// Device is a handle to one MPR121 chip. Its methods are the only mutators of
// the chip registers. A Device must not be polled from several goroutines at
// once; the internal mutex only keeps multi-register sequences intact.
type Device struct {
	mx         sync.Mutex
	transport  capsense.I2CBus
	address    byte
	resetDelay time.Duration

	state     State
	closed    bool
	lastFault *Fault
	// touch status seen by the previous successful Step
	touched uint16
}

// New creates a handle for the chip at the configured address (0x5C by
// default) and performs the initialization handshake.
//
// The returned Device is never nil. When the handshake fails the error is a
// *Fault, the Device stays Uninitialized and LastFault reports the cause;
// Reset may be used to retry.
func New(ctx context.Context, bus capsense.I2CBus, opts ...Opt) (*Device, error) {
	config := Opts{
		Address:    DefaultAddress,
		ResetDelay: time.Millisecond,
	}
	for _, opt := range opts {
		opt(&config)
	}
	d := &Device{
		transport:  bus,
		address:    config.Address,
		resetDelay: config.ResetDelay,
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.handshake(ctx, "init"); err != nil {
		return d, err
	}
	return d, nil
}

// Open parses a hexadecimal address ("5c", "0x5C"; empty means default) and
// calls New. A malformed address returns ErrInvalidArgument and no Device.
func Open(ctx context.Context, bus capsense.I2CBus, address string, opts ...Opt) (*Device, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return New(ctx, bus, append(opts, WithAddress(addr))...)
}

func (d *Device) Address() byte {
	return d.address
}

func (d *Device) State() State {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.state
}

// LastFault returns the fault recorded by the most recent failed handshake or
// bus operation. A successful handshake clears it.
func (d *Device) LastFault() (FaultCode, bool) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.lastFault == nil {
		return Unknown, false
	}
	return d.lastFault.Code, true
}

func (d *Device) IsRunning() bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.state == Running
}

func (d *Device) IsInited() bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.state != Uninitialized
}

// Run puts the chip in run mode so it samples the electrodes continuously.
func (d *Device) Run(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.checkInited("run"); err != nil {
		return err
	}
	if d.state == Running {
		return nil
	}
	if err := d.writeRaw(ctx, regECR, defaultECR); err != nil {
		return d.fail(busFault("run", err))
	}
	d.setState(ctx, Running)
	return nil
}

// Stop puts the chip in stop mode. Calling it on a stopped device does nothing.
func (d *Device) Stop(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.checkInited("stop"); err != nil {
		return err
	}
	if d.state == Stopped {
		return nil
	}
	if err := d.writeRaw(ctx, regECR, 0x00); err != nil {
		return d.fail(busFault("stop", err))
	}
	d.setState(ctx, Stopped)
	return nil
}

// Reset soft resets the chip and re-applies the default configuration,
// restoring default thresholds and sample period. It may be called in any
// state; on success the device is Inited (stopped).
func (d *Device) Reset(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return newFault("reset", NotInitialized, errClosed)
	}
	return d.handshake(ctx, "reset")
}

// Close stops the chip if it is running and releases the bus. The handle is
// unusable afterwards.
func (d *Device) Close(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return nil
	}
	var errs []error
	if d.state == Running {
		if err := d.writeRaw(ctx, regECR, 0x00); err != nil {
			errs = append(errs, fmt.Errorf("could not stop device: %w", err))
		}
	}
	if err := d.transport.Release(ctx); err != nil {
		errs = append(errs, fmt.Errorf("could not release bus: %w", err))
	}
	d.closed = true
	d.setState(ctx, Uninitialized)
	return errors.Join(errs...)
}

func (d *Device) handshake(ctx context.Context, op string) error {
	ctx = snsctx.WithTrace(ctx, "mpr121 "+op)
	d.state = Uninitialized
	d.touched = 0
	if d.address < minAddress || d.address > maxAddress {
		return d.fail(newFault(op, AddressUnknown, fmt.Errorf("address %#02x outside %#02x-%#02x", d.address, minAddress, maxAddress)))
	}
	if err := d.writeRaw(ctx, regSoftReset, softResetValue); err != nil {
		return d.fail(busFault(op, fmt.Errorf("soft reset: %w", err)))
	}
	if err := sleep(ctx, d.resetDelay); err != nil {
		return d.fail(newFault(op, Unknown, err))
	}
	afe2, err := d.read8(ctx, regAFE2)
	if err != nil {
		return d.fail(busFault(op, err))
	}
	if afe2 != afe2ResetValue {
		return d.fail(newFault(op, ReadbackFailure, fmt.Errorf("AFE2 reads %#02x after reset, expected %#02x", afe2, afe2ResetValue)))
	}
	status := make([]byte, 2)
	if err := d.read(ctx, regTouchStatusL, status); err != nil {
		return d.fail(busFault(op, err))
	}
	if status[1]&overcurrentFlag != 0 {
		return d.fail(newFault(op, Overcurrent, nil))
	}
	if err := d.applyDefaults(ctx); err != nil {
		return d.fail(busFault(op, err))
	}
	oor := make([]byte, 2)
	if err := d.read(ctx, regOORStatusL, oor); err != nil {
		return d.fail(busFault(op, err))
	}
	if oor[0] != 0 || oor[1] != 0 {
		return d.fail(newFault(op, OutOfRange, fmt.Errorf("out of range status %#02x%02x", oor[1], oor[0])))
	}
	d.lastFault = nil
	d.setState(ctx, Inited)
	return nil
}

// applyDefaults expects the chip in stop mode, as it is after a soft reset.
func (d *Device) applyDefaults(ctx context.Context) error {
	for _, s := range defaultSettings {
		if err := d.writeRaw(ctx, s.reg, s.val); err != nil {
			return fmt.Errorf("could not write default for register %#02x: %w", s.reg, err)
		}
	}
	for i := 0; i < NumElectrodes; i++ {
		if err := d.writeRaw(ctx, regTouchThreshold0+byte(2*i), DefaultTouchThreshold); err != nil {
			return fmt.Errorf("could not write touch threshold %d: %w", i, err)
		}
		if err := d.writeRaw(ctx, regReleaseThreshold0+byte(2*i), DefaultReleaseThreshold); err != nil {
			return fmt.Errorf("could not write release threshold %d: %w", i, err)
		}
	}
	return nil
}

func (d *Device) checkInited(op string) error {
	if d.closed {
		return newFault(op, NotInitialized, errClosed)
	}
	if d.state == Uninitialized {
		return newFault(op, NotInitialized, nil)
	}
	return nil
}

func (d *Device) fail(f *Fault) error {
	d.lastFault = f
	slog.Debug("mpr121 fault", "addr", fmt.Sprintf("%#02x", d.address), "op", f.Op, "fault", f.Code.String(), "error", f.Err)
	return f
}

func (d *Device) setState(ctx context.Context, s State) {
	if d.state != s {
		slog.DebugContext(ctx, "mpr121 state change", "addr", fmt.Sprintf("%#02x", d.address), "from", d.state.String(), "to", s.String())
	}
	d.state = s
}

// withStopped runs fn with the chip in stop mode; most registers ignore
// writes while the chip is running. The run mode is restored afterwards.
func (d *Device) withStopped(ctx context.Context, fn func() error) error {
	if d.state != Running {
		return fn()
	}
	if err := d.writeRaw(ctx, regECR, 0x00); err != nil {
		return fmt.Errorf("could not enter stop mode: %w", err)
	}
	fnErr := fn()
	if err := d.writeRaw(ctx, regECR, defaultECR); err != nil {
		return errors.Join(fnErr, fmt.Errorf("could not resume run mode: %w", err))
	}
	return fnErr
}

func (d *Device) writeRaw(ctx context.Context, reg, val byte) error {
	err := d.transport.WriteToAddr(ctx, d.address, []byte{reg, val})
	if err != nil {
		return fmt.Errorf("could not write register %#02x: %w", reg, err)
	}
	return nil
}

func (d *Device) read8(ctx context.Context, reg byte) (byte, error) {
	buf := make([]byte, 1)
	if err := d.read(ctx, reg, buf); err != nil {
		return 0x00, err
	}
	return buf[0], nil
}

func (d *Device) read(ctx context.Context, reg byte, buf []byte) error {
	if rr, ok := d.transport.(capsense.RegisterReader); ok {
		err := rr.ReadRegister(ctx, d.address, reg, buf)
		if err != nil {
			return fmt.Errorf("could not read register %#02x: %w", reg, err)
		}
		return nil
	}
	err := d.transport.WriteToAddr(ctx, d.address, []byte{reg})
	if err != nil {
		return fmt.Errorf("could not set register pointer %#02x: %w", reg, err)
	}
	err = d.transport.ReadFromAddr(ctx, d.address, buf)
	if err != nil {
		return fmt.Errorf("could not read register %#02x: %w", reg, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
