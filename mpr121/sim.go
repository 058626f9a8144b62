package mpr121

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/capsense"
)

// ErrSimulatedNack is returned by the Simulator for transactions addressed to
// another device or while NACK injection is on.
var ErrSimulatedNack = errors.New("simulated NACK")

const (
	simIdleLevel   = 720
	simTouchDelta  = 60
	simSweepPeriod = 4
)

var _ capsense.I2CBus = &Simulator{}

// Simulator emulates the MPR121 register file behind a capsense.I2CBus. It
// keeps a register pointer with auto-increment, ignores writes to protected
// registers in run mode and derives touch status from the thresholds while
// running. Faults can be injected for testing.
type Simulator struct {
	mx      sync.Mutex
	address byte
	regs    [256]byte
	pointer byte

	pressed   uint16
	refreshes int

	// Sweep presses the electrodes one after another on successive refreshes.
	Sweep bool

	nack        bool
	busy        bool
	readback    *byte
	overcurrent bool
	outOfRange  uint16
	failAfter   int
	failErr     error

	transactions int
	writes       int
}

func NewSimulator(address byte) *Simulator {
	s := &Simulator{address: address, failAfter: -1}
	s.softReset()
	return s
}

func (s *Simulator) softReset() {
	s.regs = [256]byte{}
	s.pointer = 0
	s.regs[regAFE1] = 0x10
	s.regs[regAFE2] = afe2ResetValue
	if s.readback != nil {
		s.regs[regAFE2] = *s.readback
	}
}

// Press marks an electrode as touched by a finger.
func (s *Simulator) Press(index int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.pressed |= 1 << index
}

func (s *Simulator) Lift(index int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.pressed &^= 1 << index
}

// SetNack makes every transaction fail as if no device answered.
func (s *Simulator) SetNack(on bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.nack = on
}

// SetBusy makes every transaction fail with capsense.ErrBusBusy.
func (s *Simulator) SetBusy(on bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.busy = on
}

// SetReadback overrides the AFE2 value the chip reports after a soft reset.
func (s *Simulator) SetReadback(v byte) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.readback = &v
}

func (s *Simulator) SetOvercurrent(on bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.overcurrent = on
}

// SetOutOfRange sets the out-of-range status bits reported for electrodes.
func (s *Simulator) SetOutOfRange(mask uint16) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.outOfRange = mask
}

// FailAfter lets n more transactions succeed and fails the next one with err.
func (s *Simulator) FailAfter(n int, err error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.failAfter = n
	s.failErr = err
}

// Register returns the raw content of a register.
func (s *Simulator) Register(reg byte) byte {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.regs[reg]
}

// Writes returns the number of register writes accepted so far.
func (s *Simulator) Writes() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.writes
}

func (s *Simulator) Transactions() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.transactions
}

func (s *Simulator) transaction(address byte) error {
	s.transactions++
	if s.failAfter == 0 {
		s.failAfter = -1
		return s.failErr
	}
	if s.failAfter > 0 {
		s.failAfter--
	}
	if s.busy {
		return capsense.ErrBusBusy
	}
	if s.nack || address != s.address {
		return fmt.Errorf("address %x: %w", address, ErrSimulatedNack)
	}
	return nil
}

func (s *Simulator) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.transaction(address); err != nil {
		return err
	}
	if len(buffer) == 0 {
		return nil
	}
	s.pointer = buffer[0]
	for _, b := range buffer[1:] {
		s.write(s.pointer, b)
		s.pointer++
	}
	return nil
}

func (s *Simulator) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.transaction(address); err != nil {
		return err
	}
	if s.pointer == regTouchStatusL && s.running() {
		s.refresh()
	}
	for i := range buffer {
		buffer[i] = s.read(s.pointer)
		s.pointer++
	}
	return nil
}

func (s *Simulator) Release(ctx context.Context) error {
	return nil
}

func (s *Simulator) running() bool {
	return s.regs[regECR] != 0
}

func (s *Simulator) write(reg, val byte) {
	switch {
	case reg == regSoftReset:
		if val == softResetValue {
			s.softReset()
		}
		s.writes++
		return
	case reg <= regBaseline0+NumElectrodes:
		// status and data registers are read only
		return
	case s.running() && !writableWhileRunning(reg):
		return
	}
	s.regs[reg] = val
	s.writes++
}

func (s *Simulator) read(reg byte) byte {
	switch reg {
	case regTouchStatusH:
		if s.overcurrent {
			return s.regs[reg] | overcurrentFlag
		}
	case regOORStatusL:
		return byte(s.outOfRange)
	case regOORStatusH:
		return byte(s.outOfRange>>8) & 0x1F
	}
	return s.regs[reg]
}

// refresh emulates one sampling cycle of the enabled electrodes.
func (s *Simulator) refresh() {
	s.refreshes++
	pressed := s.pressed
	if s.Sweep {
		cursor := (s.refreshes / simSweepPeriod) % (NumElectrodes + 1)
		pressed = 0
		if cursor < NumElectrodes {
			pressed = 1 << cursor
		}
	}
	enabled := int(s.regs[regECR] & 0x0F)
	if enabled > NumElectrodes {
		enabled = NumElectrodes
	}
	status := binary.LittleEndian.Uint16(s.regs[regTouchStatusL:])
	for i := 0; i < enabled; i++ {
		mask := uint16(1) << i
		filtered := uint16(simIdleLevel)
		if pressed&mask != 0 {
			filtered -= simTouchDelta
		}
		binary.LittleEndian.PutUint16(s.regs[regFilteredData0+byte(2*i):], filtered)
		s.regs[regBaseline0+byte(i)] = byte(simIdleLevel >> 2)
		delta := int(simIdleLevel) - int(filtered)
		touchTh := int(s.regs[regTouchThreshold0+byte(2*i)])
		releaseTh := int(s.regs[regReleaseThreshold0+byte(2*i)])
		switch {
		case status&mask == 0 && delta > touchTh:
			status |= mask
		case status&mask != 0 && delta < releaseTh:
			status &^= mask
		}
	}
	binary.LittleEndian.PutUint16(s.regs[regTouchStatusL:], status)
}
