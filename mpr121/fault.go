package mpr121

import (
	"errors"
	"fmt"

	"github.com/mklimuk/capsense"
)

// ErrInvalidArgument is returned for malformed caller input: electrode index
// out of range, unknown sample period, wrong call shape. Nothing is written
// to the device when it is returned.
var ErrInvalidArgument = errors.New("invalid argument")

// FaultCode classifies abnormal conditions reported by the chip or the bus.
// FaultCode values are errors so they can be matched with errors.Is.
type FaultCode int

const (
	Unknown FaultCode = iota
	AddressUnknown
	ReadbackFailure
	Overcurrent
	OutOfRange
	NotInitialized
)

func (c FaultCode) String() string {
	switch c {
	case AddressUnknown:
		return "AddressUnknown"
	case ReadbackFailure:
		return "ReadbackFailure"
	case Overcurrent:
		return "Overcurrent"
	case OutOfRange:
		return "OutOfRange"
	case NotInitialized:
		return "NotInitialized"
	default:
		return "Unknown"
	}
}

func (c FaultCode) Error() string {
	switch c {
	case AddressUnknown:
		return "incorrect address"
	case ReadbackFailure:
		return "readback failure"
	case Overcurrent:
		return "overcurrent on REXT pin"
	case OutOfRange:
		return "electrode out of range"
	case NotInitialized:
		return "not initialised"
	default:
		return "unknown error"
	}
}

// ErrorCode is the raw status code reported by the chip library layer.
type ErrorCode int

const (
	NoError ErrorCode = iota
	ReturnToSender
	AddressUnknownCode
	ReadbackFailCode
	OvercurrentFlagCode
	OutOfRangeCode
	NotInitedCode
)

// FaultFromCode maps a raw error code onto the fault taxonomy. Codes without
// a dedicated fault map to Unknown. The driver reports faults directly; this
// serves callers porting code that still deals in raw library codes.
func FaultFromCode(code ErrorCode) FaultCode {
	switch code {
	case AddressUnknownCode:
		return AddressUnknown
	case ReadbackFailCode:
		return ReadbackFailure
	case OvercurrentFlagCode:
		return Overcurrent
	case OutOfRangeCode:
		return OutOfRange
	case NotInitedCode:
		return NotInitialized
	default:
		return Unknown
	}
}

// Fault is the error returned when an operation hits a device or bus fault.
type Fault struct {
	Code FaultCode
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("mpr121 %s: %s: %v", f.Op, f.Code.Error(), f.Err)
	}
	return fmt.Sprintf("mpr121 %s: %s", f.Op, f.Code.Error())
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Is matches the fault against its code so errors.Is(err, mpr121.Overcurrent) works.
func (f *Fault) Is(target error) bool {
	code, ok := target.(FaultCode)
	return ok && code == f.Code
}

// classify maps a transport error onto a fault code. A bus error is read as
// the chip not acknowledging its address, except for a busy bridge engine.
func classify(err error) FaultCode {
	if errors.Is(err, capsense.ErrBusBusy) {
		return Unknown
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return AddressUnknown
}

func newFault(op string, code FaultCode, err error) *Fault {
	return &Fault{Op: op, Code: code, Err: err}
}

func busFault(op string, err error) *Fault {
	return newFault(op, classify(err), err)
}

// AsFault extracts the fault code carried by err.
func AsFault(err error) (FaultCode, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code, true
	}
	return Unknown, false
}
