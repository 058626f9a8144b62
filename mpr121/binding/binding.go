// Package binding exposes an mpr121.Device through a loosely typed call
// surface (method name plus dynamic arguments) for scripting hosts and the
// interactive shell. Argument shapes are checked before any register access.
package binding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mklimuk/capsense"
	"github.com/mklimuk/capsense/mpr121"
)

const (
	MethodStep                = "step"
	MethodSetTouchThreshold   = "setTouchThreshold"
	MethodSetReleaseThreshold = "setReleaseThreshold"
	MethodSetSamplePeriod     = "setSamplePeriod"
	MethodRun                 = "run"
	MethodStop                = "stop"
	MethodReset               = "reset"
	MethodIsRunning           = "isRunning"
	MethodIsInited            = "isInited"
)

type Session struct {
	dev *mpr121.Device
}

// Construct opens a device. The only optional argument is the address as a
// hexadecimal string; nil or no argument selects the default address.
//
// When the handshake fails the session is still returned alongside the fault
// so isInited/isRunning stay callable.
func Construct(ctx context.Context, bus capsense.I2CBus, args ...any) (*Session, error) {
	if len(args) > 1 {
		return nil, wrongArguments("construct", args)
	}
	var address string
	if len(args) == 1 && args[0] != nil {
		s, ok := args[0].(string)
		if !ok {
			return nil, wrongArguments("construct", args)
		}
		address = s
	}
	dev, err := mpr121.Open(ctx, bus, address)
	if dev == nil {
		return nil, err
	}
	return &Session{dev: dev}, err
}

// NewSession wraps an existing device.
func NewSession(dev *mpr121.Device) *Session {
	return &Session{dev: dev}
}

func (s *Session) Device() *mpr121.Device {
	return s.dev
}

// Methods lists the method names accepted by Invoke.
func Methods() []string {
	res := []string{
		MethodStep,
		MethodSetTouchThreshold,
		MethodSetReleaseThreshold,
		MethodSetSamplePeriod,
		MethodRun,
		MethodStop,
		MethodReset,
		MethodIsRunning,
		MethodIsInited,
	}
	sort.Strings(res)
	return res
}

// Invoke calls method with args. Numbers may be passed as any Go integer
// kind, as integral floats or as decimal strings. setSamplePeriod takes
// milliseconds, fractions included, and rounds up to the next supported
// period.
func (s *Session) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	switch method {
	case MethodStep:
		if len(args) != 0 {
			return nil, wrongArguments(method, args)
		}
		return s.dev.Step(ctx)
	case MethodSetTouchThreshold:
		return nil, s.threshold(ctx, method, args, s.dev.SetTouchThreshold, s.dev.SetElectrodeTouchThreshold)
	case MethodSetReleaseThreshold:
		return nil, s.threshold(ctx, method, args, s.dev.SetReleaseThreshold, s.dev.SetElectrodeReleaseThreshold)
	case MethodSetSamplePeriod:
		if len(args) != 1 {
			return nil, wrongArguments(method, args)
		}
		ms, ok := toMillis(args[0])
		if !ok {
			return nil, wrongArguments(method, args)
		}
		period, err := mpr121.SamplePeriodFromMillis(ms)
		if err != nil {
			return nil, err
		}
		return nil, s.dev.SetSamplePeriod(ctx, period)
	case MethodRun, MethodStop, MethodReset:
		if len(args) != 0 {
			return nil, wrongArguments(method, args)
		}
		switch method {
		case MethodRun:
			return nil, s.dev.Run(ctx)
		case MethodStop:
			return nil, s.dev.Stop(ctx)
		default:
			return nil, s.dev.Reset(ctx)
		}
	case MethodIsRunning:
		if len(args) != 0 {
			return nil, wrongArguments(method, args)
		}
		return s.dev.IsRunning(), nil
	case MethodIsInited:
		if len(args) != 0 {
			return nil, wrongArguments(method, args)
		}
		return s.dev.IsInited(), nil
	}
	return nil, fmt.Errorf("%w: unknown method %q", mpr121.ErrInvalidArgument, method)
}

func (s *Session) threshold(ctx context.Context, method string, args []any,
	all func(context.Context, uint8) error, one func(context.Context, int, uint8) error) error {
	switch len(args) {
	case 1:
		v, ok := toByte(args[0])
		if !ok {
			return wrongArguments(method, args)
		}
		return all(ctx, v)
	case 2:
		index, ok := toInt(args[0])
		if !ok {
			return wrongArguments(method, args)
		}
		v, ok := toByte(args[1])
		if !ok {
			return wrongArguments(method, args)
		}
		return one(ctx, index, v)
	}
	return wrongArguments(method, args)
}

func wrongArguments(method string, args []any) error {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%T", a)
	}
	return fmt.Errorf("%w: wrong arguments for %s(%s)", mpr121.ErrInvalidArgument, method, strings.Join(parts, ", "))
}

func toByte(v any) (uint8, bool) {
	i, ok := toInt(v)
	if !ok || i < 0 || i > math.MaxUint8 {
		return 0, false
	}
	return uint8(i), true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func toMillis(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	i, ok := toInt(v)
	return float64(i), ok
}
