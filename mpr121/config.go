package mpr121

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// SamplePeriod selects the electrode sampling interval (ESI bits of AFE2).
type SamplePeriod uint8

const (
	SamplePeriod1ms SamplePeriod = iota
	SamplePeriod2ms
	SamplePeriod4ms
	SamplePeriod8ms
	SamplePeriod16ms
	SamplePeriod32ms
	SamplePeriod64ms
	SamplePeriod128ms
)

func (p SamplePeriod) Valid() bool {
	return p <= SamplePeriod128ms
}

func (p SamplePeriod) Duration() time.Duration {
	return time.Duration(1<<p) * time.Millisecond
}

func (p SamplePeriod) String() string {
	if !p.Valid() {
		return fmt.Sprintf("SamplePeriod(%d)", uint8(p))
	}
	return fmt.Sprintf("%dms", 1<<p)
}

// ParseSamplePeriod converts milliseconds to a sample period, rounding up to
// the next power of two (3 -> 4ms, 13 -> 16ms).
func ParseSamplePeriod(ms int) (SamplePeriod, error) {
	if ms <= 0 || ms > 128 {
		return 0, fmt.Errorf("%w: sample period %dms outside 1-128ms", ErrInvalidArgument, ms)
	}
	return SamplePeriod(bits.Len(uint(ms - 1))), nil
}

// SamplePeriodFromMillis is ParseSamplePeriod for fractional milliseconds,
// which round up as well (13.5 -> 16ms).
func SamplePeriodFromMillis(ms float64) (SamplePeriod, error) {
	if math.IsNaN(ms) || ms <= 0 || ms > 128 {
		return 0, fmt.Errorf("%w: sample period %gms outside 1-128ms", ErrInvalidArgument, ms)
	}
	return ParseSamplePeriod(int(math.Ceil(ms)))
}

// ParseSamplePeriodString accepts "16ms", "13.5ms" or a bare number of
// milliseconds.
func ParseSamplePeriodString(s string) (SamplePeriod, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(s), "ms")
	ms, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: sample period %q", ErrInvalidArgument, s)
	}
	return SamplePeriodFromMillis(ms)
}

func checkIndex(index int) error {
	if index < 0 || index >= NumElectrodes {
		return fmt.Errorf("%w: electrode %d outside 0-%d", ErrInvalidArgument, index, NumElectrodes-1)
	}
	return nil
}

var allElectrodes = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

// SetTouchThreshold sets the touch threshold of every electrode.
func (d *Device) SetTouchThreshold(ctx context.Context, value uint8) error {
	return d.setThresholds(ctx, "set touch threshold", regTouchThreshold0, allElectrodes, value)
}

// SetElectrodeTouchThreshold sets the touch threshold of one electrode.
func (d *Device) SetElectrodeTouchThreshold(ctx context.Context, index int, value uint8) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	return d.setThresholds(ctx, "set touch threshold", regTouchThreshold0, []int{index}, value)
}

// SetReleaseThreshold sets the release threshold of every electrode.
func (d *Device) SetReleaseThreshold(ctx context.Context, value uint8) error {
	return d.setThresholds(ctx, "set release threshold", regReleaseThreshold0, allElectrodes, value)
}

// SetElectrodeReleaseThreshold sets the release threshold of one electrode.
func (d *Device) SetElectrodeReleaseThreshold(ctx context.Context, index int, value uint8) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	return d.setThresholds(ctx, "set release threshold", regReleaseThreshold0, []int{index}, value)
}

func (d *Device) setThresholds(ctx context.Context, op string, base byte, electrodes []int, value uint8) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.checkInited(op); err != nil {
		return err
	}
	err := d.withStopped(ctx, func() error {
		for _, i := range electrodes {
			if err := d.writeRaw(ctx, base+byte(2*i), value); err != nil {
				return fmt.Errorf("electrode %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return d.fail(busFault(op, err))
	}
	return nil
}

// SetSamplePeriod changes the electrode sampling interval. Values outside the
// SamplePeriod enumeration are rejected without touching the device.
func (d *Device) SetSamplePeriod(ctx context.Context, period SamplePeriod) error {
	if !period.Valid() {
		return fmt.Errorf("%w: unsupported sample period %d", ErrInvalidArgument, uint8(period))
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.checkInited("set sample period"); err != nil {
		return err
	}
	err := d.withStopped(ctx, func() error {
		afe2, err := d.read8(ctx, regAFE2)
		if err != nil {
			return err
		}
		return d.writeRaw(ctx, regAFE2, afe2&^samplePeriodMask|byte(period))
	})
	if err != nil {
		return d.fail(busFault("set sample period", err))
	}
	return nil
}

// SamplePeriod reads the configured sampling interval back from the chip.
func (d *Device) SamplePeriod(ctx context.Context) (SamplePeriod, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.checkInited("get sample period"); err != nil {
		return 0, err
	}
	afe2, err := d.read8(ctx, regAFE2)
	if err != nil {
		return 0, d.fail(busFault("get sample period", err))
	}
	return SamplePeriod(afe2 & samplePeriodMask), nil
}

// ParseAddress parses a hexadecimal bus address such as "5c" or "0x5C". An
// empty string yields DefaultAddress.
func ParseAddress(s string) (byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultAddress, nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: address %q: %v", ErrInvalidArgument, s, err)
	}
	return byte(v), nil
}
