package mpr121

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/mklimuk/capsense/snsctx"
)

// Electrode is the state of one sensing channel as read by a single Step.
type Electrode struct {
	Index      int  `yaml:"electrode" cbor:"electrode"`
	Touched    bool `yaml:"isTouched" cbor:"isTouched"`
	NewTouch   bool `yaml:"isNewTouch" cbor:"isNewTouch"`
	NewRelease bool `yaml:"isNewRelease" cbor:"isNewRelease"`
	// Filtered is the 10-bit filtered capacitance reading.
	Filtered uint16 `yaml:"filtered" cbor:"filtered"`
	// Baseline is the running baseline scaled to the filtered data range.
	Baseline         uint16 `yaml:"baseline" cbor:"baseline"`
	TouchThreshold   uint8  `yaml:"touchThreshold" cbor:"touchThreshold"`
	ReleaseThreshold uint8  `yaml:"releaseThreshold" cbor:"releaseThreshold"`
}

// Snapshot holds all electrodes in index order.
type Snapshot [NumElectrodes]Electrode

// Touched returns the indices of the electrodes currently touched.
func (s Snapshot) Touched() []int {
	var res []int
	for _, e := range s {
		if e.Touched {
			res = append(res, e.Index)
		}
	}
	return res
}

type EventKind int

const (
	TouchEvent EventKind = iota
	ReleaseEvent
)

func (k EventKind) String() string {
	if k == ReleaseEvent {
		return "release"
	}
	return "touch"
}

type Event struct {
	Electrode int
	Kind      EventKind
}

// Events returns the touch and release edges carried by the snapshot.
func (s Snapshot) Events() []Event {
	var res []Event
	for _, e := range s {
		if e.NewTouch {
			res = append(res, Event{Electrode: e.Index, Kind: TouchEvent})
		}
		if e.NewRelease {
			res = append(res, Event{Electrode: e.Index, Kind: ReleaseEvent})
		}
	}
	return res
}

// TouchSensor is implemented by anything producing electrode snapshots.
type TouchSensor interface {
	Step(ctx context.Context) (Snapshot, error)
}

var _ TouchSensor = &Device{}

// Step reads touch status, filtered data, baselines and thresholds of all
// electrodes and returns them as one snapshot. Edge flags are relative to the
// previous successful Step on this handle (or to the last handshake).
//
// On a bus failure or an overcurrent condition a *Fault is returned, no
// snapshot is produced and the edge reference is left untouched.
func (d *Device) Step(ctx context.Context) (Snapshot, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	var snap Snapshot
	if err := d.checkInited("step"); err != nil {
		return snap, err
	}
	ctx = snsctx.WithTrace(ctx, "mpr121 step")

	status := make([]byte, 2)
	if err := d.read(ctx, regTouchStatusL, status); err != nil {
		return snap, d.fail(busFault("step", err))
	}
	if status[1]&overcurrentFlag != 0 {
		return snap, d.fail(newFault("step", Overcurrent, nil))
	}
	filtered := make([]byte, 2*NumElectrodes)
	if err := d.read(ctx, regFilteredData0, filtered); err != nil {
		return snap, d.fail(busFault("step", fmt.Errorf("filtered data: %w", err)))
	}
	baseline := make([]byte, NumElectrodes)
	if err := d.read(ctx, regBaseline0, baseline); err != nil {
		return snap, d.fail(busFault("step", fmt.Errorf("baseline data: %w", err)))
	}
	thresholds := make([]byte, 2*NumElectrodes)
	if err := d.read(ctx, regTouchThreshold0, thresholds); err != nil {
		return snap, d.fail(busFault("step", fmt.Errorf("thresholds: %w", err)))
	}

	touched := binary.LittleEndian.Uint16(status) & touchStatusMask
	for i := 0; i < NumElectrodes; i++ {
		mask := uint16(1) << i
		now := touched&mask != 0
		was := d.touched&mask != 0
		snap[i] = Electrode{
			Index:            i,
			Touched:          now,
			NewTouch:         now && !was,
			NewRelease:       !now && was,
			Filtered:         binary.LittleEndian.Uint16(filtered[2*i:]) & filteredDataMask,
			Baseline:         uint16(baseline[i]) << 2,
			TouchThreshold:   thresholds[2*i],
			ReleaseThreshold: thresholds[2*i+1],
		}
	}
	d.touched = touched
	return snap, nil
}
