package mpr121

import (
	"context"
)

// StepBehaviorFunc defines the function signature for touch sensor behavior.
type StepBehaviorFunc func(ctx context.Context) (Snapshot, error)

// MockTouchSensor is a mock implementation of TouchSensor that uses a behavior
// function to produce snapshots without requiring any hardware.
type MockTouchSensor struct {
	behavior StepBehaviorFunc
}

// NewMockTouchSensor creates a new mock touch sensor with the given behavior function.
// The behavior function is called whenever Step is invoked.
//
// Example usage:
//
//	sensor := NewMockTouchSensor(func(ctx context.Context) (Snapshot, error) {
//		return SnapshotOf(3), nil
//	})
func NewMockTouchSensor(behavior StepBehaviorFunc) *MockTouchSensor {
	return &MockTouchSensor{behavior: behavior}
}

// Step returns the snapshot produced by the behavior function.
func (m *MockTouchSensor) Step(ctx context.Context) (Snapshot, error) {
	return m.behavior(ctx)
}

// SnapshotOf builds a snapshot with indices set and the given electrodes
// touched. Edge flags are left unset.
func SnapshotOf(touched ...int) Snapshot {
	var snap Snapshot
	for i := range snap {
		snap[i].Index = i
		snap[i].TouchThreshold = DefaultTouchThreshold
		snap[i].ReleaseThreshold = DefaultReleaseThreshold
	}
	for _, i := range touched {
		if i >= 0 && i < NumElectrodes {
			snap[i].Touched = true
		}
	}
	return snap
}
