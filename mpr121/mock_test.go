package mpr121

import (
	"context"
	"errors"
	"testing"
)

func TestMockTouchSensor_StaticSnapshot(t *testing.T) {
	sensor := NewMockTouchSensor(func(ctx context.Context) (Snapshot, error) {
		return SnapshotOf(3, 4), nil
	})

	snap, err := sensor.Step(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	touched := snap.Touched()
	if len(touched) != 2 || touched[0] != 3 || touched[1] != 4 {
		t.Errorf("expected electrodes 3 and 4 touched, got %v", touched)
	}
	for i, e := range snap {
		if e.Index != i {
			t.Errorf("electrode %d: got index %d", i, e.Index)
		}
	}
}

func TestMockTouchSensor_Sequence(t *testing.T) {
	calls := 0
	sensor := NewMockTouchSensor(func(ctx context.Context) (Snapshot, error) {
		snap := SnapshotOf(calls % NumElectrodes)
		calls++
		return snap, nil
	})

	for want := 0; want < 3; want++ {
		snap, err := sensor.Step(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := snap.Touched(); len(got) != 1 || got[0] != want {
			t.Errorf("call %d: expected electrode %d touched, got %v", want, want, got)
		}
	}
}

func TestMockTouchSensor_Fault(t *testing.T) {
	sensor := NewMockTouchSensor(func(ctx context.Context) (Snapshot, error) {
		return Snapshot{}, newFault("step", Overcurrent, nil)
	})

	_, err := sensor.Step(context.Background())
	if !errors.Is(err, Overcurrent) {
		t.Fatalf("expected overcurrent fault, got %v", err)
	}
}

func TestMockTouchSensor_ContextCancellation(t *testing.T) {
	sensor := NewMockTouchSensor(func(ctx context.Context) (Snapshot, error) {
		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		default:
			return SnapshotOf(), nil
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sensor.Step(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSnapshotOf_IgnoresInvalidIndices(t *testing.T) {
	snap := SnapshotOf(-1, 12, 5)
	if got := snap.Touched(); len(got) != 1 || got[0] != 5 {
		t.Errorf("expected only electrode 5 touched, got %v", got)
	}
}
