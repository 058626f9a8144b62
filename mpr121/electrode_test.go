package mpr121

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_TwelveElectrodesInOrder(t *testing.T) {
	states := map[string]func(ctx context.Context, d *Device) error{
		"inited":  func(ctx context.Context, d *Device) error { return nil },
		"running": func(ctx context.Context, d *Device) error { return d.Run(ctx) },
		"stopped": func(ctx context.Context, d *Device) error {
			if err := d.Run(ctx); err != nil {
				return err
			}
			return d.Stop(ctx)
		},
	}
	for name, prepare := range states {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, dev := newTestDevice(t)
			require.NoError(t, prepare(ctx, dev))
			snap, err := dev.Step(ctx)
			require.NoError(t, err)
			require.Len(t, snap, NumElectrodes)
			for i, e := range snap {
				assert.Equal(t, i, e.Index)
				assert.Equal(t, uint8(DefaultTouchThreshold), e.TouchThreshold)
				assert.Equal(t, uint8(DefaultReleaseThreshold), e.ReleaseThreshold)
			}
		})
	}
}

func TestStep_Readings(t *testing.T) {
	sim, dev := newTestDevice(t)
	ctx := context.Background()
	require.NoError(t, dev.Run(ctx))
	sim.Press(0)

	snap, err := dev.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(simIdleLevel-simTouchDelta), snap[0].Filtered)
	assert.Equal(t, uint16(simIdleLevel), snap[0].Baseline)
	assert.True(t, snap[0].Touched)
	assert.Equal(t, uint16(simIdleLevel), snap[1].Filtered)
	assert.False(t, snap[1].Touched)
	assert.Equal(t, []int{0}, snap.Touched())
}

func TestStep_EdgeFlags(t *testing.T) {
	sim, dev := newTestDevice(t)
	ctx := context.Background()
	require.NoError(t, dev.Run(ctx))

	snap, err := dev.Step(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Touched())
	assert.Empty(t, snap.Events())

	sim.Press(3)
	snap, err = dev.Step(ctx)
	require.NoError(t, err)
	assert.True(t, snap[3].Touched)
	assert.True(t, snap[3].NewTouch)
	assert.False(t, snap[3].NewRelease)
	assert.Equal(t, []Event{{Electrode: 3, Kind: TouchEvent}}, snap.Events())

	snap, err = dev.Step(ctx)
	require.NoError(t, err)
	assert.True(t, snap[3].Touched)
	assert.False(t, snap[3].NewTouch, "edge reported only once")

	sim.Lift(3)
	snap, err = dev.Step(ctx)
	require.NoError(t, err)
	assert.False(t, snap[3].Touched)
	assert.True(t, snap[3].NewRelease)
	assert.Equal(t, []Event{{Electrode: 3, Kind: ReleaseEvent}}, snap.Events())

	snap, err = dev.Step(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Events())
}

func TestStep_FlagsAreExclusive(t *testing.T) {
	sim, dev := newTestDevice(t)
	ctx := context.Background()
	require.NoError(t, dev.Run(ctx))
	for round := 0; round < 6; round++ {
		if round%2 == 0 {
			sim.Press(round)
		} else {
			sim.Lift(round - 1)
		}
		snap, err := dev.Step(ctx)
		require.NoError(t, err)
		for _, e := range snap {
			assert.False(t, e.NewTouch && e.NewRelease, "electrode %d", e.Index)
			if e.NewTouch {
				assert.True(t, e.Touched)
			}
			if e.NewRelease {
				assert.False(t, e.Touched)
			}
		}
	}
}

func TestStep_BusFaultKeepsEdgeReference(t *testing.T) {
	sim, dev := newTestDevice(t)
	ctx := context.Background()
	require.NoError(t, dev.Run(ctx))
	sim.Press(2)

	glitch := errors.New("bus glitch")
	sim.FailAfter(2, glitch)
	snap, err := dev.Step(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, AddressUnknown)
	assert.ErrorIs(t, err, glitch)
	assert.Equal(t, Snapshot{}, snap)
	code, faulted := dev.LastFault()
	assert.True(t, faulted)
	assert.Equal(t, AddressUnknown, code)

	snap, err = dev.Step(ctx)
	require.NoError(t, err)
	assert.True(t, snap[2].NewTouch)
}

func TestStep_Overcurrent(t *testing.T) {
	sim, dev := newTestDevice(t)
	ctx := context.Background()
	require.NoError(t, dev.Run(ctx))
	sim.SetOvercurrent(true)

	_, err := dev.Step(ctx)
	assert.ErrorIs(t, err, Overcurrent)
	code, _ := dev.LastFault()
	assert.Equal(t, Overcurrent, code)
}

func TestStep_BusyBridge(t *testing.T) {
	sim, dev := newTestDevice(t)
	sim.SetBusy(true)
	_, err := dev.Step(context.Background())
	assert.ErrorIs(t, err, Unknown)
}

func TestSnapshot_Helpers(t *testing.T) {
	snap := SnapshotOf(1, 7)
	snap[7].NewTouch = true
	snap[4].NewRelease = true
	assert.Equal(t, []int{1, 7}, snap.Touched())
	assert.Equal(t, []Event{
		{Electrode: 4, Kind: ReleaseEvent},
		{Electrode: 7, Kind: TouchEvent},
	}, snap.Events())
	assert.Equal(t, "touch", TouchEvent.String())
	assert.Equal(t, "release", ReleaseEvent.String())
}
