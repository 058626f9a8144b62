//go:build integration

package mpr121

import (
	"context"
	"testing"
	"time"

	"github.com/mklimuk/capsense/adapter"
	"github.com/mklimuk/capsense/snsctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHardware_MCP2221(t *testing.T) {
	ctx := snsctx.SetVerbose(context.Background(), testing.Verbose())
	bridge := adapter.NewMCP2221()
	require.NoError(t, bridge.Init())
	require.NoError(t, bridge.SetSpeed(ctx, 100))

	dev, err := New(ctx, bridge)
	require.NoError(t, err)
	defer func() { _ = dev.Close(ctx) }()

	require.NoError(t, dev.SetSamplePeriod(ctx, SamplePeriod16ms))
	require.NoError(t, dev.SetElectrodeTouchThreshold(ctx, 0, 12))
	require.NoError(t, dev.Run(ctx))
	time.Sleep(100 * time.Millisecond)

	snap, err := dev.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(12), snap[0].TouchThreshold)
	for _, e := range snap {
		assert.NotZero(t, e.Baseline, "electrode %d", e.Index)
	}
	period, err := dev.SamplePeriod(ctx)
	require.NoError(t, err)
	assert.Equal(t, SamplePeriod16ms, period)

	require.NoError(t, dev.Reset(ctx))
	assert.False(t, dev.IsRunning())
}
