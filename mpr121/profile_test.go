package mpr121

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfile = `
address: "0x5c"
touchThreshold: 30
releaseThreshold: 10
samplePeriod: 13ms
electrodes:
  - index: 3
    touchThreshold: 25
  - index: 11
    releaseThreshold: 4
run: true
`

func TestLoadProfile(t *testing.T) {
	p, err := LoadProfile(strings.NewReader(sampleProfile))
	require.NoError(t, err)

	addr, err := p.DeviceAddress()
	require.NoError(t, err)
	assert.Equal(t, byte(0x5C), addr)
	require.NotNil(t, p.TouchThreshold)
	assert.Equal(t, uint8(30), *p.TouchThreshold)
	require.NotNil(t, p.ReleaseThreshold)
	assert.Equal(t, uint8(10), *p.ReleaseThreshold)
	assert.Equal(t, "13ms", p.SamplePeriod)
	require.Len(t, p.Electrodes, 2)
	assert.Equal(t, 3, p.Electrodes[0].Index)
	assert.Nil(t, p.Electrodes[0].ReleaseThreshold)
	assert.True(t, p.Run)
}

func TestLoadProfile_Empty(t *testing.T) {
	p, err := LoadProfile(strings.NewReader(""))
	require.NoError(t, err)
	addr, err := p.DeviceAddress()
	require.NoError(t, err)
	assert.Equal(t, byte(DefaultAddress), addr)
}

func TestLoadProfile_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown key":         "sensitivity: high\n",
		"electrode index":     "electrodes:\n  - index: 12\n",
		"sample period":       "samplePeriod: fast\n",
		"threshold overflow":  "touchThreshold: 300\n",
		"malformed address":   "address: zz\n",
		"period out of range": "samplePeriod: 256ms\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadProfile(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadProfileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleProfile), 0o600))
	p, err := LoadProfileFile(path)
	require.NoError(t, err)
	assert.True(t, p.Run)

	_, err = LoadProfileFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestProfile_Apply(t *testing.T) {
	p, err := LoadProfile(strings.NewReader(sampleProfile))
	require.NoError(t, err)
	_, dev := newTestDevice(t)
	ctx := context.Background()

	require.NoError(t, p.Apply(ctx, dev))
	assert.True(t, dev.IsRunning())

	period, err := dev.SamplePeriod(ctx)
	require.NoError(t, err)
	assert.Equal(t, SamplePeriod16ms, period)

	snap, err := dev.Step(ctx)
	require.NoError(t, err)
	for _, e := range snap {
		switch e.Index {
		case 3:
			assert.Equal(t, uint8(25), e.TouchThreshold)
			assert.Equal(t, uint8(10), e.ReleaseThreshold)
		case 11:
			assert.Equal(t, uint8(30), e.TouchThreshold)
			assert.Equal(t, uint8(4), e.ReleaseThreshold)
		default:
			assert.Equal(t, uint8(30), e.TouchThreshold)
			assert.Equal(t, uint8(10), e.ReleaseThreshold)
		}
	}
}

func TestProfile_ApplyInvalidWritesNothing(t *testing.T) {
	sim, dev := newTestDevice(t)
	touch := uint8(5)
	p := &Profile{
		TouchThreshold: &touch,
		Electrodes:     []ElectrodeProfile{{Index: 12, TouchThreshold: &touch}},
	}
	writes := sim.Writes()
	assert.ErrorIs(t, p.Apply(context.Background(), dev), ErrInvalidArgument)
	assert.Equal(t, writes, sim.Writes())
}
