package binding

import (
	"context"
	"math"
	"testing"

	"github.com/mklimuk/capsense/mpr121"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) (*mpr121.Simulator, *Session) {
	t.Helper()
	sim := mpr121.NewSimulator(mpr121.DefaultAddress)
	s, err := Construct(context.Background(), sim)
	require.NoError(t, err)
	return sim, s
}

func TestConstruct(t *testing.T) {
	tests := []struct {
		name    string
		sim     byte
		args    []any
		address byte
	}{
		{"default", 0x5C, nil, 0x5C},
		{"nil address", 0x5C, []any{nil}, 0x5C},
		{"hex", 0x5A, []any{"5a"}, 0x5A},
		{"prefixed", 0x5D, []any{"0x5D"}, 0x5D},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := mpr121.NewSimulator(tt.sim)
			s, err := Construct(context.Background(), sim, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.address, s.Device().Address())
			inited, err := s.Invoke(context.Background(), MethodIsInited)
			require.NoError(t, err)
			assert.Equal(t, true, inited)
		})
	}
}

func TestConstruct_WrongArguments(t *testing.T) {
	sim := mpr121.NewSimulator(mpr121.DefaultAddress)
	for _, args := range [][]any{{0x5C}, {"5c", "5d"}, {"zz"}} {
		s, err := Construct(context.Background(), sim, args...)
		assert.Nil(t, s)
		assert.ErrorIs(t, err, mpr121.ErrInvalidArgument)
	}
	assert.Zero(t, sim.Transactions())
}

func TestConstruct_Fault(t *testing.T) {
	sim := mpr121.NewSimulator(mpr121.DefaultAddress)
	sim.SetOvercurrent(true)
	s, err := Construct(context.Background(), sim)
	require.NotNil(t, s)
	assert.ErrorIs(t, err, mpr121.Overcurrent)

	inited, err := s.Invoke(context.Background(), MethodIsInited)
	require.NoError(t, err)
	assert.Equal(t, false, inited)

	_, err = s.Invoke(context.Background(), MethodStep)
	assert.ErrorIs(t, err, mpr121.NotInitialized)
}

func TestInvoke_Lifecycle(t *testing.T) {
	sim, s := newSession(t)
	ctx := context.Background()

	_, err := s.Invoke(ctx, MethodRun)
	require.NoError(t, err)
	running, err := s.Invoke(ctx, MethodIsRunning)
	require.NoError(t, err)
	assert.Equal(t, true, running)

	sim.Press(6)
	res, err := s.Invoke(ctx, MethodStep)
	require.NoError(t, err)
	snap, ok := res.(mpr121.Snapshot)
	require.True(t, ok)
	assert.True(t, snap[6].NewTouch)

	_, err = s.Invoke(ctx, MethodStop)
	require.NoError(t, err)
	running, _ = s.Invoke(ctx, MethodIsRunning)
	assert.Equal(t, false, running)

	_, err = s.Invoke(ctx, MethodReset)
	require.NoError(t, err)
	inited, _ := s.Invoke(ctx, MethodIsInited)
	assert.Equal(t, true, inited)
}

func TestInvoke_Thresholds(t *testing.T) {
	tests := []struct {
		name   string
		method string
		args   []any
		expect func(i int) (touch, release uint8)
	}{
		{
			name:   "global touch int",
			method: MethodSetTouchThreshold,
			args:   []any{12},
			expect: func(i int) (uint8, uint8) { return 12, 20 },
		},
		{
			name:   "global release float",
			method: MethodSetReleaseThreshold,
			args:   []any{8.0},
			expect: func(i int) (uint8, uint8) { return 40, 8 },
		},
		{
			name:   "electrode touch strings",
			method: MethodSetTouchThreshold,
			args:   []any{"4", "77"},
			expect: func(i int) (uint8, uint8) { return pick(i == 4, 77, 40), 20 },
		},
		{
			name:   "electrode release mixed",
			method: MethodSetReleaseThreshold,
			args:   []any{int64(11), uint8(3)},
			expect: func(i int) (uint8, uint8) { return 40, pick(i == 11, 3, 20) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, s := newSession(t)
			_, err := s.Invoke(context.Background(), tt.method, tt.args...)
			require.NoError(t, err)
			snap, err := s.Device().Step(context.Background())
			require.NoError(t, err)
			for i, e := range snap {
				touch, release := tt.expect(i)
				assert.Equal(t, touch, e.TouchThreshold, "electrode %d", i)
				assert.Equal(t, release, e.ReleaseThreshold, "electrode %d", i)
			}
		})
	}
}

func pick(cond bool, a, b uint8) uint8 {
	if cond {
		return a
	}
	return b
}

func TestInvoke_WrongArguments(t *testing.T) {
	tests := []struct {
		method string
		args   []any
	}{
		{MethodStep, []any{1}},
		{MethodRun, []any{true}},
		{MethodIsInited, []any{"x"}},
		{MethodSetTouchThreshold, nil},
		{MethodSetTouchThreshold, []any{1, 2, 3}},
		{MethodSetTouchThreshold, []any{"abc"}},
		{MethodSetTouchThreshold, []any{256}},
		{MethodSetTouchThreshold, []any{-1}},
		{MethodSetTouchThreshold, []any{12.5}},
		{MethodSetReleaseThreshold, []any{12, 10}},
		{MethodSetReleaseThreshold, []any{-1, 10}},
		{MethodSetReleaseThreshold, []any{[]int{1}, 10}},
		{MethodSetSamplePeriod, nil},
		{MethodSetSamplePeriod, []any{0}},
		{MethodSetSamplePeriod, []any{129}},
		{MethodSetSamplePeriod, []any{"soon"}},
		{MethodSetSamplePeriod, []any{-2.5}},
		{MethodSetSamplePeriod, []any{128.5}},
		{MethodSetSamplePeriod, []any{math.NaN()}},
		{MethodSetSamplePeriod, []any{math.Inf(1)}},
		{"calibrate", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			sim, s := newSession(t)
			writes := sim.Writes()
			period, err := s.Device().SamplePeriod(context.Background())
			require.NoError(t, err)

			_, err = s.Invoke(context.Background(), tt.method, tt.args...)
			assert.ErrorIs(t, err, mpr121.ErrInvalidArgument)
			assert.Equal(t, writes, sim.Writes())
			after, err := s.Device().SamplePeriod(context.Background())
			require.NoError(t, err)
			assert.Equal(t, period, after)
		})
	}
}

func TestInvoke_SetSamplePeriod(t *testing.T) {
	tests := map[any]mpr121.SamplePeriod{
		1:            mpr121.SamplePeriod1ms,
		13:           mpr121.SamplePeriod16ms,
		13.5:         mpr121.SamplePeriod16ms,
		"13.5":       mpr121.SamplePeriod16ms,
		float32(0.5): mpr121.SamplePeriod1ms,
		64.0:         mpr121.SamplePeriod64ms,
		"100":        mpr121.SamplePeriod128ms,
		uint16(2):    mpr121.SamplePeriod2ms,
	}
	for arg, expected := range tests {
		_, s := newSession(t)
		_, err := s.Invoke(context.Background(), MethodSetSamplePeriod, arg)
		require.NoError(t, err)
		got, err := s.Device().SamplePeriod(context.Background())
		require.NoError(t, err)
		assert.Equal(t, expected, got, "argument %v", arg)
	}
}

func TestMethods(t *testing.T) {
	assert.Equal(t, []string{
		"isInited", "isRunning", "reset", "run", "setReleaseThreshold",
		"setSamplePeriod", "setTouchThreshold", "step", "stop",
	}, Methods())
}
