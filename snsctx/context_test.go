package snsctx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerboseAndTrace(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsVerbose(ctx))
	assert.Empty(t, Trace(ctx))

	ctx = WithTrace(SetVerbose(ctx, true), "mpr121 step")
	assert.True(t, IsVerbose(ctx))
	assert.Equal(t, "mpr121 step", Trace(ctx))
}

func TestDump(t *testing.T) {
	var out bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	Dump(context.Background(), "quiet", 0x5C, []byte{0x80, 0x63})
	assert.Empty(t, out.String())

	ctx := WithTrace(SetVerbose(context.Background(), true), "reset")
	Dump(ctx, "i2c write", 0x5C, []byte{0x80, 0x63})
	assert.Contains(t, out.String(), "addr=0x5c")
	assert.Contains(t, out.String(), "trace=reset")
	assert.Contains(t, out.String(), "80 63")
}
