package snsctx

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
)

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexTrace
)

func IsVerbose(ctx context.Context) bool {
	val := ctx.Value(ctxIndexVerbose)
	if val == nil {
		return false
	}
	return val.(bool)
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// Trace returns the label attached with WithTrace; transports use it to tag
// dumped bus traffic with the operation that caused it.
func Trace(ctx context.Context) string {
	val := ctx.Value(ctxIndexTrace)
	if val == nil {
		return ""
	}
	return val.(string)
}

func WithTrace(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, ctxIndexTrace, label)
}

// Dump logs a hex dump of bus traffic when the context is verbose.
func Dump(ctx context.Context, msg string, address byte, data []byte) {
	if !IsVerbose(ctx) {
		return
	}
	slog.DebugContext(ctx, msg, "addr", fmt.Sprintf("%#02x", address), "trace", Trace(ctx), "data", "\n"+hex.Dump(data))
}
