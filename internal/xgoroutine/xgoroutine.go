// Package xgoroutine starts named, panic-safe background goroutines.
//
// Every long-lived task in this daemon (pty reader/writer, scrollback
// collector, session reaper) is started through Go so it shows up by name
// in pprof goroutine dumps and so one misbehaving task cannot take the
// whole process down with it.
package xgoroutine

import (
	"context"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const nameKey ctxKey = "goroutine_name"

// Go starts fn in a new goroutine under a pprof label named name, recovering
// and logging any panic instead of letting it crash the process.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		ctx = context.WithValue(ctx, nameKey, name)
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("goroutine", name).Errorf("panic recovered: %v", r)
			}
		}()
		fn(ctx)
	})
}

// Name returns the name this goroutine was started with, or "" if unnamed.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(nameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
