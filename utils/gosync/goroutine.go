package gosync

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Go 封装的go协程工具，会兜住panic，但是目前只能传递ctx
func Go(ctx context.Context, task func(ctx context.Context)) {
	go func(ctx context.Context, f func(ctx context.Context)) {
		defer func() {
			if err := recover(); err != nil {
				logrus.Errorf("[gosync] goroutine panic: %v\n%s", err, debug.Stack())
			}
		}()
		f(ctx)
	}(ctx, task)
}
