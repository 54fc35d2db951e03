package goroutine

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/installmarket/installmarket-backend/internal/logger"
)

// SafeGo запускает горутину с обработкой panic.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.Errorf("panic в горутине: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// RunPeriodic вызывает fn с заданным интервалом до отмены контекста.
// Паника в fn не роняет цикл.
func RunPeriodic(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	SafeGo(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							logger.Log.Errorf("panic в периодической задаче: %v\n%s", r, debug.Stack())
						}
					}()
					fn(ctx)
				}()
			}
		}
	})
}
