package sessionkit

import (
	"context"
	"time"
)

func bgContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// reconcileContext bounds a background fetch by timeout and by the
// controller's lifetime, keeping the values of parent.
func reconcileContext(parent, lifetime context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	stop := context.AfterFunc(lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
