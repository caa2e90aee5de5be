package capability

import (
	"context"
	"fmt"
	"time"
)

// Await polls h until it resolves or budget is spent. A spent budget or a
// cancelled context yields a Failed result, never an indefinite block.
func Await[Out any](ctx context.Context, p Poller[Out], h Handle, budget, interval time.Duration) PollResult[Out] {
	if budget <= 0 {
		return Failed[Out](fmt.Sprintf("timeout: no poll budget left for %s", h))
	}

	deadline := time.Now().Add(budget)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res := p.Poll(ctx, h)
		if !res.IsPending() {
			return res
		}
		if !time.Now().Before(deadline) {
			return Failed[Out](fmt.Sprintf("timeout: %s still pending after %s", h, budget))
		}

		select {
		case <-ctx.Done():
			return Failed[Out](fmt.Sprintf("timeout: gave up waiting for %s: %v", h, ctx.Err()))
		case <-ticker.C:
		}
	}
}
