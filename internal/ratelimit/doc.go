// Package ratelimit enforces a minimum spacing between outbound calls
// to rate-limited external APIs.
//
// The core type is [Gate]: a named throttle that guarantees at least a
// configured interval between successive permits, under any number of
// concurrent callers. Spacing is measured at the moment a permit is
// granted, not requested, so a caller that queued behind another
// caller's wait starts the next interval only once it actually
// proceeds.
//
// Gates are owned by a [Registry], keyed by resource name (one key per
// external API). Acquiring an unregistered name is deliberately
// fail-open: the call returns immediately rather than erroring, so a
// forgotten registration degrades to unthrottled calls instead of
// halting the daemon.
//
// Usage:
//
//	gates := ratelimit.NewRegistry(logger)
//	gates.Register("riven", time.Second)
//
//	// Before every outbound call:
//	if err := gates.Acquire(ctx, "riven"); err != nil {
//	    return err // context cancelled mid-wait
//	}
//
// Ordering among contending callers is not FIFO; only the minimum
// spacing between permits is guaranteed. For this workload a single
// caller dominates and contention is rare.
package ratelimit
