// Package shutdown translates OS interrupt and terminate signals into
// one cooperative cancellation of the running monitor task.
//
// The [Coordinator] holds the process-wide shutdown state: a flag that
// transitions false→true exactly once, and a stop hook for the active
// task. The first signal sets the flag, logs the request and invokes
// the hook; the task then observes cancellation, stops issuing new
// work and releases its resources. A second signal while shutdown is
// already in progress is the escape hatch for a hung cancellation: it
// logs a warning and terminates the process immediately, bypassing any
// further cleanup.
//
// Signal delivery differs by platform (SIGTERM is not catchable on
// Windows), so the subscription lives in per-platform files. The
// binding only ever forwards into [Coordinator.Request]; all state
// machine logic stays in the coordinator, keeping behavior identical
// across platforms.
package shutdown
