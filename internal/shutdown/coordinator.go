package shutdown

import (
	"os"
	"sync"

	"github.com/trc-project/trc/internal/logging"
)

// Coordinator owns the process-wide shutdown state. It is safe for
// concurrent use; in practice the signal path writes and the cleanup
// path reads.
//
// States: Running → ShutdownRequested → process exit. There is no
// reset; the process is expected to exit once shutdown completes.
type Coordinator struct {
	mu        sync.Mutex
	requested bool
	stop      func() // stop hook for the running task, nil when no task is active
	logger    *logging.Logger
	exit      func(int) // os.Exit, swappable in tests
}

// NewCoordinator creates a Coordinator in the Running state. A nil
// logger is replaced by a no-op logger.
func NewCoordinator(logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Coordinator{
		logger: logger.WithComponent("shutdown"),
		exit:   os.Exit,
	}
}

// SetTask registers the stop hook for the running service task. The
// hook is invoked at most once, on the first shutdown request.
func (c *Coordinator) SetTask(stop func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop = stop
}

// ClearTask removes the stop hook. Called when the task exits, so a
// late signal does not poke a finished task.
func (c *Coordinator) ClearTask() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop = nil
}

// Requested reports whether shutdown has been requested.
func (c *Coordinator) Requested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requested
}

// Request asks the running task to shut down. The first call sets the
// shutdown flag, logs the request and invokes the task's stop hook if
// one is registered; no registered task is a no-op, not an error. Any
// later call logs an escalation warning and terminates the process
// immediately, with no further cleanup.
func (c *Coordinator) Request() {
	c.mu.Lock()
	if c.requested {
		c.mu.Unlock()
		c.logger.Warn("shutdown already requested, forcing exit")
		c.exit(1)
		return
	}
	c.requested = true
	stop := c.stop
	c.mu.Unlock()

	c.logger.Info("shutdown requested")

	if stop != nil {
		// Off the signal path: the hook may block until the current
		// scan winds down.
		go stop()
	}
}

// Notify subscribes the coordinator to the process interrupt and
// terminate signals and starts the goroutine that forwards them into
// Request. Call once during startup.
func (c *Coordinator) Notify() {
	// Buffer of 2 so a second signal is not dropped while the first is
	// still being handled; the second is what forces the exit.
	ch := make(chan os.Signal, 2)
	notifySignals(ch)

	go func() {
		for range ch {
			c.Request()
		}
	}()
}
