//go:build windows

package shutdown

import (
	"os"
	"os/signal"
)

// notifySignals subscribes ch to Ctrl+C and Ctrl+Break, which the Go
// runtime delivers as os.Interrupt. Windows has no catchable SIGTERM;
// a hard termination from the service manager cannot be intercepted.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
