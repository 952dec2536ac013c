//go:build !windows

package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

// notifySignals subscribes ch to SIGINT and SIGTERM. SIGTERM is the
// conventional stop signal from process managers (systemd, launchd)
// and container runtimes.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}
