// Package monitor implements the remediation loop: it periodically
// scans Riven for items stuck in a failed or stalled state and tries
// to repair them, first through Riven's own retry path and then by
// manually scraping content through Real-Debrid.
//
// The monitor is the task the shutdown coordinator cancels. It checks
// for cancellation at every loop boundary and between suspension
// points; it never holds work across a shutdown request.
package monitor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/trc-project/trc/internal/config"
	trcerrors "github.com/trc-project/trc/internal/errors"
	"github.com/trc-project/trc/internal/logging"
	"github.com/trc-project/trc/internal/realdebrid"
	"github.com/trc-project/trc/internal/riven"
)

// RivenAPI is the slice of the Riven client the monitor uses.
type RivenAPI interface {
	ListItems(ctx context.Context, states ...string) ([]riven.Item, error)
	RetryItem(ctx context.Context, id int64) error
	RemoveItem(ctx context.Context, id int64) error
	ResetItem(ctx context.Context, id int64) error
	AddItem(ctx context.Context, imdbID string) error
	ScrapeItem(ctx context.Context, id int64) ([]riven.Stream, error)
}

// DebridAPI is the slice of the Real-Debrid client the monitor uses.
type DebridAPI interface {
	AddMagnet(ctx context.Context, magnet string) (string, error)
	TorrentInfo(ctx context.Context, id string) (*realdebrid.Torrent, error)
	SelectFiles(ctx context.Context, id, files string) error
	DeleteTorrent(ctx context.Context, id string) error
	ActiveCount(ctx context.Context) (int, error)
}

// Options holds the monitor's timing and policy knobs, resolved to
// durations so tests can run with millisecond intervals.
type Options struct {
	// CheckInterval is the spacing between full scans of the backend.
	CheckInterval time.Duration
	// RetryInterval is the loop tick and the per-item attempt cooldown.
	RetryInterval time.Duration
	// MaxRetries is how many Riven retries to attempt per item before
	// falling back to a manual scrape.
	MaxRetries int
	// SkipRivenRetry goes straight to manual scrape.
	SkipRivenRetry bool
	// MaxTorrents caps how many candidates to try per item.
	MaxTorrents int
	// MaxActiveDownloads bounds concurrent item remediations and is
	// checked against the account's live transfer count.
	MaxActiveDownloads int
	// AddDelay is the spacing between successive torrent adds for one item.
	AddDelay time.Duration
	// PollInterval is how often a pending torrent is checked.
	PollInterval time.Duration
	// MaxWait is how long to wait for one torrent before giving up on it.
	MaxWait time.Duration
}

// OptionsFromConfig resolves the daemon configuration into Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CheckInterval:      cfg.Monitor.CheckInterval(),
		RetryInterval:      cfg.Monitor.RetryInterval(),
		MaxRetries:         cfg.Monitor.MaxRetries,
		SkipRivenRetry:     cfg.Monitor.SkipRivenRetry,
		MaxTorrents:        cfg.Debrid.MaxTorrents,
		MaxActiveDownloads: cfg.Debrid.MaxActiveDownloads,
		AddDelay:           cfg.Debrid.AddDelay(),
		PollInterval:       cfg.Debrid.PollInterval(),
		MaxWait:            cfg.Debrid.MaxWait(),
	}
}

// attempt tracks remediation history for one item within this process
// run. State is in-memory only; a restart starts from a clean slate.
type attempt struct {
	retries int
	last    time.Time
}

// attemptKey is the identity attempts are counted under. Removing and
// re-adding an item gives it a fresh backend id, so items with an IMDb
// id are tracked by that instead; the retry budget survives the
// re-add.
func attemptKey(item riven.Item) string {
	if item.ImdbID != "" {
		return item.ImdbID
	}
	return strconv.FormatInt(item.ID, 10)
}

// Monitor runs the remediation loop.
type Monitor struct {
	opts   Options
	riven  RivenAPI
	debrid DebridAPI
	logger *logging.Logger

	mu       sync.Mutex
	attempts map[string]*attempt
	pending  map[int64]riven.Item // items still stuck after the last scan
	lastFull time.Time
	cancel   context.CancelFunc // cancels the in-flight scan, set while running

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Monitor. A nil logger is replaced by a no-op logger.
func New(opts Options, rivenAPI RivenAPI, debridAPI DebridAPI, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Monitor{
		opts:     opts,
		riven:    rivenAPI,
		debrid:   debridAPI,
		logger:   logger.WithComponent("monitor"),
		attempts: make(map[string]*attempt),
		pending:  make(map[int64]riven.Item),
		stopCh:   make(chan struct{}),
	}
}

// Start runs the loop until Stop is called or ctx is cancelled. It
// performs an immediate full scan, then ticks at the retry interval:
// each tick re-attempts pending items, and runs a fresh full scan once
// the check interval has elapsed.
func (m *Monitor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		m.cancel = nil
		m.mu.Unlock()
	}()

	m.logger.Info("monitor started",
		"check_interval", m.opts.CheckInterval.String(),
		"retry_interval", m.opts.RetryInterval.String(),
		"max_retries", m.opts.MaxRetries)

	// A shutdown request can land before the loop starts; do not run
	// the initial scan if it already has.
	select {
	case <-m.stopCh:
		m.logger.Info("monitor stopped")
		return nil
	case <-ctx.Done():
		m.logger.Info("monitor cancelled")
		return nil
	default:
	}

	m.fullScan(ctx)

	ticker := time.NewTicker(m.opts.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			m.logger.Info("monitor stopped")
			return nil
		case <-ctx.Done():
			m.logger.Info("monitor cancelled")
			return nil
		case <-ticker.C:
			if m.fullScanDue() {
				m.fullScan(ctx)
			} else {
				m.retryPending(ctx)
			}
		}
	}
}

// Stop cancels the in-flight scan and stops the loop. Idempotent and
// safe from any goroutine; this is the hook the shutdown coordinator
// invokes.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		if m.cancel != nil {
			m.cancel()
		}
		m.mu.Unlock()
		close(m.stopCh)
	})
}

func (m *Monitor) fullScanDue() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastFull) >= m.opts.CheckInterval
}

// fullScan lists all stuck items from the backend and remediates them.
func (m *Monitor) fullScan(ctx context.Context) {
	m.mu.Lock()
	m.lastFull = time.Now()
	m.mu.Unlock()

	scanID := uuid.NewString()[:8]
	log := m.logger.With("scan_id", scanID)

	items, err := m.riven.ListItems(ctx, riven.StateFailed, riven.StateStalled)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if trcerrors.IsAuthError(err) {
			log.Error("riven rejected credentials, check RIVEN_API_KEY", "error", err)
			return
		}
		log.Error("listing stuck items", "error", err)
		return
	}

	// The fresh listing is authoritative: anything no longer on it has
	// resolved on its own and must not be re-attempted.
	m.prune(items)

	log.Info("scan", "stuck_items", len(items))
	if len(items) == 0 {
		return
	}

	m.remediateAll(ctx, log, items)
}

// prune drops tracking state for items that are no longer on the stuck
// listing.
func (m *Monitor) prune(items []riven.Item) {
	ids := make(map[int64]struct{}, len(items))
	keys := make(map[string]struct{}, len(items))
	for _, it := range items {
		ids[it.ID] = struct{}{}
		keys[attemptKey(it)] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.pending {
		if _, ok := ids[id]; !ok {
			delete(m.pending, id)
		}
	}
	for key := range m.attempts {
		if _, ok := keys[key]; !ok {
			delete(m.attempts, key)
		}
	}
}

// retryPending re-attempts items that stayed stuck after the last
// scan, without hitting the listing endpoint again.
func (m *Monitor) retryPending(ctx context.Context) {
	m.mu.Lock()
	items := make([]riven.Item, 0, len(m.pending))
	for _, it := range m.pending {
		items = append(items, it)
	}
	m.mu.Unlock()

	if len(items) == 0 {
		return
	}

	log := m.logger.With("scan_id", uuid.NewString()[:8])
	log.Debug("retrying pending items", "count", len(items))
	m.remediateAll(ctx, log, items)
}

// remediateAll runs remediation for each item, at most
// MaxActiveDownloads at a time. Items inside their cooldown window are
// carried over untouched.
func (m *Monitor) remediateAll(ctx context.Context, log *logging.Logger, items []riven.Item) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.MaxActiveDownloads)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if !m.cooldownElapsed(item) {
			m.setPending(item)
			continue
		}

		item := item
		g.Go(func() error {
			resolved := m.remediate(gctx, log.WithItem(item.ID), item)
			if resolved {
				m.clearItem(item)
			} else {
				m.setPending(item)
			}
			return nil
		})
	}

	_ = g.Wait()
}

// cooldownElapsed reports whether the item is outside its retry
// cooldown window.
func (m *Monitor) cooldownElapsed(item riven.Item) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptKey(item)]
	if !ok {
		return true
	}
	return time.Since(a.last) >= m.opts.RetryInterval
}

// recordAttempt bumps the item's attempt counter and returns the new
// count.
func (m *Monitor) recordAttempt(item riven.Item) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attemptKey(item)
	a, ok := m.attempts[key]
	if !ok {
		a = &attempt{}
		m.attempts[key] = a
	}
	a.retries++
	a.last = time.Now()
	return a.retries
}

func (m *Monitor) setPending(item riven.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[item.ID] = item
}

// clearItem forgets a resolved item entirely.
func (m *Monitor) clearItem(item riven.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, item.ID)
	delete(m.attempts, attemptKey(item))
}
