package monitor

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	trcerrors "github.com/trc-project/trc/internal/errors"
	"github.com/trc-project/trc/internal/logging"
	"github.com/trc-project/trc/internal/realdebrid"
	"github.com/trc-project/trc/internal/riven"
)

// remediate runs one remediation attempt for a stuck item and reports
// whether the item was resolved. While the item still has Riven
// retries left, the cheap path is used: ask Riven to re-run
// acquisition from scratch. Once retries are exhausted (or skipped
// outright), fall back to manually feeding content through Real-Debrid.
func (m *Monitor) remediate(ctx context.Context, log *logging.Logger, item riven.Item) bool {
	if ctx.Err() != nil {
		return false
	}

	retries := m.recordAttempt(item)
	log = log.WithAttempt(uuid.NewString()[:8]).With("retry", retries, "state", item.State)

	if !m.opts.SkipRivenRetry && retries <= m.opts.MaxRetries {
		if err := m.rivenRetry(ctx, log, item); err != nil {
			if ctx.Err() != nil {
				return false
			}
			if trcerrors.IsAuthError(err) {
				log.Error("riven rejected credentials, check RIVEN_API_KEY", "error", err)
				return false
			}
			log.Error("riven retry failed", "error", err)
			return false
		}
		// The retry was accepted; whether it sticks shows up in the
		// next scan. Treat the item as pending until it disappears
		// from the stuck listing.
		return false
	}

	log.Info("riven retries exhausted, attempting manual scrape", "title", item.Title)
	resolved, err := m.manualScrape(ctx, log, item)
	if err != nil && ctx.Err() == nil {
		if trcerrors.IsAuthError(err) {
			log.Error("debrid rejected credentials, check RD_API_KEY", "error", err)
		} else {
			log.Error("manual scrape failed", "error", err)
		}
	}
	return resolved
}

// rivenRetry re-runs acquisition for the item. Items with an IMDb id
// are removed and re-requested from scratch, which clears any poisoned
// state along with them. Items without one cannot be re-requested, so
// they are reset in place and retried instead.
func (m *Monitor) rivenRetry(ctx context.Context, log *logging.Logger, item riven.Item) error {
	if item.ImdbID != "" {
		log.Info("removing and re-adding item", "title", item.Title, "imdb_id", item.ImdbID)
		if err := m.riven.RemoveItem(ctx, item.ID); err != nil {
			return err
		}
		return m.riven.AddItem(ctx, item.ImdbID)
	}

	log.Info("resetting and retrying item", "title", item.Title)
	if err := m.riven.ResetItem(ctx, item.ID); err != nil {
		return err
	}
	return m.riven.RetryItem(ctx, item.ID)
}

// manualScrape pulls scraped candidates for the item and feeds them to
// Real-Debrid one at a time, best-ranked first, until one downloads or
// the candidate budget is spent. Dead torrents are deleted from the
// account before moving on.
func (m *Monitor) manualScrape(ctx context.Context, log *logging.Logger, item riven.Item) (bool, error) {
	active, err := m.debrid.ActiveCount(ctx)
	if err != nil {
		return false, err
	}
	if active >= m.opts.MaxActiveDownloads {
		log.Warn("debrid account at active download limit, deferring", "active", active)
		return false, nil
	}

	streams, err := m.riven.ScrapeItem(ctx, item.ID)
	if err != nil {
		return false, err
	}
	if len(streams) == 0 {
		log.Warn("no scraped candidates for item")
		return false, nil
	}
	if len(streams) > m.opts.MaxTorrents {
		streams = streams[:m.opts.MaxTorrents]
	}

	for i, stream := range streams {
		if i > 0 {
			if !m.sleep(ctx, m.opts.AddDelay) {
				return false, ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		tlog := log.With("infohash", stream.Infohash, "candidate", i+1)
		torrentID, err := m.debrid.AddMagnet(ctx, magnetLink(stream))
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			// A bad key or a vanished endpoint will fail for every
			// candidate the same way; stop burning them.
			if !trcerrors.IsRetryable(err) {
				return false, err
			}
			tlog.Warn("adding magnet failed", "error", err)
			continue
		}

		ok := m.waitForTorrent(ctx, tlog, torrentID)
		if ok {
			tlog.Info("content cached on debrid, handing item back to riven")
			if err := m.riven.RetryItem(ctx, item.ID); err != nil {
				return false, err
			}
			return true, nil
		}

		// Best-effort: don't leave dead torrents on the account.
		if err := m.debrid.DeleteTorrent(ctx, torrentID); err != nil && ctx.Err() == nil {
			tlog.Warn("deleting torrent failed", "error", err)
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
	}

	return false, nil
}

// waitForTorrent polls the torrent until it downloads, fails or the
// wait budget runs out. Torrents parked in waiting_files_selection get
// all files selected.
func (m *Monitor) waitForTorrent(ctx context.Context, log *logging.Logger, torrentID string) bool {
	deadline := time.Now().Add(m.opts.MaxWait)

	for {
		if ctx.Err() != nil {
			return false
		}

		t, err := m.debrid.TorrentInfo(ctx, torrentID)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			// Transient failures should not cost the torrent its wait
			// budget; keep polling until the deadline.
			if trcerrors.IsRetryable(err) && time.Now().Before(deadline) {
				log.Debug("torrent status check failed, retrying", "error", err)
				if !m.sleep(ctx, m.opts.PollInterval) {
					return false
				}
				continue
			}
			log.Warn("torrent status check failed", "error", err)
			return false
		}

		switch {
		case t.Status == realdebrid.StatusDownloaded:
			return true
		case t.Status == realdebrid.StatusWaitingFiles:
			if err := m.debrid.SelectFiles(ctx, torrentID, "all"); err != nil && ctx.Err() == nil {
				log.Warn("selecting files failed", "error", err)
				return false
			}
		case t.Failed():
			log.Debug("torrent failed", "status", t.Status)
			return false
		default:
			log.Debug("torrent pending", "status", t.Status, "progress", t.Progress)
		}

		if time.Now().After(deadline) {
			log.Warn("torrent wait budget exhausted", "status", t.Status)
			return false
		}
		if !m.sleep(ctx, m.opts.PollInterval) {
			return false
		}
	}
}

// sleep waits for d or until ctx is cancelled, reporting whether the
// full wait completed.
func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// magnetLink builds a magnet URI from a scraped candidate.
func magnetLink(s riven.Stream) string {
	return fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", s.Infohash, url.QueryEscape(s.RawTitle))
}
