package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	trcerrors "github.com/trc-project/trc/internal/errors"
	"github.com/trc-project/trc/internal/realdebrid"
	"github.com/trc-project/trc/internal/riven"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeRiven struct {
	mu        sync.Mutex
	items     []riven.Item
	streams   map[int64][]riven.Stream
	listCalls int
	retried   []int64
	removed   []int64
	reset     []int64
	readded   []string
	retryErr  error
	removeErr error
	scrapeErr error
}

func (f *fakeRiven) ListItems(ctx context.Context, states ...string) ([]riven.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]riven.Item(nil), f.items...), nil
}

func (f *fakeRiven) RetryItem(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retryErr != nil {
		return f.retryErr
	}
	f.retried = append(f.retried, id)
	return nil
}

func (f *fakeRiven) RemoveItem(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeRiven) ResetItem(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset = append(f.reset, id)
	return nil
}

func (f *fakeRiven) AddItem(ctx context.Context, imdbID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readded = append(f.readded, imdbID)
	return nil
}

func (f *fakeRiven) ScrapeItem(ctx context.Context, id int64) ([]riven.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scrapeErr != nil {
		return nil, f.scrapeErr
	}
	return f.streams[id], nil
}

func (f *fakeRiven) retriedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.retried...)
}

type fakeDebrid struct {
	mu         sync.Mutex
	active     int
	added      []string
	addCalls   int
	addErr     error
	deleted    []string
	selected   []string
	statusSeqs [][]string // statuses for the n-th added torrent, last repeats
	statusIdx  map[string]int
	infoErrs   []error // errors popped before any status is returned
}

func (f *fakeDebrid) AddMagnet(ctx context.Context, magnet string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil {
		return "", f.addErr
	}
	f.added = append(f.added, magnet)
	if f.statusIdx == nil {
		f.statusIdx = make(map[string]int)
	}
	return fmt.Sprintf("t%d", len(f.added)), nil
}

func (f *fakeDebrid) TorrentInfo(ctx context.Context, id string) (*realdebrid.Torrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.infoErrs) > 0 {
		err := f.infoErrs[0]
		f.infoErrs = f.infoErrs[1:]
		return nil, err
	}

	var n int
	if _, err := fmt.Sscanf(id, "t%d", &n); err != nil || n < 1 || n > len(f.statusSeqs) {
		return nil, fmt.Errorf("unknown torrent %q", id)
	}
	seq := f.statusSeqs[n-1]
	idx := f.statusIdx[id]
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	f.statusIdx[id]++
	return &realdebrid.Torrent{ID: id, Status: seq[idx]}, nil
}

func (f *fakeDebrid) SelectFiles(ctx context.Context, id, files string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, id+":"+files)
	return nil
}

func (f *fakeDebrid) DeleteTorrent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDebrid) ActiveCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *fakeDebrid) addedMagnets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.added...)
}

func testOptions() Options {
	return Options{
		CheckInterval:      time.Hour,
		RetryInterval:      10 * time.Millisecond,
		MaxRetries:         3,
		MaxTorrents:        10,
		MaxActiveDownloads: 3,
		AddDelay:           0,
		PollInterval:       time.Millisecond,
		MaxWait:            time.Second,
	}
}

func failedItem(id int64) riven.Item {
	return riven.Item{ID: id, Title: "Some Movie", Type: "movie", State: riven.StateFailed}
}

// -----------------------------------------------------------------------------
// Remediation paths
// -----------------------------------------------------------------------------

func TestRemediate_ResetsAndRetriesItemWithoutImdbID(t *testing.T) {
	fr := &fakeRiven{}
	fd := &fakeDebrid{}
	m := New(testOptions(), fr, fd, nil)

	resolved := m.remediate(context.Background(), m.logger, failedItem(1))

	if resolved {
		t.Error("remediate reported resolved; a riven retry only counts once the item leaves the stuck listing")
	}
	if len(fr.reset) != 1 || fr.reset[0] != 1 {
		t.Errorf("reset = %v, want [1]", fr.reset)
	}
	if got := fr.retriedIDs(); len(got) != 1 || got[0] != 1 {
		t.Errorf("retried = %v, want [1]", got)
	}
	if got := fd.addedMagnets(); len(got) != 0 {
		t.Errorf("debrid touched on the retry path: %v", got)
	}
}

func TestRemediate_RemovesAndReaddsItemWithImdbID(t *testing.T) {
	fr := &fakeRiven{}
	fd := &fakeDebrid{}
	m := New(testOptions(), fr, fd, nil)

	item := failedItem(1)
	item.ImdbID = "tt0133093"
	resolved := m.remediate(context.Background(), m.logger, item)

	if resolved {
		t.Error("remediate reported resolved before the item left the stuck listing")
	}
	if len(fr.removed) != 1 || fr.removed[0] != 1 {
		t.Errorf("removed = %v, want [1]", fr.removed)
	}
	if len(fr.readded) != 1 || fr.readded[0] != "tt0133093" {
		t.Errorf("readded = %v, want [tt0133093]", fr.readded)
	}
	if got := fr.retriedIDs(); len(got) != 0 {
		t.Errorf("retried = %v, want none on the remove+add path", got)
	}
}

func TestRemediate_RemoveFailureDoesNotReadd(t *testing.T) {
	fr := &fakeRiven{removeErr: trcerrors.NewAPIError("riven", "/api/v1/items/remove", 401, "bad key")}
	fd := &fakeDebrid{}
	m := New(testOptions(), fr, fd, nil)

	item := failedItem(1)
	item.ImdbID = "tt0133093"
	if resolved := m.remediate(context.Background(), m.logger, item); resolved {
		t.Error("remediate reported resolved despite the remove failing")
	}
	if len(fr.readded) != 0 {
		t.Errorf("readded = %v after a failed remove, want none", fr.readded)
	}
	if got := fd.addedMagnets(); len(got) != 0 {
		t.Errorf("debrid touched on a failed riven retry: %v", got)
	}
}

func TestRemediate_ManualScrapeAfterRetriesExhausted(t *testing.T) {
	opts := testOptions()
	opts.MaxRetries = 0

	fr := &fakeRiven{
		streams: map[int64][]riven.Stream{
			1: {{Infohash: "aaa", RawTitle: "Movie.2160p", Rank: 90}},
		},
	}
	fd := &fakeDebrid{
		statusSeqs: [][]string{
			{realdebrid.StatusWaitingFiles, realdebrid.StatusDownloading, realdebrid.StatusDownloaded},
		},
	}
	m := New(opts, fr, fd, nil)

	resolved := m.remediate(context.Background(), m.logger, failedItem(1))

	if !resolved {
		t.Fatal("remediate did not resolve the item via manual scrape")
	}
	if got := fd.addedMagnets(); len(got) != 1 {
		t.Fatalf("added %d magnets, want 1", len(got))
	}
	if len(fd.selected) != 1 || fd.selected[0] != "t1:all" {
		t.Errorf("selected = %v, want [t1:all]", fd.selected)
	}
	// The item is handed back to riven once content is cached.
	if got := fr.retriedIDs(); len(got) != 1 || got[0] != 1 {
		t.Errorf("retried = %v, want [1]", got)
	}
}

func TestRemediate_SkipRivenRetryGoesStraightToScrape(t *testing.T) {
	opts := testOptions()
	opts.SkipRivenRetry = true

	fr := &fakeRiven{
		streams: map[int64][]riven.Stream{
			1: {{Infohash: "aaa"}},
		},
	}
	fd := &fakeDebrid{
		statusSeqs: [][]string{{realdebrid.StatusDownloaded}},
	}
	m := New(opts, fr, fd, nil)

	if resolved := m.remediate(context.Background(), m.logger, failedItem(1)); !resolved {
		t.Fatal("remediate did not resolve the item")
	}
	if got := fd.addedMagnets(); len(got) != 1 {
		t.Errorf("added %d magnets, want 1", len(got))
	}
}

func TestManualScrape_TriesNextCandidateOnDeadTorrent(t *testing.T) {
	opts := testOptions()

	fr := &fakeRiven{
		streams: map[int64][]riven.Stream{
			1: {{Infohash: "aaa"}, {Infohash: "bbb"}},
		},
	}
	fd := &fakeDebrid{
		statusSeqs: [][]string{
			{realdebrid.StatusDead},
			{realdebrid.StatusDownloaded},
		},
	}
	m := New(opts, fr, fd, nil)

	resolved, err := m.manualScrape(context.Background(), m.logger, failedItem(1))
	if err != nil {
		t.Fatalf("manualScrape returned error: %v", err)
	}
	if !resolved {
		t.Fatal("manualScrape did not resolve with the second candidate")
	}
	if len(fd.deleted) != 1 || fd.deleted[0] != "t1" {
		t.Errorf("deleted = %v, want the dead torrent [t1]", fd.deleted)
	}
}

func TestManualScrape_RespectsCandidateBudget(t *testing.T) {
	opts := testOptions()
	opts.MaxTorrents = 2

	fr := &fakeRiven{
		streams: map[int64][]riven.Stream{
			1: {{Infohash: "a"}, {Infohash: "b"}, {Infohash: "c"}, {Infohash: "d"}},
		},
	}
	fd := &fakeDebrid{
		statusSeqs: [][]string{
			{realdebrid.StatusDead},
			{realdebrid.StatusDead},
			{realdebrid.StatusDownloaded}, // must never be reached
		},
	}
	m := New(opts, fr, fd, nil)

	resolved, err := m.manualScrape(context.Background(), m.logger, failedItem(1))
	if err != nil {
		t.Fatalf("manualScrape returned error: %v", err)
	}
	if resolved {
		t.Error("manualScrape resolved past the candidate budget")
	}
	if got := fd.addedMagnets(); len(got) != 2 {
		t.Errorf("added %d magnets, want 2", len(got))
	}
}

func TestManualScrape_DefersAtActiveDownloadLimit(t *testing.T) {
	opts := testOptions()

	fr := &fakeRiven{
		streams: map[int64][]riven.Stream{1: {{Infohash: "aaa"}}},
	}
	fd := &fakeDebrid{active: opts.MaxActiveDownloads}
	m := New(opts, fr, fd, nil)

	resolved, err := m.manualScrape(context.Background(), m.logger, failedItem(1))
	if err != nil {
		t.Fatalf("manualScrape returned error: %v", err)
	}
	if resolved {
		t.Error("manualScrape resolved while the account is at its limit")
	}
	if got := fd.addedMagnets(); len(got) != 0 {
		t.Errorf("added %d magnets while deferred, want 0", len(got))
	}
}

func TestManualScrape_StopsCandidatesOnNonRetryableError(t *testing.T) {
	opts := testOptions()
	opts.MaxRetries = 0

	fr := &fakeRiven{
		streams: map[int64][]riven.Stream{
			1: {{Infohash: "aaa"}, {Infohash: "bbb"}},
		},
	}
	fd := &fakeDebrid{
		addErr: trcerrors.NewAPIError("realdebrid", "/torrents/addMagnet", 401, "bad token"),
	}
	m := New(opts, fr, fd, nil)

	resolved, err := m.manualScrape(context.Background(), m.logger, failedItem(1))
	if resolved {
		t.Error("manualScrape resolved despite every add failing")
	}
	if err == nil {
		t.Fatal("manualScrape swallowed a non-retryable error")
	}
	if !trcerrors.IsAuthError(err) {
		t.Errorf("manualScrape error = %v, want an auth error", err)
	}
	fd.mu.Lock()
	calls := fd.addCalls
	fd.mu.Unlock()
	if calls != 1 {
		t.Errorf("addCalls = %d after a non-retryable failure, want 1", calls)
	}
}

func TestWaitForTorrent_ToleratesTransientStatusErrors(t *testing.T) {
	opts := testOptions()
	opts.MaxRetries = 0

	fr := &fakeRiven{
		streams: map[int64][]riven.Stream{1: {{Infohash: "aaa"}}},
	}
	fd := &fakeDebrid{
		statusSeqs: [][]string{{realdebrid.StatusDownloaded}},
		infoErrs: []error{
			trcerrors.NewAPIError("realdebrid", "/torrents/info", 503, "maintenance"),
		},
	}
	m := New(opts, fr, fd, nil)

	resolved, err := m.manualScrape(context.Background(), m.logger, failedItem(1))
	if err != nil {
		t.Fatalf("manualScrape returned error: %v", err)
	}
	if !resolved {
		t.Error("a transient status failure cost the torrent its wait budget")
	}
}

func TestManualScrape_NoCandidates(t *testing.T) {
	fr := &fakeRiven{streams: map[int64][]riven.Stream{}}
	fd := &fakeDebrid{}
	m := New(testOptions(), fr, fd, nil)

	resolved, err := m.manualScrape(context.Background(), m.logger, failedItem(1))
	if err != nil {
		t.Fatalf("manualScrape returned error: %v", err)
	}
	if resolved {
		t.Error("manualScrape resolved with no candidates")
	}
}

// -----------------------------------------------------------------------------
// Loop lifecycle
// -----------------------------------------------------------------------------

func TestStartStop(t *testing.T) {
	fr := &fakeRiven{}
	fd := &fakeDebrid{}
	m := New(testOptions(), fr, fd, nil)

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	m.Stop()
	m.Stop() // idempotent

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}

	fr.mu.Lock()
	calls := fr.listCalls
	fr.mu.Unlock()
	if calls < 1 {
		t.Error("no scan ran before Stop")
	}
}

func TestStart_StopBeforeFirstScan(t *testing.T) {
	fr := &fakeRiven{}
	m := New(testOptions(), fr, &fakeDebrid{}, nil)

	m.Stop()

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return for an already-stopped monitor")
	}

	fr.mu.Lock()
	calls := fr.listCalls
	fr.mu.Unlock()
	if calls != 0 {
		t.Errorf("a scan ran after Stop was already requested: listCalls = %d", calls)
	}
}

func TestFullScan_PrunesItemsThatLeftTheListing(t *testing.T) {
	opts := testOptions()
	opts.RetryInterval = 0 // no cooldown between scans

	fr := &fakeRiven{items: []riven.Item{failedItem(1), failedItem(2)}}
	fd := &fakeDebrid{}
	m := New(opts, fr, fd, nil)

	m.fullScan(context.Background())

	m.mu.Lock()
	_, pending1 := m.pending[1]
	m.mu.Unlock()
	if !pending1 {
		t.Fatal("item 1 not pending after the first scan")
	}

	// Item 1 resolves on its own and drops off the stuck listing.
	fr.mu.Lock()
	fr.items = []riven.Item{failedItem(2)}
	fr.mu.Unlock()

	m.fullScan(context.Background())

	m.mu.Lock()
	_, pending1 = m.pending[1]
	_, tracked1 := m.attempts["1"]
	_, pending2 := m.pending[2]
	m.mu.Unlock()
	if pending1 || tracked1 {
		t.Errorf("item 1 still tracked after leaving the listing: pending=%v attempts=%v", pending1, tracked1)
	}
	if !pending2 {
		t.Error("item 2 dropped while still on the listing")
	}

	// Ticks between scans must not touch the healed item either.
	before := len(fr.reset)
	m.retryPending(context.Background())
	fr.mu.Lock()
	resets := fr.reset
	fr.mu.Unlock()
	for _, id := range resets[before:] {
		if id == 1 {
			t.Error("healed item 1 was remediated again after it left the stuck listing")
		}
	}
}

func TestStart_CancelledByContext(t *testing.T) {
	m := New(testOptions(), &fakeRiven{}, &fakeDebrid{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error on cancellation: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}

func TestRemediateAll_CooldownSkipsRecentAttempts(t *testing.T) {
	opts := testOptions()
	opts.RetryInterval = time.Hour // nothing may be re-attempted

	fr := &fakeRiven{}
	fd := &fakeDebrid{}
	m := New(opts, fr, fd, nil)

	items := []riven.Item{failedItem(1)}
	m.remediateAll(context.Background(), m.logger, items)
	m.remediateAll(context.Background(), m.logger, items)

	if got := fr.retriedIDs(); len(got) != 1 {
		t.Errorf("retried %d times within cooldown, want 1", len(got))
	}

	m.mu.Lock()
	_, stillPending := m.pending[1]
	m.mu.Unlock()
	if !stillPending {
		t.Error("item inside cooldown window was dropped from pending")
	}
}

func TestRemediateAll_ResolvedItemIsCleared(t *testing.T) {
	opts := testOptions()
	opts.MaxRetries = 0

	fr := &fakeRiven{
		streams: map[int64][]riven.Stream{1: {{Infohash: "aaa"}}},
	}
	fd := &fakeDebrid{
		statusSeqs: [][]string{{realdebrid.StatusDownloaded}},
	}
	m := New(opts, fr, fd, nil)

	m.remediateAll(context.Background(), m.logger, []riven.Item{failedItem(1)})

	m.mu.Lock()
	_, pending := m.pending[1]
	_, tracked := m.attempts["1"]
	m.mu.Unlock()
	if pending || tracked {
		t.Errorf("resolved item still tracked: pending=%v attempts=%v", pending, tracked)
	}
}
