package realdebrid

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	trcerrors "github.com/trc-project/trc/internal/errors"
	"github.com/trc-project/trc/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "rd-key", ratelimit.NewRegistry(nil), nil)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestAddMagnet(t *testing.T) {
	const magnet = "magnet:?xt=urn:btih:deadbeef"

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/torrents/addMagnet" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer rd-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		if got := form.Get("magnet"); got != magnet {
			t.Errorf("magnet = %q, want %q", got, magnet)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "TORRENT1", "uri": "ignored"}`))
	})

	id, err := c.AddMagnet(context.Background(), magnet)
	if err != nil {
		t.Fatalf("AddMagnet returned error: %v", err)
	}
	if id != "TORRENT1" {
		t.Errorf("id = %q, want TORRENT1", id)
	}
}

func TestTorrentInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/torrents/info/TORRENT1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id": "TORRENT1", "filename": "movie.mkv", "status": "downloading", "progress": 42.5}`))
	})

	torrent, err := c.TorrentInfo(context.Background(), "TORRENT1")
	if err != nil {
		t.Fatalf("TorrentInfo returned error: %v", err)
	}
	if torrent.Status != StatusDownloading || torrent.Progress != 42.5 {
		t.Errorf("torrent = %+v", torrent)
	}
}

func TestTorrent_Failed(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusError, true},
		{StatusVirus, true},
		{StatusDead, true},
		{StatusMagnetError, true},
		{StatusQueued, false},
		{StatusDownloading, false},
		{StatusDownloaded, false},
		{StatusWaitingFiles, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			torrent := &Torrent{Status: tt.status}
			if got := torrent.Failed(); got != tt.want {
				t.Errorf("Failed() with status %q = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestSelectFiles(t *testing.T) {
	var gotFiles string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/torrents/selectFiles/TORRENT1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		gotFiles = form.Get("files")
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.SelectFiles(context.Background(), "TORRENT1", "all"); err != nil {
		t.Fatalf("SelectFiles returned error: %v", err)
	}
	if gotFiles != "all" {
		t.Errorf("files = %q, want all", gotFiles)
	}
}

func TestDeleteTorrent(t *testing.T) {
	var gotMethod string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.DeleteTorrent(context.Background(), "TORRENT1"); err != nil {
		t.Fatalf("DeleteTorrent returned error: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", gotMethod)
	}
}

func TestActiveCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nb": 2, "limit": 25}`))
	})

	n, err := c.ActiveCount(context.Background())
	if err != nil {
		t.Fatalf("ActiveCount returned error: %v", err)
	}
	if n != 2 {
		t.Errorf("ActiveCount = %d, want 2", n)
	}
}

func TestUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	})

	_, err := c.ActiveCount(context.Background())
	if err == nil {
		t.Fatal("ActiveCount succeeded with 401 response")
	}
	if !trcerrors.IsAuthError(err) {
		t.Errorf("IsAuthError(%v) = false, want true", err)
	}
}
