package liveview

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeServer struct {
	snapshots atomic.Int32
	streams   atomic.Int32
	hold      chan struct{}
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	up := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/attendees/live", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"kind":"unauthorized","message":"no"}}`))
			return
		}
		n := f.snapshots.Add(1)
		rows := snapshot3()
		if n > 1 {
			// за время обрыва отметили ещё a2
			at := time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC)
			first := at.Add(-5 * time.Minute)
			rows[0].CheckedIn, rows[0].EntryTime = true, &first
			rows[1].CheckedIn, rows[1].EntryTime = true, &at
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": rows})
	})
	mux.HandleFunc("/api/attendees/stream", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		n := f.streams.Add(1)
		_ = conn.WriteJSON(map[string]string{"type": "connected"})
		if n == 1 {
			at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
			_ = conn.WriteJSON(checkedIn("a1", 1, at))
			_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
			return // обрыв
		}
		<-f.hold
	})
	return mux
}

func TestClient_ResnapshotsAfterDisconnect(t *testing.T) {
	f := &fakeServer{hold: make(chan struct{})}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()
	defer close(f.hold)

	updates := make(chan Update, 4)
	snaps := make(chan int, 4)
	c, err := NewClient(srv.URL, "tok", nil,
		WithBackoff(10*time.Millisecond, 50*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		OnUpdate(func(u Update) { updates <- u }),
		OnSnapshot(func(rows []Row) { snaps <- len(rows) }),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case u := <-updates:
		if u.AttendeeID != "a1" {
			t.Fatalf("update = %+v", u)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no update received")
	}

	for i := 0; i < 2; i++ {
		select {
		case <-snaps:
		case <-time.After(3 * time.Second):
			t.Fatalf("snapshot %d not loaded", i+1)
		}
	}

	r, _ := c.View().Get("a2")
	if !r.CheckedIn {
		t.Fatalf("missed check-in not recovered by re-snapshot: %+v", r)
	}
	if f.streams.Load() < 2 {
		t.Fatalf("streams = %d", f.streams.Load())
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestClient_SnapshotError(t *testing.T) {
	f := &fakeServer{hold: make(chan struct{})}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	c, err := NewClient(srv.URL, "bad", nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Snapshot(context.Background()); err == nil {
		t.Fatal("expected unauthorized error")
	}
}

func TestClient_DialFailureIsStreamDisconnected(t *testing.T) {
	f := &fakeServer{hold: make(chan struct{})}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "bad", nil)
	_, err := c.runOnce(context.Background())
	if !errors.Is(err, ErrStreamDisconnected) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewClient_RejectsScheme(t *testing.T) {
	if _, err := NewClient("ftp://x", "t", nil); err == nil {
		t.Fatal("expected error")
	}
}
