package live

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestBroadcaster(buf int) *Broadcaster {
	return New(Config{BufferSize: buf, Heartbeat: time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func recv(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestPublish_DeliversToEverySession(t *testing.T) {
	b := newTestBroadcaster(8)
	s1, s2 := b.Subscribe(), b.Subscribe()
	defer s1.Close()
	defer s2.Close()

	b.Publish(CheckedIn("a1", time.Now()))

	for _, s := range []*Session{s1, s2} {
		ev := recv(t, s)
		if ev.Type != TypeCheckedIn || ev.AttendeeID != "a1" || ev.Seq != 1 {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
}

func TestPublish_FIFOAndMonotonicSeq(t *testing.T) {
	b := newTestBroadcaster(16)
	s := b.Subscribe()
	defer s.Close()

	for _, id := range []string{"a", "b", "c"} {
		b.Publish(CheckedIn(id, time.Now()))
	}
	var last uint64
	for _, want := range []string{"a", "b", "c"} {
		ev := recv(t, s)
		if ev.AttendeeID != want {
			t.Fatalf("got %s, want %s", ev.AttendeeID, want)
		}
		if ev.Seq <= last {
			t.Fatalf("seq not increasing: %d after %d", ev.Seq, last)
		}
		last = ev.Seq
	}
}

func TestPublish_ConcurrentPublishersKeepSeqOrder(t *testing.T) {
	b := newTestBroadcaster(256)
	s := b.Subscribe()
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(CheckedIn("x", time.Now()))
		}()
	}
	wg.Wait()

	var last uint64
	for i := 0; i < 100; i++ {
		ev := recv(t, s)
		if ev.Seq != last+1 {
			t.Fatalf("seq gap: %d after %d", ev.Seq, last)
		}
		last = ev.Seq
	}
}

func TestSubscribe_NoReplay(t *testing.T) {
	b := newTestBroadcaster(8)
	b.Publish(CheckedIn("early", time.Now()))

	s := b.Subscribe()
	defer s.Close()
	b.Publish(CheckedIn("late", time.Now()))

	if ev := recv(t, s); ev.AttendeeID != "late" {
		t.Fatalf("got %s, want late", ev.AttendeeID)
	}
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}

func TestPublish_SlowSessionDroppedWithoutBlocking(t *testing.T) {
	b := newTestBroadcaster(2)
	slow := b.Subscribe()
	fast := b.Subscribe()
	defer fast.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			b.Publish(CheckedIn("x", time.Now()))
			<-fast.Events()
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow session")
	}

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow session not dropped")
	}
	if !errors.Is(slow.Err(), ErrSlowConsumer) {
		t.Fatalf("err = %v", slow.Err())
	}
	if b.Len() != 1 {
		t.Fatalf("Len = %d, want 1", b.Len())
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := newTestBroadcaster(4)
	s := b.Subscribe()
	s.Close()
	s.Close()

	<-s.Done()
	if s.Err() != nil {
		t.Fatalf("err = %v, want nil", s.Err())
	}
	b.Publish(CheckedIn("a", time.Now()))
	if len(s.Events()) != 0 {
		t.Fatal("event delivered after unsubscribe")
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d", b.Len())
	}
}

func TestReap_DropsStaleSessions(t *testing.T) {
	b := newTestBroadcaster(4)
	b.cfg.StaleAfter = time.Minute
	base := time.Now()
	b.now = func() time.Time { return base }

	stale := b.Subscribe()
	fresh := b.Subscribe()
	defer fresh.Close()

	b.now = func() time.Time { return base.Add(50 * time.Second) }
	fresh.Delivered(7)

	if n := b.reap(base.Add(90 * time.Second)); n != 1 {
		t.Fatalf("reaped %d, want 1", n)
	}
	if !errors.Is(stale.Err(), ErrStale) {
		t.Fatalf("stale err = %v", stale.Err())
	}
	if fresh.Cursor() != 7 {
		t.Fatalf("cursor = %d", fresh.Cursor())
	}
	if b.Len() != 1 {
		t.Fatalf("Len = %d", b.Len())
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	b := newTestBroadcaster(1)
	b.cfg.ReapEvery = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { b.Run(ctx); close(done) }()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestClose_EndsSessionsAndRejectsNew(t *testing.T) {
	b := newTestBroadcaster(4)
	s := b.Subscribe()
	b.Close()
	b.Close()

	<-s.Done()
	if !errors.Is(s.Err(), ErrClosed) {
		t.Fatalf("err = %v", s.Err())
	}
	late := b.Subscribe()
	select {
	case <-late.Done():
	default:
		t.Fatal("subscribe after Close must return finished session")
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d", b.Len())
	}
}

func TestIndependentInstances(t *testing.T) {
	b1, b2 := newTestBroadcaster(4), newTestBroadcaster(4)
	s1, s2 := b1.Subscribe(), b2.Subscribe()
	defer s1.Close()
	defer s2.Close()

	b1.Publish(CheckedIn("only-b1", time.Now()))
	if ev := recv(t, s1); ev.AttendeeID != "only-b1" {
		t.Fatalf("got %+v", ev)
	}
	if len(s2.Events()) != 0 {
		t.Fatal("event leaked across broadcasters")
	}
}
