package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/live"
	"github.com/cwrk-planet/attendance-service/internal/repository"
)

type fakePublisher struct {
	mu     sync.Mutex
	seq    uint64
	events []live.Event
}

func (p *fakePublisher) Publish(ev live.Event) live.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	ev.Seq = p.seq
	p.events = append(p.events, ev)
	return ev
}

func (p *fakePublisher) Events() []live.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]live.Event(nil), p.events...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	checked  []string
	qr       []string
	qrResult func(a domain.Attendee) bool
}

func (n *fakeNotifier) NotifyCheckedIn(a domain.Attendee, _ time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.checked = append(n.checked, a.ID)
}

func (n *fakeNotifier) SendQR(_ context.Context, a domain.Attendee) bool {
	n.mu.Lock()
	n.qr = append(n.qr, a.ID)
	n.mu.Unlock()
	if n.qrResult != nil {
		return n.qrResult(a)
	}
	return true
}

func (n *fakeNotifier) CheckedIn() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.checked...)
}

func (n *fakeNotifier) QR() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.qr...)
}

var errDown = errors.New("connection refused")

// downAttendance — хранилище отметок, которое всегда недоступно.
type downAttendance struct{}

func (downAttendance) Record(context.Context, string, time.Time) (time.Time, bool, error) {
	return time.Time{}, false, errors.Join(repository.ErrUnavailable, errDown)
}

func (downAttendance) UpdateEntryStatus(context.Context, string, string, string) error {
	return repository.ErrUnavailable
}

func fixedClock(t time.Time) func() time.Time {
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}
