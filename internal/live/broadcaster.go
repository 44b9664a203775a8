package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlowConsumer = errors.New("live: session buffer overflow")
	ErrStale        = errors.New("live: session stale")
	ErrClosed       = errors.New("live: broadcaster closed")
)

type Config struct {
	BufferSize int
	Heartbeat  time.Duration
	StaleAfter time.Duration
	ReapEvery  time.Duration
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 64
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = 25 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 3 * c.Heartbeat
	}
	if c.ReapEvery <= 0 {
		c.ReapEvery = c.Heartbeat
	}
	return c
}

// Broadcaster рассылает события всем открытым сессиям.
// У каждой сессии своя ограниченная очередь; Publish никогда не ждёт медленного читателя,
// переполненная сессия удаляется.
type Broadcaster struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	pubMu sync.Mutex // сериализует Publish: порядок seq == порядок в очередях
	seq   atomic.Uint64

	mu       sync.RWMutex
	sessions map[*Session]struct{}
	closed   bool
}

func New(cfg Config, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		cfg:      cfg.withDefaults(),
		log:      log.With("component", "live"),
		now:      time.Now,
		sessions: make(map[*Session]struct{}),
	}
}

func (b *Broadcaster) Heartbeat() time.Duration { return b.cfg.Heartbeat }

// Subscribe регистрирует новую сессию. События, опубликованные раньше, ей не достаются.
func (b *Broadcaster) Subscribe() *Session {
	s := &Session{
		id:     uuid.NewString(),
		b:      b,
		events: make(chan Event, b.cfg.BufferSize),
		done:   make(chan struct{}),
	}
	s.touch(b.now())

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.finish(ErrClosed)
		return s
	}
	b.sessions[s] = struct{}{}
	b.log.Debug("session subscribed", "session", s.id, "sessions", len(b.sessions))
	return s
}

func (b *Broadcaster) Unsubscribe(s *Session) {
	b.remove(s, nil)
}

// Publish присваивает событию очередной seq и кладёт его в очередь каждой сессии.
func (b *Broadcaster) Publish(ev Event) Event {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	ev.Seq = b.seq.Add(1)

	var slow []*Session
	b.mu.RLock()
	for s := range b.sessions {
		select {
		case s.events <- ev:
		default:
			slow = append(slow, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range slow {
		b.log.Warn("dropping slow session", "session", s.id, "seq", ev.Seq)
		b.remove(s, ErrSlowConsumer)
	}
	return ev
}

func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// Run — reaper: раз в ReapEvery удаляет сессии без успешной записи дольше StaleAfter.
func (b *Broadcaster) Run(ctx context.Context) {
	t := time.NewTicker(b.cfg.ReapEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := b.reap(b.now()); n > 0 {
				b.log.Info("reaped stale sessions", "count", n)
			}
		}
	}
}

func (b *Broadcaster) reap(now time.Time) int {
	deadline := now.Add(-b.cfg.StaleAfter).UnixNano()

	var stale []*Session
	b.mu.RLock()
	for s := range b.sessions {
		if s.lastActive.Load() < deadline {
			stale = append(stale, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range stale {
		b.remove(s, ErrStale)
	}
	return len(stale)
}

// Close закрывает все сессии; новые подписки сразу получают ErrClosed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	all := make([]*Session, 0, len(b.sessions))
	for s := range b.sessions {
		all = append(all, s)
	}
	clear(b.sessions)
	b.mu.Unlock()

	for _, s := range all {
		s.finish(ErrClosed)
	}
	b.log.Info("broadcaster closed", "sessions", len(all))
}

func (b *Broadcaster) remove(s *Session, reason error) {
	b.mu.Lock()
	_, ok := b.sessions[s]
	delete(b.sessions, s)
	n := len(b.sessions)
	b.mu.Unlock()

	s.finish(reason)
	if ok {
		b.log.Debug("session removed", "session", s.id, "reason", reason, "sessions", n)
	}
}
