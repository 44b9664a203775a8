package live

import (
	"sync"
	"sync/atomic"
	"time"
)

// Session — один подключённый зритель. Канал событий не закрывается,
// конец сессии сигнализирует Done().
type Session struct {
	id     string
	b      *Broadcaster
	events chan Event
	done   chan struct{}

	once       sync.Once
	err        error
	lastActive atomic.Int64 // unix nano последней успешной записи
	cursor     atomic.Uint64
}

func (s *Session) ID() string { return s.id }

func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) Done() <-chan struct{} { return s.done }

// Err — причина завершения (nil при обычной отписке). Валидно после Done().
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Delivered отмечает успешную запись события в транспорт.
func (s *Session) Delivered(seq uint64) {
	if seq > s.cursor.Load() {
		s.cursor.Store(seq)
	}
	s.Touch()
}

// Touch — успешная запись без события (heartbeat).
func (s *Session) Touch() { s.touch(s.b.now()) }

// Cursor — seq последнего доставленного события.
func (s *Session) Cursor() uint64 { return s.cursor.Load() }

func (s *Session) Close() { s.b.Unsubscribe(s) }

func (s *Session) touch(t time.Time) { s.lastActive.Store(t.UnixNano()) }

func (s *Session) finish(reason error) {
	s.once.Do(func() {
		s.err = reason
		close(s.done)
	})
}
