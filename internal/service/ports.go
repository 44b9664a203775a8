package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/live"
	"github.com/cwrk-planet/attendance-service/internal/repository"
)

// Publisher — live-рассылка (live.Broadcaster).
type Publisher interface {
	Publish(ev live.Event) live.Event
}

// Notifier — best-effort доставка email/WhatsApp.
type Notifier interface {
	// NotifyCheckedIn не блокирует: отправка идёт в фоне.
	NotifyCheckedIn(a domain.Attendee, at time.Time)
	// SendQR отправляет QR по всем каналам; true — оба канала успешны.
	SendQR(ctx context.Context, a domain.Attendee) bool
}

// storeErr: недоступность хранилища -> ErrStoreUnavailable, остальное заворачивается как есть.
func storeErr(op string, err error) error {
	if errors.Is(err, repository.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
