package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/live"
	"github.com/cwrk-planet/attendance-service/internal/logger"
	"github.com/cwrk-planet/attendance-service/internal/repository"
)

type CheckInResult struct {
	Attendee  domain.Attendee
	EntryTime time.Time
	Created   bool
}

// Registrar — единственный писатель отметок посещения.
type Registrar struct {
	attendees  repository.AttendeeRepository
	attendance repository.AttendanceRepository
	pub        Publisher
	notifier   Notifier
	log        *slog.Logger
	now        func() time.Time
}

func NewRegistrar(
	attendees repository.AttendeeRepository,
	attendance repository.AttendanceRepository,
	pub Publisher,
	notifier Notifier,
	log *slog.Logger,
	now func() time.Time,
) *Registrar {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}

	return &Registrar{
		attendees:  attendees,
		attendance: attendance,
		pub:        pub,
		notifier:   notifier,
		log:        log.With("component", "registrar"),
		now:        now,
	}
}

// CheckIn отмечает участника по токену из QR.
// Повторный скан возвращает *domain.AlreadyCheckedInError с исходным временем входа.
func (r *Registrar) CheckIn(ctx context.Context, token string) (CheckInResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return CheckInResult{}, domain.ErrInvalidInput
	}

	a, err := r.attendees.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return CheckInResult{}, domain.ErrAttendeeNotFound
		}
		r.log.Error("checkin.getByToken failed", logger.Err(err))
		return CheckInResult{}, storeErr("find attendee", err)
	}

	// точность timestamptz — микросекунды; обрезаем, чтобы повторное чтение совпадало
	at := r.now().UTC().Truncate(time.Microsecond)

	entry, created, err := r.attendance.Record(ctx, a.ID, at)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return CheckInResult{}, domain.ErrAttendeeNotFound
		}
		r.log.Error("checkin.record failed", slog.String("attendee_id", a.ID), logger.Err(err))
		return CheckInResult{}, storeErr("record check-in", err)
	}
	entry = entry.UTC()

	if !created {
		return CheckInResult{Attendee: *a, EntryTime: entry}, &domain.AlreadyCheckedInError{Attendee: *a, EntryTime: entry}
	}

	ev := r.pub.Publish(live.CheckedIn(a.ID, entry))
	r.notifier.NotifyCheckedIn(*a, entry)

	r.log.Info("attendee checked in",
		slog.String("attendee_id", a.ID),
		slog.String("batch", a.Batch),
		slog.Uint64("seq", ev.Seq),
	)

	return CheckInResult{Attendee: *a, EntryTime: entry, Created: true}, nil
}
