package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/postgres/queries"
	"github.com/cwrk-planet/attendance-service/internal/repository"
)

type AttendanceRepo struct {
	q querier
}

func NewAttendanceRepo(q querier) *AttendanceRepo {
	return &AttendanceRepo{q: q}
}

// Record — один INSERT; конкурентные сканы одного участника разводит UNIQUE(attendee_id).
// Проигравший читает уже записанное время.
func (r *AttendanceRepo) Record(ctx context.Context, attendeeID string, at time.Time) (time.Time, bool, error) {
	var entry time.Time
	err := r.q.QueryRow(ctx, queries.InsertAttendance, attendeeID, at).Scan(&entry)
	if err == nil {
		return entry, true, nil
	}

	err = mapPgError(err)
	if !errors.Is(err, repository.ErrAlreadyExists) {
		return time.Time{}, false, err
	}

	if err := r.q.QueryRow(ctx, queries.GetEntryTime, attendeeID).Scan(&entry); err != nil {
		return time.Time{}, false, fmt.Errorf("read existing check-in: %w", mapPgError(err))
	}

	return entry, false, nil
}

func (r *AttendanceRepo) UpdateEntryStatus(ctx context.Context, attendeeID, emailStatus, waStatus string) error {
	tag, err := r.q.Exec(ctx, queries.UpdateEntryStatus, attendeeID, emailStatus, waStatus)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
