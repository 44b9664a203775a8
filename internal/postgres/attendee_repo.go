package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/postgres/queries"
	"github.com/cwrk-planet/attendance-service/internal/repository"

	"github.com/jackc/pgx/v5"
)

type AttendeeRepo struct {
	q txBeginner
}

func NewAttendeeRepo(q txBeginner) *AttendeeRepo {
	return &AttendeeRepo{q: q}
}

// CreateMany — одним батчем в транзакции: либо все, либо никто.
func (r *AttendeeRepo) CreateMany(ctx context.Context, list []domain.Attendee) error {
	if len(list) == 0 {
		return nil
	}
	tx, err := r.q.Begin(ctx)
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range list {
		batch.Queue(queries.InsertAttendee, a.ID, a.Name, a.Email, a.Mobile, a.Batch, a.QRCode, a.Token, a.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapPgError(err)
	}

	return mapPgError(tx.Commit(ctx))
}

func (r *AttendeeRepo) GetByID(ctx context.Context, id string) (*domain.Attendee, error) {
	return r.getOne(ctx, queries.GetAttendeeByID, id)
}

func (r *AttendeeRepo) GetByToken(ctx context.Context, token string) (*domain.Attendee, error) {
	return r.getOne(ctx, queries.GetAttendeeByToken, token)
}

func (r *AttendeeRepo) getOne(ctx context.Context, sql string, arg any) (*domain.Attendee, error) {
	var a domain.Attendee
	err := scanAttendee(r.q.QueryRow(ctx, sql, arg), &a)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapPgError(err)
	}
	return &a, nil
}

func scanAttendee(row pgx.Row, a *domain.Attendee, extra ...any) error {
	dst := []any{
		&a.ID, &a.Name, &a.Email, &a.Mobile, &a.Batch, &a.QRCode, &a.Token, &a.CreatedAt,
		&a.QREmailStatus, &a.QRWhatsAppStatus, &a.QRLastError,
	}
	return row.Scan(append(dst, extra...)...)
}

func (r *AttendeeRepo) ListLive(ctx context.Context) ([]domain.AttendeeView, error) {
	rows, err := r.q.Query(ctx, queries.ListLive)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.AttendeeView, 0, 64)
	for rows.Next() {
		var (
			v         domain.AttendeeView
			entryTime *time.Time
		)
		if err := scanAttendee(rows, &v.Attendee, &entryTime, &v.EntryEmailStatus, &v.EntryWhatsAppStatus); err != nil {
			return nil, mapPgError(err)
		}
		v.EntryTime = entryTime
		v.CheckedIn = entryTime != nil
		out = append(out, v)
	}

	return out, mapPgError(rows.Err())
}

func (r *AttendeeRepo) ListPendingQR(ctx context.Context, limit int) ([]domain.Attendee, error) {
	rows, err := r.q.Query(ctx, queries.ListPendingQR, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []domain.Attendee
	for rows.Next() {
		var a domain.Attendee
		if err := scanAttendee(rows, &a); err != nil {
			return nil, mapPgError(err)
		}
		out = append(out, a)
	}

	return out, mapPgError(rows.Err())
}

func (r *AttendeeRepo) UpdateQRStatus(ctx context.Context, id, emailStatus, waStatus, lastError string) error {
	tag, err := r.q.Exec(ctx, queries.UpdateQRStatus, id, emailStatus, waStatus, lastError)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
