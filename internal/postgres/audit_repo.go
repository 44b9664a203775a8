package postgres

import (
	"context"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/postgres/queries"

	"github.com/google/uuid"
)

type AuditRepo struct {
	q querier
}

func NewAuditRepo(q querier) *AuditRepo {
	return &AuditRepo{q: q}
}

func (r *AuditRepo) Insert(ctx context.Context, l *domain.AuditLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	_, err := r.q.Exec(ctx, queries.InsertAudit,
		l.ID, l.AttendeeID, l.StaffID, l.Action, l.EmailStatus, l.WAStatus, l.LastError, l.Details, l.CreatedAt)

	return mapPgError(err)
}

func (r *AuditRepo) List(ctx context.Context, limit int, actionFilter string) ([]domain.AuditLog, error) {
	sql, args := queries.ListAudit, []any{limit}
	if actionFilter != "" {
		sql, args = queries.ListAuditByAction, []any{limit, "%" + actionFilter + "%"}
	}
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(&l.ID, &l.AttendeeID, &l.StaffID, &l.Action,
			&l.EmailStatus, &l.WAStatus, &l.LastError, &l.Details, &l.CreatedAt); err != nil {
			return nil, mapPgError(err)
		}
		out = append(out, l)
	}

	return out, mapPgError(rows.Err())
}

func (r *AuditRepo) DeliveryCounts(ctx context.Context) (domain.DeliveryCounts, error) {
	var c domain.DeliveryCounts
	err := r.q.QueryRow(ctx, queries.DeliveryCounts).Scan(&c.EmailSent, &c.EmailFailed, &c.WhatsAppSent, &c.WhatsAppFailed)
	return c, mapPgError(err)
}
