package repository

import (
	"context"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
)

type AttendeeRepository interface {
	// CreateMany вставляет всех участников атомарно.
	CreateMany(ctx context.Context, list []domain.Attendee) error
	GetByID(ctx context.Context, id string) (*domain.Attendee, error)
	GetByToken(ctx context.Context, token string) (*domain.Attendee, error)
	ListLive(ctx context.Context) ([]domain.AttendeeView, error)
	ListPendingQR(ctx context.Context, limit int) ([]domain.Attendee, error)
	UpdateQRStatus(ctx context.Context, id, emailStatus, waStatus, lastError string) error
}

type AttendanceRepository interface {
	// Record вставляет отметку; при повторе возвращает уже записанное время и created=false.
	Record(ctx context.Context, attendeeID string, at time.Time) (entryTime time.Time, created bool, err error)
	UpdateEntryStatus(ctx context.Context, attendeeID, emailStatus, waStatus string) error
}

type StaffRepository interface {
	Create(ctx context.Context, s *domain.Staff) error
	GetByID(ctx context.Context, id string) (*domain.Staff, error)
	GetActiveByEmail(ctx context.Context, email string) (*domain.Staff, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Staff, error)
	Update(ctx context.Context, id string, p domain.StaffPatch, now time.Time) (*domain.Staff, error)
	Deactivate(ctx context.Context, id string, now time.Time) error
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context) (domain.StaffCounts, error)
}

type AuditRepository interface {
	Insert(ctx context.Context, l *domain.AuditLog) error
	List(ctx context.Context, limit int, actionFilter string) ([]domain.AuditLog, error)
	DeliveryCounts(ctx context.Context) (domain.DeliveryCounts, error)
}

type StatsRepository interface {
	Totals(ctx context.Context) (registered, attended int64, err error)
	ByBatch(ctx context.Context) ([]domain.BatchStat, error)
}

// Store — полный набор репозиториев одного драйвера.
type Store interface {
	Attendees() AttendeeRepository
	Attendance() AttendanceRepository
	Staff() StaffRepository
	Audit() AuditRepository
	Stats() StatsRepository
	Ping(ctx context.Context) error
	Close()
}
