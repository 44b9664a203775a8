package postgres

import (
	"context"

	"github.com/cwrk-planet/attendance-service/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store — репозитории поверх одного пула.
type Store struct {
	pool       *pgxpool.Pool
	attendees  *AttendeeRepo
	attendance *AttendanceRepo
	staff      *StaffRepo
	audit      *AuditRepo
	stats      *StatsRepo
}

var _ repository.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:       pool,
		attendees:  NewAttendeeRepo(pool),
		attendance: NewAttendanceRepo(pool),
		staff:      NewStaffRepo(pool),
		audit:      NewAuditRepo(pool),
		stats:      NewStatsRepo(pool),
	}
}

func (s *Store) Attendees() repository.AttendeeRepository     { return s.attendees }
func (s *Store) Attendance() repository.AttendanceRepository { return s.attendance }
func (s *Store) Staff() repository.StaffRepository           { return s.staff }
func (s *Store) Audit() repository.AuditRepository           { return s.audit }
func (s *Store) Stats() repository.StatsRepository           { return s.stats }

func (s *Store) Ping(ctx context.Context) error { return Ping(ctx, s.pool) }

func (s *Store) Close() { s.pool.Close() }
