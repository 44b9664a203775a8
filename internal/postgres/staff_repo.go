package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/postgres/queries"
	"github.com/cwrk-planet/attendance-service/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type StaffRepo struct {
	q querier
}

func NewStaffRepo(q querier) *StaffRepo {
	return &StaffRepo{q: q}
}

func (r *StaffRepo) Create(ctx context.Context, s *domain.Staff) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.q.Exec(ctx, queries.InsertStaff,
		s.ID, s.Name, s.Email, s.PasswordHash, string(s.Role), s.IsActive, s.CreatedAt, s.UpdatedAt)

	return mapPgError(err)
}

func (r *StaffRepo) GetByID(ctx context.Context, id string) (*domain.Staff, error) {
	return r.getOne(ctx, queries.GetStaffByID, id)
}

func (r *StaffRepo) GetActiveByEmail(ctx context.Context, email string) (*domain.Staff, error) {
	return r.getOne(ctx, queries.GetActiveStaffEmail, strings.TrimSpace(email))
}

func (r *StaffRepo) getOne(ctx context.Context, sql string, arg any) (*domain.Staff, error) {
	var s domain.Staff
	if err := scanStaff(r.q.QueryRow(ctx, sql, arg), &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapPgError(err)
	}
	return &s, nil
}

func scanStaff(row pgx.Row, s *domain.Staff) error {
	var role string
	if err := row.Scan(&s.ID, &s.Name, &s.Email, &s.PasswordHash, &role, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return err
	}
	s.Role = domain.Role(role)
	return nil
}

func (r *StaffRepo) List(ctx context.Context, includeInactive bool) ([]domain.Staff, error) {
	sql := queries.ListActiveStaff
	if includeInactive {
		sql = queries.ListAllStaff
	}
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []domain.Staff
	for rows.Next() {
		var s domain.Staff
		if err := scanStaff(rows, &s); err != nil {
			return nil, mapPgError(err)
		}
		out = append(out, s)
	}

	return out, mapPgError(rows.Err())
}

// Update собирает SET только из заданных полей.
func (r *StaffRepo) Update(ctx context.Context, id string, p domain.StaffPatch, now time.Time) (*domain.Staff, error) {
	setParts := make([]string, 0, 6)
	args := make([]any, 0, 7)
	i := 1
	add := func(col string, v any) {
		setParts = append(setParts, col+" = $"+strconv.Itoa(i))
		args = append(args, v)
		i++
	}

	if p.Name != nil {
		add("name", strings.TrimSpace(*p.Name))
	}
	if p.Email != nil {
		add("email", strings.TrimSpace(*p.Email))
	}
	if p.PasswordHash != nil {
		add("password", *p.PasswordHash)
	}
	if p.Role != nil {
		add("role", string(*p.Role))
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}
	if len(setParts) == 0 {
		return r.GetByID(ctx, id)
	}
	add("updated_at", now)

	sql := "UPDATE staff SET " + strings.Join(setParts, ", ") + " WHERE id = $" + strconv.Itoa(i) + ";"
	args = append(args, id)

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, repository.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *StaffRepo) Deactivate(ctx context.Context, id string, now time.Time) error {
	tag, err := r.q.Exec(ctx, queries.DeactivateStaff, id, now)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *StaffRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, queries.DeleteStaff, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *StaffRepo) Counts(ctx context.Context) (domain.StaffCounts, error) {
	var c domain.StaffCounts
	err := r.q.QueryRow(ctx, queries.StaffCounts).Scan(&c.Total, &c.Active, &c.Admins)
	return c, mapPgError(err)
}
