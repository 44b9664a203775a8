package domain

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

type Staff struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password"`
	Role         Role      `db:"role"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// StaffPatch — частичное обновление, nil = не трогать.
type StaffPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *Role
	IsActive     *bool
}

func (p StaffPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.PasswordHash == nil && p.Role == nil && p.IsActive == nil
}

type StaffCounts struct {
	Total  int64
	Active int64
	Admins int64
}
