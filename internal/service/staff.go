package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/logger"
	"github.com/cwrk-planet/attendance-service/internal/repository"
	"github.com/cwrk-planet/attendance-service/internal/security"
	"github.com/cwrk-planet/attendance-service/internal/validate"

	"github.com/google/uuid"
)

type LoginResult struct {
	Staff     domain.Staff
	Token     string
	ExpiresIn time.Duration
}

type CreateStaffInput struct {
	Name     string      `json:"name" validate:"required"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required"`
	Role     domain.Role `json:"role" validate:"omitempty,oneof=admin staff"`
}

type UpdateStaffInput struct {
	Name     *string      `json:"name" validate:"omitempty,min=1"`
	Email    *string      `json:"email" validate:"omitempty,email"`
	Password *string      `json:"password"`
	Role     *domain.Role `json:"role" validate:"omitempty,oneof=admin staff"`
	IsActive *bool        `json:"is_active"`
}

type StaffService struct {
	staff  repository.StaffRepository
	audit  repository.AuditRepository
	signer *security.TokenSigner
	policy security.BcryptConfig
	log    *slog.Logger
	now    func() time.Time
}

func NewStaffService(
	staff repository.StaffRepository,
	audit repository.AuditRepository,
	signer *security.TokenSigner,
	policy security.BcryptConfig,
	log *slog.Logger,
	now func() time.Time,
) *StaffService {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &StaffService{
		staff:  staff,
		audit:  audit,
		signer: signer,
		policy: policy,
		log:    log.With("component", "staff"),
		now:    now,
	}
}

// Login проверяет пароль; учётки с открытым паролем переводятся на bcrypt при первом входе.
func (s *StaffService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	st, err := s.staff.GetActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.record(ctx, domain.AuditLog{
				Action:    domain.ActionLoginFailed,
				Details:   "EMAIL:" + email,
				LastError: "Invalid credentials or inactive account",
			})
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, storeErr("get staff", err)
	}

	valid := false
	if security.IsBcryptHash(st.PasswordHash) {
		valid = security.ComparePassword(st.PasswordHash, password) == nil
	} else if st.PasswordHash == password {
		valid = true
		if hash, err := security.HashPassword(password, &security.BcryptConfig{Cost: s.policy.Cost, MinLength: 1}); err == nil {
			if _, err := s.staff.Update(ctx, st.ID, domain.StaffPatch{PasswordHash: &hash}, s.now()); err != nil {
				s.log.Warn("legacy password migration failed", slog.String("staff_id", st.ID), logger.Err(err))
			} else {
				s.log.Info("migrated legacy password", slog.String("staff_id", st.ID))
			}
		}
	}

	if !valid {
		s.record(ctx, domain.AuditLog{
			Action:    domain.ActionLoginFailed,
			StaffID:   &st.ID,
			Details:   "EMAIL:" + email,
			LastError: "Invalid password",
		})
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	token, err := s.signer.Sign(*st)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}
	s.record(ctx, domain.AuditLog{
		Action:  domain.ActionLoginSuccess,
		StaffID: &st.ID,
		Details: "STAFF_LOGIN:" + st.ID,
	})

	return LoginResult{Staff: *st, Token: token, ExpiresIn: s.signer.TTL()}, nil
}

// Authenticate — bearer-токен -> активный сотрудник.
func (s *StaffService) Authenticate(ctx context.Context, token string) (domain.Staff, error) {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return domain.Staff{}, domain.ErrUnauthorized
	}

	claims, err := s.signer.Parse(token)
	if err != nil {
		return domain.Staff{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	st, err := s.staff.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Staff{}, domain.ErrUnauthorized
		}
		return domain.Staff{}, storeErr("get staff", err)
	}
	if !st.IsActive {
		return domain.Staff{}, fmt.Errorf("%w: account inactive", domain.ErrUnauthorized)
	}
	return *st, nil
}

func (s *StaffService) Create(ctx context.Context, actor domain.Staff, in CreateStaffInput) (domain.Staff, error) {
	in.Name, in.Email = strings.TrimSpace(in.Name), strings.TrimSpace(in.Email)
	if in.Role == "" {
		in.Role = domain.RoleStaff
	}
	if err := validate.Struct(in); err != nil {
		return domain.Staff{}, err
	}
	hash, err := security.HashPassword(in.Password, &s.policy)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return domain.Staff{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return domain.Staff{}, err
	}

	now := s.now().UTC()
	st := domain.Staff{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.staff.Create(ctx, &st); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return domain.Staff{}, domain.ErrEmailTaken
		}
		return domain.Staff{}, storeErr("create staff", err)
	}

	s.record(ctx, domain.AuditLog{
		Action:  domain.ActionStaffCreate,
		StaffID: &st.ID,
		Details: fmt.Sprintf("STAFF_CREATED:%s by %s", st.ID, actor.Email),
	})
	s.log.Info("staff created", slog.String("staff_id", st.ID), slog.String("role", string(st.Role)))
	return st, nil
}

func (s *StaffService) List(ctx context.Context, includeInactive bool) ([]domain.Staff, error) {
	list, err := s.staff.List(ctx, includeInactive)
	if err != nil {
		return nil, storeErr("list staff", err)
	}
	return list, nil
}

func (s *StaffService) Get(ctx context.Context, id string) (domain.Staff, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Staff{}, domain.ErrStaffNotFound
	}
	st, err := s.staff.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Staff{}, domain.ErrStaffNotFound
		}
		return domain.Staff{}, storeErr("get staff", err)
	}
	return *st, nil
}

func (s *StaffService) Update(ctx context.Context, actor domain.Staff, id string, in UpdateStaffInput) (domain.Staff, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Staff{}, domain.ErrStaffNotFound
	}
	if err := validate.Struct(in); err != nil {
		return domain.Staff{}, err
	}

	var p domain.StaffPatch
	if in.Name != nil {
		v := strings.TrimSpace(*in.Name)
		p.Name = &v
	}
	if in.Email != nil {
		v := strings.TrimSpace(*in.Email)
		p.Email = &v
	}
	if in.Password != nil {
		hash, err := security.HashPassword(*in.Password, &s.policy)
		if err != nil {
			return domain.Staff{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		p.PasswordHash = &hash
	}
	p.Role, p.IsActive = in.Role, in.IsActive
	if p.Empty() {
		return domain.Staff{}, domain.ErrNothingToUpdate
	}

	st, err := s.staff.Update(ctx, id, p, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return domain.Staff{}, domain.ErrStaffNotFound
		case errors.Is(err, repository.ErrAlreadyExists):
			return domain.Staff{}, domain.ErrEmailTaken
		}
		return domain.Staff{}, storeErr("update staff", err)
	}

	s.record(ctx, domain.AuditLog{
		Action:  domain.ActionStaffUpdate,
		StaffID: &st.ID,
		Details: fmt.Sprintf("STAFF_UPDATED:%s by %s", st.ID, actor.Email),
	})
	return *st, nil
}

// Delete: по умолчанию деактивация, permanent — удаление строки. Себя удалить нельзя.
func (s *StaffService) Delete(ctx context.Context, actor domain.Staff, id string, permanent bool) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrStaffNotFound
	}
	if actor.ID == id {
		return domain.ErrCannotDeleteSelf
	}

	action := domain.ActionStaffDeleteSoft
	var err error
	if permanent {
		action = domain.ActionStaffDeleteHard
		err = s.staff.Delete(ctx, id)
	} else {
		err = s.staff.Deactivate(ctx, id, s.now().UTC())
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrStaffNotFound
		}
		return storeErr("delete staff", err)
	}

	s.record(ctx, domain.AuditLog{
		Action:  action,
		StaffID: &id,
		Details: fmt.Sprintf("STAFF_DELETED:%s by %s", id, actor.Email),
	})
	return nil
}

// EnsureBootstrapAdmin создаёт администратора, если сотрудников ещё нет.
// Без пароля в конфиге генерируется случайный и возвращается вызывающему.
func (s *StaffService) EnsureBootstrapAdmin(ctx context.Context, name, email, password string) (bool, string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, "", nil
	}
	list, err := s.staff.List(ctx, true)
	if err != nil {
		return false, "", storeErr("list staff", err)
	}
	if len(list) > 0 {
		return false, "", nil
	}

	generated := ""
	if password == "" {
		if password, err = security.RandomPassword(12); err != nil {
			return false, "", err
		}
		generated = password
	}
	_, err = s.Create(ctx, domain.Staff{Email: "bootstrap"}, CreateStaffInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return false, "", err
	}
	return true, generated, nil
}

func (s *StaffService) record(ctx context.Context, l domain.AuditLog) {
	if err := s.audit.Insert(context.WithoutCancel(ctx), &l); err != nil {
		s.log.Warn("audit insert failed", slog.String("action", l.Action), logger.Err(err))
	}
}
