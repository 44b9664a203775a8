package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/memstore"
	"github.com/cwrk-planet/attendance-service/internal/security"

	"golang.org/x/crypto/bcrypt"
)

func newTestStaff(t *testing.T) (*StaffService, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	signer := security.NewTokenSigner("test-secret", "attendance-test", time.Hour)
	svc := NewStaffService(s.Staff(), s.Audit(), signer, security.BcryptConfig{Cost: bcrypt.MinCost, MinLength: 6}, nil, nil)
	return svc, s
}

var admin = domain.Staff{ID: "00000000-0000-0000-0000-000000000001", Email: "root@x.io", Role: domain.RoleAdmin}

func TestStaff_CreateLoginAuthenticate(t *testing.T) {
	svc, s := newTestStaff(t)
	ctx := context.Background()

	st, err := svc.Create(ctx, admin, CreateStaffInput{Name: "Gate 1", Email: "gate@x.io", Password: "secret1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if st.Role != domain.RoleStaff || !st.IsActive || !security.IsBcryptHash(st.PasswordHash) {
		t.Fatalf("unexpected staff: %+v", st)
	}

	if _, err := svc.Create(ctx, admin, CreateStaffInput{Name: "Dup", Email: "gate@x.io", Password: "secret1"}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("duplicate err = %v", err)
	}

	if _, err := svc.Login(ctx, "gate@x.io", "wrong-pass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("bad password err = %v", err)
	}
	res, err := svc.Login(ctx, "gate@x.io", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.ExpiresIn != time.Hour {
		t.Fatalf("expires in = %v", res.ExpiresIn)
	}

	who, err := svc.Authenticate(ctx, "Bearer "+res.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if who.ID != st.ID {
		t.Fatalf("authenticated as %s, want %s", who.ID, st.ID)
	}

	logs, _ := s.Audit().List(ctx, 10, "login")
	if len(logs) != 2 {
		t.Fatalf("login audit rows = %d, want 2", len(logs))
	}
}

func TestStaff_LegacyPasswordMigrated(t *testing.T) {
	svc, s := newTestStaff(t)
	ctx := context.Background()

	legacy := domain.Staff{ID: "00000000-0000-0000-0000-0000000000aa", Name: "Old", Email: "old@x.io", PasswordHash: "plain123", Role: domain.RoleStaff, IsActive: true}
	if err := s.Staff().Create(ctx, &legacy); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := svc.Login(ctx, "old@x.io", "plain123"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	got, _ := s.Staff().GetByID(ctx, legacy.ID)
	if !security.IsBcryptHash(got.PasswordHash) {
		t.Fatal("password was not migrated to bcrypt")
	}
	if _, err := svc.Login(ctx, "old@x.io", "plain123"); err != nil {
		t.Fatalf("Login after migration: %v", err)
	}
}

func TestStaff_InactiveCannotAuthenticate(t *testing.T) {
	svc, _ := newTestStaff(t)
	ctx := context.Background()

	st, _ := svc.Create(ctx, admin, CreateStaffInput{Name: "G", Email: "g@x.io", Password: "secret1"})
	res, err := svc.Login(ctx, "g@x.io", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Delete(ctx, admin, st.ID, false); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Authenticate(ctx, res.Token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("inactive auth err = %v", err)
	}
	if _, err := svc.Login(ctx, "g@x.io", "secret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("inactive login err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "garbage"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("garbage token err = %v", err)
	}
}

func TestStaff_UpdateAndDelete(t *testing.T) {
	svc, _ := newTestStaff(t)
	ctx := context.Background()

	st, _ := svc.Create(ctx, admin, CreateStaffInput{Name: "G", Email: "g@x.io", Password: "secret1"})

	if _, err := svc.Update(ctx, admin, st.ID, UpdateStaffInput{}); !errors.Is(err, domain.ErrNothingToUpdate) {
		t.Fatalf("empty update err = %v", err)
	}
	role := domain.RoleAdmin
	name := "Gate"
	got, err := svc.Update(ctx, admin, st.ID, UpdateStaffInput{Name: &name, Role: &role})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Name != "Gate" || got.Role != domain.RoleAdmin {
		t.Fatalf("updated = %+v", got)
	}
	bad := domain.Role("root")
	if _, err := svc.Update(ctx, admin, st.ID, UpdateStaffInput{Role: &bad}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("bad role err = %v", err)
	}

	if err := svc.Delete(ctx, got, got.ID, true); !errors.Is(err, domain.ErrCannotDeleteSelf) {
		t.Fatalf("self delete err = %v", err)
	}
	if err := svc.Delete(ctx, admin, st.ID, true); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, st.ID); !errors.Is(err, domain.ErrStaffNotFound) {
		t.Fatalf("get deleted err = %v", err)
	}
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	svc, _ := newTestStaff(t)
	ctx := context.Background()

	created, pass, err := svc.EnsureBootstrapAdmin(ctx, "Admin", "admin@x.io", "")
	if err != nil || !created || pass == "" {
		t.Fatalf("first bootstrap: created=%v pass=%q err=%v", created, pass, err)
	}
	res, err := svc.Login(ctx, "admin@x.io", pass)
	if err != nil || res.Staff.Role != domain.RoleAdmin {
		t.Fatalf("admin login: %v %+v", err, res.Staff)
	}

	created, _, err = svc.EnsureBootstrapAdmin(ctx, "Admin", "other@x.io", "whatever1")
	if err != nil || created {
		t.Fatalf("second bootstrap: created=%v err=%v", created, err)
	}
}
