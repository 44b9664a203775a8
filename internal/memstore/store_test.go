package memstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/repository"
)

func attendee(id, batch string, created time.Time) domain.Attendee {
	return domain.Attendee{ID: id, Name: "n-" + id, Email: id + "@x.io", Mobile: "9", Batch: batch, Token: domain.TokenFor(id), CreatedAt: created}
}

func TestRecord_InsertOrFail(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	if err := s.Attendees().CreateMany(ctx, []domain.Attendee{attendee("a1", "B1", now)}); err != nil {
		t.Fatalf("CreateMany: %v", err)
	}

	var created atomic.Int32
	times := make([]time.Time, 20)
	var wg sync.WaitGroup
	for i := range times {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			at, ok, err := s.Attendance().Record(ctx, "a1", now.Add(time.Duration(i)*time.Second))
			if err != nil {
				t.Errorf("Record: %v", err)
				return
			}
			if ok {
				created.Add(1)
			}
			times[i] = at
		}(i)
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Fatalf("created = %d, want 1", created.Load())
	}
	for _, at := range times {
		if !at.Equal(times[0]) {
			t.Fatalf("entry times differ: %v vs %v", at, times[0])
		}
	}

	if _, _, err := s.Attendance().Record(ctx, "ghost", now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("ghost err = %v", err)
	}
}

func TestCreateMany_Atomic(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	_ = s.Attendees().CreateMany(ctx, []domain.Attendee{attendee("a1", "B1", now)})

	err := s.Attendees().CreateMany(ctx, []domain.Attendee{attendee("a2", "B1", now), attendee("a1", "B1", now)})
	if !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.Attendees().GetByID(ctx, "a2"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatal("partial batch persisted")
	}
}

func TestListLiveAndStats(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now()
	_ = s.Attendees().CreateMany(ctx, []domain.Attendee{
		attendee("a1", "B1", base),
		attendee("a2", "B1", base.Add(time.Second)),
		attendee("a3", "B2", base.Add(2*time.Second)),
	})
	_, _, _ = s.Attendance().Record(ctx, "a2", base)
	_ = s.Attendance().UpdateEntryStatus(ctx, "a2", domain.DeliverySent, domain.DeliveryFailed)

	rows, _ := s.Attendees().ListLive(ctx)
	if len(rows) != 3 || rows[0].ID != "a1" {
		t.Fatalf("rows = %+v", rows)
	}
	if !rows[1].CheckedIn || rows[1].EntryWhatsAppStatus != domain.DeliveryFailed {
		t.Fatalf("a2 = %+v", rows[1])
	}

	reg, att, _ := s.Stats().Totals(ctx)
	if reg != 3 || att != 1 {
		t.Fatalf("totals = %d/%d", reg, att)
	}
	batches, _ := s.Stats().ByBatch(ctx)
	if len(batches) != 2 || batches[0].Batch != "B1" || batches[0].Attended != 1 || batches[0].Rate() != 50 {
		t.Fatalf("batches = %+v", batches)
	}
}

func TestPendingQR(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	_ = s.Attendees().CreateMany(ctx, []domain.Attendee{attendee("a1", "B", now), attendee("a2", "B", now.Add(time.Second))})
	_ = s.Attendees().UpdateQRStatus(ctx, "a1", domain.DeliverySent, domain.DeliverySent, "")

	pending, _ := s.Attendees().ListPendingQR(ctx, 10)
	if len(pending) != 1 || pending[0].ID != "a2" {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestStaff_UniqueEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := &domain.Staff{Name: "A", Email: "a@x.io", Role: domain.RoleStaff, IsActive: true}
	if err := s.Staff().Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Staff().Create(ctx, &domain.Staff{Email: "a@x.io"}); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("dup err = %v", err)
	}
	b := &domain.Staff{Name: "B", Email: "b@x.io", Role: domain.RoleAdmin, IsActive: true}
	_ = s.Staff().Create(ctx, b)

	taken := "a@x.io"
	if _, err := s.Staff().Update(ctx, b.ID, domain.StaffPatch{Email: &taken}, time.Now()); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("update dup err = %v", err)
	}
	if err := s.Staff().Deactivate(ctx, a.ID, time.Now()); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := s.Staff().GetActiveByEmail(ctx, "a@x.io"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("inactive staff returned: %v", err)
	}
	c, _ := s.Staff().Counts(ctx)
	if c != (domain.StaffCounts{Total: 2, Active: 1, Admins: 1}) {
		t.Fatalf("counts = %+v", c)
	}
}

func TestAudit_FilterAndCounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now()
	logs := []domain.AuditLog{
		{Action: domain.ActionRegister, EmailStatus: "sent", WAStatus: "failed", CreatedAt: base},
		{Action: domain.ActionEntry, EmailStatus: "sent", WAStatus: "sent", CreatedAt: base.Add(time.Second)},
		{Action: domain.ActionLoginFailed, CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range logs {
		_ = s.Audit().Insert(ctx, &logs[i])
	}

	got, _ := s.Audit().List(ctx, 10, "login")
	if len(got) != 1 || got[0].Action != domain.ActionLoginFailed {
		t.Fatalf("filtered = %+v", got)
	}
	all, _ := s.Audit().List(ctx, 2, "")
	if len(all) != 2 || all[0].Action != domain.ActionLoginFailed {
		t.Fatalf("all = %+v", all)
	}
	c, _ := s.Audit().DeliveryCounts(ctx)
	if c != (domain.DeliveryCounts{EmailSent: 2, WhatsAppSent: 1, WhatsAppFailed: 1}) {
		t.Fatalf("counts = %+v", c)
	}
}
