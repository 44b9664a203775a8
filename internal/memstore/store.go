// Package memstore — драйвер хранилища в памяти процесса (dev и тесты).
// Семантика совпадает с postgres: одна отметка на участника, уникальный email сотрудника.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/repository"

	"github.com/google/uuid"
)

type Store struct {
	mu         sync.RWMutex
	attendees  map[string]domain.Attendee
	byToken    map[string]string
	attendance map[string]domain.CheckIn
	staff      map[string]domain.Staff
	audit      []domain.AuditLog
	now        func() time.Time
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		attendees:  make(map[string]domain.Attendee),
		byToken:    make(map[string]string),
		attendance: make(map[string]domain.CheckIn),
		staff:      make(map[string]domain.Staff),
		now:        time.Now,
	}
}

func (s *Store) Attendees() repository.AttendeeRepository     { return attendeeRepo{s} }
func (s *Store) Attendance() repository.AttendanceRepository { return attendanceRepo{s} }
func (s *Store) Staff() repository.StaffRepository           { return staffRepo{s} }
func (s *Store) Audit() repository.AuditRepository           { return auditRepo{s} }
func (s *Store) Stats() repository.StatsRepository           { return statsRepo{s} }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() {}

// ---- attendees ----

type attendeeRepo struct{ s *Store }

func (r attendeeRepo) CreateMany(ctx context.Context, list []domain.Attendee) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	seen := make(map[string]struct{}, len(list)*2)
	for _, a := range list {
		if a.ID == "" || a.Token == "" {
			return repository.ErrInvalidInput
		}
		if _, ok := r.s.attendees[a.ID]; ok {
			return repository.ErrAlreadyExists
		}
		if _, ok := r.s.byToken[a.Token]; ok {
			return repository.ErrAlreadyExists
		}
		if _, ok := seen["id:"+a.ID]; ok {
			return repository.ErrAlreadyExists
		}
		if _, ok := seen["tok:"+a.Token]; ok {
			return repository.ErrAlreadyExists
		}
		seen["id:"+a.ID] = struct{}{}
		seen["tok:"+a.Token] = struct{}{}
	}
	for _, a := range list {
		r.s.attendees[a.ID] = a
		r.s.byToken[a.Token] = a.ID
	}
	return nil
}

func (r attendeeRepo) GetByID(ctx context.Context, id string) (*domain.Attendee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.attendees[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r attendeeRepo) GetByToken(ctx context.Context, token string) (*domain.Attendee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.byToken[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a := r.s.attendees[id]
	return &a, nil
}

func (r attendeeRepo) ListLive(ctx context.Context) ([]domain.AttendeeView, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.AttendeeView, 0, len(r.s.attendees))
	for _, a := range r.s.attendees {
		v := domain.AttendeeView{Attendee: a}
		if c, ok := r.s.attendance[a.ID]; ok {
			at := c.EntryTime
			v.CheckedIn = true
			v.EntryTime = &at
			v.EntryEmailStatus = c.EntryEmailStatus
			v.EntryWhatsAppStatus = c.EntryWhatsAppStatus
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r attendeeRepo) ListPendingQR(ctx context.Context, limit int) ([]domain.Attendee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Attendee
	for _, a := range r.s.attendees {
		if a.QRPending() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r attendeeRepo) UpdateQRStatus(ctx context.Context, id, emailStatus, waStatus, lastError string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attendees[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.QREmailStatus, a.QRWhatsAppStatus, a.QRLastError = emailStatus, waStatus, lastError
	r.s.attendees[id] = a
	return nil
}

// ---- attendance ----

type attendanceRepo struct{ s *Store }

func (r attendanceRepo) Record(ctx context.Context, attendeeID string, at time.Time) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, repository.ErrUnavailable
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.attendees[attendeeID]; !ok {
		return time.Time{}, false, repository.ErrNotFound
	}
	if c, ok := r.s.attendance[attendeeID]; ok {
		return c.EntryTime, false, nil
	}
	r.s.attendance[attendeeID] = domain.CheckIn{
		AttendeeID: attendeeID,
		EntryTime:  at,
		CreatedAt:  r.s.now(),
	}
	return at, true, nil
}

func (r attendanceRepo) UpdateEntryStatus(ctx context.Context, attendeeID, emailStatus, waStatus string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.attendance[attendeeID]
	if !ok {
		return repository.ErrNotFound
	}
	c.EntryEmailStatus, c.EntryWhatsAppStatus = emailStatus, waStatus
	r.s.attendance[attendeeID] = c
	return nil
}

// ---- staff ----

type staffRepo struct{ s *Store }

func (r staffRepo) emailTaken(email, exceptID string) bool {
	for id, st := range r.s.staff {
		if id != exceptID && st.Email == email {
			return true
		}
	}
	return false
}

func (r staffRepo) Create(ctx context.Context, st *domain.Staff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if _, ok := r.s.staff[st.ID]; ok || r.emailTaken(st.Email, "") {
		return repository.ErrAlreadyExists
	}
	r.s.staff[st.ID] = *st
	return nil
}

func (r staffRepo) GetByID(ctx context.Context, id string) (*domain.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &st, nil
}

func (r staffRepo) GetActiveByEmail(ctx context.Context, email string) (*domain.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, st := range r.s.staff {
		if st.Email == email && st.IsActive {
			return &st, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r staffRepo) List(ctx context.Context, includeInactive bool) ([]domain.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Staff, 0, len(r.s.staff))
	for _, st := range r.s.staff {
		if includeInactive || st.IsActive {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r staffRepo) Update(ctx context.Context, id string, p domain.StaffPatch, now time.Time) (*domain.Staff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Email != nil && r.emailTaken(*p.Email, id) {
		return nil, repository.ErrAlreadyExists
	}
	if p.Name != nil {
		st.Name = *p.Name
	}
	if p.Email != nil {
		st.Email = *p.Email
	}
	if p.PasswordHash != nil {
		st.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		st.Role = *p.Role
	}
	if p.IsActive != nil {
		st.IsActive = *p.IsActive
	}
	st.UpdatedAt = now
	r.s.staff[id] = st
	return &st, nil
}

func (r staffRepo) Deactivate(ctx context.Context, id string, now time.Time) error {
	no := false
	_, err := r.Update(ctx, id, domain.StaffPatch{IsActive: &no}, now)
	return err
}

func (r staffRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.staff[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.staff, id)
	return nil
}

func (r staffRepo) Counts(ctx context.Context) (domain.StaffCounts, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var c domain.StaffCounts
	for _, st := range r.s.staff {
		c.Total++
		if st.IsActive {
			c.Active++
			if st.Role == domain.RoleAdmin {
				c.Admins++
			}
		}
	}
	return c, nil
}

// ---- audit ----

type auditRepo struct{ s *Store }

func (r auditRepo) Insert(ctx context.Context, l *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = r.s.now()
	}
	r.s.audit = append(r.s.audit, *l)
	return nil
}

func (r auditRepo) List(ctx context.Context, limit int, actionFilter string) ([]domain.AuditLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f := strings.ToLower(actionFilter)

	out := make([]domain.AuditLog, 0, len(r.s.audit))
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		l := r.s.audit[i]
		if f != "" && !strings.Contains(strings.ToLower(l.Action), f) {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r auditRepo) DeliveryCounts(ctx context.Context) (domain.DeliveryCounts, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var c domain.DeliveryCounts
	for _, l := range r.s.audit {
		if l.Action != domain.ActionRegister && l.Action != domain.ActionEntry {
			continue
		}
		switch l.EmailStatus {
		case domain.DeliverySent:
			c.EmailSent++
		case domain.DeliveryFailed:
			c.EmailFailed++
		}
		switch l.WAStatus {
		case domain.DeliverySent:
			c.WhatsAppSent++
		case domain.DeliveryFailed:
			c.WhatsAppFailed++
		}
	}
	return c, nil
}

// ---- stats ----

type statsRepo struct{ s *Store }

func (r statsRepo) Totals(ctx context.Context) (int64, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.attendees)), int64(len(r.s.attendance)), nil
}

func (r statsRepo) ByBatch(ctx context.Context) ([]domain.BatchStat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	idx := map[string]*domain.BatchStat{}
	for _, a := range r.s.attendees {
		b, ok := idx[a.Batch]
		if !ok {
			b = &domain.BatchStat{Batch: a.Batch}
			idx[a.Batch] = b
		}
		b.Registered++
		if _, ok := r.s.attendance[a.ID]; ok {
			b.Attended++
		}
	}
	out := make([]domain.BatchStat, 0, len(idx))
	for _, b := range idx {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Registered != out[j].Registered {
			return out[i].Registered > out[j].Registered
		}
		return out[i].Batch < out[j].Batch
	})
	return out, nil
}
