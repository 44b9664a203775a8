package http

import (
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/service"
	"github.com/cwrk-planet/attendance-service/pkg/liveview"
)

type scanRequest struct {
	QRCode string `json:"qr_code" validate:"required"`
}

type bulkRequest struct {
	Attendees []domain.NewAttendee `json:"attendees" validate:"required,min=1,dive"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type scannedAttendee struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Mobile    string    `json:"mobile"`
	Batch     string    `json:"batch"`
	EntryTime time.Time `json:"entry_time"`
}

func toScanned(a domain.Attendee, at time.Time) scannedAttendee {
	return scannedAttendee{ID: a.ID, Name: a.Name, Email: a.Email, Mobile: a.Mobile, Batch: a.Batch, EntryTime: at.UTC()}
}

// toRow — формат снапшота совпадает с тем, что читает liveview.Client.
func toRow(v domain.AttendeeView) liveview.Row {
	var at *time.Time
	if v.EntryTime != nil {
		t := v.EntryTime.UTC()
		at = &t
	}
	return liveview.Row{
		ID:                  v.ID,
		Name:                v.Name,
		Email:               v.Email,
		Mobile:              v.Mobile,
		Batch:               v.Batch,
		CheckedIn:           v.CheckedIn,
		EntryTime:           at,
		QREmailStatus:       v.QREmailStatus,
		QRWhatsAppStatus:    v.QRWhatsAppStatus,
		QRLastError:         v.QRLastError,
		EntryEmailStatus:    v.EntryEmailStatus,
		EntryWhatsAppStatus: v.EntryWhatsAppStatus,
	}
}

type registeredDTO struct {
	AttendeeID string `json:"attendee_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
	Batch      string `json:"batch"`
	QRCode     string `json:"qr_code"`
	QRSent     bool   `json:"qr_sent"`
}

func toRegistered(r service.Registered) registeredDTO {
	a := r.Attendee
	return registeredDTO{
		AttendeeID: a.ID,
		Name:       a.Name,
		Email:      a.Email,
		Mobile:     a.Mobile,
		Batch:      a.Batch,
		QRCode:     a.QRCode,
		QRSent:     r.QRSent,
	}
}

type staffDTO struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func toStaff(s domain.Staff) staffDTO {
	return staffDTO{
		ID:        s.ID,
		Name:      s.Name,
		Email:     s.Email,
		Role:      s.Role,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

type batchDTO struct {
	Batch          string  `json:"batch"`
	Registered     int64   `json:"registered"`
	Attended       int64   `json:"attended"`
	AttendanceRate float64 `json:"attendance_rate"`
}

func toBatches(in []domain.BatchStat) []batchDTO {
	out := make([]batchDTO, 0, len(in))
	for _, b := range in {
		out = append(out, batchDTO{Batch: b.Batch, Registered: b.Registered, Attended: b.Attended, AttendanceRate: b.Rate()})
	}
	return out
}

type auditDTO struct {
	ID          string    `json:"id"`
	AttendeeID  *string   `json:"attendee_id"`
	StaffID     *string   `json:"staff_id"`
	Action      string    `json:"action"`
	EmailStatus string    `json:"email_status,omitempty"`
	WAStatus    string    `json:"whatsapp_status,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Details     string    `json:"details,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAudit(l domain.AuditLog) auditDTO {
	return auditDTO{
		ID:          l.ID,
		AttendeeID:  l.AttendeeID,
		StaffID:     l.StaffID,
		Action:      l.Action,
		EmailStatus: l.EmailStatus,
		WAStatus:    l.WAStatus,
		LastError:   l.LastError,
		Details:     l.Details,
		CreatedAt:   l.CreatedAt,
	}
}

type activityDTO struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
	Error     string    `json:"error,omitempty"`
}
