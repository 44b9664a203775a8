package domain

import (
	"strings"
	"time"
)

// TokenPrefix — префикс содержимого QR-кода.
const TokenPrefix = "WORKSHOP_ATTENDEE:"

const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

type Attendee struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Mobile    string    `db:"mobile"`
	Batch     string    `db:"batch"`
	Token     string    `db:"qr_data"`
	QRCode    string    `db:"qr_code"` // base64 PNG
	CreatedAt time.Time `db:"created_at"`

	QREmailStatus    string `db:"qr_email_status"`
	QRWhatsAppStatus string `db:"qr_whatsapp_status"`
	QRLastError      string `db:"qr_last_error"`
}

func TokenFor(attendeeID string) string {
	return TokenPrefix + attendeeID
}

// QRPending — QR не доставлен хотя бы по одному каналу.
func (a Attendee) QRPending() bool {
	return a.QREmailStatus != DeliverySent || a.QRWhatsAppStatus != DeliverySent
}

// NewAttendee — входные данные регистрации.
type NewAttendee struct {
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Mobile string `json:"mobile" validate:"required"`
	Batch  string `json:"batch" validate:"required"`
}

func (n NewAttendee) Normalize() NewAttendee {
	return NewAttendee{
		Name:   strings.TrimSpace(n.Name),
		Email:  strings.TrimSpace(n.Email),
		Mobile: strings.TrimSpace(n.Mobile),
		Batch:  strings.TrimSpace(n.Batch),
	}
}

// CheckIn — единственная запись о посещении участника.
type CheckIn struct {
	AttendeeID          string    `db:"attendee_id"`
	EntryTime           time.Time `db:"entry_time"`
	CreatedAt           time.Time `db:"created_at"`
	EntryEmailStatus    string    `db:"entry_email_status"`
	EntryWhatsAppStatus string    `db:"entry_whatsapp_status"`
}

// AttendeeView — строка live-таблицы: участник + его отметка.
type AttendeeView struct {
	Attendee
	CheckedIn           bool
	EntryTime           *time.Time
	EntryEmailStatus    string
	EntryWhatsAppStatus string
}

type BatchStat struct {
	Batch      string
	Registered int64
	Attended   int64
}

func (b BatchStat) Rate() float64 {
	return Rate(b.Attended, b.Registered)
}

// Rate — процент с округлением до сотых.
func Rate(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	r := float64(part) / float64(total) * 100
	return float64(int64(r*100+0.5)) / 100
}
