package domain

import "time"

const (
	ActionRegister        = "REGISTER"
	ActionEntry           = "ENTRY"
	ActionLoginSuccess    = "LOGIN_SUCCESS"
	ActionLoginFailed     = "LOGIN_FAILED"
	ActionStaffCreate     = "STAFF_CREATE"
	ActionStaffUpdate     = "STAFF_UPDATE"
	ActionStaffDeleteSoft = "STAFF_DELETE_SOFT"
	ActionStaffDeleteHard = "STAFF_DELETE_PERMANENT"
)

type AuditLog struct {
	ID          string    `db:"id"`
	AttendeeID  *string   `db:"attendee_id"`
	StaffID     *string   `db:"staff_id"`
	Action      string    `db:"action"`
	EmailStatus string    `db:"email_status"`
	WAStatus    string    `db:"whatsapp_status"`
	LastError   string    `db:"last_error"`
	Details     string    `db:"details"`
	CreatedAt   time.Time `db:"created_at"`
}

// DeliveryCounts — агрегаты по статусам REGISTER/ENTRY.
type DeliveryCounts struct {
	EmailSent      int64
	EmailFailed    int64
	WhatsAppSent   int64
	WhatsAppFailed int64
}
