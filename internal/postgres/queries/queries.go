package queries

const (
	InsertAttendee = `
		INSERT INTO attendees (id, name, email, mobile, batch, qr_code, qr_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	selectAttendee = `
		SELECT id::text, name, email, mobile, batch, qr_code, qr_data, created_at,
		       COALESCE(qr_email_status, ''), COALESCE(qr_whatsapp_status, ''), COALESCE(qr_last_error, '')
		FROM attendees
	`
	GetAttendeeByID    = selectAttendee + ` WHERE id = $1;`
	GetAttendeeByToken = selectAttendee + ` WHERE qr_data = $1;`
	ListPendingQR      = selectAttendee + `
		WHERE COALESCE(qr_email_status, '') <> 'sent' OR COALESCE(qr_whatsapp_status, '') <> 'sent'
		ORDER BY created_at
		LIMIT $1;
	`
	ListLive = `
		SELECT a.id::text, a.name, a.email, a.mobile, a.batch, a.qr_code, a.qr_data, a.created_at,
		       COALESCE(a.qr_email_status, ''), COALESCE(a.qr_whatsapp_status, ''), COALESCE(a.qr_last_error, ''),
		       att.entry_time,
		       COALESCE(att.entry_email_status, ''), COALESCE(att.entry_whatsapp_status, '')
		FROM attendees a
		LEFT JOIN attendance att ON att.attendee_id = a.id
		ORDER BY a.created_at, a.id;
	`
	UpdateQRStatus = `
		UPDATE attendees
		SET qr_email_status = $2, qr_whatsapp_status = $3, qr_last_error = NULLIF($4, '')
		WHERE id = $1;
	`

	// Единственная запись; UNIQUE(attendee_id) решает гонку.
	InsertAttendance = `
		INSERT INTO attendance (attendee_id, entry_time, created_at)
		VALUES ($1, $2, now())
		RETURNING entry_time;
	`
	GetEntryTime      = `SELECT entry_time FROM attendance WHERE attendee_id = $1;`
	UpdateEntryStatus = `
		UPDATE attendance
		SET entry_email_status = $2, entry_whatsapp_status = $3
		WHERE attendee_id = $1;
	`

	InsertStaff = `
		INSERT INTO staff (id, name, email, password, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	selectStaff         = `SELECT id::text, name, email, password, role, is_active, created_at, updated_at FROM staff`
	GetStaffByID        = selectStaff + ` WHERE id = $1;`
	GetActiveStaffEmail = selectStaff + ` WHERE email = $1 AND is_active = TRUE;`
	ListAllStaff        = selectStaff + ` ORDER BY created_at DESC;`
	ListActiveStaff     = selectStaff + ` WHERE is_active = TRUE ORDER BY created_at DESC;`
	DeactivateStaff     = `UPDATE staff SET is_active = FALSE, updated_at = $2 WHERE id = $1;`
	DeleteStaff         = `DELETE FROM staff WHERE id = $1;`
	StaffCounts         = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_active),
		       COUNT(*) FILTER (WHERE is_active AND role = 'admin')
		FROM staff;
	`

	InsertAudit = `
		INSERT INTO audit_logs (id, attendee_id, staff_id, action, email_status, whatsapp_status, last_error, details, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9);
	`
	selectAudit = `
		SELECT id::text, attendee_id::text, staff_id::text, action,
		       COALESCE(email_status, ''), COALESCE(whatsapp_status, ''), COALESCE(last_error, ''), COALESCE(details, ''),
		       created_at
		FROM audit_logs
	`
	ListAudit         = selectAudit + ` ORDER BY created_at DESC LIMIT $1;`
	ListAuditByAction = selectAudit + ` WHERE action ILIKE $2 ORDER BY created_at DESC LIMIT $1;`
	DeliveryCounts    = `
		SELECT COUNT(*) FILTER (WHERE email_status = 'sent'),
		       COUNT(*) FILTER (WHERE email_status = 'failed'),
		       COUNT(*) FILTER (WHERE whatsapp_status = 'sent'),
		       COUNT(*) FILTER (WHERE whatsapp_status = 'failed')
		FROM audit_logs
		WHERE action IN ('REGISTER', 'ENTRY');
	`

	Totals  = `SELECT (SELECT COUNT(*) FROM attendees), (SELECT COUNT(*) FROM attendance);`
	ByBatch = `
		SELECT a.batch, COUNT(a.id), COUNT(att.id)
		FROM attendees a
		LEFT JOIN attendance att ON att.attendee_id = a.id
		GROUP BY a.batch
		ORDER BY COUNT(a.id) DESC, a.batch;
	`
)
