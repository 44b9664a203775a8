package http

import (
	"net/http"
	"strings"

	"github.com/cwrk-planet/attendance-service/internal/httputil"
	"github.com/cwrk-planet/attendance-service/internal/notify"
)

// GET /api/attendance/dashboard
func (h *Handlers) AttendanceDashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := h.dashboard.Attendance(r.Context())
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	httputil.OK(w, map[string]any{
		"total_registered": sum.Registered,
		"total_attended":   sum.Attended,
		"attendance_rate":  sum.Rate,
		"batch_stats":      toBatches(sum.Batches),
	})
}

// GET /api/admin/dashboard
func (h *Handlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := h.dashboard.Admin(r.Context())
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	recent := make([]activityDTO, 0, len(sum.Recent))
	for _, l := range sum.Recent {
		recent = append(recent, activityDTO{Action: l.Action, Timestamp: l.CreatedAt, Details: l.Details, Error: l.LastError})
	}
	att := sum.Attendance
	httputil.OK(w, map[string]any{
		"staff_stats": map[string]any{
			"total_staff":    sum.Staff.Total,
			"active_staff":   sum.Staff.Active,
			"admin_count":    sum.Staff.Admins,
			"inactive_staff": sum.Staff.Total - sum.Staff.Active,
		},
		"attendee_stats": map[string]any{
			"total_registered":   att.Registered,
			"total_attended":     att.Attended,
			"attendance_rate":    att.Rate,
			"pending_attendance": att.Registered - att.Attended,
		},
		"communication_stats": map[string]any{
			"email_sent":      sum.Delivery.EmailSent,
			"email_failed":    sum.Delivery.EmailFailed,
			"whatsapp_sent":   sum.Delivery.WhatsAppSent,
			"whatsapp_failed": sum.Delivery.WhatsAppFailed,
		},
		"batch_statistics":  toBatches(att.Batches),
		"recent_activities": recent,
		"live_sessions":     h.live.Len(),
	})
}

// GET /api/admin/audit-logs?limit=100&action_filter=LOGIN
func (h *Handlers) AuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	filter := strings.TrimSpace(r.URL.Query().Get("action_filter"))

	logs, err := h.dashboard.AuditLogs(r.Context(), limit, filter)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	out := make([]auditDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, toAudit(l))
	}
	httputil.OK(w, map[string]any{"logs": out, "total_returned": len(out)})
}

// GET /api/config
func (h *Handlers) Config(w http.ResponseWriter, r *http.Request) {
	info := h.providerInfo()
	httputil.OK(w, map[string]any{
		"database_connected":  h.dashboard.Ping(r.Context()) == nil,
		"public_base_url":     info.PublicBaseURL,
		"send_concurrency":    h.concurrency,
		"email_provider":      info.EmailProvider,
		"email_configured":    info.EmailConfigured,
		"whatsapp_configured": info.WhatsAppConfigured,
		"templates": map[string]string{
			"qr_template":    info.TemplateQR,
			"entry_template": info.TemplateEntry,
			"broadcast_name": info.BroadcastName,
		},
	})
}

// GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.dashboard.Ping(r.Context()); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	info := h.providerInfo()
	httputil.OK(w, map[string]any{
		"status":    "healthy",
		"timestamp": h.now().UTC(),
		"database":  "connected",
		"services": map[string]string{
			"email":    configured(info.EmailConfigured),
			"whatsapp": configured(info.WhatsAppConfigured),
		},
	})
}

func (h *Handlers) providerInfo() notify.Info {
	if h.providers == nil {
		return notify.Info{}
	}
	return h.providers.Info()
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not_configured"
}
