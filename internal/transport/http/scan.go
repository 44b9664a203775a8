package http

import (
	"errors"
	"net/http"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/httputil"
)

// POST /api/scan
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	var in scanRequest
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, nil)
		return
	}

	res, err := h.registrar.CheckIn(r.Context(), in.QRCode)
	if err != nil {
		var already *domain.AlreadyCheckedInError
		if errors.As(err, &already) {
			h.fail(w, r, err, map[string]any{
				"attendee":   toScanned(already.Attendee, already.EntryTime),
				"entry_time": already.EntryTime.UTC(),
			})
			return
		}
		h.fail(w, r, err, nil)
		return
	}

	httputil.OK(w, map[string]any{
		"message":  "Attendance marked successfully",
		"attendee": toScanned(res.Attendee, res.EntryTime),
		"created":  res.Created,
	})
}
