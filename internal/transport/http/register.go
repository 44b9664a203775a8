package http

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/httputil"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 10 << 20

// POST /api/register/single
func (h *Handlers) RegisterSingle(w http.ResponseWriter, r *http.Request) {
	var in domain.NewAttendee
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	out, err := h.registration.Register(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	httputil.OK(w, map[string]any{
		"message":  "Attendee registered successfully",
		"attendee": toRegistered(out),
	})
}

// POST /api/register/bulk
func (h *Handlers) RegisterBulk(w http.ResponseWriter, r *http.Request) {
	var in bulkRequest
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	out, err := h.registration.RegisterMany(r.Context(), in.Attendees)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	list := make([]registeredDTO, 0, len(out))
	for _, o := range out {
		list = append(list, toRegistered(o))
	}
	httputil.OK(w, map[string]any{
		"message":   fmt.Sprintf("Successfully registered %d attendees", len(list)),
		"attendees": list,
	})
}

// POST /api/upload/csv (multipart, поле file)
func (h *Handlers) UploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidInput), nil)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(hdr.Filename), ".csv") {
		h.fail(w, r, fmt.Errorf("%w: Only CSV files are allowed", domain.ErrInvalidInput), nil)
		return
	}

	n, err := h.registration.ImportCSV(r.Context(), file)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	httputil.OK(w, map[string]any{
		"message":         fmt.Sprintf("Successfully processed %d attendees from CSV", n),
		"total_processed": n,
	})
}

// GET /api/qr/{id}.png — без авторизации, ссылка уходит в WhatsApp.
func (h *Handlers) QRImage(w http.ResponseWriter, r *http.Request) {
	png, err := h.registration.QRImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	_, _ = w.Write(png)
}

// POST /api/resend/pending?limit=200
func (h *Handlers) ResendPending(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	res, err := h.registration.ResendPending(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	httputil.OK(w, res)
}

func intQuery(r *http.Request, key string) (int, error) {
	s := strings.TrimSpace(r.URL.Query().Get(key))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
	}
	return n, nil
}
