package http

import (
	"net/http"
	"strconv"

	"github.com/cwrk-planet/attendance-service/internal/httputil"
	"github.com/cwrk-planet/attendance-service/internal/service"

	"github.com/go-chi/chi/v5"
)

// POST /api/staff/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	res, err := h.staff.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	httputil.OK(w, map[string]any{
		"message":    "Login successful",
		"staff_id":   res.Staff.ID,
		"email":      res.Staff.Email,
		"name":       res.Staff.Name,
		"role":       res.Staff.Role,
		"token":      res.Token,
		"token_type": "Bearer",
		"expires_in": int64(res.ExpiresIn.Seconds()),
	})
}

// POST /api/admin/staff
func (h *Handlers) CreateStaff(w http.ResponseWriter, r *http.Request) {
	actor, _ := StaffFrom(r.Context())
	var in service.CreateStaffInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	st, err := h.staff.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	httputil.Created(w, toStaff(st))
}

// GET /api/admin/staff?include_inactive=true
func (h *Handlers) ListStaff(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	list, err := h.staff.List(r.Context(), all)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	out := make([]staffDTO, 0, len(list))
	for _, s := range list {
		out = append(out, toStaff(s))
	}
	httputil.OK(w, out)
}

// GET /api/admin/staff/{id}
func (h *Handlers) GetStaff(w http.ResponseWriter, r *http.Request) {
	st, err := h.staff.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	httputil.OK(w, toStaff(st))
}

// PUT /api/admin/staff/{id}
func (h *Handlers) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	actor, _ := StaffFrom(r.Context())
	var in service.UpdateStaffInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	st, err := h.staff.Update(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	httputil.OK(w, toStaff(st))
}

// DELETE /api/admin/staff/{id}?permanent=true
func (h *Handlers) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	actor, _ := StaffFrom(r.Context())
	permanent, _ := strconv.ParseBool(r.URL.Query().Get("permanent"))
	id := chi.URLParam(r, "id")

	if err := h.staff.Delete(r.Context(), actor, id, permanent); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	msg := "Staff member deactivated"
	if permanent {
		msg = "Staff member permanently deleted"
	}
	httputil.OK(w, map[string]any{"message": msg, "staff_id": id, "permanent": permanent})
}
