package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/cwrk-planet/attendance-service/internal/domain"
)

// Authenticator — bearer-токен -> активный сотрудник.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Staff, error)
}

type staffKey struct{}

func StaffFrom(ctx context.Context) (domain.Staff, bool) {
	st, ok := ctx.Value(staffKey{}).(domain.Staff)
	return st, ok
}

// tokenFrom: Authorization: Bearer ..., иначе ?access_token= (браузерный EventSource и websocket не умеют заголовки).
func tokenFrom(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func (h *Handlers) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := tokenFrom(r)
		if tok == "" {
			h.fail(w, r, domain.ErrUnauthorized, nil)
			return
		}
		st, err := h.auth.Authenticate(r.Context(), tok)
		if err != nil {
			h.fail(w, r, err, nil)
			return
		}
		ctx := context.WithValue(r.Context(), staffKey{}, st)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handlers) requireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, ok := StaffFrom(r.Context())
			if !ok || st.Role != role {
				h.fail(w, r, domain.ErrForbidden, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
