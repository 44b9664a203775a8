package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
)

func TestToHTTP(t *testing.T) {
	at := time.Date(2026, 3, 14, 4, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"invalid", fmt.Errorf("%w: name required", domain.ErrInvalidInput), http.StatusBadRequest, KindInvalidInput},
		{"not found", domain.ErrAttendeeNotFound, http.StatusNotFound, KindNotFound},
		{"already", &domain.AlreadyCheckedInError{EntryTime: at}, http.StatusConflict, KindAlreadyCheckedIn},
		{"unavailable", fmt.Errorf("record: %w: dial tcp", domain.ErrStoreUnavailable), http.StatusServiceUnavailable, KindStoreUnavailable},
		{"creds", domain.ErrInvalidCredentials, http.StatusUnauthorized, KindUnauthorized},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, KindForbidden},
		{"email taken", domain.ErrEmailTaken, http.StatusConflict, KindConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError, KindInternal},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ToHTTP(c.err)
			if got.Status != c.status || got.Kind != c.kind {
				t.Fatalf("ToHTTP = %+v, want %d %s", got, c.status, c.kind)
			}
		})
	}
}

func TestToHTTP_Messages(t *testing.T) {
	at := time.Date(2026, 3, 14, 4, 0, 0, 0, time.UTC)
	if m := ToHTTP(&domain.AlreadyCheckedInError{EntryTime: at}).Message; !strings.Contains(m, "2026-03-14T04:00:00Z") {
		t.Fatalf("already message = %q", m)
	}
	if m := ToHTTP(fmt.Errorf("x: %w: secret dsn", domain.ErrStoreUnavailable)).Message; strings.Contains(m, "dsn") {
		t.Fatalf("internal detail leaked: %q", m)
	}
	if m := ToHTTP(domain.ErrAttendeeNotFound).Message; m != "invalid QR code" {
		t.Fatalf("not found message = %q", m)
	}
}
