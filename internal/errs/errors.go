// Package errs сводит доменные ошибки к HTTP-статусу и kind ответа.
package errs

import (
	"errors"
	"net/http"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
)

const (
	KindInvalidInput     = "invalid_input"
	KindNotFound         = "not_found"
	KindAlreadyCheckedIn = "already_checked_in"
	KindStoreUnavailable = "store_unavailable"
	KindUnauthorized     = "unauthorized"
	KindForbidden        = "forbidden"
	KindConflict         = "conflict"
	KindInternal         = "internal"
)

type HTTPError struct {
	Status  int
	Kind    string
	Message string
}

var table = []struct {
	target error
	out    HTTPError
}{
	{domain.ErrInvalidInput, HTTPError{http.StatusBadRequest, KindInvalidInput, ""}},
	{domain.ErrNothingToUpdate, HTTPError{http.StatusBadRequest, KindInvalidInput, ""}},
	{domain.ErrCannotDeleteSelf, HTTPError{http.StatusBadRequest, KindInvalidInput, ""}},
	{domain.ErrAttendeeNotFound, HTTPError{http.StatusNotFound, KindNotFound, "invalid QR code"}},
	{domain.ErrStaffNotFound, HTTPError{http.StatusNotFound, KindNotFound, ""}},
	{domain.ErrStoreUnavailable, HTTPError{http.StatusServiceUnavailable, KindStoreUnavailable, "system error, try again"}},
	{domain.ErrInvalidCredentials, HTTPError{http.StatusUnauthorized, KindUnauthorized, ""}},
	{domain.ErrUnauthorized, HTTPError{http.StatusUnauthorized, KindUnauthorized, "unauthorized"}},
	{domain.ErrForbidden, HTTPError{http.StatusForbidden, KindForbidden, "forbidden"}},
	{domain.ErrEmailTaken, HTTPError{http.StatusConflict, KindConflict, ""}},
}

// ToHTTP: store_unavailable проверяется раньше invalid_input, внутренние детали не раскрываются.
func ToHTTP(err error) HTTPError {
	var already *domain.AlreadyCheckedInError
	if errors.As(err, &already) {
		return HTTPError{
			Status:  http.StatusConflict,
			Kind:    KindAlreadyCheckedIn,
			Message: "attendance already marked at " + already.EntryTime.UTC().Format(time.RFC3339Nano),
		}
	}
	if errors.Is(err, domain.ErrAlreadyCheckedIn) {
		return HTTPError{http.StatusConflict, KindAlreadyCheckedIn, domain.ErrAlreadyCheckedIn.Error()}
	}
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return HTTPError{http.StatusServiceUnavailable, KindStoreUnavailable, "system error, try again"}
	}
	for _, row := range table {
		if errors.Is(err, row.target) {
			out := row.out
			if out.Message == "" {
				out.Message = err.Error()
			}
			return out
		}
	}
	return HTTPError{http.StatusInternalServerError, KindInternal, "internal error"}
}
