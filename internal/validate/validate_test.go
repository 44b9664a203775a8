package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/cwrk-planet/attendance-service/internal/domain"
)

func TestStruct(t *testing.T) {
	ok := domain.NewAttendee{Name: "A", Email: "a@x.io", Mobile: "9", Batch: "B"}
	if err := Struct(ok); err != nil {
		t.Fatalf("valid struct: %v", err)
	}

	err := Struct(domain.NewAttendee{Name: "A", Email: "nope", Batch: "B"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	for _, want := range []string{"email email", "mobile required"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("err %q missing %q", err, want)
		}
	}
	if err := Struct(nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("nil err = %v", err)
	}
}
