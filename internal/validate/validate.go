package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/cwrk-planet/attendance-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return v
}

// Struct проверяет теги validate; ошибка матчится с domain.ErrInvalidInput.
func Struct(s any) error {
	if s == nil {
		return fmt.Errorf("%w: is nil", domain.ErrInvalidInput)
	}
	var validationErrors validator.ValidationErrors

	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	if errors.As(err, &validationErrors) {
		parts := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			parts = append(parts, fmt.Sprintf("%s %s", fieldErr.Field(), fieldErr.Tag()))
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(parts, "; "))
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}
