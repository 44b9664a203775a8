package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/cwrk-planet/attendance-service/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
)

// mapPgError переводит ошибки драйвера в ошибки repository.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return repository.ErrAlreadyExists
		case "23503": // foreign_key_violation
			return repository.ErrNotFound
		case "22P02": // invalid_text_representation
			return repository.ErrInvalidInput
		}
		// класс 08 — соединение, 53 — ресурсы, 57P — сервер останавливается
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "53") || strings.HasPrefix(pgErr.Code, "57P") {
			return fmt.Errorf("%w: %s", repository.ErrUnavailable, pgErr.Message)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connErr),
		errors.As(err, &netErr),
		pgconn.Timeout(err),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}

	return err
}
